// Package engine runs the per-company valuation pipeline and the batch
// orchestrator on top of it.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"fundamental_valuation/pkg/core/params"
	"fundamental_valuation/pkg/core/policy"
	"fundamental_valuation/pkg/core/provider"
	"fundamental_valuation/pkg/core/valuation"
	"fundamental_valuation/pkg/models"
)

// Engine values one company at a time: validate, resolve parameters, cost of
// capital, DCF scenarios, comparables, blend, decide. It holds no mutable
// state across calls; identical inputs produce identical outputs.
type Engine struct {
	pol   *policy.Policy
	store provider.ParameterStore
	log   zerolog.Logger
	now   func() time.Time
}

// New creates an engine. store may be nil, in which case every company runs
// on global default parameters.
func New(pol *policy.Policy, store provider.ParameterStore, log zerolog.Logger) *Engine {
	return &Engine{
		pol:   pol,
		store: store,
		log:   log.With().Str("component", "engine").Logger(),
		now:   time.Now,
	}
}

// SetClock injects a clock (for reproducible tests).
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// resolveParams loads the calibrated parameter set for a symbol and gates it
// through the reasonableness predicate. A missing, unloadable or rejected set
// resolves to global defaults; the degradation is returned as a note, never
// as an error.
func (e *Engine) resolveParams(ctx context.Context, snap *models.Snapshot) (params.ParameterSet, []string) {
	def := params.Default(snap.Symbol, e.pol)
	if e.store == nil {
		return def, nil
	}

	ps, err := e.store.LoadParams(ctx, snap.Symbol)
	if err != nil {
		e.log.Warn().Err(err).Str("symbol", snap.Symbol).Msg("parameter load failed, using defaults")
		return def, []string{fmt.Sprintf("parameter load failed: %v", err)}
	}
	if ps == nil {
		return def, nil
	}

	feats := params.FeaturesFrom(snap)
	if violations := params.Validate(*ps, feats); len(violations) > 0 {
		rej := &valuation.ParameterRejectedError{Symbol: snap.Symbol, Violations: violations}
		e.log.Warn().Str("symbol", snap.Symbol).Strs("violations", violations).Msg("parameter set rejected")
		return def, []string{"parameter set rejected: " + rej.Error()}
	}

	out := *ps
	if out.Source == "" {
		out.Source = params.SourceCalibrated
	}
	return out, nil
}

// Analyze values one company. Fatal conditions (invalid snapshot, domain
// errors in discounting) return an error from the taxonomy; recoverable
// degradations are absorbed into the result's fallback notes.
func (e *Engine) Analyze(ctx context.Context, snap *models.Snapshot) (*models.ValuationResult, error) {
	snap.Normalize()
	if err := snap.Validate(); err != nil {
		return nil, &valuation.InputValidationError{Symbol: snap.Symbol, Err: err}
	}

	ps, notes := e.resolveParams(ctx, snap)

	wacc := valuation.ComputeWACC(snap, e.pol, ps.WACCAdjustmentFactor)
	adjustedGrowth := snap.FCFGrowthRate * ps.GrowthAdjustmentFactor

	scenarios, err := valuation.CalculateScenarios(snap, e.pol, wacc.WACC, adjustedGrowth)
	if err != nil {
		return nil, err
	}

	comp := valuation.CalculateComparables(snap, e.pol)
	if !comp.Available {
		notes = append(notes, "comparables unavailable: insufficient valid peers")
	} else {
		for _, kind := range comp.Dropped() {
			notes = append(notes, fmt.Sprintf("comparable multiple %s dropped: no usable peer evidence", kind))
		}
	}

	blended := Blend(scenarios.Base.FairValuePerShare, comp, ps)
	pct := UndervaluationPercentage(blended, snap.CurrentPrice)

	result := &models.ValuationResult{
		Symbol:                   snap.Symbol,
		CurrentPrice:             snap.CurrentPrice,
		DCF:                      scenarios.Values(),
		ComparablesValue:         comp.Value,
		ComparablesAvailable:     comp.Available,
		BlendedFairValue:         blended,
		UndervaluationPercentage: pct,
		Classification:           Classify(pct, e.pol),
		Buy:                      BuyDecision(pct, snap.SurpriseEPS, e.pol),
		SurpriseEPS:              snap.SurpriseEPS,
		LowConfidence:            scenarios.Base.LowConfidence,
		FallbackNotes:            notes,
		ParamSource:              ps.Source,
		WACC:                     wacc.WACC,
		AnalyzedAt:               e.now().UTC(),
	}

	e.log.Debug().
		Str("symbol", snap.Symbol).
		Float64("blended", blended).
		Float64("undervaluation_pct", pct).
		Bool("buy", result.Buy).
		Msg("company analyzed")

	return result, nil
}

// Valuer binds the engine's valuation to one snapshot as a pure scoring
// function for an external calibration loop. The returned function bypasses
// the parameter store: it values exactly the candidate set it is given.
func (e *Engine) Valuer(snap *models.Snapshot) params.ValueFunc {
	return func(ps params.ParameterSet) (float64, error) {
		wacc := valuation.ComputeWACC(snap, e.pol, ps.WACCAdjustmentFactor)
		scenarios, err := valuation.CalculateScenarios(snap, e.pol, wacc.WACC, snap.FCFGrowthRate*ps.GrowthAdjustmentFactor)
		if err != nil {
			return 0, err
		}
		comp := valuation.CalculateComparables(snap, e.pol)
		return Blend(scenarios.Base.FairValuePerShare, comp, ps), nil
	}
}

// Blend combines the base DCF value with the comparables value using the
// parameter set's weights. When comparables are unavailable the weights
// renormalize to 100% DCF rather than treating the missing leg as zero.
func Blend(dcfBase float64, comp valuation.ComparablesResult, ps params.ParameterSet) float64 {
	if !comp.Available {
		return dcfBase
	}
	total := ps.DCFWeight + ps.ComparablesWeight
	if total <= 0 {
		return dcfBase
	}
	return (dcfBase*ps.DCFWeight + comp.Value*ps.ComparablesWeight) / total
}

// UndervaluationPercentage measures how far the blended value sits above the
// market price, in percent of the price.
func UndervaluationPercentage(blended, price float64) float64 {
	return (blended - price) / price * 100
}

// BuyDecision applies the signal rule: a positive earnings surprise and an
// undervaluation strictly above the policy threshold. A missing surprise is
// not a positive one.
func BuyDecision(pct float64, surprise *float64, pol *policy.Policy) bool {
	return surprise != nil && *surprise > 0 && pct > pol.BuyThresholdPct
}

// Classify maps the undervaluation percentage onto the three terminal
// classes, with a noise band around zero treated as fairly priced.
func Classify(pct float64, pol *policy.Policy) models.Classification {
	switch {
	case pct > pol.NoiseBandPct:
		return models.ClassUndervalued
	case pct < -pol.NoiseBandPct:
		return models.ClassOvervalued
	default:
		return models.ClassFair
	}
}
