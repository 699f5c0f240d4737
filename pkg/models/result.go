package models

import (
	"math"
	"time"
)

// Classification is the terminal verdict on a company's pricing.
type Classification string

const (
	ClassUndervalued Classification = "undervalued"
	ClassFair        Classification = "fair"
	ClassOvervalued  Classification = "overvalued"
)

// DCFScenarios holds the three per-share DCF fair values.
type DCFScenarios struct {
	Pessimistic float64 `json:"pessimistic"`
	Base        float64 `json:"base"`
	Optimistic  float64 `json:"optimistic"`
}

// ValuationResult is the immutable per-company output of one engine run.
type ValuationResult struct {
	Symbol       string  `json:"symbol"`
	CurrentPrice float64 `json:"current_price"`

	DCF DCFScenarios `json:"dcf"`

	// ComparablesValue is meaningful only when ComparablesAvailable is true.
	ComparablesValue     float64 `json:"comparables_value"`
	ComparablesAvailable bool    `json:"comparables_available"`

	BlendedFairValue         float64        `json:"blended_fair_value"`
	UndervaluationPercentage float64        `json:"undervaluation_percentage"`
	Classification           Classification `json:"classification"`
	Buy                      bool           `json:"buy"`

	SurpriseEPS *float64 `json:"surprise_eps,omitempty"`

	// LowConfidence marks valuations computed from a non-positive base FCF.
	LowConfidence bool `json:"low_confidence,omitempty"`

	// FallbackNotes records every degradation applied while producing this
	// result: dropped multiples, unavailable comparables, rejected parameter
	// sets. Machine-readable, one note per event.
	FallbackNotes []string `json:"fallback_notes,omitempty"`

	// Provenance of the parameter set that produced this result.
	ParamSource string `json:"param_source"`

	WACC       float64   `json:"wacc"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// CompanyFailure reports one company that could not be valued. Failures are
// surfaced alongside successes, never silently dropped.
type CompanyFailure struct {
	Symbol string `json:"symbol"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// BatchResult aggregates one orchestrator run. Results are sorted by
// undervaluation percentage, descending.
type BatchResult struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Results    []ValuationResult `json:"results"`
	Failures   []CompanyFailure  `json:"failures,omitempty"`
	// Omitted lists companies abandoned by a batch-level timeout.
	Omitted []string `json:"omitted,omitempty"`
}

// NotificationPayload is the exact message the downstream trading bot
// consumes. Field set and names are part of the external contract.
type NotificationPayload struct {
	Symbol              string  `json:"symbol"`
	Buy                 bool    `json:"buy"`
	IntrinsicValue      float64 `json:"intrinsic_value"`
	CurrentPrice        float64 `json:"current_price"`
	ValuationPercentage float64 `json:"valuation_percentage"`
}

// Notification converts a result into the payload the publisher sends.
func (r *ValuationResult) Notification() NotificationPayload {
	return NotificationPayload{
		Symbol:              r.Symbol,
		Buy:                 r.Buy,
		IntrinsicValue:      round2(r.BlendedFairValue),
		CurrentPrice:        round2(r.CurrentPrice),
		ValuationPercentage: round2(r.UndervaluationPercentage),
	}
}

// round2 rounds half away from zero to two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
