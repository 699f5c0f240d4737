// Package params defines the per-company calibration record, the
// financial-reasonableness predicate that gates calibrated values, and the
// pure objective function any external optimizer minimizes. The engine reads
// parameter sets, it never writes them.
package params

import (
	"time"

	"fundamental_valuation/pkg/core/policy"
)

// Declared ranges for the adjustment factors. Values outside are rejected
// before any financial rule is consulted.
const (
	MinGrowthFactor = 0.3
	MaxGrowthFactor = 2.0
	MinWACCFactor   = 0.5
	MaxWACCFactor   = 1.5
)

// Parameter-set provenance values.
const (
	SourceDefault    = "default"
	SourceCalibrated = "calibrated"
)

// ParameterSet is one company's calibration record. Created by an external
// calibration run, persisted keyed by symbol, consumed read-only by the
// engine.
type ParameterSet struct {
	Symbol string `json:"symbol"`

	// GrowthAdjustmentFactor multiplies the projected FCF growth rate.
	GrowthAdjustmentFactor float64 `json:"growth_adjustment_factor"`
	// WACCAdjustmentFactor multiplies the computed WACC.
	WACCAdjustmentFactor float64 `json:"wacc_adjustment_factor"`

	// Blend weights. Must sum to 1.
	DCFWeight         float64 `json:"dcf_weight"`
	ComparablesWeight float64 `json:"comparables_weight"`

	// Provenance
	Trained       bool      `json:"trained"`
	TrainingError float64   `json:"training_error"`
	Source        string    `json:"source"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Default returns the neutral parameter set used when no calibrated record
// exists for a symbol or the calibrated one is rejected.
func Default(symbol string, pol *policy.Policy) ParameterSet {
	return ParameterSet{
		Symbol:                 symbol,
		GrowthAdjustmentFactor: 1.0,
		WACCAdjustmentFactor:   1.0,
		DCFWeight:              pol.DCFWeight,
		ComparablesWeight:      pol.ComparablesWeight,
		Source:                 SourceDefault,
		UpdatedAt:              time.Now().UTC(),
	}
}
