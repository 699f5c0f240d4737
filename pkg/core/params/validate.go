package params

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"fundamental_valuation/pkg/models"
)

// Feature thresholds for the reasonableness rules. Factors that merely
// minimize pricing error are still rejected when they contradict what the
// company's own history and risk profile support.
const (
	highGrowthThreshold  = 0.25 // historical FCF growth above this cannot be amplified
	lowStabilityCutoff   = 0.5  // stability score below this cannot be amplified
	lowBetaCutoff        = 0.7
	highBetaCutoff       = 1.8
	maxWACCFactorLowBeta = 1.05
	minWACCFactorHighBeta = 0.95
	highDebtRatio        = 0.4

	minStabilityPoints = 3
	marginStabilityCap = 0.30 // EBITDA margin at which the fallback score saturates
)

// Features are the snapshot-derived inputs to the reasonableness predicate.
// Extracted once so the predicate itself stays a pure function of plain
// numbers, usable by both the engine and an external calibration loop.
type Features struct {
	HistoricalGrowth float64 // trailing FCF growth, decimal fraction
	FCFStability     float64 // [0, 1], 1 = perfectly stable
	Beta             float64
	DebtRatio        float64 // total debt / market cap
}

// FeaturesFrom derives predicate features from a snapshot.
func FeaturesFrom(snap *models.Snapshot) Features {
	return Features{
		HistoricalGrowth: snap.FCFGrowthRate,
		FCFStability:     FCFStability(snap),
		Beta:             snap.Beta,
		DebtRatio:        snap.DebtRatio(),
	}
}

// FCFStability scores how steady the company's free cash flow has been, as
// 1 minus the coefficient of variation of the FCF history, clamped to [0, 1].
// With fewer than three history points the EBITDA margin stands in: fat,
// stable margins correlate with stable cash generation. With no usable data
// at all the score is a neutral 0.5.
func FCFStability(snap *models.Snapshot) float64 {
	if len(snap.FCFHistory) >= minStabilityPoints {
		mean := stat.Mean(snap.FCFHistory, nil)
		if mean == 0 {
			return 0
		}
		sd := stat.StdDev(snap.FCFHistory, nil)
		cv := sd / math.Abs(mean)
		return math.Min(math.Max(1-cv, 0), 1)
	}
	if snap.Revenue > 0 && snap.EBITDA > 0 {
		margin := snap.EBITDA / snap.Revenue
		return 0.7 * math.Min(1, margin/marginStabilityCap)
	}
	return 0.5
}

// Validate applies the financial-reasonableness rules and returns one entry
// per violated rule. An empty slice means the set is acceptable.
func Validate(ps ParameterSet, f Features) []string {
	var violations []string

	if ps.GrowthAdjustmentFactor < MinGrowthFactor || ps.GrowthAdjustmentFactor > MaxGrowthFactor {
		violations = append(violations, fmt.Sprintf(
			"growth_adjustment_factor %.2f outside [%.1f, %.1f]",
			ps.GrowthAdjustmentFactor, MinGrowthFactor, MaxGrowthFactor))
	}
	if ps.WACCAdjustmentFactor < MinWACCFactor || ps.WACCAdjustmentFactor > MaxWACCFactor {
		violations = append(violations, fmt.Sprintf(
			"wacc_adjustment_factor %.2f outside [%.1f, %.1f]",
			ps.WACCAdjustmentFactor, MinWACCFactor, MaxWACCFactor))
	}
	if math.Abs(ps.DCFWeight+ps.ComparablesWeight-1.0) > 1e-9 {
		violations = append(violations, fmt.Sprintf(
			"weights %.2f + %.2f do not sum to 1.0", ps.DCFWeight, ps.ComparablesWeight))
	}

	if f.HistoricalGrowth > highGrowthThreshold && ps.GrowthAdjustmentFactor > 1.0 {
		violations = append(violations, fmt.Sprintf(
			"growth factor %.2f amplifies already-high historical growth %.0f%%",
			ps.GrowthAdjustmentFactor, f.HistoricalGrowth*100))
	}
	if f.FCFStability < lowStabilityCutoff && ps.GrowthAdjustmentFactor > 1.0 {
		violations = append(violations, fmt.Sprintf(
			"growth factor %.2f amplifies unstable cash flows (stability %.2f)",
			ps.GrowthAdjustmentFactor, f.FCFStability))
	}
	if f.Beta < lowBetaCutoff && ps.WACCAdjustmentFactor > maxWACCFactorLowBeta {
		violations = append(violations, fmt.Sprintf(
			"wacc factor %.2f inflates discount rate of a low-beta (%.2f) company",
			ps.WACCAdjustmentFactor, f.Beta))
	}
	if f.Beta > highBetaCutoff && ps.WACCAdjustmentFactor < minWACCFactorHighBeta {
		violations = append(violations, fmt.Sprintf(
			"wacc factor %.2f discounts a high-beta (%.2f) company too cheaply",
			ps.WACCAdjustmentFactor, f.Beta))
	}
	if f.DebtRatio > highDebtRatio && ps.WACCAdjustmentFactor < 1.0 {
		violations = append(violations, fmt.Sprintf(
			"wacc factor %.2f below 1.0 with debt ratio %.2f",
			ps.WACCAdjustmentFactor, f.DebtRatio))
	}

	return violations
}

// IsFinanciallyReasonable reports whether the set passes every rule.
func IsFinanciallyReasonable(ps ParameterSet, f Features) bool {
	return len(Validate(ps, f)) == 0
}
