package valuation

import (
	"math"

	"fundamental_valuation/pkg/core/policy"
	"fundamental_valuation/pkg/models"
)

// Betas outside this band are treated as data glitches and replaced by the
// market-neutral 1.0.
const (
	minValidBeta = 0.3
	maxValidBeta = 5.0
)

// WACCResult holds the computed cost-of-capital components.
type WACCResult struct {
	Beta         float64
	CostOfEquity float64
	CostOfDebt   float64 // After-tax
	WeightDebt   float64
	WeightEquity float64
	Base         float64 // Before the per-company adjustment factor
	WACC         float64 // After adjustment, floored
}

// ComputeWACC estimates the weighted average cost of capital from the
// company's real capital structure:
//
//	Ke   = Rf + beta * ERP                  (CAPM)
//	Kd   = interest expense / total debt    (clamped to policy bounds)
//	WACC = E/(D+E) * Ke + D/(D+E) * Kd * (1 - tax)
//
// using market cap for E and book total debt for D. The result is multiplied
// by the active per-company adjustment factor and clamped to a strictly
// positive floor; cost of capital must always resolve to a usable rate.
func ComputeWACC(snap *models.Snapshot, pol *policy.Policy, adjustment float64) WACCResult {
	beta := snap.Beta
	if math.IsNaN(beta) || math.IsInf(beta, 0) || beta < minValidBeta || beta > maxValidBeta {
		beta = 1.0
	}

	costOfEquity := pol.RiskFreeRate + beta*pol.EquityRiskPremium

	var costOfDebt, weightDebt, weightEquity float64
	if snap.TotalDebt > 0 && snap.MarketCap > 0 {
		costOfDebt = snap.InterestExpense / snap.TotalDebt
		costOfDebt = math.Min(math.Max(costOfDebt, pol.MinCostOfDebt), pol.MaxCostOfDebt)
		total := snap.MarketCap + snap.TotalDebt
		weightDebt = snap.TotalDebt / total
		weightEquity = snap.MarketCap / total
	} else {
		// Debt-free: the debt leg carries no weight, so the floor rate is
		// only informational.
		costOfDebt = pol.MinCostOfDebt
		weightDebt = 0
		weightEquity = 1
	}

	afterTaxCostOfDebt := costOfDebt * (1 - pol.TaxRate)
	base := weightEquity*costOfEquity + weightDebt*afterTaxCostOfDebt

	wacc := base * adjustment
	if wacc < pol.WACCFloor {
		wacc = pol.WACCFloor
	}

	return WACCResult{
		Beta:         beta,
		CostOfEquity: costOfEquity,
		CostOfDebt:   afterTaxCostOfDebt,
		WeightDebt:   weightDebt,
		WeightEquity: weightEquity,
		Base:         base,
		WACC:         wacc,
	}
}
