package valuation

import (
	"errors"
	"math"
	"testing"

	"fundamental_valuation/pkg/core/policy"
	"fundamental_valuation/pkg/models"
)

func TestProjectCashFlowsTaper(t *testing.T) {
	// Growth tapers 10% -> 2% over 5 years: 10, 8, 6, 4, 2 percent.
	projected := ProjectCashFlows(100, 0.10, 0.02, 5)

	if len(projected) != 5 {
		t.Fatalf("Expected 5 years, got %d", len(projected))
	}
	if math.Abs(projected[0]-110) > 0.0001 {
		t.Errorf("Expected year 1 = 110, got %f", projected[0])
	}
	// 110 * 1.08 = 118.8
	if math.Abs(projected[1]-118.8) > 0.0001 {
		t.Errorf("Expected year 2 = 118.8, got %f", projected[1])
	}
	// 118.8 * 1.06 * 1.04 * 1.02 = 133.5844224
	if math.Abs(projected[4]-133.5844224) > 0.0001 {
		t.Errorf("Expected year 5 = 133.5844, got %f", projected[4])
	}
}

func TestTerminalValueGuard(t *testing.T) {
	// WACC at or below terminal growth has no convergent perpetuity.
	for _, wacc := range []float64{0.02, 0.015} {
		_, err := TerminalValue(100, wacc, 0.02)
		if err == nil {
			t.Fatalf("Expected DomainError for WACC %f, got none", wacc)
		}
		var derr *DomainError
		if !errors.As(err, &derr) {
			t.Errorf("Expected *DomainError, got %T", err)
		}
	}

	tv, err := TerminalValue(100, 0.10, 0.02)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// 100 * 1.02 / 0.08 = 1275
	if math.Abs(tv-1275) > 0.0001 {
		t.Errorf("Expected TV 1275, got %f", tv)
	}
}

func TestCalculateDCFHandComputed(t *testing.T) {
	// Single-year horizon keeps the arithmetic checkable by hand.
	// FCF1 = 105, TV = 105*1.02/0.08 = 1338.75
	// EV = (105 + 1338.75) / 1.1 = 1312.5, per share = 131.25
	res, err := CalculateDCF(DCFInput{
		FreeCashFlow:      100,
		GrowthRate:        0.05,
		TerminalGrowth:    0.02,
		WACC:              0.10,
		Years:             1,
		SharesOutstanding: 10,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if math.Abs(res.EnterpriseValue-1312.5) > 0.0001 {
		t.Errorf("Expected EV 1312.5, got %f", res.EnterpriseValue)
	}
	if math.Abs(res.FairValuePerShare-131.25) > 0.0001 {
		t.Errorf("Expected 131.25 per share, got %f", res.FairValuePerShare)
	}
	if res.LowConfidence {
		t.Error("Positive base FCF must not be flagged low-confidence")
	}
}

func TestCalculateDCFEquityBridge(t *testing.T) {
	base := DCFInput{
		FreeCashFlow:      100,
		GrowthRate:        0.05,
		TerminalGrowth:    0.02,
		WACC:              0.10,
		Years:             1,
		SharesOutstanding: 10,
	}
	leveraged := base
	leveraged.TotalDebt = 500
	leveraged.Cash = 200

	unlevered, err := CalculateDCF(base)
	if err != nil {
		t.Fatal(err)
	}
	levered, err := CalculateDCF(leveraged)
	if err != nil {
		t.Fatal(err)
	}

	// Same EV, equity shifted by -debt +cash: (1312.5 - 500 + 200) / 10.
	if math.Abs(levered.EnterpriseValue-unlevered.EnterpriseValue) > 0.0001 {
		t.Errorf("Debt and cash must not move EV")
	}
	if math.Abs(levered.FairValuePerShare-101.25) > 0.0001 {
		t.Errorf("Expected 101.25 per share, got %f", levered.FairValuePerShare)
	}
}

func TestCalculateDCFInvalidShares(t *testing.T) {
	_, err := CalculateDCF(DCFInput{
		FreeCashFlow:      100,
		GrowthRate:        0.05,
		TerminalGrowth:    0.02,
		WACC:              0.10,
		Years:             10,
		SharesOutstanding: 0,
	})
	var derr *DomainError
	if !errors.As(err, &derr) {
		t.Fatalf("Expected DomainError for zero shares, got %v", err)
	}
}

func TestCalculateDCFNegativeFCFLowConfidence(t *testing.T) {
	res, err := CalculateDCF(DCFInput{
		FreeCashFlow:      -100,
		GrowthRate:        0.05,
		TerminalGrowth:    0.02,
		WACC:              0.10,
		Years:             10,
		SharesOutstanding: 10,
	})
	if err != nil {
		t.Fatalf("Negative FCF must still compute: %v", err)
	}
	if !res.LowConfidence {
		t.Error("Negative base FCF must be flagged low-confidence")
	}
	if res.FairValuePerShare >= 0 {
		t.Errorf("Expected negative fair value, got %f", res.FairValuePerShare)
	}
}

func dcfValue(t *testing.T, wacc, growth float64) float64 {
	t.Helper()
	res, err := CalculateDCF(DCFInput{
		FreeCashFlow:      100,
		GrowthRate:        growth,
		TerminalGrowth:    0.02,
		WACC:              wacc,
		Years:             10,
		SharesOutstanding: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	return res.FairValuePerShare
}

func TestWACCMonotonicity(t *testing.T) {
	// Higher discount rate, lower value.
	prev := dcfValue(t, 0.06, 0.05)
	for _, wacc := range []float64{0.08, 0.10, 0.12} {
		v := dcfValue(t, wacc, 0.05)
		if v >= prev {
			t.Errorf("WACC %f: expected value below %f, got %f", wacc, prev, v)
		}
		prev = v
	}
}

func TestGrowthMonotonicity(t *testing.T) {
	// Higher starting growth, higher value.
	prev := dcfValue(t, 0.10, 0.00)
	for _, growth := range []float64{0.03, 0.06, 0.09} {
		v := dcfValue(t, 0.10, growth)
		if v <= prev {
			t.Errorf("growth %f: expected value above %f, got %f", growth, prev, v)
		}
		prev = v
	}
}

func TestCalculateScenariosOrdering(t *testing.T) {
	pol := policy.Default()
	snap := &models.Snapshot{
		Symbol:            "TEST",
		Sector:            "Technology",
		CurrentPrice:      50,
		SharesOutstanding: 1000,
		FreeCashFlow:      2000,
		FCFGrowthRate:     0.08,
	}

	set, err := CalculateScenarios(snap, pol, 0.09, 0.08)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	v := set.Values()
	if !(v.Pessimistic <= v.Base && v.Base <= v.Optimistic) {
		t.Errorf("Expected pessimistic <= base <= optimistic, got %f / %f / %f",
			v.Pessimistic, v.Base, v.Optimistic)
	}
	if v.Pessimistic == v.Optimistic {
		t.Error("Scenarios must actually spread for a nonzero growth rate")
	}
}

func TestCalculateScenariosTerminalGuard(t *testing.T) {
	pol := policy.Default()
	snap := &models.Snapshot{
		Symbol:            "TEST",
		Sector:            "Technology", // terminal growth 2.5%
		SharesOutstanding: 1000,
		FreeCashFlow:      2000,
	}

	// WACC below the sector terminal growth rate.
	_, err := CalculateScenarios(snap, pol, 0.02, 0.05)
	var derr *DomainError
	if !errors.As(err, &derr) {
		t.Fatalf("Expected DomainError, got %v", err)
	}
}
