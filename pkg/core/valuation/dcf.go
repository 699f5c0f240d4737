package valuation

import (
	"fmt"
	"math"

	"fundamental_valuation/pkg/core/policy"
	"fundamental_valuation/pkg/models"
)

// Scenario names the three DCF cases.
type Scenario string

const (
	ScenarioPessimistic Scenario = "pessimistic"
	ScenarioBase        Scenario = "base"
	ScenarioOptimistic  Scenario = "optimistic"
)

// DCFInput encapsulates one scenario's inputs. GrowthRate is the adjusted
// starting FCF growth rate as a decimal fraction; TerminalGrowth the
// perpetuity rate the projection tapers toward.
type DCFInput struct {
	FreeCashFlow      float64 // Base-year FCF, millions
	GrowthRate        float64
	TerminalGrowth    float64
	WACC              float64
	Years             int
	TotalDebt         float64 // Millions
	Cash              float64 // Millions
	SharesOutstanding float64 // Millions
}

// DCFResult holds one scenario's valuation outputs.
type DCFResult struct {
	Scenario          Scenario
	FairValuePerShare float64
	EnterpriseValue   float64 // Millions: PV of explicit FCFs + PV of terminal value
	EquityValue       float64 // Millions: EV - debt + cash
	PVExplicit        float64
	PVTerminal        float64
	ProjectedFCF      []float64
	WACC              float64
	// LowConfidence marks a projection grown out of a non-positive base FCF.
	LowConfidence bool
}

// ProjectCashFlows projects the base-year FCF over the horizon with a growth
// rate that tapers linearly from the starting rate to the terminal rate, so
// early years compound faster than later ones. A decade of constant high
// growth is not a defensible projection.
func ProjectCashFlows(fcf, growth, terminalGrowth float64, years int) []float64 {
	projected := make([]float64, 0, years)
	current := fcf
	for year := 1; year <= years; year++ {
		g := growth
		if years > 1 {
			g = growth + (terminalGrowth-growth)*float64(year-1)/float64(years-1)
		}
		current *= 1 + g
		projected = append(projected, current)
	}
	return projected
}

// TerminalValue capitalizes the final projected FCF with the Gordon Growth
// Model: TV = FCF_N * (1 + g) / (WACC - g). A WACC at or below the terminal
// growth rate has no convergent perpetuity and is a hard domain error, never
// a silent division.
func TerminalValue(finalFCF, wacc, terminalGrowth float64) (float64, error) {
	if wacc <= terminalGrowth {
		return 0, &DomainError{
			Op:     "terminal_value",
			Reason: fmt.Sprintf("WACC %.4f <= terminal growth %.4f: non-convergent perpetuity", wacc, terminalGrowth),
		}
	}
	return finalFCF * (1 + terminalGrowth) / (wacc - terminalGrowth), nil
}

// CalculateDCF runs one scenario: project, discount, capitalize, bridge to
// equity, divide by shares.
func CalculateDCF(in DCFInput) (DCFResult, error) {
	if in.SharesOutstanding <= 0 {
		return DCFResult{}, &DomainError{Op: "per_share", Reason: "shares outstanding not positive"}
	}
	if in.Years <= 0 {
		return DCFResult{}, &DomainError{Op: "projection", Reason: "projection horizon not positive"}
	}

	projected := ProjectCashFlows(in.FreeCashFlow, in.GrowthRate, in.TerminalGrowth, in.Years)

	var pvExplicit float64
	for year, cf := range projected {
		pvExplicit += cf / math.Pow(1+in.WACC, float64(year+1))
	}

	tv, err := TerminalValue(projected[len(projected)-1], in.WACC, in.TerminalGrowth)
	if err != nil {
		return DCFResult{}, err
	}
	pvTerminal := tv / math.Pow(1+in.WACC, float64(in.Years))

	ev := pvExplicit + pvTerminal
	equity := models.EquityValueFrom(ev, in.TotalDebt, in.Cash)

	return DCFResult{
		FairValuePerShare: equity / in.SharesOutstanding,
		EnterpriseValue:   ev,
		EquityValue:       equity,
		PVExplicit:        pvExplicit,
		PVTerminal:        pvTerminal,
		ProjectedFCF:      projected,
		WACC:              in.WACC,
		LowConfidence:     in.FreeCashFlow <= 0,
	}, nil
}

// DCFScenarioSet bundles the three scenario results.
type DCFScenarioSet struct {
	Pessimistic DCFResult
	Base        DCFResult
	Optimistic  DCFResult
}

// Values projects the set onto the per-share figures carried in results.
func (s DCFScenarioSet) Values() models.DCFScenarios {
	return models.DCFScenarios{
		Pessimistic: s.Pessimistic.FairValuePerShare,
		Base:        s.Base.FairValuePerShare,
		Optimistic:  s.Optimistic.FairValuePerShare,
	}
}

// CalculateScenarios runs the three scenarios from an adjusted base growth
// rate. The perturbation is g -/+ spread*|g| rather than a plain factor so
// the pessimistic case never exceeds the base case when growth is negative.
func CalculateScenarios(snap *models.Snapshot, pol *policy.Policy, wacc float64, adjustedGrowth float64) (DCFScenarioSet, error) {
	terminal := pol.TerminalGrowthForSector(snap.Sector)

	clampGrowth := func(g float64) float64 {
		return math.Min(math.Max(g, pol.MinGrowth), pol.MaxGrowth)
	}
	base := clampGrowth(adjustedGrowth)
	spread := pol.ScenarioSpread * math.Abs(base)

	run := func(scenario Scenario, g float64) (DCFResult, error) {
		res, err := CalculateDCF(DCFInput{
			FreeCashFlow:      snap.FreeCashFlow,
			GrowthRate:        clampGrowth(g),
			TerminalGrowth:    terminal,
			WACC:              wacc,
			Years:             pol.ProjectionYears,
			TotalDebt:         snap.TotalDebt,
			Cash:              snap.Cash,
			SharesOutstanding: snap.SharesOutstanding,
		})
		if err != nil {
			return DCFResult{}, err
		}
		res.Scenario = scenario
		return res, nil
	}

	var set DCFScenarioSet
	var err error
	if set.Pessimistic, err = run(ScenarioPessimistic, base-spread); err != nil {
		return DCFScenarioSet{}, err
	}
	if set.Base, err = run(ScenarioBase, base); err != nil {
		return DCFScenarioSet{}, err
	}
	if set.Optimistic, err = run(ScenarioOptimistic, base+spread); err != nil {
		return DCFScenarioSet{}, err
	}
	return set, nil
}
