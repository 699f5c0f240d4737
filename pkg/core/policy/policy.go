// Package policy centralizes every fixed valuation constant: macro rates,
// projection horizons, multiple sanity bands, blend weights and decision
// thresholds. A single source of truth keeps calibration and production runs
// from drifting apart.
package policy

import (
	"fmt"
	"os"
	"strings"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v2"
)

// Band bounds one trading multiple. Values outside (Min, Max) are treated as
// broken data, not as information.
type Band struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Contains reports whether v lies strictly inside the band.
func (b Band) Contains(v float64) bool {
	return v > b.Min && v < b.Max
}

// Policy holds every tunable constant of the engine. All rates are decimal
// fractions; the YAML file uses percentages (see Load).
type Policy struct {
	// Cost of capital
	RiskFreeRate      float64 // e.g. 0.045
	EquityRiskPremium float64 // e.g. 0.0412
	TaxRate           float64 // e.g. 0.21
	MinCostOfDebt     float64 // floor for debt-free or missing data
	MaxCostOfDebt     float64
	WACCFloor         float64 // WACC never resolves below this

	// DCF projection
	ProjectionYears int
	MinGrowth       float64 // clamp on the adjusted FCF growth rate
	MaxGrowth       float64
	ScenarioSpread  float64 // pessimistic/optimistic = g -/+ spread*|g|

	// Comparables
	PEBand              Band
	PBBand              Band
	PSBand              Band
	EVEBITDABand        Band
	MinPeersPerMultiple int
	PeerCap             int
	PEWeight            float64
	PBWeight            float64
	PSWeight            float64
	EVEBITDAWeight      float64

	// Blend and decision
	DCFWeight          float64
	ComparablesWeight  float64
	BuyThresholdPct    float64 // undervaluation % that must be exceeded
	NoiseBandPct       float64 // |pct| below this classifies as fair
	DefaultTerminalGrowth float64

	// Orchestration
	MaxConcurrency int

	sectorTerminalGrowth []sectorGrowth
}

// sectorGrowth pairs a sector-name fragment with its perpetuity growth rate.
type sectorGrowth struct {
	key    string
	growth float64
}

// Default returns the policy the original screening system shipped with.
func Default() *Policy {
	return &Policy{
		RiskFreeRate:      0.045,
		EquityRiskPremium: 0.0412,
		TaxRate:           0.21,
		MinCostOfDebt:     0.03,
		MaxCostOfDebt:     0.10,
		WACCFloor:         0.01,

		ProjectionYears: 10,
		MinGrowth:       -0.10,
		MaxGrowth:       0.20,
		ScenarioSpread:  0.20,

		PEBand:              Band{Min: 5, Max: 200},
		PBBand:              Band{Min: 0.5, Max: 50},
		PSBand:              Band{Min: 0.5, Max: 100},
		EVEBITDABand:        Band{Min: 2, Max: 50},
		MinPeersPerMultiple: 2,
		PeerCap:             3,
		PEWeight:            0.40,
		PBWeight:            0.20,
		PSWeight:            0.25,
		EVEBITDAWeight:      0.15,

		DCFWeight:             0.5,
		ComparablesWeight:     0.5,
		BuyThresholdPct:       25.0,
		NoiseBandPct:          5.0,
		DefaultTerminalGrowth: 0.02,

		MaxConcurrency: 5,

		sectorTerminalGrowth: defaultSectorTerminalGrowth(),
	}
}

// Terminal growth is deliberately conservative and sector-dependent:
// perpetuity growth above long-run GDP growth is not defensible. Specific
// fragments come before generic ones so "Biotechnology" resolves to the
// healthcare rate, not the technology one.
func defaultSectorTerminalGrowth() []sectorGrowth {
	return []sectorGrowth{
		{"biotechnology", 0.020},
		{"pharmaceutical", 0.020},
		{"healthcare", 0.020},

		{"semiconductor", 0.025},
		{"software", 0.025},
		{"technology", 0.025},
		{"tech", 0.025},

		{"financial", 0.020},
		{"banking", 0.020},

		{"consumer defensive", 0.018},
		{"consumer staples", 0.018},
		{"consumer cyclical", 0.020},
		{"consumer discretionary", 0.020},
		{"retail", 0.020},

		{"industrial", 0.020},

		{"telecommunications", 0.020},
		{"communication", 0.020},

		{"utilit", 0.015},

		{"energy", 0.018},
		{"materials", 0.018},

		{"real estate", 0.018},
	}
}

// TerminalGrowthForSector returns the perpetuity growth rate for a sector,
// matching case-insensitively on substrings so provider naming variants
// ("Technology", "Information Technology") resolve to the same rate.
func (p *Policy) TerminalGrowthForSector(sector string) float64 {
	s := strings.ToLower(sector)
	for _, sg := range p.sectorTerminalGrowth {
		if strings.Contains(s, sg.key) {
			return sg.growth
		}
	}
	return p.DefaultTerminalGrowth
}

// fileConfig is the on-disk shape. Rates are percentages, matching how the
// constants are quoted in the methodology docs (4.5 means 4.5%).
type fileConfig struct {
	RiskFreeRatePct      float64 `yaml:"risk_free_rate" default:"4.5"`
	EquityRiskPremiumPct float64 `yaml:"equity_risk_premium" default:"4.12"`
	TaxRatePct           float64 `yaml:"tax_rate" default:"21.0"`
	MinCostOfDebtPct     float64 `yaml:"min_cost_of_debt" default:"3.0"`
	MaxCostOfDebtPct     float64 `yaml:"max_cost_of_debt" default:"10.0"`
	WACCFloorPct         float64 `yaml:"wacc_floor" default:"1.0"`

	ProjectionYears   int     `yaml:"projection_years" default:"10"`
	MinGrowthPct      float64 `yaml:"min_growth" default:"-10.0"`
	MaxGrowthPct      float64 `yaml:"max_growth" default:"20.0"`
	ScenarioSpreadPct float64 `yaml:"scenario_spread" default:"20.0"`

	MinPeersPerMultiple int `yaml:"min_peers_per_multiple" default:"2"`
	PeerCap             int `yaml:"peer_cap" default:"3"`

	DCFWeight         float64 `yaml:"dcf_weight" default:"0.5"`
	ComparablesWeight float64 `yaml:"comparables_weight" default:"0.5"`
	BuyThresholdPct   float64 `yaml:"buy_threshold" default:"25.0"`
	NoiseBandPct      float64 `yaml:"noise_band" default:"5.0"`

	MaxConcurrency int `yaml:"max_concurrency" default:"5"`
}

// Load reads a YAML policy file and applies it over the defaults. A missing
// file is not an error: the defaults are a complete, runnable policy.
func Load(path string) (*Policy, error) {
	p := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var fc fileConfig
	if err := defaults.Set(&fc); err != nil {
		return nil, fmt.Errorf("apply policy defaults: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}

	p.RiskFreeRate = fc.RiskFreeRatePct / 100
	p.EquityRiskPremium = fc.EquityRiskPremiumPct / 100
	p.TaxRate = normalizeRate(fc.TaxRatePct)
	p.MinCostOfDebt = fc.MinCostOfDebtPct / 100
	p.MaxCostOfDebt = fc.MaxCostOfDebtPct / 100
	p.WACCFloor = fc.WACCFloorPct / 100
	p.ProjectionYears = fc.ProjectionYears
	p.MinGrowth = fc.MinGrowthPct / 100
	p.MaxGrowth = fc.MaxGrowthPct / 100
	p.ScenarioSpread = fc.ScenarioSpreadPct / 100
	p.MinPeersPerMultiple = fc.MinPeersPerMultiple
	p.PeerCap = fc.PeerCap
	p.DCFWeight = fc.DCFWeight
	p.ComparablesWeight = fc.ComparablesWeight
	p.BuyThresholdPct = fc.BuyThresholdPct
	p.NoiseBandPct = fc.NoiseBandPct
	p.MaxConcurrency = fc.MaxConcurrency

	return p, nil
}

// normalizeRate accepts a rate quoted either as a percentage (21.0) or as a
// fraction (0.21) and returns the fraction. Mixing the two conventions was a
// recurring data bug upstream; tolerate both.
func normalizeRate(v float64) float64 {
	if v > 1.0 {
		return v / 100
	}
	return v
}
