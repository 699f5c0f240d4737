// Package models defines the normalized data objects exchanged between the
// data providers and the valuation engine. Monetary statement figures are in
// millions of currency units; per-share figures are in currency units.
package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// MaxPeers caps the peer list carried on a snapshot. Providers resolve,
// deduplicate and cap upstream; the engine never sees more than this.
const MaxPeers = 10

// EPS figures outside this band indicate a broken upstream extraction
// rather than a real company.
const (
	MinSaneEPS = -1000.0
	MaxSaneEPS = 1000.0
)

// PeerSnapshot carries the minimal fundamentals needed to compute one peer's
// trading multiples.
type PeerSnapshot struct {
	Symbol            string  `json:"symbol"`
	Price             float64 `json:"price"`
	EPS               float64 `json:"eps"`
	BookValuePerShare float64 `json:"book_value_per_share"`
	SalesPerShare     float64 `json:"sales_per_share"`
	EBITDA            float64 `json:"ebitda"`
	MarketCap         float64 `json:"market_cap"`
	TotalDebt         float64 `json:"total_debt"`
	Cash              float64 `json:"cash"`
}

// Snapshot is an immutable view of one company's financials at one point in
// time. It is the engine's only input besides the parameter set.
type Snapshot struct {
	// Identity
	Symbol string  `json:"symbol" validate:"required"`
	Sector string  `json:"sector"`
	Beta   float64 `json:"beta"`

	// Market
	CurrentPrice      float64 `json:"current_price" validate:"gt=0"`
	SharesOutstanding float64 `json:"shares_outstanding"` // Millions
	MarketCap         float64 `json:"market_cap"`         // Millions

	// Income / cash flow (trailing twelve months, millions)
	FreeCashFlow    float64 `json:"free_cash_flow"`
	Revenue         float64 `json:"revenue"`
	NetIncome       float64 `json:"net_income"`
	EBITDA          float64 `json:"ebitda"`
	InterestExpense float64 `json:"interest_expense"`

	// Balance sheet (millions)
	TotalDebt         float64 `json:"total_debt"`
	Cash              float64 `json:"cash"`
	ShareholderEquity float64 `json:"shareholder_equity"`

	// Per-share fundamentals
	EPS               float64 `json:"eps"`
	BookValuePerShare float64 `json:"book_value_per_share"`
	RevenuePerShare   float64 `json:"revenue_per_share"`

	// Trailing FCF growth, as a decimal fraction (0.08 = 8% per year).
	FCFGrowthRate float64 `json:"fcf_growth_rate"`

	// Historical FCF series, oldest first, used for the stability score.
	FCFHistory []float64 `json:"fcf_history,omitempty"`

	// Latest reported EPS surprise (actual - estimate). Nil when the company
	// has not reported or the upstream screen did not supply one.
	SurpriseEPS *float64 `json:"surprise_eps,omitempty"`

	AsOf  time.Time      `json:"as_of"`
	Peers []PeerSnapshot `json:"peers,omitempty"`
}

var snapshotValidator = validator.New()

// Normalize fills fields that are derivable from others: shares outstanding
// from market cap, market cap from shares, and per-share fundamentals from
// the statement totals. It never overwrites a value that is already set.
func (s *Snapshot) Normalize() {
	if s.SharesOutstanding <= 0 && s.MarketCap > 0 && s.CurrentPrice > 0 {
		s.SharesOutstanding = s.MarketCap / s.CurrentPrice
	}
	if s.MarketCap <= 0 && s.SharesOutstanding > 0 && s.CurrentPrice > 0 {
		s.MarketCap = s.SharesOutstanding * s.CurrentPrice
	}
	if s.SharesOutstanding > 0 {
		if s.BookValuePerShare == 0 && s.ShareholderEquity != 0 {
			s.BookValuePerShare = s.ShareholderEquity / s.SharesOutstanding
		}
		if s.RevenuePerShare == 0 && s.Revenue != 0 {
			s.RevenuePerShare = s.Revenue / s.SharesOutstanding
		}
		if s.EPS == 0 && s.NetIncome != 0 {
			s.EPS = s.NetIncome / s.SharesOutstanding
		}
	}
	if len(s.Peers) > MaxPeers {
		s.Peers = s.Peers[:MaxPeers]
	}
}

// Validate checks the snapshot invariants. A failing snapshot is rejected,
// never silently coerced. The returned error lists every violated field.
func (s *Snapshot) Validate() error {
	var reasons []string

	if err := snapshotValidator.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok {
			for _, fe := range verrs {
				reasons = append(reasons, fmt.Sprintf("%s violates %s", fe.Field(), fe.Tag()))
			}
		} else {
			reasons = append(reasons, err.Error())
		}
	}

	if s.SharesOutstanding <= 0 {
		reasons = append(reasons, "shares outstanding not positive and not derivable from market cap")
	}
	if math.IsNaN(s.CurrentPrice) || math.IsInf(s.CurrentPrice, 0) {
		reasons = append(reasons, "current price not finite")
	}
	if math.IsNaN(s.EPS) || math.IsInf(s.EPS, 0) || s.EPS < MinSaneEPS || s.EPS > MaxSaneEPS {
		reasons = append(reasons, fmt.Sprintf("eps %.2f outside sane band [%.0f, %.0f]", s.EPS, MinSaneEPS, MaxSaneEPS))
	}
	if math.IsNaN(s.FCFGrowthRate) || math.IsInf(s.FCFGrowthRate, 0) {
		reasons = append(reasons, "fcf growth rate not finite")
	}

	if len(reasons) > 0 {
		return fmt.Errorf("snapshot %s: %s", s.Symbol, strings.Join(reasons, "; "))
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		*target = verrs
		return true
	}
	return false
}

// EnterpriseValue returns market cap + total debt - cash.
func (s *Snapshot) EnterpriseValue() float64 {
	return EnterpriseValueFrom(s.MarketCap, s.TotalDebt, s.Cash)
}

// DebtRatio returns total debt over market cap, the leverage measure used by
// the parameter validity rules. Zero when market cap is unusable.
func (s *Snapshot) DebtRatio() float64 {
	if s.MarketCap <= 0 {
		return 0
	}
	return s.TotalDebt / s.MarketCap
}

// EnterpriseValueFrom converts an equity value (market cap) into an
// enterprise value.
func EnterpriseValueFrom(equity, debt, cash float64) float64 {
	return equity + debt - cash
}

// EquityValueFrom converts an enterprise value back into an equity value.
// Inverse of EnterpriseValueFrom for any finite debt and cash.
func EquityValueFrom(ev, debt, cash float64) float64 {
	return ev - debt + cash
}
