package valuation

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"fundamental_valuation/pkg/core/policy"
	"fundamental_valuation/pkg/models"
)

// MultipleKind names one trading multiple.
type MultipleKind string

const (
	MultiplePE       MultipleKind = "pe"
	MultiplePB       MultipleKind = "pb"
	MultiplePS       MultipleKind = "ps"
	MultipleEVEBITDA MultipleKind = "ev_ebitda"
)

var allMultiples = []MultipleKind{MultiplePE, MultiplePB, MultiplePS, MultipleEVEBITDA}

// MultipleEstimate is one multiple's implied per-share value for the target,
// with the peer evidence behind it.
type MultipleEstimate struct {
	Kind         MultipleKind
	PeerAverage  float64
	ImpliedValue float64
	PeerCount    int
}

// ComparablesResult is the peer-relative fair value. Available is false when
// no multiple survived the sanity filters, in which case Value is meaningless
// and the caller must fall back to DCF alone.
type ComparablesResult struct {
	Value     float64
	Available bool
	Estimates []MultipleEstimate
}

// Dropped lists the multiples that did not survive the filters and so
// contribute nothing to Value.
func (r ComparablesResult) Dropped() []MultipleKind {
	var dropped []MultipleKind
	for _, kind := range allMultiples {
		kept := false
		for _, e := range r.Estimates {
			if e.Kind == kind {
				kept = true
				break
			}
		}
		if !kept {
			dropped = append(dropped, kind)
		}
	}
	return dropped
}

// peerMultiple extracts one multiple from a peer snapshot. The bool is false
// when the inputs cannot produce a meaningful ratio (zero or negative
// denominators) or the ratio falls outside the sanity band.
func peerMultiple(p models.PeerSnapshot, kind MultipleKind, pol *policy.Policy) (float64, bool) {
	var ratio float64
	var band policy.Band
	switch kind {
	case MultiplePE:
		if p.EPS <= 0 {
			return 0, false
		}
		ratio, band = p.Price/p.EPS, pol.PEBand
	case MultiplePB:
		if p.BookValuePerShare <= 0 {
			return 0, false
		}
		ratio, band = p.Price/p.BookValuePerShare, pol.PBBand
	case MultiplePS:
		if p.SalesPerShare <= 0 {
			return 0, false
		}
		ratio, band = p.Price/p.SalesPerShare, pol.PSBand
	case MultipleEVEBITDA:
		if p.EBITDA <= 0 {
			return 0, false
		}
		ev := models.EnterpriseValueFrom(p.MarketCap, p.TotalDebt, p.Cash)
		ratio, band = ev/p.EBITDA, pol.EVEBITDABand
	default:
		return 0, false
	}
	if !math.IsInf(ratio, 0) && !math.IsNaN(ratio) && band.Contains(ratio) {
		return ratio, true
	}
	return 0, false
}

// averageMultiple averages one multiple across the peer group, dropping peers
// the sanity band rejects. Fewer than MinPeersPerMultiple survivors means the
// average is noise and the multiple is dropped entirely.
func averageMultiple(peers []models.PeerSnapshot, kind MultipleKind, pol *policy.Policy) (float64, int, bool) {
	values := make([]float64, 0, len(peers))
	for _, p := range peers {
		if v, ok := peerMultiple(p, kind, pol); ok {
			values = append(values, v)
		}
	}
	if len(values) < pol.MinPeersPerMultiple {
		return 0, len(values), false
	}
	return stat.Mean(values, nil), len(values), true
}

// applyMultiple turns a peer-average multiple into an implied per-share value
// for the target. Price multiples apply directly to the per-share
// fundamental; EV/EBITDA implies an enterprise value that is bridged back to
// equity before dividing by shares.
func applyMultiple(snap *models.Snapshot, kind MultipleKind, avg float64) (float64, bool) {
	switch kind {
	case MultiplePE:
		if snap.EPS <= 0 {
			return 0, false
		}
		return avg * snap.EPS, true
	case MultiplePB:
		if snap.BookValuePerShare <= 0 {
			return 0, false
		}
		return avg * snap.BookValuePerShare, true
	case MultiplePS:
		if snap.RevenuePerShare <= 0 {
			return 0, false
		}
		return avg * snap.RevenuePerShare, true
	case MultipleEVEBITDA:
		if snap.EBITDA <= 0 || snap.SharesOutstanding <= 0 {
			return 0, false
		}
		equity := models.EquityValueFrom(avg*snap.EBITDA, snap.TotalDebt, snap.Cash)
		if equity <= 0 {
			return 0, false
		}
		return equity / snap.SharesOutstanding, true
	default:
		return 0, false
	}
}

// CalculateComparables values the target against its peer group across four
// multiples, weighting the survivors and renormalizing the weights so the
// blend never shrinks just because a multiple was dropped.
func CalculateComparables(snap *models.Snapshot, pol *policy.Policy) ComparablesResult {
	if len(snap.Peers) == 0 {
		return ComparablesResult{}
	}

	weights := map[MultipleKind]float64{
		MultiplePE:       pol.PEWeight,
		MultiplePB:       pol.PBWeight,
		MultiplePS:       pol.PSWeight,
		MultipleEVEBITDA: pol.EVEBITDAWeight,
	}

	var estimates []MultipleEstimate
	var weighted, weightSum float64
	for _, kind := range allMultiples {
		avg, count, ok := averageMultiple(snap.Peers, kind, pol)
		if !ok {
			continue
		}
		implied, ok := applyMultiple(snap, kind, avg)
		if !ok {
			continue
		}
		estimates = append(estimates, MultipleEstimate{
			Kind:         kind,
			PeerAverage:  avg,
			ImpliedValue: implied,
			PeerCount:    count,
		})
		weighted += weights[kind] * implied
		weightSum += weights[kind]
	}

	if weightSum == 0 {
		return ComparablesResult{Estimates: estimates}
	}
	return ComparablesResult{
		Value:     weighted / weightSum,
		Available: true,
		Estimates: estimates,
	}
}
