package valuation

import (
	"math"
	"testing"

	"fundamental_valuation/pkg/core/policy"
	"fundamental_valuation/pkg/models"
)

func TestComparablesPEOnly(t *testing.T) {
	pol := policy.Default()
	snap := &models.Snapshot{
		Symbol:            "TGT",
		CurrentPrice:      90,
		SharesOutstanding: 100,
		EPS:               5,
		Peers: []models.PeerSnapshot{
			{Symbol: "P1", Price: 100, EPS: 5}, // P/E 20
			{Symbol: "P2", Price: 110, EPS: 5}, // P/E 22
		},
	}

	res := CalculateComparables(snap, pol)

	if !res.Available {
		t.Fatal("Expected comparables to be available")
	}
	// Only P/E survives; weights renormalize to 100% P/E.
	// Average P/E 21 * EPS 5 = 105.
	if math.Abs(res.Value-105) > 0.0001 {
		t.Errorf("Expected 105, got %f", res.Value)
	}
	if len(res.Estimates) != 1 || res.Estimates[0].Kind != MultiplePE {
		t.Errorf("Expected a single P/E estimate, got %+v", res.Estimates)
	}
}

func TestComparablesDroppedMultiples(t *testing.T) {
	pol := policy.Default()
	snap := &models.Snapshot{
		Symbol:            "TGT",
		CurrentPrice:      90,
		SharesOutstanding: 100,
		EPS:               5,
		Peers: []models.PeerSnapshot{
			{Symbol: "P1", Price: 100, EPS: 5},
			{Symbol: "P2", Price: 110, EPS: 5},
		},
	}

	res := CalculateComparables(snap, pol)

	dropped := res.Dropped()
	want := []MultipleKind{MultiplePB, MultiplePS, MultipleEVEBITDA}
	if len(dropped) != len(want) {
		t.Fatalf("Expected %v dropped, got %v", want, dropped)
	}
	for i := range want {
		if dropped[i] != want[i] {
			t.Errorf("dropped[%d] = %s, want %s", i, dropped[i], want[i])
		}
	}
}

func TestComparablesOutlierExcluded(t *testing.T) {
	pol := policy.Default()
	snap := &models.Snapshot{
		Symbol:            "TGT",
		SharesOutstanding: 100,
		EPS:               5,
		Peers: []models.PeerSnapshot{
			{Symbol: "P1", Price: 100, EPS: 5},  // P/E 20
			{Symbol: "P2", Price: 110, EPS: 5},  // P/E 22
			{Symbol: "P3", Price: 300, EPS: 1},  // P/E 300, outside the 5-200 band
			{Symbol: "P4", Price: 100, EPS: -2}, // negative earnings, no multiple
		},
	}

	res := CalculateComparables(snap, pol)

	if !res.Available {
		t.Fatal("Expected comparables to be available")
	}
	if res.Estimates[0].PeerCount != 2 {
		t.Errorf("Expected 2 surviving peers, got %d", res.Estimates[0].PeerCount)
	}
	if math.Abs(res.Value-105) > 0.0001 {
		t.Errorf("Outlier must not move the average: expected 105, got %f", res.Value)
	}
}

func TestComparablesMinPeersDrop(t *testing.T) {
	pol := policy.Default()
	snap := &models.Snapshot{
		Symbol:            "TGT",
		SharesOutstanding: 100,
		EPS:               5,
		Peers: []models.PeerSnapshot{
			{Symbol: "P1", Price: 100, EPS: 5}, // only one valid P/E peer
		},
	}

	res := CalculateComparables(snap, pol)

	if res.Available {
		t.Errorf("A single surviving peer must not produce a value, got %f", res.Value)
	}
}

func TestComparablesNoPeers(t *testing.T) {
	pol := policy.Default()
	snap := &models.Snapshot{Symbol: "TGT", SharesOutstanding: 100, EPS: 5}

	res := CalculateComparables(snap, pol)

	if res.Available {
		t.Error("No peers must report unavailable, not zero")
	}
}

func TestComparablesEVEBITDABridge(t *testing.T) {
	pol := policy.Default()
	// Peers carry only EV inputs: EV = 1000 + 200 - 100 = 1100, EBITDA 100,
	// multiple 11 for both.
	snap := &models.Snapshot{
		Symbol:            "TGT",
		SharesOutstanding: 100,
		EBITDA:            500,
		TotalDebt:         200,
		Cash:              100,
		Peers: []models.PeerSnapshot{
			{Symbol: "P1", MarketCap: 1000, TotalDebt: 200, Cash: 100, EBITDA: 100},
			{Symbol: "P2", MarketCap: 1000, TotalDebt: 200, Cash: 100, EBITDA: 100},
		},
	}

	res := CalculateComparables(snap, pol)

	if !res.Available {
		t.Fatal("Expected comparables to be available")
	}
	// Implied EV = 11 * 500 = 5500; equity = 5500 - 200 + 100 = 5400;
	// per share 54.
	if math.Abs(res.Value-54) > 0.0001 {
		t.Errorf("Expected 54, got %f", res.Value)
	}
}

func TestComparablesWeightRenormalization(t *testing.T) {
	pol := policy.Default()
	// Both P/E and P/B survive; P/S and EV/EBITDA do not.
	// P/E: average 20, implied 20*5 = 100. P/B: average 2, implied 2*30 = 60.
	// Weights 0.40 and 0.20 renormalize to 2/3 and 1/3:
	// value = 100*2/3 + 60*1/3 = 86.6667.
	snap := &models.Snapshot{
		Symbol:            "TGT",
		SharesOutstanding: 100,
		EPS:               5,
		BookValuePerShare: 30,
		Peers: []models.PeerSnapshot{
			{Symbol: "P1", Price: 100, EPS: 5, BookValuePerShare: 50},
			{Symbol: "P2", Price: 100, EPS: 5, BookValuePerShare: 50},
		},
	}

	res := CalculateComparables(snap, pol)

	if !res.Available {
		t.Fatal("Expected comparables to be available")
	}
	if len(res.Estimates) != 2 {
		t.Fatalf("Expected P/E and P/B estimates, got %+v", res.Estimates)
	}
	expected := 100.0*(0.40/0.60) + 60.0*(0.20/0.60)
	if math.Abs(res.Value-expected) > 0.0001 {
		t.Errorf("Expected %f, got %f", expected, res.Value)
	}
}
