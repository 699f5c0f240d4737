package finnhub

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTTLCacheExpiry(t *testing.T) {
	c := newTTLCache()
	c.set("k", []byte("v"), 50*time.Millisecond)

	if _, ok := c.get("k"); !ok {
		t.Fatal("Fresh entry must be served")
	}
	time.Sleep(60 * time.Millisecond)
	if _, ok := c.get("k"); ok {
		t.Fatal("Expired entry must be dropped")
	}
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	c := newTTLCache()
	c.set("k", 42, 0)
	if v, ok := c.get("k"); !ok || v.(int) != 42 {
		t.Fatalf("Expected 42, got %v (%v)", v, ok)
	}
}

func TestLimiterConsumesTokens(t *testing.T) {
	l := newLimiter(60)
	allowed := 0
	for i := 0; i < 100; i++ {
		if l.allow() {
			allowed++
		}
	}
	// The bucket starts full with 60 tokens; a tight loop cannot refill
	// meaningfully.
	if allowed < 60 || allowed > 62 {
		t.Errorf("Expected ~60 immediate tokens, got %d", allowed)
	}
}

func TestMetricsValFallsThroughKeys(t *testing.T) {
	v := 4.2
	m := &metricsResponse{Metric: map[string]*float64{"epsAnnual": &v}}

	if got := m.val("epsTTM", "epsAnnual"); got != 4.2 {
		t.Errorf("Expected 4.2 via fallback key, got %f", got)
	}
	if got := m.val("beta"); got != 0 {
		t.Errorf("Expected 0 for a missing key, got %f", got)
	}
}

func TestFCFHistoryOrdering(t *testing.T) {
	m := &metricsResponse{}
	m.Series.Annual = map[string][]seriesPoint{
		"freeCashFlowPerShare": {
			{Period: "2025-12-31", V: 3},
			{Period: "2024-12-31", V: 2},
			{Period: "2023-12-31", V: 1},
		},
	}

	history := fcfHistory(m, 100)
	if len(history) != 3 {
		t.Fatalf("Expected 3 points, got %d", len(history))
	}
	// Oldest first, scaled to absolute figures.
	want := []float64{100, 200, 300}
	for i := range want {
		if math.Abs(history[i]-want[i]) > 1e-9 {
			t.Errorf("history[%d] = %f, want %f", i, history[i], want[i])
		}
	}
}

func TestIncomeFiguresFromFilingConcepts(t *testing.T) {
	items := []reportItem{
		{Concept: "us-gaap_Revenues", Value: 400_000_000_000},
		{Concept: "us-gaap_InterestExpense", Value: 3_000_000_000},
		{Concept: "us-gaap_NetIncomeLoss", Value: 95_000_000_000},
	}

	interest, netIncome := incomeFigures(items)
	if math.Abs(interest-3000) > 1e-9 {
		t.Errorf("Expected interest expense 3000M, got %f", interest)
	}
	if math.Abs(netIncome-95000) > 1e-9 {
		t.Errorf("Expected net income 95000M, got %f", netIncome)
	}
}

func TestIncomeFiguresIgnoresUnusableItems(t *testing.T) {
	items := []reportItem{
		{Concept: "us-gaap_InterestExpense", Value: -500}, // sign-flipped filing
		{Concept: "us-gaap_OperatingIncomeLoss", Value: 1_000_000_000},
	}

	interest, netIncome := incomeFigures(items)
	if interest != 0 {
		t.Errorf("Non-positive interest expense must be dropped, got %f", interest)
	}
	if netIncome != 0 {
		t.Errorf("No net income concept present, got %f", netIncome)
	}
}

func TestReportValueToleratesPlaceholders(t *testing.T) {
	var item reportItem
	if err := json.Unmarshal([]byte(`{"concept":"us-gaap_InterestExpense","value":"N/A"}`), &item); err != nil {
		t.Fatalf("Placeholder value must not fail decoding: %v", err)
	}
	if item.Value != 0 {
		t.Errorf("Expected zero for a placeholder, got %f", float64(item.Value))
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{APIKey: "x"}, zerolog.Nop())
	if c.cfg.CallsPerMinute != 60 {
		t.Errorf("Expected free-tier default 60, got %d", c.cfg.CallsPerMinute)
	}
	if c.cfg.MaxPeers != 3 {
		t.Errorf("Expected default peer cap 3, got %d", c.cfg.MaxPeers)
	}
}
