package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"fundamental_valuation/pkg/core/provider"
	"fundamental_valuation/pkg/core/valuation"
	"fundamental_valuation/pkg/models"
)

func TestRunPartialFailureAndRanking(t *testing.T) {
	strong := testSnapshot()
	strong.Symbol = "STRONG"
	strong.FreeCashFlow = 4000 // values far above the weaker company

	weak := testSnapshot()
	weak.Symbol = "WEAK"
	weak.FreeCashFlow = 1000

	broken := testSnapshot()
	broken.Symbol = "BROKEN"
	broken.CurrentPrice = 0
	broken.MarketCap = 0

	dp := provider.NewStaticProvider(strong, weak, broken)
	orch := NewOrchestrator(testEngine(nil), dp, 2, zerolog.Nop())

	batch := orch.Run(context.Background(), []string{"WEAK", "BROKEN", "STRONG", "MISSING"})

	if batch.RunID == "" {
		t.Error("Expected a run ID")
	}
	if len(batch.Results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(batch.Results))
	}
	// Ranked descending by undervaluation.
	if batch.Results[0].Symbol != "STRONG" || batch.Results[1].Symbol != "WEAK" {
		t.Errorf("Expected STRONG before WEAK, got %s, %s",
			batch.Results[0].Symbol, batch.Results[1].Symbol)
	}
	if batch.Results[0].UndervaluationPercentage < batch.Results[1].UndervaluationPercentage {
		t.Error("Results not sorted by undervaluation descending")
	}

	if len(batch.Failures) != 2 {
		t.Fatalf("Expected 2 failures, got %+v", batch.Failures)
	}
	kinds := map[string]string{}
	for _, f := range batch.Failures {
		kinds[f.Symbol] = f.Kind
		if f.Reason == "" {
			t.Errorf("Failure for %s carries no reason", f.Symbol)
		}
	}
	if kinds["BROKEN"] != valuation.KindInputValidation {
		t.Errorf("Expected input_validation for BROKEN, got %q", kinds["BROKEN"])
	}
	if kinds["MISSING"] != valuation.KindDataUnavailable {
		t.Errorf("Expected data_unavailable for MISSING, got %q", kinds["MISSING"])
	}
}

func TestRunCancelledBatchOmitsCompanies(t *testing.T) {
	snap := testSnapshot()
	dp := provider.NewStaticProvider(snap)
	orch := NewOrchestrator(testEngine(nil), dp, 2, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := orch.Run(ctx, []string{"TEST", "OTHER"})

	if len(batch.Results) != 0 || len(batch.Failures) != 0 {
		t.Errorf("Cancelled batch must not value or fail companies: %+v", batch)
	}
	if len(batch.Omitted) != 2 {
		t.Errorf("Expected both companies omitted, got %v", batch.Omitted)
	}
}

// stallingProvider blocks every snapshot fetch until its context is
// cancelled, and signals once the first fetch is in flight.
type stallingProvider struct {
	started   chan struct{}
	startOnce sync.Once
}

func (p *stallingProvider) GetSnapshot(ctx context.Context, symbol string) (*models.Snapshot, error) {
	p.startOnce.Do(func() { close(p.started) })
	<-ctx.Done()
	return nil, ctx.Err()
}

func (p *stallingProvider) GetPeers(ctx context.Context, symbol string) ([]string, error) {
	return nil, nil
}

func TestRunMidBatchCancellationAccountsForEverySymbol(t *testing.T) {
	// Cancellation while the spawn loop is still iterating: some symbols are
	// omitted by the loop itself, some by in-flight workers. Every symbol
	// must land in exactly one bucket.
	symbols := make([]string, 200)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("SYM%03d", i)
	}

	dp := &stallingProvider{started: make(chan struct{})}
	orch := NewOrchestrator(testEngine(nil), dp, 1, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-dp.started
		cancel()
	}()

	batch := orch.Run(ctx, symbols)

	if len(batch.Results) != 0 {
		t.Errorf("Cancelled batch must not value companies, got %d results", len(batch.Results))
	}
	if len(batch.Failures) != 0 {
		t.Errorf("Cancellation is omission, not failure: %+v", batch.Failures)
	}
	if len(batch.Omitted) != len(symbols) {
		t.Fatalf("Expected all %d companies omitted, got %d", len(symbols), len(batch.Omitted))
	}
	seen := map[string]bool{}
	for _, s := range batch.Omitted {
		if seen[s] {
			t.Errorf("Symbol %s omitted twice", s)
		}
		seen[s] = true
	}
}

func TestRunDefaultConcurrencyFromPolicy(t *testing.T) {
	e := testEngine(nil)
	orch := NewOrchestrator(e, provider.NewStaticProvider(), 0, zerolog.Nop())
	if orch.maxConcurrency != e.pol.MaxConcurrency {
		t.Errorf("Expected policy default %d, got %d", e.pol.MaxConcurrency, orch.maxConcurrency)
	}
}

func TestRunEmptyBatch(t *testing.T) {
	orch := NewOrchestrator(testEngine(nil), provider.NewStaticProvider(), 2, zerolog.Nop())
	batch := orch.Run(context.Background(), nil)
	if len(batch.Results) != 0 || len(batch.Failures) != 0 || len(batch.Omitted) != 0 {
		t.Errorf("Empty batch must be empty, got %+v", batch)
	}
}

func TestRunIsolatesDomainErrors(t *testing.T) {
	// A WACC pushed to the floor (1%) sits below the technology terminal
	// growth rate (2.5%), which must fail this company alone.
	doomed := testSnapshot()
	doomed.Symbol = "DOOMED"
	doomed.Beta = 0.3
	doomed.MarketCap = 1 // equity weight ~0, debt cost dominates
	doomed.SharesOutstanding = 0.02
	doomed.TotalDebt = 5000
	doomed.InterestExpense = 0 // cost of debt floors at 3%, after tax 2.37%

	fine := testSnapshot()

	dp := provider.NewStaticProvider(doomed, fine)
	orch := NewOrchestrator(testEngine(nil), dp, 2, zerolog.Nop())

	batch := orch.Run(context.Background(), []string{"DOOMED", "TEST"})

	if len(batch.Results) != 1 || batch.Results[0].Symbol != "TEST" {
		t.Fatalf("Expected TEST to survive, got %+v", batch.Results)
	}
	if len(batch.Failures) != 1 || batch.Failures[0].Kind != valuation.KindDomain {
		t.Fatalf("Expected one domain failure, got %+v", batch.Failures)
	}
}
