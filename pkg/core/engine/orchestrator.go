package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fundamental_valuation/pkg/core/provider"
	"fundamental_valuation/pkg/models"
)

// Orchestrator fans the per-company pipeline out over a batch of symbols.
// Companies are independent units of work; one company's failure never
// aborts the batch.
type Orchestrator struct {
	engine         *Engine
	provider       provider.DataProvider
	maxConcurrency int
	log            zerolog.Logger
}

// NewOrchestrator creates an orchestrator over the given engine and data
// provider. maxConcurrency <= 0 falls back to the policy default.
func NewOrchestrator(e *Engine, p provider.DataProvider, maxConcurrency int, log zerolog.Logger) *Orchestrator {
	if maxConcurrency <= 0 {
		maxConcurrency = e.pol.MaxConcurrency
	}
	return &Orchestrator{
		engine:         e,
		provider:       p,
		maxConcurrency: maxConcurrency,
		log:            log.With().Str("component", "orchestrator").Logger(),
	}
}

// failureKind extracts the taxonomy kind from a per-company error.
func failureKind(err error) string {
	var k interface{ Kind() string }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return "internal"
}

// Run values every symbol in the batch concurrently, bounded by the
// concurrency limit, and returns the ranked batch result. Results are sorted
// by undervaluation percentage descending; failures are reported per company;
// companies abandoned by a batch-level timeout land in Omitted.
func (o *Orchestrator) Run(ctx context.Context, symbols []string) *models.BatchResult {
	batch := &models.BatchResult{
		RunID:     uuid.NewString(),
		StartedAt: o.engine.now().UTC(),
	}

	o.log.Info().
		Str("run_id", batch.RunID).
		Int("companies", len(symbols)).
		Int("max_concurrency", o.maxConcurrency).
		Msg("batch started")

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, o.maxConcurrency)

	for _, symbol := range symbols {
		if ctx.Err() != nil {
			// Workers spawned earlier in this loop may already be appending.
			mu.Lock()
			batch.Omitted = append(batch.Omitted, symbol)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				batch.Omitted = append(batch.Omitted, symbol)
				mu.Unlock()
				return
			}

			result, err := o.analyzeOne(ctx, symbol)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				batch.Results = append(batch.Results, *result)
			case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
				batch.Omitted = append(batch.Omitted, symbol)
			default:
				o.log.Warn().Err(err).Str("symbol", symbol).Msg("company failed")
				batch.Failures = append(batch.Failures, models.CompanyFailure{
					Symbol: symbol,
					Kind:   failureKind(err),
					Reason: err.Error(),
				})
			}
		}(symbol)
	}
	wg.Wait()

	sort.SliceStable(batch.Results, func(i, j int) bool {
		return batch.Results[i].UndervaluationPercentage > batch.Results[j].UndervaluationPercentage
	})
	sort.Strings(batch.Omitted)

	batch.FinishedAt = o.engine.now().UTC()

	o.log.Info().
		Str("run_id", batch.RunID).
		Int("succeeded", len(batch.Results)).
		Int("failed", len(batch.Failures)).
		Int("omitted", len(batch.Omitted)).
		Dur("elapsed", batch.FinishedAt.Sub(batch.StartedAt)).
		Msg("batch finished")

	return batch
}

func (o *Orchestrator) analyzeOne(ctx context.Context, symbol string) (*models.ValuationResult, error) {
	snap, err := o.provider.GetSnapshot(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return o.engine.Analyze(ctx, snap)
}

// RunWithTimeout wraps Run with a batch-level deadline. Companies still
// in flight when it expires are omitted from the ranked result.
func (o *Orchestrator) RunWithTimeout(ctx context.Context, symbols []string, timeout time.Duration) *models.BatchResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return o.Run(ctx, symbols)
}
