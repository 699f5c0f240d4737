package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"fundamental_valuation/pkg/models"
)

// ResultRepo persists per-company valuation results. One row per symbol,
// upserted each run; the full result travels as a JSONB blob since no other
// system queries its internals.
//
// Schema assumption:
//
//	CREATE TABLE IF NOT EXISTS valuation_results (
//	  symbol TEXT PRIMARY KEY,
//	  run_id TEXT,
//	  result_json JSONB,
//	  updated_at TIMESTAMPTZ
//	);
type ResultRepo struct{}

// NewResultRepo creates a new repository instance.
func NewResultRepo() *ResultRepo {
	return &ResultRepo{}
}

// SaveBatch upserts every result of a run under the run's ID.
func (r *ResultRepo) SaveBatch(ctx context.Context, batch *models.BatchResult) error {
	pool := GetPool()
	if pool == nil {
		return fmt.Errorf("database pool not initialized")
	}

	query := `
		INSERT INTO valuation_results (symbol, run_id, result_json, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol)
		DO UPDATE SET
			run_id = EXCLUDED.run_id,
			result_json = EXCLUDED.result_json,
			updated_at = EXCLUDED.updated_at;
	`

	for i := range batch.Results {
		result := &batch.Results[i]
		jsonData, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to marshal result for %s: %w", result.Symbol, err)
		}
		if _, err := pool.Exec(ctx, query, result.Symbol, batch.RunID, jsonData, time.Now()); err != nil {
			return fmt.Errorf("failed to save result for %s: %w", result.Symbol, err)
		}
	}
	return nil
}

// Load retrieves the latest stored result for a symbol.
func (r *ResultRepo) Load(ctx context.Context, symbol string) (*models.ValuationResult, error) {
	pool := GetPool()
	if pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	query := `SELECT result_json FROM valuation_results WHERE symbol = $1`

	var jsonData []byte
	err := pool.QueryRow(ctx, query, symbol).Scan(&jsonData)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("no result found for symbol %s", symbol)
		}
		return nil, fmt.Errorf("failed to load result: %w", err)
	}

	var result models.ValuationResult
	if err := json.Unmarshal(jsonData, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}
