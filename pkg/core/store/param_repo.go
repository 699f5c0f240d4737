package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"fundamental_valuation/pkg/core/params"
)

// ParamRepo stores per-company calibration records. The explicit column set
// is the contract between the calibration tool and the engine; both sides
// must agree on it, so no JSONB blob here.
//
// Schema assumption:
//
//	CREATE TABLE IF NOT EXISTS company_params (
//	  symbol TEXT PRIMARY KEY,
//	  growth_adjustment_factor DOUBLE PRECISION NOT NULL,
//	  wacc_adjustment_factor DOUBLE PRECISION NOT NULL,
//	  dcf_weight DOUBLE PRECISION NOT NULL,
//	  comparables_weight DOUBLE PRECISION NOT NULL,
//	  trained BOOLEAN NOT NULL DEFAULT FALSE,
//	  training_error DOUBLE PRECISION NOT NULL DEFAULT 0,
//	  source TEXT NOT NULL,
//	  updated_at TIMESTAMPTZ NOT NULL
//	);
type ParamRepo struct{}

// NewParamRepo creates a new repository instance.
func NewParamRepo() *ParamRepo {
	return &ParamRepo{}
}

// LoadParams returns the calibrated set for a symbol, or (nil, nil) when no
// record exists. Implements the engine's ParameterStore boundary.
func (r *ParamRepo) LoadParams(ctx context.Context, symbol string) (*params.ParameterSet, error) {
	pool := GetPool()
	if pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	query := `
		SELECT symbol, growth_adjustment_factor, wacc_adjustment_factor,
		       dcf_weight, comparables_weight, trained, training_error,
		       source, updated_at
		FROM company_params WHERE symbol = $1`

	var ps params.ParameterSet
	err := pool.QueryRow(ctx, query, symbol).Scan(
		&ps.Symbol,
		&ps.GrowthAdjustmentFactor,
		&ps.WACCAdjustmentFactor,
		&ps.DCFWeight,
		&ps.ComparablesWeight,
		&ps.Trained,
		&ps.TrainingError,
		&ps.Source,
		&ps.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load params for %s: %w", symbol, err)
	}
	return &ps, nil
}

// SaveParams upserts one calibration record. Called by calibration runs,
// never by the engine.
func (r *ParamRepo) SaveParams(ctx context.Context, ps params.ParameterSet) error {
	pool := GetPool()
	if pool == nil {
		return fmt.Errorf("database pool not initialized")
	}

	if ps.UpdatedAt.IsZero() {
		ps.UpdatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO company_params
			(symbol, growth_adjustment_factor, wacc_adjustment_factor,
			 dcf_weight, comparables_weight, trained, training_error,
			 source, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol)
		DO UPDATE SET
			growth_adjustment_factor = EXCLUDED.growth_adjustment_factor,
			wacc_adjustment_factor = EXCLUDED.wacc_adjustment_factor,
			dcf_weight = EXCLUDED.dcf_weight,
			comparables_weight = EXCLUDED.comparables_weight,
			trained = EXCLUDED.trained,
			training_error = EXCLUDED.training_error,
			source = EXCLUDED.source,
			updated_at = EXCLUDED.updated_at;
	`

	_, err := pool.Exec(ctx, query,
		ps.Symbol,
		ps.GrowthAdjustmentFactor,
		ps.WACCAdjustmentFactor,
		ps.DCFWeight,
		ps.ComparablesWeight,
		ps.Trained,
		ps.TrainingError,
		ps.Source,
		ps.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save params for %s: %w", ps.Symbol, err)
	}
	return nil
}
