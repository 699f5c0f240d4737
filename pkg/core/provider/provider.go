// Package provider declares the engine's inbound data boundaries. The engine
// consumes already-fetched, already-rate-limited snapshots and read-only
// parameter records; it never holds an API handle.
package provider

import (
	"context"

	"fundamental_valuation/pkg/core/params"
	"fundamental_valuation/pkg/core/valuation"
	"fundamental_valuation/pkg/models"
)

func notFound(symbol string) error {
	return &valuation.DataUnavailableError{What: "snapshot", Reason: "no data for " + symbol}
}

// DataProvider supplies normalized company snapshots. Implementations own
// caching, rate limiting and retries; the engine does none of those.
type DataProvider interface {
	// GetSnapshot returns the snapshot for a symbol, peers already resolved,
	// deduplicated and capped. A symbol the provider cannot serve returns a
	// DataUnavailableError.
	GetSnapshot(ctx context.Context, symbol string) (*models.Snapshot, error)

	// GetPeers returns the resolved peer symbols for a company.
	GetPeers(ctx context.Context, symbol string) ([]string, error)
}

// ParameterStore supplies per-company calibration records. The engine reads
// them; only external calibration runs write them.
type ParameterStore interface {
	// LoadParams returns the calibrated set for a symbol, or (nil, nil) when
	// no record exists.
	LoadParams(ctx context.Context, symbol string) (*params.ParameterSet, error)
}

// StaticProvider serves snapshots from a fixed in-memory map. Used by tests
// and by batch runs fed from a file instead of a live API.
type StaticProvider struct {
	Snapshots map[string]*models.Snapshot
}

// NewStaticProvider builds a provider over the given snapshots, keyed by
// symbol.
func NewStaticProvider(snaps ...*models.Snapshot) *StaticProvider {
	m := make(map[string]*models.Snapshot, len(snaps))
	for _, s := range snaps {
		m[s.Symbol] = s
	}
	return &StaticProvider{Snapshots: m}
}

func (p *StaticProvider) GetSnapshot(ctx context.Context, symbol string) (*models.Snapshot, error) {
	if s, ok := p.Snapshots[symbol]; ok {
		return s, nil
	}
	return nil, notFound(symbol)
}

func (p *StaticProvider) GetPeers(ctx context.Context, symbol string) ([]string, error) {
	s, ok := p.Snapshots[symbol]
	if !ok {
		return nil, notFound(symbol)
	}
	peers := make([]string, 0, len(s.Peers))
	for _, peer := range s.Peers {
		peers = append(peers, peer.Symbol)
	}
	return peers, nil
}

// EmptyParameterStore returns no calibrated record for any symbol, forcing
// global defaults everywhere.
type EmptyParameterStore struct{}

func (EmptyParameterStore) LoadParams(ctx context.Context, symbol string) (*params.ParameterSet, error) {
	return nil, nil
}

// StaticParameterStore serves parameter sets from a fixed map. Test double
// and file-fed batch companion to StaticProvider.
type StaticParameterStore struct {
	Params map[string]*params.ParameterSet
}

func (s *StaticParameterStore) LoadParams(ctx context.Context, symbol string) (*params.ParameterSet, error) {
	return s.Params[symbol], nil
}
