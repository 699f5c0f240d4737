// Package valuation exposes the batch valuation pipeline over HTTP.
package valuation

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fundamental_valuation/pkg/core/engine"
)

// DefaultTimeout bounds one batch request. Companies still in flight at the
// deadline are omitted from the ranked result.
const DefaultTimeout = 2 * time.Minute

// Handler serves valuation requests over an orchestrator.
type Handler struct {
	orch *engine.Orchestrator
	log  zerolog.Logger
}

// NewHandler creates the HTTP handler.
func NewHandler(orch *engine.Orchestrator, log zerolog.Logger) *Handler {
	return &Handler{
		orch: orch,
		log:  log.With().Str("component", "api").Logger(),
	}
}

// Register mounts the valuation routes on a mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/valuation/batch", h.HandleBatch)
}

// HandleBatch runs the pipeline over ?symbols=A,B,C and returns the ranked
// batch result. ?timeout= accepts a Go duration and caps the run.
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	symbols := parseSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		http.Error(w, "symbols query parameter is required", http.StatusBadRequest)
		return
	}

	timeout := DefaultTimeout
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			http.Error(w, "invalid timeout", http.StatusBadRequest)
			return
		}
		timeout = d
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	batch := h.orch.Run(ctx, symbols)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(batch); err != nil {
		h.log.Error().Err(err).Str("run_id", batch.RunID).Msg("response encoding failed")
	}
}

// parseSymbols splits and uppercases a comma-separated symbol list, dropping
// blanks and duplicates while keeping order.
func parseSymbols(raw string) []string {
	seen := make(map[string]bool)
	var symbols []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		symbols = append(symbols, s)
	}
	return symbols
}
