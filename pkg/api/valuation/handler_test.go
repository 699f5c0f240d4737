package valuation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"fundamental_valuation/pkg/core/engine"
	"fundamental_valuation/pkg/core/policy"
	"fundamental_valuation/pkg/core/provider"
	"fundamental_valuation/pkg/models"
)

func floatPtr(f float64) *float64 { return &f }

func testHandler() *Handler {
	snap := &models.Snapshot{
		Symbol:            "TEST",
		Sector:            "Technology",
		Beta:              1.1,
		CurrentPrice:      50,
		SharesOutstanding: 1000,
		FreeCashFlow:      2000,
		TotalDebt:         5000,
		Cash:              1000,
		FCFGrowthRate:     0.08,
		SurpriseEPS:       floatPtr(1.0),
	}
	pol := policy.Default()
	eng := engine.New(pol, nil, zerolog.Nop())
	orch := engine.NewOrchestrator(eng, provider.NewStaticProvider(snap), 2, zerolog.Nop())
	return NewHandler(orch, zerolog.Nop())
}

func TestHandleBatch(t *testing.T) {
	h := testHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/valuation/batch?symbols=test,MISSING,test", nil)
	rec := httptest.NewRecorder()
	h.HandleBatch(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var batch models.BatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &batch); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if len(batch.Results) != 1 || batch.Results[0].Symbol != "TEST" {
		t.Errorf("Expected one result for TEST, got %+v", batch.Results)
	}
	if len(batch.Failures) != 1 || batch.Failures[0].Symbol != "MISSING" {
		t.Errorf("Expected one failure for MISSING, got %+v", batch.Failures)
	}
}

func TestHandleBatchRequiresSymbols(t *testing.T) {
	h := testHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/valuation/batch", nil)
	rec := httptest.NewRecorder()
	h.HandleBatch(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestHandleBatchRejectsBadTimeout(t *testing.T) {
	h := testHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/valuation/batch?symbols=TEST&timeout=soon", nil)
	rec := httptest.NewRecorder()
	h.HandleBatch(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestParseSymbols(t *testing.T) {
	got := parseSymbols(" aapl, MSFT ,,aapl ")
	want := []string{"AAPL", "MSFT"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseSymbols = %v, want %v", got, want)
	}
}
