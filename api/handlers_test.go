/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Reconciliation endpoint (scope selection, period validation)
- Per-reservation drill-down
- Fixture loading
- Ledger export
*/
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lodgeworks/billing-engine/billing"
	"github.com/lodgeworks/billing-engine/store/sqlite"
)

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	engine := billing.NewEngine(store, nil)
	engine.VerifyRollup = true
	handler := NewHandler(store, engine, nil)
	srv := httptest.NewServer(NewRouter(handler, []string{"*"}))
	t.Cleanup(srv.Close)
	return srv, store
}

func loadNamedFixture(t *testing.T, store *sqlite.Store, name string) {
	t.Helper()
	fixture := findFixture(name)
	if fixture == nil {
		t.Fatalf("unknown fixture %q", name)
	}
	if err := fixture.Load(context.Background(), store); err != nil {
		t.Fatalf("Failed to load fixture: %v", err)
	}
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return resp
}

func TestGetReconciliation_SettledFixture(t *testing.T) {
	// GIVEN: The settled December fixture
	// WHEN: Reconciling December at hotel scope
	// THEN: One settled row with 10000 yen of sales

	srv, store := newTestServer(t)
	loadNamedFixture(t, store, "december-settled")

	var got ReconcileResponseDTO
	resp := getJSON(t, srv.URL+"/api/reconciliation/?from=2025-12-01&to=2025-12-31", &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got.Scope != "hotel" {
		t.Errorf("expected default hotel scope, got %q", got.Scope)
	}
	if len(got.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got.Results))
	}
	r := got.Results[0]
	if r.Status != "settled" {
		t.Errorf("expected settled, got %q", r.Status)
	}
	if r.PeriodSales != "10000" {
		t.Errorf("expected period sales 10000, got %q", r.PeriodSales)
	}
}

func TestGetReconciliation_AdvanceFixture(t *testing.T) {
	srv, store := newTestServer(t)
	loadNamedFixture(t, store, "advance-payment")

	var got ReconcileResponseDTO
	resp := getJSON(t, srv.URL+"/api/reconciliation/?from=2025-12-01&to=2025-12-31&scope=client", &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(got.Results) != 1 || got.Results[0].Status != "advance_paid" {
		t.Fatalf("expected a single advance_paid row, got %+v", got.Results)
	}
	if got.Results[0].AdvancePayments != "30000" {
		t.Errorf("expected advance payments 30000, got %q", got.Results[0].AdvancePayments)
	}
}

func TestGetReconciliation_MissingPeriod_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := getJSON(t, srv.URL+"/api/reconciliation/", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetReconciliation_UnknownScope_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := getJSON(t, srv.URL+"/api/reconciliation/?from=2025-12-01&to=2025-12-31&scope=galaxy", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetReservationReconciliation_DrillDown(t *testing.T) {
	srv, store := newTestServer(t)
	loadNamedFixture(t, store, "december-settled")

	var got ReservationBreakdownDTO
	resp := getJSON(t, srv.URL+"/api/reservations/R-1001/reconciliation?from=2025-12-01&to=2025-12-31", &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got.ReservationID != "R-1001" {
		t.Errorf("expected R-1001, got %q", got.ReservationID)
	}
	if len(got.Nights) != 1 || len(got.Nights[0].Buckets) != 2 {
		t.Fatalf("expected 1 night with 2 buckets, got %+v", got.Nights)
	}
	// Spillover bucket first: 7000 at 0.10.
	if got.Nights[0].Buckets[0].Amount != "7000" || got.Nights[0].Buckets[0].Rate != "0.10" {
		t.Errorf("unexpected first bucket: %+v", got.Nights[0].Buckets[0])
	}
}

func TestGetReservationReconciliation_Unknown_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := getJSON(t, srv.URL+"/api/reservations/nope/reconciliation?from=2025-12-01&to=2025-12-31", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestValidateRollup_Consistent(t *testing.T) {
	srv, store := newTestServer(t)
	loadNamedFixture(t, store, "portfolio-demo")

	var got map[string]string
	resp := getJSON(t, srv.URL+"/api/reconciliation/rollup?from=2025-12-01&to=2025-12-31", &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got["status"] != "consistent" {
		t.Errorf("expected consistent, got %q", got["status"])
	}
}

func TestLoadFixture_Endpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/fixtures/load", "application/json",
		strings.NewReader(`{"name":"december-settled"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// The loaded facts are immediately visible to reconciliation.
	var got ReconcileResponseDTO
	r := getJSON(t, srv.URL+"/api/reconciliation/?from=2025-12-01&to=2025-12-31", &got)
	if r.StatusCode != http.StatusOK || len(got.Results) != 1 {
		t.Fatalf("expected the fixture to reconcile, got %d results", len(got.Results))
	}
}

func TestLoadFixture_Unknown_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/fixtures/load", "application/json",
		strings.NewReader(`{"name":"nope"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestExportLedgerCSV_Endpoint(t *testing.T) {
	srv, store := newTestServer(t)
	loadNamedFixture(t, store, "december-settled")

	resp, err := http.Get(srv.URL + "/api/export/ledger.csv?from=2025-12-01&to=2025-12-31")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("expected csv content type, got %q", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	// Header + two room buckets + one payment row.
	if len(lines) != 4 {
		t.Fatalf("expected 4 csv lines, got %d:\n%s", len(lines), body)
	}
	if !strings.Contains(lines[1], "room,0.10,7000,0") {
		t.Errorf("expected the 0.10 bucket first, got %q", lines[1])
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := getJSON(t, srv.URL+"/api/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
