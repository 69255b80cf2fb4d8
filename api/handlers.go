/*
handlers.go - HTTP API handlers for the reconciliation engine

PURPOSE:
  Exposes the engine via REST. Handles HTTP request/response, JSON
  serialization, and delegates every figure to the billing package -
  handlers never compute money themselves.

ENDPOINTS:
  Reconciliation:
    GET /api/reconciliation                    Scope-keyed results
    GET /api/reconciliation/rollup             Cross-scope validation
    GET /api/reconciliation/runs               Scheduler run history
    GET /api/reservations/{id}/reconciliation  Per-reservation drill-down

  Export:
    GET /api/export/ledger.csv                 Canonical ledger artifact
    GET /api/export/ledger.xlsx                Workbook for accounting

  Fixtures (demo):
    GET  /api/fixtures                         List fixtures
    POST /api/fixtures/load                    Load a fixture

QUERY PARAMETERS:
  scope   client | hotel | portfolio (default hotel)
  hotel   repeatable hotel filter
  client  repeatable client filter
  from,to period bounds, YYYY-MM-DD, both required

ERROR HANDLING:
  - 400: bad period/scope, unknown fixture
  - 404: unknown reservation
  - 409: rollup mismatch (surfaced, never swallowed)
  - 500: store failures

SEE ALSO:
  - dto.go: wire types
  - server.go: router setup
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/lodgeworks/billing-engine/billing"
	"github.com/lodgeworks/billing-engine/export"
	"github.com/lodgeworks/billing-engine/store/sqlite"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  *sqlite.Store
	Engine *billing.Engine
	Log    *logrus.Logger
}

// NewHandler creates a handler around the store and engine.
func NewHandler(store *sqlite.Store, engine *billing.Engine, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{Store: store, Engine: engine, Log: log}
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// GetReconciliation handles GET /api/reconciliation.
func (h *Handler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	req, err := reconcileRequestFromQuery(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	out, err := h.Engine.Reconcile(r.Context(), req)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	resp := ReconcileResponseDTO{Scope: string(req.Scope)}
	for _, res := range out.Results {
		resp.Results = append(resp.Results, toResultDTO(res))
	}
	for _, warn := range out.Warnings {
		resp.Warnings = append(resp.Warnings, warn.Error())
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetReservationReconciliation handles
// GET /api/reservations/{id}/reconciliation.
func (h *Handler) GetReservationReconciliation(w http.ResponseWriter, r *http.Request) {
	id := billing.ReservationID(chi.URLParam(r, "id"))
	period, err := periodFromQuery(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	breakdown, err := h.Engine.ReconcileReservation(r.Context(), id, period)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toBreakdownDTO(breakdown))
}

// ValidateRollup handles GET /api/reconciliation/rollup.
func (h *Handler) ValidateRollup(w http.ResponseWriter, r *http.Request) {
	req, err := reconcileRequestFromQuery(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.Engine.ValidateRollup(r.Context(), req); err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "consistent"})
}

// ListRuns handles GET /api/reconciliation/runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListRuns(r.Context(), 100)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]RunDTO, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunDTO(run))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportLedgerCSV handles GET /api/export/ledger.csv.
func (h *Handler) ExportLedgerCSV(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.ledgerRows(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="ledger.csv"`)
	if err := export.WriteCSV(w, rows); err != nil {
		h.Log.WithError(err).Error("ledger csv export failed")
	}
}

// ExportLedgerXLSX handles GET /api/export/ledger.xlsx.
func (h *Handler) ExportLedgerXLSX(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.ledgerRows(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="ledger.xlsx"`)
	if err := export.WriteXLSX(w, rows); err != nil {
		h.Log.WithError(err).Error("ledger xlsx export failed")
	}
}

func (h *Handler) ledgerRows(w http.ResponseWriter, r *http.Request) ([]billing.LedgerRow, bool) {
	req, err := reconcileRequestFromQuery(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	rows, err := h.Engine.ExportLedger(r.Context(), req)
	if err != nil {
		h.writeEngineError(w, err)
		return nil, false
	}
	return rows, true
}

// =============================================================================
// FIXTURES
// =============================================================================

// ListFixtures handles GET /api/fixtures.
func (h *Handler) ListFixtures(w http.ResponseWriter, r *http.Request) {
	out := make([]FixtureDTO, 0, len(Fixtures))
	for _, f := range Fixtures {
		out = append(out, FixtureDTO{Name: f.Name, Description: f.Description})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// LoadFixture handles POST /api/fixtures/load.
func (h *Handler) LoadFixture(w http.ResponseWriter, r *http.Request) {
	var req LoadFixtureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	fixture := findFixture(req.Name)
	if fixture == nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown fixture %q", req.Name))
		return
	}

	if err := h.Store.Reset(r.Context()); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := fixture.Load(r.Context(), h.Store); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.Log.WithField("fixture", fixture.Name).Info("fixture loaded")
	h.writeJSON(w, http.StatusOK, map[string]string{"loaded": fixture.Name})
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// REQUEST PARSING AND RESPONSES
// =============================================================================

func reconcileRequestFromQuery(r *http.Request) (billing.ReconcileRequest, error) {
	period, err := periodFromQuery(r)
	if err != nil {
		return billing.ReconcileRequest{}, err
	}

	scope := billing.Scope(r.URL.Query().Get("scope"))
	switch scope {
	case billing.ScopeClient, billing.ScopeHotel, billing.ScopePortfolio:
	case "":
		scope = billing.ScopeHotel
	default:
		return billing.ReconcileRequest{}, fmt.Errorf("unknown scope %q", scope)
	}

	req := billing.ReconcileRequest{Scope: scope, Period: period}
	for _, hv := range r.URL.Query()["hotel"] {
		req.Hotels = append(req.Hotels, billing.HotelID(hv))
	}
	for _, cv := range r.URL.Query()["client"] {
		req.Clients = append(req.Clients, billing.ClientID(cv))
	}
	return req, nil
}

func periodFromQuery(r *http.Request) (billing.Period, error) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		return billing.Period{}, errors.New("from and to query parameters are required (YYYY-MM-DD)")
	}
	start, err := billing.ParseDate(from)
	if err != nil {
		return billing.Period{}, fmt.Errorf("invalid from date: %w", err)
	}
	end, err := billing.ParseDate(to)
	if err != nil {
		return billing.Period{}, fmt.Errorf("invalid to date: %w", err)
	}
	p := billing.Period{Start: start, End: end}
	if !p.Valid() {
		return billing.Period{}, billing.ErrInvalidPeriod
	}
	return p, nil
}

func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, billing.ErrReservationNotFound):
		h.writeError(w, http.StatusNotFound, err)
	case billing.IsClientError(err):
		h.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, billing.ErrScopeRollupMismatch):
		h.writeError(w, http.StatusConflict, err)
	default:
		h.writeError(w, http.StatusInternalServerError, err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.Log.WithError(err).Error("request failed")
	}
	h.writeJSON(w, status, ErrorDTO{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.WithError(err).Error("response encoding failed")
	}
}
