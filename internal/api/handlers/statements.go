package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/bank-reconciliation/internal/api/dto"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/matching"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/reconciliation"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/validator"
	"github.com/eshaffer321/bank-reconciliation/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// StatementsHandler handles statement and suggestion requests.
type StatementsHandler struct {
	*Base
	repo StatementReader
	svc  ReconciliationService
}

// NewStatementsHandler creates a new statements handler.
func NewStatementsHandler(repo StatementReader, svc ReconciliationService, logger *slog.Logger) *StatementsHandler {
	return &StatementsHandler{
		Base: NewBase(logger),
		repo: repo,
		svc:  svc,
	}
}

// List handles GET /api/statements - optionally filtered by ?status=a,b.
func (h *StatementsHandler) List(w http.ResponseWriter, r *http.Request) {
	var statuses []reconciliation.StatementStatus
	for _, s := range ParseListParam(r, "status") {
		switch st := reconciliation.StatementStatus(s); st {
		case reconciliation.StatusUploaded, reconciliation.StatusInProgress, reconciliation.StatusReconciled:
			statuses = append(statuses, st)
		default:
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(fmt.Sprintf("unknown status %q", s)))
			return
		}
	}

	stmts, err := h.repo.ListStatements(r.Context(), statuses...)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	response := dto.StatementListResponse{
		Statements: make([]dto.StatementResponse, 0, len(stmts)),
		Count:      len(stmts),
	}
	for _, st := range stmts {
		response.Statements = append(response.Statements, dto.NewStatementResponse(st))
	}
	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/statements/{id}.
func (h *StatementsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("statement ID is required"))
		return
	}

	st, err := h.repo.FetchStatement(r.Context(), id)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, dto.NewStatementResponse(*st))
}

// Suggestions handles GET /api/statements/{id}/suggestions. Nothing is
// persisted.
func (h *StatementsHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("statement ID is required"))
		return
	}

	tiers, err := parseTiers(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}

	result, err := h.svc.Suggest(r.Context(), id)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, dto.NewSuggestionsResponse(id, filterBatch(result, tiers, ParseBoolParam(r, "multi", true))))
}

// parseTiers reads ?confidence=high,medium. A missing parameter selects
// every tier and returns nil.
func parseTiers(r *http.Request) (map[matching.Confidence]bool, error) {
	names := ParseListParam(r, "confidence")
	if len(names) == 0 {
		return nil, nil
	}
	tiers := make(map[matching.Confidence]bool, len(names))
	for _, name := range names {
		c, ok := matching.ParseConfidence(strings.ToUpper(name))
		if !ok {
			return nil, fmt.Errorf("invalid confidence %q", name)
		}
		tiers[c] = true
	}
	return tiers, nil
}

// filterBatch drops the pair buckets not in tiers (nil keeps all) and, when
// multi is false, the combinations. Statistics still describe the full run.
func filterBatch(result *matching.BatchResult, tiers map[matching.Confidence]bool, multi bool) *matching.BatchResult {
	filtered := *result
	if tiers != nil {
		if !tiers[matching.ConfidenceHigh] {
			filtered.HighConfidence = nil
		}
		if !tiers[matching.ConfidenceMedium] {
			filtered.MediumConfidence = nil
		}
		if !tiers[matching.ConfidenceLow] {
			filtered.LowConfidence = nil
		}
	}
	if !multi {
		filtered.MultiMatches = nil
	}
	return &filtered
}

// SuggestionsXLSX handles GET /api/statements/{id}/suggestions.xlsx.
func (h *StatementsHandler) SuggestionsXLSX(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("statement ID is required"))
		return
	}

	result, err := h.svc.Suggest(r.Context(), id)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	// Render fully before writing headers so a failure can still be a JSON error.
	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, id, result); err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="suggestions-%s.xlsx"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Balance handles GET /api/statements/{id}/balance - checks that the
// imported lines account for the opening and closing balances.
func (h *StatementsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	st, err := h.repo.FetchStatement(r.Context(), id)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	records, err := h.repo.ListBankRecords(r.Context(), id)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.NewBalanceResponse(id, validator.ValidateStatement(st, records)))
}
