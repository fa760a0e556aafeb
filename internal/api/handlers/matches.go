package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/bank-reconciliation/internal/api/dto"
	"github.com/eshaffer321/bank-reconciliation/internal/application/reconcile"
)

// MatchesHandler handles requests that create, list or reverse matches.
type MatchesHandler struct {
	*Base
	repo StatementReader
	svc  ReconciliationService
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(repo StatementReader, svc ReconciliationService, logger *slog.Logger) *MatchesHandler {
	return &MatchesHandler{
		Base: NewBase(logger),
		repo: repo,
		svc:  svc,
	}
}

// List handles GET /api/statements/{id}/matches.
func (h *MatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.repo.FetchStatement(r.Context(), id); err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	matches, err := h.repo.ListMatches(r.Context(), id)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	response := dto.MatchListResponse{
		Matches: make([]dto.MatchResponse, 0, len(matches)),
		Count:   len(matches),
	}
	for _, m := range matches {
		response.Matches = append(response.Matches, dto.NewMatchResponse(m))
	}
	h.WriteJSON(w, http.StatusOK, response)
}

// AutoMatch handles POST /api/statements/{id}/auto-match. An empty body
// applies HIGH confidence suggestions only.
func (h *MatchesHandler) AutoMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req dto.AutoMatchRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
			return
		}
	}

	res, err := h.svc.AutoMatch(r.Context(), id, reconcile.AutoApplyOptions{
		IncludeMedium: req.IncludeMedium,
		IncludeLow:    req.IncludeLow,
		IncludeMulti:  req.IncludeMulti,
		Actor:         req.Actor,
	})
	if err != nil && res == nil {
		h.WriteServiceError(w, r, err)
		return
	}
	if err != nil {
		// Some matches were persisted before the run stopped; report them.
		h.logger.Warn("auto-match finished with error", "statement_id", id, "error", err)
	}

	response := dto.AutoMatchResponse{
		StatementID: id,
		Matched:     res.Execution.Matched,
		Skipped:     res.Execution.Skipped,
		Errors:      make([]string, 0, len(res.Execution.Errors)),
		Matches:     make([]dto.MatchResponse, 0, len(res.Execution.Matches)),
		Statistics:  res.Batch.Statistics,
	}
	response.Errors = append(response.Errors, res.Execution.Errors...)
	for _, m := range res.Execution.Matches {
		response.Matches = append(response.Matches, dto.NewMatchResponse(*m))
	}
	h.WriteJSON(w, http.StatusOK, response)
}

// Create handles POST /api/statements/{id}/matches - a manual match.
func (h *MatchesHandler) Create(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req dto.ManualMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	if req.BankRecordID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("bank_record_id is required"))
		return
	}
	if len(req.CandidateIDs) == 0 {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("candidate_ids must not be empty"))
		return
	}

	match, err := h.svc.ManualMatch(r.Context(), reconcile.ManualMatchRequest{
		StatementID:  id,
		BankRecordID: req.BankRecordID,
		CandidateIDs: req.CandidateIDs,
		Actor:        req.Actor,
		Notes:        req.Notes,
	})
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, dto.NewMatchResponse(*match))
}

// Delete handles DELETE /api/bank-records/{id}/match.
func (h *MatchesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	match, err := h.svc.Unmatch(r.Context(), id)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, dto.NewMatchResponse(*match))
}
