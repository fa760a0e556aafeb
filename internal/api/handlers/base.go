package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/eshaffer321/bank-reconciliation/internal/api/dto"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/reconciliation"
)

// Base provides shared functionality for all handlers.
type Base struct {
	logger *slog.Logger
}

// NewBase creates a new base handler. A nil logger uses slog.Default().
func NewBase(logger *slog.Logger) *Base {
	if logger == nil {
		logger = slog.Default()
	}
	return &Base{logger: logger}
}

// WriteJSON writes a JSON response with the given status code.
func (b *Base) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error response with the given status code.
func (b *Base) WriteError(w http.ResponseWriter, status int, err dto.APIError) {
	b.WriteJSON(w, status, err)
}

// WriteServiceError maps a reconciliation error to an HTTP response.
// Unrecognised errors are logged and reported as internal errors.
func (b *Base) WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var notFound *reconciliation.NotFoundError
	switch {
	case errors.As(err, &notFound):
		b.WriteError(w, http.StatusNotFound, dto.NotFoundError(notFound.Resource))
	case errors.Is(err, reconciliation.ErrNoMatch):
		b.WriteError(w, http.StatusNotFound, dto.NotFoundError("match"))
	case errors.Is(err, reconciliation.ErrStatementBusy):
		b.WriteError(w, http.StatusConflict, dto.BusyError())
	case errors.Is(err, reconciliation.ErrAlreadyReconciled),
		errors.Is(err, reconciliation.ErrCandidateUnavailable):
		b.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
	case errors.Is(err, reconciliation.ErrInvalidMatch):
		b.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
	default:
		b.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		b.WriteError(w, http.StatusInternalServerError, dto.InternalError())
	}
}

// ParseBoolParam parses a boolean query parameter with a default value.
func ParseBoolParam(r *http.Request, name string, defaultVal bool) bool {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	return val == "true" || val == "1"
}

// ParseListParam splits a comma-separated query parameter.
func ParseListParam(r *http.Request, name string) []string {
	var out []string
	for _, part := range strings.Split(r.URL.Query().Get(name), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
