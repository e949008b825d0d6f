// Package transport provides HTTP handlers for the verification domain.
package transport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solfoundry/solforge/internal/verification/domain"
)

// Service defines the verification sweep interface for HTTP transport.
type Service interface {
	Sweep(ctx context.Context) (domain.Summary, error)
}

// Handler handles HTTP requests for verification sweeps.
type Handler struct {
	svc Service
}

// NewHandler creates a new verification HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the verification routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sweep", h.handleSweep)
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Sweep(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to sweep pending verifications")
		return
	}

	writeJSON(w, http.StatusOK, SweepResponse{
		Success:           true,
		VerificationCount: summary.VerificationCount,
		Completed:         summary.Completed,
		Errors:            summary.Errors,
		Overflow:          summary.Overflow,
	})
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
	})
}
