// Package transport provides HTTP handlers for the deployments domain.
package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/solfoundry/solforge/internal/deployer"
	"github.com/solfoundry/solforge/internal/deployments/domain"
	"github.com/solfoundry/solforge/internal/solidity"
)

const defaultListLimit = 50

// Handler handles HTTP requests for deployments.
type Handler struct {
	svc domain.Service
}

// NewHandler creates a new deployments HTTP handler.
func NewHandler(svc domain.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the deployment routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.handleDeploy)
	r.Get("/", h.handleList)
}

func (h *Handler) handleDeploy(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return
	}

	var req DeployRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	result, err := h.svc.Deploy(r.Context(), req.ToDomain(userID(r)))
	if err != nil {
		writeDeployError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Missing user id")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid limit")
			return
		}
		limit = parsed
	}

	summaries, err := h.svc.List(r.Context(), uid, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list deployments")
		return
	}
	if summaries == nil {
		summaries = []domain.DeploymentSummary{}
	}

	writeJSON(w, http.StatusOK, ListResponse{Deployments: summaries})
}

// userID reads the caller identity. The X-User-ID header wins over the
// userId query parameter.
func userID(r *http.Request) string {
	if uid := r.Header.Get("X-User-ID"); uid != "" {
		return uid
	}
	return r.URL.Query().Get("userId")
}

func writeDeployError(w http.ResponseWriter, err error) {
	var compileErr *solidity.CompileError
	var fetchErr *solidity.ImportFetchError
	var rpcErr *deployer.RPCError

	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, domain.ErrUnknownChain):
		writeError(w, http.StatusBadRequest, "UNKNOWN_CHAIN", "Chain not supported")
	case errors.Is(err, solidity.ErrImportCycle):
		writeError(w, http.StatusUnprocessableEntity, "IMPORT_CYCLE", err.Error())
	case errors.As(err, &fetchErr):
		writeError(w, http.StatusUnprocessableEntity, "IMPORT_FETCH_FAILED", fetchErr.Error())
	case errors.As(err, &compileErr):
		writeError(w, http.StatusUnprocessableEntity, "COMPILATION_FAILED", compileErr.Message)
	case errors.Is(err, deployer.ErrWalletUnavailable):
		writeError(w, http.StatusServiceUnavailable, "WALLET_UNAVAILABLE", "Deployer wallet not configured")
	case errors.As(err, &rpcErr):
		writeError(w, http.StatusBadGateway, "RPC_ERROR", rpcErr.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to deploy contract")
	}
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
