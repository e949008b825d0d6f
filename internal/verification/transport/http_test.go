package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solfoundry/solforge/internal/verification/domain"
)

type mockService struct {
	summary domain.Summary
	err     error
}

func (m *mockService) Sweep(ctx context.Context) (domain.Summary, error) {
	return m.summary, m.err
}

func setupRouter(svc Service) *chi.Mux {
	r := chi.NewRouter()
	h := NewHandler(svc)
	h.RegisterRoutes(r)
	return r
}

func TestHandler_Sweep(t *testing.T) {
	router := setupRouter(&mockService{
		summary: domain.Summary{VerificationCount: 2, Completed: 1, Errors: 1},
	})

	req := httptest.NewRequest("POST", "/sweep", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp SweepResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.VerificationCount)
	assert.Equal(t, 1, resp.Completed)
	assert.Equal(t, 1, resp.Errors)
	assert.False(t, resp.Overflow)
}

func TestHandler_Sweep_Overflow(t *testing.T) {
	router := setupRouter(&mockService{
		summary: domain.Summary{VerificationCount: 6, Overflow: true},
	})

	req := httptest.NewRequest("POST", "/sweep", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp SweepResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Overflow)
}

func TestHandler_Sweep_Failure(t *testing.T) {
	router := setupRouter(&mockService{err: errors.New("storage down")})

	req := httptest.NewRequest("POST", "/sweep", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
}
