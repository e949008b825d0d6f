package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solfoundry/solforge/internal/deployer"
	"github.com/solfoundry/solforge/internal/deployments/domain"
	"github.com/solfoundry/solforge/internal/solidity"
)

type mockService struct {
	deployResult *domain.DeployResult
	deployErr    error
	summaries    []domain.DeploymentSummary
	listErr      error

	gotRequest domain.DeployRequest
	gotUserID  string
	gotLimit   int
}

func (m *mockService) Deploy(ctx context.Context, req domain.DeployRequest) (*domain.DeployResult, error) {
	m.gotRequest = req
	if m.deployErr != nil {
		return nil, m.deployErr
	}
	return m.deployResult, nil
}

func (m *mockService) List(ctx context.Context, userID string, limit int) ([]domain.DeploymentSummary, error) {
	m.gotUserID = userID
	m.gotLimit = limit
	return m.summaries, m.listErr
}

func setupRouter(svc domain.Service) *chi.Mux {
	r := chi.NewRouter()
	h := NewHandler(svc)
	r.Route("/api/v1/deployments", h.RegisterRoutes)
	return r
}

func deployBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(DeployRequest{
		ChainID:      11155111,
		ContractName: "Counter",
		Source:       "contract Counter {}",
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestHandler_Deploy(t *testing.T) {
	svc := &mockService{
		deployResult: &domain.DeployResult{
			ID:                  "dep-1",
			ContractAddress:     "0x9999999999999999999999999999999999999999",
			DeployTxHash:        "0xabc",
			ExplorerURL:         "https://sepolia.etherscan.io/address/0x9999999999999999999999999999999999999999",
			IPFSCID:             "QmTest",
			VerificationPending: true,
		},
	}
	router := setupRouter(svc)

	req := httptest.NewRequest("POST", "/api/v1/deployments", deployBody(t))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "user-1", svc.gotRequest.UserID)
	assert.Equal(t, int64(11155111), svc.gotRequest.ChainID)

	var resp domain.DeployResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "0x9999999999999999999999999999999999999999", resp.ContractAddress)
	assert.True(t, resp.VerificationPending)
}

func TestHandler_Deploy_InvalidJSON(t *testing.T) {
	router := setupRouter(&mockService{})

	req := httptest.NewRequest("POST", "/api/v1/deployments", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Deploy_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid request",
			err:        domain.ErrInvalidRequest,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "unknown chain",
			err:        domain.ErrUnknownChain,
			wantStatus: http.StatusBadRequest,
			wantCode:   "UNKNOWN_CHAIN",
		},
		{
			name:       "import cycle",
			err:        solidity.ErrImportCycle,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "IMPORT_CYCLE",
		},
		{
			name:       "import fetch failure",
			err:        &solidity.ImportFetchError{Path: "@oz/Missing.sol", Status: 404},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "IMPORT_FETCH_FAILED",
		},
		{
			name:       "compile failure",
			err:        &solidity.CompileError{Message: "ParserError"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "COMPILATION_FAILED",
		},
		{
			name:       "wallet unavailable",
			err:        deployer.ErrWalletUnavailable,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "WALLET_UNAVAILABLE",
		},
		{
			name:       "rpc failure",
			err:        &deployer.RPCError{Op: "sendRawTransaction", Err: errors.New("timeout")},
			wantStatus: http.StatusBadGateway,
			wantCode:   "RPC_ERROR",
		},
		{
			name:       "unexpected",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupRouter(&mockService{deployErr: tt.err})

			req := httptest.NewRequest("POST", "/api/v1/deployments", deployBody(t))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestHandler_List(t *testing.T) {
	svc := &mockService{
		summaries: []domain.DeploymentSummary{
			{ID: "1", ContractName: "Counter", ChainID: 11155111},
		},
	}
	router := setupRouter(svc)

	req := httptest.NewRequest("GET", "/api/v1/deployments?userId=user-1&limit=10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", svc.gotUserID)
	assert.Equal(t, 10, svc.gotLimit)

	var resp ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Deployments, 1)
	assert.Equal(t, "Counter", resp.Deployments[0].ContractName)
}

func TestHandler_List_EmptyIsArray(t *testing.T) {
	router := setupRouter(&mockService{})

	req := httptest.NewRequest("GET", "/api/v1/deployments?userId=user-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deployments":[]}`, rec.Body.String())
}

func TestHandler_List_RequiresUser(t *testing.T) {
	router := setupRouter(&mockService{})

	req := httptest.NewRequest("GET", "/api/v1/deployments", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
