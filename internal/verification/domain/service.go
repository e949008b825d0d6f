package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/solfoundry/solforge/internal/chains"
	"github.com/solfoundry/solforge/internal/solidity"
)

// ErrExplorerUnavailable indicates a non-2xx transport response from
// the explorer API. The next sweep retries implicitly.
var ErrExplorerUnavailable = errors.New("explorer unavailable")

const (
	codeFormat = "solidity-standard-json-input"

	// Explorer response markers. Etherscan-compatible APIs phrase
	// these consistently enough to match on.
	passMessage           = "Pass - Verified"
	alreadyVerifiedMarker = "already verified"
	pendingMarker         = "pending"
)

// explorerResponse is the Etherscan-style envelope
type explorerResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

// Manager submits source-verification requests to block explorers
// and polls for their completion.
type Manager struct {
	client *http.Client
	logger *slog.Logger
}

// NewManager creates a verification manager. Every explorer call uses
// the given timeout.
func NewManager(timeout time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Submit posts a verifysourcecode request. The explorer reporting the
// contract as already verified counts as success.
func (m *Manager) Submit(ctx context.Context, req Request) (SubmitResult, error) {
	form := url.Values{}
	form.Set("apikey", req.Chain.ExplorerAPIKey)
	form.Set("module", "contract")
	form.Set("action", "verifysourcecode")
	form.Set("contractaddress", req.ContractAddress)
	form.Set("sourceCode", string(req.StandardJSONInput))
	form.Set("codeformat", codeFormat)
	form.Set("contractname", fmt.Sprintf("%s:%s", req.FileName, req.ContractName))
	form.Set("compilerversion", req.CompilerVersion)
	form.Set("optimizationUsed", "1")
	form.Set("runs", strconv.Itoa(solidity.OptimizerRuns))
	if req.EncodedConstructorArgs != "" {
		// Etherscan's historical parameter spelling
		form.Set("constructorArguements", req.EncodedConstructorArgs)
	}

	resp, err := m.postForm(ctx, req.Chain, form)
	if err != nil {
		return SubmitResult{}, err
	}

	if containsAlreadyVerified(resp) {
		return SubmitResult{Verified: true, Message: resp.Result}, nil
	}
	if resp.Status == "1" {
		return SubmitResult{GUID: resp.Result, Message: resp.Message}, nil
	}
	return SubmitResult{}, fmt.Errorf("explorer rejected submission: %s", resp.Result)
}

// Poll checks a prior submission by GUID.
func (m *Manager) Poll(ctx context.Context, guid string, chain chains.Descriptor) (PollResult, error) {
	form := url.Values{}
	form.Set("apikey", chain.ExplorerAPIKey)
	form.Set("module", "contract")
	form.Set("action", "checkverifystatus")
	form.Set("guid", guid)

	resp, err := m.postForm(ctx, chain, form)
	if err != nil {
		return PollResult{}, err
	}

	switch {
	case resp.Result == passMessage || containsAlreadyVerified(resp):
		return PollResult{Verified: true, Message: resp.Result}, nil
	case strings.Contains(strings.ToLower(resp.Result), pendingMarker):
		return PollResult{Pending: true, Message: resp.Result}, nil
	default:
		return PollResult{Message: resp.Result}, nil
	}
}

func (m *Manager) postForm(ctx context.Context, chain chains.Descriptor, form url.Values) (*explorerResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		chain.ExplorerAPIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building explorer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExplorerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrExplorerUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrExplorerUnavailable, err)
	}

	var parsed explorerResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding explorer response: %w", err)
	}
	return &parsed, nil
}

func containsAlreadyVerified(resp *explorerResponse) bool {
	return strings.Contains(strings.ToLower(resp.Result), alreadyVerifiedMarker) ||
		strings.Contains(strings.ToLower(resp.Message), alreadyVerifiedMarker)
}
