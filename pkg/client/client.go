// Package client provides a Go client for the Solforge API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a Solforge API client
type Client struct {
	baseURL    string
	userID     string
	sweepToken string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithSweepToken sets the bearer token for operator endpoints
func WithSweepToken(token string) Option {
	return func(client *Client) {
		client.sweepToken = token
	}
}

// New creates a new Solforge client
func New(baseURL, userID string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		userID:  userID,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// DeployRequest is the request for deploying a contract
type DeployRequest struct {
	ChainID         int64             `json:"chainId"`
	ContractName    string            `json:"contractName"`
	Source          string            `json:"source"`
	SourcePath      string            `json:"sourcePath,omitempty"`
	LocalSources    map[string]string `json:"localSources,omitempty"`
	ConstructorArgs []any             `json:"constructorArgs,omitempty"`
}

// DeployResult is the response for a deployment
type DeployResult struct {
	ID                  string `json:"id"`
	ContractAddress     string `json:"contractAddress"`
	DeployTxHash        string `json:"deployTxHash"`
	ExplorerURL         string `json:"explorerUrl,omitempty"`
	IPFSCID             string `json:"ipfsCid,omitempty"`
	ArtifactURL         string `json:"artifactUrl,omitempty"`
	VerificationPending bool   `json:"verificationPending"`
}

// Deployment is one entry in a deployment listing
type Deployment struct {
	ID              string `json:"id"`
	ChainID         int64  `json:"chainId"`
	ContractName    string `json:"contractName"`
	ContractAddress string `json:"contractAddress"`
	TxHash          string `json:"txHash"`
	IPFSCID         string `json:"ipfsCid,omitempty"`
	ExplorerURL     string `json:"explorerUrl,omitempty"`
	Verified        bool   `json:"verified"`
	CreatedAt       string `json:"createdAt"`
}

// SweepResult is the response for a verification sweep
type SweepResult struct {
	Success           bool `json:"success"`
	VerificationCount int  `json:"verificationCount"`
	Completed         int  `json:"completed"`
	Errors            int  `json:"errors"`
	Overflow          bool `json:"overflow,omitempty"`
}

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Deploy compiles and deploys a contract.
func (c *Client) Deploy(ctx context.Context, req DeployRequest) (*DeployResult, error) {
	var resp DeployResult
	if err := c.post(ctx, "/api/v1/deployments", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListDeployments lists the caller's deployments.
func (c *Client) ListDeployments(ctx context.Context, limit int) ([]Deployment, error) {
	path := "/api/v1/deployments"
	if limit > 0 {
		path += "?limit=" + url.QueryEscape(strconv.Itoa(limit))
	}

	var resp struct {
		Deployments []Deployment `json:"deployments"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Deployments, nil
}

// Sweep triggers one verification sweep. Requires the sweep token.
func (c *Client) Sweep(ctx context.Context) (*SweepResult, error) {
	var resp SweepResult
	if err := c.post(ctx, "/api/v1/verifications/sweep", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}
	if c.sweepToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.sweepToken)
	}
	req.Header.Set("Accept", "application/json")
}

func (c *Client) parseError(resp *http.Response) error {
	var errResp struct {
		Error APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return &errResp.Error
}
