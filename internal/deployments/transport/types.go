// Package transport provides HTTP request/response types for the deployments domain.
package transport

import "github.com/solfoundry/solforge/internal/deployments/domain"

// DeployRequest is the HTTP request body for deploying a contract.
type DeployRequest struct {
	ChainID         int64             `json:"chainId"`
	ContractName    string            `json:"contractName"`
	Source          string            `json:"source"`
	SourcePath      string            `json:"sourcePath,omitempty"`
	LocalSources    map[string]string `json:"localSources,omitempty"`
	ConstructorArgs []any             `json:"constructorArgs,omitempty"`
}

// ToDomain converts DeployRequest to domain.DeployRequest.
func (r DeployRequest) ToDomain(userID string) domain.DeployRequest {
	return domain.DeployRequest{
		UserID:          userID,
		ChainID:         r.ChainID,
		ContractName:    r.ContractName,
		Source:          r.Source,
		SourcePath:      r.SourcePath,
		LocalSources:    r.LocalSources,
		ConstructorArgs: r.ConstructorArgs,
	}
}

// ListResponse wraps a deployment listing.
type ListResponse struct {
	Deployments []domain.DeploymentSummary `json:"deployments"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
