package domain

// DeployRequest describes one compile-and-deploy job.
type DeployRequest struct {
	// UserID attributes the deployment; opaque to the pipeline.
	UserID string

	ChainID      int64
	ContractName string

	// Source is the entry contract's Solidity text. SourcePath is its
	// virtual file name; empty means "<ContractName>.sol".
	Source     string
	SourcePath string

	// LocalSources are caller-supplied files that shadow remote
	// imports, keyed by import path.
	LocalSources map[string]string

	// ConstructorArgs are positional and matched against the compiled
	// constructor signature.
	ConstructorArgs []any
}

// DeployResult is returned once the deployment transaction has been
// accepted by the chain's RPC node. Mining is not awaited.
type DeployResult struct {
	ID              string `json:"id"`
	ContractAddress string `json:"contractAddress"`
	DeployTxHash    string `json:"deployTxHash"`
	ExplorerURL     string `json:"explorerUrl,omitempty"`
	IPFSCID         string `json:"ipfsCid,omitempty"`
	ArtifactURL     string `json:"artifactUrl,omitempty"`

	// VerificationPending is set when the deployment was queued for
	// explorer source verification.
	VerificationPending bool `json:"verificationPending"`
}

// DeploymentSummary is a lightweight record for listings.
type DeploymentSummary struct {
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
