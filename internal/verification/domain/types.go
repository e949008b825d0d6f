// Package domain contains the explorer verification protocol and the
// sweep job that drives the pending-verification backlog.
package domain

import (
	"github.com/solfoundry/solforge/internal/chains"
)

// Request describes one source-verification submission to a chain's
// block explorer.
type Request struct {
	DeployTxHash           string
	ContractAddress        string
	StandardJSONInput      []byte
	EncodedConstructorArgs string // hex, no 0x prefix; omitted when empty
	FileName               string
	ContractName           string
	CompilerVersion        string
	Chain                  chains.Descriptor
}

// SubmitResult is the outcome of a verifysourcecode submission.
type SubmitResult struct {
	// Verified is set when the explorer reports the contract as
	// already verified; resubmission is idempotent.
	Verified bool
	// GUID identifies the submission for later polling.
	GUID string
	// Message carries the explorer's response text.
	Message string
}

// PollResult is the outcome of a checkverifystatus call.
type PollResult struct {
	Verified bool
	Pending  bool
	Message  string
}

// Summary reports one sweep over the backlog.
type Summary struct {
	// VerificationCount is the backlog size remaining after the sweep.
	VerificationCount int
	// Completed counts entries verified and removed by this sweep.
	Completed int
	// Errors counts entries whose explorer round trip failed.
	Errors int
	// Overflow is set when the remaining backlog exceeds the
	// configured threshold. Observability only, not a failure.
	Overflow bool
}
