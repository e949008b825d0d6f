package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/solfoundry/solforge/internal/chains"
	"github.com/solfoundry/solforge/internal/observability/metrics"
	"github.com/solfoundry/solforge/internal/storage"
	"github.com/solfoundry/solforge/internal/validation"
)

// Backlog defines the storage operations the sweeper needs.
type Backlog interface {
	ListPendingVerifications(ctx context.Context) ([]storage.PendingVerification, error)
	DeletePendingVerification(ctx context.Context, txHash string) error
	IncrementVerificationAttempts(ctx context.Context, txHash, lastError string) error
	MarkDeploymentVerified(ctx context.Context, txHash string) error
}

// Verifier drives the explorer protocol for one entry.
type Verifier interface {
	Submit(ctx context.Context, req Request) (SubmitResult, error)
	Poll(ctx context.Context, guid string, chain chains.Descriptor) (PollResult, error)
}

// Sweeper re-drives the pending-verification backlog. It is the retry
// mechanism for verification: deploys never retry inline.
type Sweeper struct {
	backlog  Backlog
	verifier Verifier
	registry *chains.Registry
	logger   *slog.Logger

	// backlogThreshold triggers an operator-visible overflow warning.
	backlogThreshold int
	// maxAttempts dead-letters entries that keep failing; entries at
	// or past the limit are skipped, retained, and logged.
	maxAttempts int
}

// NewSweeper creates a sweeper over the given backlog.
func NewSweeper(backlog Backlog, verifier Verifier, registry *chains.Registry, backlogThreshold, maxAttempts int, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		backlog:          backlog,
		verifier:         verifier,
		registry:         registry,
		backlogThreshold: backlogThreshold,
		maxAttempts:      maxAttempts,
		logger:           logger,
	}
}

// Sweep loads the full backlog and drives each entry once. A failure
// on one entry never aborts the sweep of the rest; repeated sweeps
// over the same unresolved entry are safe.
func (s *Sweeper) Sweep(ctx context.Context) (Summary, error) {
	entries, err := s.backlog.ListPendingVerifications(ctx)
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	for _, entry := range entries {
		done, err := s.sweepOne(ctx, entry)
		if err != nil {
			summary.Errors++
			s.logger.Warn("verification attempt failed",
				"tx", entry.TxHash, "contract", entry.ContractName, "error", err)
			if err := s.backlog.IncrementVerificationAttempts(ctx, entry.TxHash, err.Error()); err != nil {
				s.logger.Warn("recording attempt failed", "tx", entry.TxHash, "error", err)
			}
			continue
		}
		if done {
			summary.Completed++
		}
	}

	summary.VerificationCount = len(entries) - summary.Completed
	metrics.VerificationBacklog(summary.VerificationCount)

	if summary.VerificationCount > s.backlogThreshold {
		summary.Overflow = true
		s.logger.Warn("verification backlog above threshold",
			"backlog", summary.VerificationCount, "threshold", s.backlogThreshold)
	}

	s.logger.Info("verification sweep finished",
		"backlog", summary.VerificationCount,
		"completed", summary.Completed,
		"errors", summary.Errors)
	return summary, nil
}

func (s *Sweeper) sweepOne(ctx context.Context, entry storage.PendingVerification) (bool, error) {
	if s.maxAttempts > 0 && entry.Attempts >= s.maxAttempts {
		s.logger.Warn("verification dead-lettered, attempt limit reached",
			"tx", entry.TxHash, "attempts", entry.Attempts, "last_error", entry.LastError)
		metrics.VerificationRequest("dead_letter")
		return false, nil
	}

	if err := validation.ValidateAddress(entry.ContractAddress); err != nil {
		return false, fmt.Errorf("bad contract address: %w", err)
	}

	chain, ok := s.registry.Get(entry.ChainID)
	if !ok {
		return false, errors.New("chain not in registry")
	}

	req := Request{
		DeployTxHash:           entry.TxHash,
		ContractAddress:        entry.ContractAddress,
		StandardJSONInput:      entry.StandardJSONInput,
		EncodedConstructorArgs: entry.ConstructorArgs,
		FileName:               entry.FileName,
		ContractName:           entry.ContractName,
		CompilerVersion:        entry.CompilerVersion,
		Chain:                  chain,
	}

	submitted, err := s.verifier.Submit(ctx, req)
	if err != nil {
		metrics.VerificationRequest("error")
		return false, err
	}

	verified := submitted.Verified
	if !verified && submitted.GUID != "" {
		polled, err := s.verifier.Poll(ctx, submitted.GUID, chain)
		if err != nil {
			metrics.VerificationRequest("error")
			return false, err
		}
		verified = polled.Verified
		if !verified {
			metrics.VerificationRequest("pending")
			if err := s.backlog.IncrementVerificationAttempts(ctx, entry.TxHash, polled.Message); err != nil {
				s.logger.Warn("recording attempt failed", "tx", entry.TxHash, "error", err)
			}
			return false, nil
		}
	}
	if !verified {
		metrics.VerificationRequest("pending")
		return false, nil
	}

	if err := s.backlog.DeletePendingVerification(ctx, entry.TxHash); err != nil {
		return false, err
	}
	if err := s.backlog.MarkDeploymentVerified(ctx, entry.TxHash); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("marking deployment verified failed", "tx", entry.TxHash, "error", err)
	}

	metrics.VerificationRequest("verified")
	s.logger.Info("contract verified",
		"tx", entry.TxHash, "contract", entry.ContractName, "chain_id", entry.ChainID)
	return true, nil
}
