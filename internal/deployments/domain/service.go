// Package domain contains the compile-deploy-verify pipeline for
// Solidity contracts.
package domain

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/solfoundry/solforge/internal/analytics"
	"github.com/solfoundry/solforge/internal/chains"
	"github.com/solfoundry/solforge/internal/deployer"
	"github.com/solfoundry/solforge/internal/observability/metrics"
	"github.com/solfoundry/solforge/internal/solidity"
	"github.com/solfoundry/solforge/internal/storage"
	"github.com/solfoundry/solforge/internal/validation"
)

// Common errors returned by the deployment service.
var (
	ErrInvalidRequest = errors.New("invalid deployment request")
	ErrUnknownChain   = errors.New("unknown chain")
)

// Service defines the deployment service interface.
type Service interface {
	// Deploy resolves imports, compiles, broadcasts the deployment
	// transaction, uploads artifacts, and queues verification.
	Deploy(ctx context.Context, req DeployRequest) (*DeployResult, error)

	// List returns a user's deployments, newest first.
	List(ctx context.Context, userID string, limit int) ([]DeploymentSummary, error)
}

// SourceResolver flattens a contract's import graph.
type SourceResolver interface {
	Resolve(ctx context.Context, source, sourcePath string, local solidity.SourceMap) (string, solidity.SourceMap, error)
}

// ContractCompiler turns resolved sources into deployable artifacts.
type ContractCompiler interface {
	Compile(ctx context.Context, contractName, source string, sources solidity.SourceMap) (*solidity.CompilationUnit, error)
}

// ContractDeployer signs and broadcasts deployment transactions.
type ContractDeployer interface {
	Deploy(ctx context.Context, chain chains.Descriptor, bytecode string, encodedArgs []byte) (*deployer.Result, error)
}

// ArtifactUploader publishes build artifacts. Upload returns an empty
// CID on failure; artifact publication never fails a deployment.
type ArtifactUploader interface {
	Upload(ctx context.Context, sources solidity.SourceMap, abi json.RawMessage, bytecode string, standardJSONInput []byte) string
	GatewayURL(cid string) string
}

// EventTracker records deployment lifecycle events.
type EventTracker interface {
	Track(event analytics.Event)
}

// service implements the Service interface.
type service struct {
	registry  *chains.Registry
	resolver  SourceResolver
	compiler  ContractCompiler
	deployer  ContractDeployer
	artifacts ArtifactUploader
	store     storage.Store
	tracker   EventTracker
	logger    *slog.Logger
}

// NewService creates a new deployment service.
func NewService(
	registry *chains.Registry,
	resolver SourceResolver,
	compiler ContractCompiler,
	contractDeployer ContractDeployer,
	artifacts ArtifactUploader,
	store storage.Store,
	tracker EventTracker,
	logger *slog.Logger,
) Service {
	return &service{
		registry:  registry,
		resolver:  resolver,
		compiler:  compiler,
		deployer:  contractDeployer,
		artifacts: artifacts,
		store:     store,
		tracker:   tracker,
		logger:    logger,
	}
}

func (s *service) Deploy(ctx context.Context, req DeployRequest) (*DeployResult, error) {
	if err := validation.ValidateContractName(req.ContractName); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := validation.ValidateChainID(req.ChainID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.Source == "" {
		return nil, fmt.Errorf("%w: source cannot be empty", ErrInvalidRequest)
	}

	chain, ok := s.registry.Get(req.ChainID)
	if !ok {
		return nil, fmt.Errorf("%w: chain %d", ErrUnknownChain, req.ChainID)
	}

	sourcePath := req.SourcePath
	if sourcePath == "" {
		sourcePath = solidity.ContractFileName(req.ContractName)
	} else if err := validation.ValidateSourcePath(sourcePath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	local := make(solidity.SourceMap, len(req.LocalSources))
	for p, content := range req.LocalSources {
		local[p] = solidity.SourceFile{Content: content}
	}

	rewritten, resolved, err := s.resolver.Resolve(ctx, req.Source, sourcePath, local)
	if err != nil {
		return nil, fmt.Errorf("resolving imports: %w", err)
	}

	unit, err := s.compiler.Compile(ctx, req.ContractName, rewritten, resolved)
	if err != nil {
		metrics.Compile("error")
		return nil, fmt.Errorf("compiling %s: %w", req.ContractName, err)
	}
	metrics.Compile("success")

	encodedArgs, err := deployer.EncodeConstructorArgs(unit.ABI, req.ConstructorArgs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	// Artifact upload runs concurrently with the broadcast; its
	// outcome never gates the deployment.
	cidCh := make(chan string, 1)
	go func() {
		cid := s.artifacts.Upload(ctx, unit.Sources, unit.ABI, unit.Bytecode, unit.StandardJSONInput)
		if cid == "" {
			metrics.ArtifactUpload("error")
		} else {
			metrics.ArtifactUpload("success")
		}
		cidCh <- cid
	}()

	result, deployErr := s.deployer.Deploy(ctx, chain, unit.Bytecode, encodedArgs)
	cid := <-cidCh
	if deployErr != nil {
		metrics.Deployment(chain.Name, "error")
		s.track("deployment_failed", req, map[string]any{"error": deployErr.Error()})
		return nil, fmt.Errorf("deploying %s: %w", req.ContractName, deployErr)
	}
	metrics.Deployment(chain.Name, "success")

	address := result.ContractAddress.Hex()
	txHash := result.TxHash.Hex()

	record := &storage.Deployment{
		ID:           uuid.New().String(),
		UserID:       req.UserID,
		ChainID:      req.ChainID,
		ContractName: req.ContractName,
		Address:      address,
		TxHash:       txHash,
		IPFSCID:      cid,
		ExplorerURL:  chain.ExplorerAddressURL(address),
	}
	if err := s.store.RecordDeployment(ctx, record); err != nil {
		// The contract is live regardless; losing the record is an
		// operator problem, not a caller error.
		s.logger.Error("recording deployment failed",
			"tx", txHash, "contract", req.ContractName, "error", err)
	}

	verificationPending := s.queueVerification(ctx, chain, req.ContractName, address, txHash, unit, encodedArgs)

	s.track("deployment_succeeded", req, map[string]any{
		"contractAddress": address,
		"txHash":          txHash,
	})

	res := &DeployResult{
		ID:                  record.ID,
		ContractAddress:     address,
		DeployTxHash:        txHash,
		ExplorerURL:         record.ExplorerURL,
		IPFSCID:             cid,
		VerificationPending: verificationPending,
	}
	if cid != "" {
		res.ArtifactURL = s.artifacts.GatewayURL(cid)
	}

	s.logger.Info("contract deployed",
		"contract", req.ContractName,
		"chain", chain.Name,
		"address", address,
		"tx", txHash)
	return res, nil
}

// queueVerification enqueues the deployment for the next explorer
// sweep. Chains without an explorer API are skipped.
func (s *service) queueVerification(
	ctx context.Context,
	chain chains.Descriptor,
	contractName, address, txHash string,
	unit *solidity.CompilationUnit,
	encodedArgs []byte,
) bool {
	if chain.ExplorerAPIURL == "" {
		return false
	}
	if err := validation.ValidateCompilerVersion(unit.CompilerVersion); err != nil {
		s.logger.Error("unusable compiler version for verification",
			"tx", txHash, "version", unit.CompilerVersion, "error", err)
		return false
	}

	// The explorer resolves the contract by its key in the standard
	// JSON input, which the compiler derives from the contract name,
	// not from the caller's source path.
	pending := &storage.PendingVerification{
		TxHash:            txHash,
		ContractAddress:   address,
		ChainID:           chain.ChainID,
		FileName:          solidity.ContractFileName(contractName),
		ContractName:      contractName,
		CompilerVersion:   unit.CompilerVersion,
		StandardJSONInput: unit.StandardJSONInput,
		ConstructorArgs:   hex.EncodeToString(encodedArgs),
	}
	if err := s.store.SavePendingVerification(ctx, pending); err != nil {
		s.logger.Error("queueing verification failed", "tx", txHash, "error", err)
		return false
	}
	return true
}

func (s *service) List(ctx context.Context, userID string, limit int) ([]DeploymentSummary, error) {
	records, err := s.store.ListDeployments(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing deployments: %w", err)
	}

	summaries := make([]DeploymentSummary, len(records))
	for i, d := range records {
		summaries[i] = DeploymentSummary{
			ID:              d.ID,
			ChainID:         d.ChainID,
			ContractName:    d.ContractName,
			ContractAddress: d.Address,
			TxHash:          d.TxHash,
			IPFSCID:         d.IPFSCID,
			ExplorerURL:     d.ExplorerURL,
			Verified:        d.Verified,
			CreatedAt:       d.CreatedAt,
		}
	}
	return summaries, nil
}

func (s *service) track(name string, req DeployRequest, props map[string]any) {
	if s.tracker == nil {
		return
	}
	props["contractName"] = req.ContractName
	s.tracker.Track(analytics.Event{
		Name:    name,
		UserID:  req.UserID,
		ChainID: req.ChainID,
		Props:   props,
	})
}
