package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/solfoundry/solforge/internal/config"
)

// DeploymentStore handles deployment records
type DeploymentStore interface {
	RecordDeployment(ctx context.Context, d *Deployment) error
	GetDeployment(ctx context.Context, txHash string) (*Deployment, error)
	ListDeployments(ctx context.Context, userID string, limit int) ([]Deployment, error)
	MarkDeploymentVerified(ctx context.Context, txHash string) error
}

// VerificationStore handles the pending-verification backlog.
// Append-only plus delete-by-key; entries are unique per deploy
// transaction hash.
type VerificationStore interface {
	SavePendingVerification(ctx context.Context, v *PendingVerification) error
	ListPendingVerifications(ctx context.Context) ([]PendingVerification, error)
	IncrementVerificationAttempts(ctx context.Context, txHash, lastError string) error
	DeletePendingVerification(ctx context.Context, txHash string) error
}

// Store combines all storage interfaces with lifecycle methods.
// Domain services define their own minimal interfaces based on their
// actual usage.
type Store interface {
	DeploymentStore
	VerificationStore

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// Deployment is a persisted deployment record
type Deployment struct {
	ID           string
	UserID       string
	ChainID      int64
	ContractName string
	Address      string
	TxHash       string
	IPFSCID      string
	ExplorerURL  string
	Verified     bool
	CreatedAt    string
}

// PendingVerification is one backlog entry awaiting explorer
// verification, keyed by deploy transaction hash.
type PendingVerification struct {
	TxHash            string
	ContractAddress   string
	ChainID           int64
	FileName          string
	ContractName      string
	CompilerVersion   string
	StandardJSONInput []byte
	ConstructorArgs   string // ABI-encoded hex, no 0x prefix
	Attempts          int
	LastError         string
	CreatedAt         string
}

// New creates a store based on configuration
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
