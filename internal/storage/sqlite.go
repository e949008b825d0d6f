package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	-- Deployment records
	CREATE TABLE IF NOT EXISTS deployments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		chain_id INTEGER NOT NULL,
		contract_name TEXT NOT NULL,
		address TEXT NOT NULL,
		tx_hash TEXT NOT NULL UNIQUE,
		ipfs_cid TEXT NOT NULL DEFAULT '',
		explorer_url TEXT NOT NULL DEFAULT '',
		verified INTEGER NOT NULL DEFAULT 0,
		created_at TEXT DEFAULT (datetime('now'))
	);
	CREATE INDEX IF NOT EXISTS idx_deployments_user ON deployments(user_id, created_at DESC);

	-- Pending verification backlog, keyed by deploy tx hash
	CREATE TABLE IF NOT EXISTS pending_verifications (
		tx_hash TEXT PRIMARY KEY,
		contract_address TEXT NOT NULL,
		chain_id INTEGER NOT NULL,
		file_name TEXT NOT NULL,
		contract_name TEXT NOT NULL,
		compiler_version TEXT NOT NULL,
		standard_json_input BLOB NOT NULL,
		constructor_args TEXT NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		created_at TEXT DEFAULT (datetime('now'))
	);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// RecordDeployment inserts a deployment record
func (s *SQLiteStore) RecordDeployment(ctx context.Context, d *Deployment) error {
	if d.ID == "" {
		d.ID = generateID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deployments (id, user_id, chain_id, contract_name, address, tx_hash, ipfs_cid, explorer_url, verified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.UserID, d.ChainID, d.ContractName, d.Address, d.TxHash, d.IPFSCID, d.ExplorerURL, d.Verified)
	if err != nil {
		return fmt.Errorf("inserting deployment: %w", err)
	}
	return nil
}

// GetDeployment retrieves a deployment by transaction hash
func (s *SQLiteStore) GetDeployment(ctx context.Context, txHash string) (*Deployment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, chain_id, contract_name, address, tx_hash, ipfs_cid, explorer_url, verified, created_at
		FROM deployments WHERE tx_hash = ?`, txHash)

	var d Deployment
	err := row.Scan(&d.ID, &d.UserID, &d.ChainID, &d.ContractName, &d.Address,
		&d.TxHash, &d.IPFSCID, &d.ExplorerURL, &d.Verified, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning deployment: %w", err)
	}
	return &d, nil
}

// ListDeployments lists a user's deployments, most recent first
func (s *SQLiteStore) ListDeployments(ctx context.Context, userID string, limit int) ([]Deployment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, chain_id, contract_name, address, tx_hash, ipfs_cid, explorer_url, verified, created_at
		FROM deployments WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying deployments: %w", err)
	}
	defer rows.Close()

	var out []Deployment
	for rows.Next() {
		var d Deployment
		if err := rows.Scan(&d.ID, &d.UserID, &d.ChainID, &d.ContractName, &d.Address,
			&d.TxHash, &d.IPFSCID, &d.ExplorerURL, &d.Verified, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning deployment: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// MarkDeploymentVerified flips a deployment's verified flag
func (s *SQLiteStore) MarkDeploymentVerified(ctx context.Context, txHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE deployments SET verified = 1 WHERE tx_hash = ?`, txHash)
	if err != nil {
		return fmt.Errorf("updating deployment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SavePendingVerification inserts or refreshes a backlog entry
func (s *SQLiteStore) SavePendingVerification(ctx context.Context, v *PendingVerification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_verifications
			(tx_hash, contract_address, chain_id, file_name, contract_name, compiler_version, standard_json_input, constructor_args)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx_hash) DO UPDATE SET
			standard_json_input = excluded.standard_json_input,
			constructor_args = excluded.constructor_args`,
		v.TxHash, v.ContractAddress, v.ChainID, v.FileName, v.ContractName,
		v.CompilerVersion, v.StandardJSONInput, v.ConstructorArgs)
	if err != nil {
		return fmt.Errorf("inserting pending verification: %w", err)
	}
	return nil
}

// ListPendingVerifications loads the full backlog, oldest first
func (s *SQLiteStore) ListPendingVerifications(ctx context.Context) ([]PendingVerification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tx_hash, contract_address, chain_id, file_name, contract_name, compiler_version,
		       standard_json_input, constructor_args, attempts, last_error, created_at
		FROM pending_verifications ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying pending verifications: %w", err)
	}
	defer rows.Close()

	var out []PendingVerification
	for rows.Next() {
		var v PendingVerification
		if err := rows.Scan(&v.TxHash, &v.ContractAddress, &v.ChainID, &v.FileName, &v.ContractName,
			&v.CompilerVersion, &v.StandardJSONInput, &v.ConstructorArgs, &v.Attempts, &v.LastError, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning pending verification: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// IncrementVerificationAttempts bumps the attempt counter after a
// failed or inconclusive explorer round trip
func (s *SQLiteStore) IncrementVerificationAttempts(ctx context.Context, txHash, lastError string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pending_verifications SET attempts = attempts + 1, last_error = ?
		WHERE tx_hash = ?`, lastError, txHash)
	if err != nil {
		return fmt.Errorf("updating pending verification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePendingVerification removes a completed backlog entry
func (s *SQLiteStore) DeletePendingVerification(ctx context.Context, txHash string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_verifications WHERE tx_hash = ?`, txHash)
	if err != nil {
		return fmt.Errorf("deleting pending verification: %w", err)
	}
	return nil
}
