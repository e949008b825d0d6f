package storage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestDeploymentLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	d := &Deployment{
		UserID:       "user-1",
		ChainID:      11155111,
		ContractName: "Token",
		Address:      "0x1111111111111111111111111111111111111111",
		TxHash:       "0x" + "aa",
		IPFSCID:      "QmX",
		ExplorerURL:  "https://sepolia.etherscan.io/address/0x1111111111111111111111111111111111111111",
	}
	require.NoError(t, store.RecordDeployment(ctx, d))
	assert.NotEmpty(t, d.ID)

	got, err := store.GetDeployment(ctx, d.TxHash)
	require.NoError(t, err)
	assert.Equal(t, d.Address, got.Address)
	assert.False(t, got.Verified)
	assert.NotEmpty(t, got.CreatedAt)

	_, err = store.GetDeployment(ctx, "0xmissing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.MarkDeploymentVerified(ctx, d.TxHash))
	got, err = store.GetDeployment(ctx, d.TxHash)
	require.NoError(t, err)
	assert.True(t, got.Verified)

	assert.ErrorIs(t, store.MarkDeploymentVerified(ctx, "0xmissing"), ErrNotFound)
}

func TestListDeploymentsByUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, user := range []string{"alice", "alice", "bob"} {
		require.NoError(t, store.RecordDeployment(ctx, &Deployment{
			UserID:       user,
			ChainID:      1,
			ContractName: "C",
			Address:      "0x1",
			TxHash:       string(rune('a' + i)),
		}))
	}

	list, err := store.ListDeployments(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = store.ListDeployments(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPendingVerificationBacklog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v := &PendingVerification{
		TxHash:            "0xdeploy1",
		ContractAddress:   "0x2222222222222222222222222222222222222222",
		ChainID:           137,
		FileName:          "Token.sol",
		ContractName:      "Token",
		CompilerVersion:   "v0.8.20+commit.a1b79430",
		StandardJSONInput: []byte(`{"language":"Solidity"}`),
		ConstructorArgs:   "00000000000000000000000000000000000000000000000000000000000000ff",
	}
	require.NoError(t, store.SavePendingVerification(ctx, v))

	// Saving the same tx hash again is an upsert, not an error
	require.NoError(t, store.SavePendingVerification(ctx, v))

	backlog, err := store.ListPendingVerifications(ctx)
	require.NoError(t, err)
	require.Len(t, backlog, 1)
	assert.Equal(t, v.TxHash, backlog[0].TxHash)
	assert.Equal(t, v.StandardJSONInput, backlog[0].StandardJSONInput)
	assert.Zero(t, backlog[0].Attempts)

	require.NoError(t, store.IncrementVerificationAttempts(ctx, v.TxHash, "explorer timeout"))
	backlog, err = store.ListPendingVerifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, backlog[0].Attempts)
	assert.Equal(t, "explorer timeout", backlog[0].LastError)

	require.NoError(t, store.DeletePendingVerification(ctx, v.TxHash))
	backlog, err = store.ListPendingVerifications(ctx)
	require.NoError(t, err)
	assert.Empty(t, backlog)

	// Deleting an absent key is a no-op
	assert.NoError(t, store.DeletePendingVerification(ctx, "0xgone"))
}
