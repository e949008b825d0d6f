package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "solc", cfg.Compiler.SolcPath)
	assert.Equal(t, "https://unpkg.com", cfg.Resolver.CDNBaseURL)
	assert.Equal(t, 5, cfg.Sweeper.BacklogThreshold)
	assert.Equal(t, 20, cfg.Sweeper.MaxAttempts)
}

func TestLoadPostgresFromDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/solforge")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Storage.Type)
}

func TestLoadInvalidStorageType(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "etcd")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("PORT", "99999")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidatePostgresNeedsURL(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "postgres")
	_, err := Load()
	assert.Error(t, err)
}

func TestStringRedactsSecrets(t *testing.T) {
	t.Setenv("DEPLOYER_PRIVATE_KEY", "deadbeef")
	t.Setenv("SWEEP_TOKEN", "supersecret")
	t.Setenv("ETHERSCAN_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	s := cfg.String()
	assert.NotContains(t, s, "deadbeef")
	assert.NotContains(t, s, "supersecret")
	assert.Contains(t, s, "[REDACTED]")
	assert.Contains(t, s, "explorer_key=(unset)")
}

func TestLoadDeployerKeyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte("abc123\n"), 0600))
	t.Setenv("DEPLOYER_KEY_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "abc123", cfg.Deployer.PrivateKey)
}
