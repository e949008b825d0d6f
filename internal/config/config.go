package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the pipeline service
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Deployer  DeployerConfig
	Compiler  CompilerConfig
	Resolver  ResolverConfig
	IPFS      IPFSConfig
	Sweeper   SweeperConfig
	Analytics AnalyticsConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
	Proxy     ProxyConfig
	Security  SecurityConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type     string // "sqlite" or "postgres"
	Postgres PostgresConfig
	SQLite   SQLiteConfig
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL string
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string
}

// DeployerConfig holds the signing account and chain settings
type DeployerConfig struct {
	// PrivateKey is the hex-encoded deployer key. Loaded from
	// DEPLOYER_PRIVATE_KEY or from the file at DEPLOYER_KEY_FILE.
	PrivateKey string
	GasLimit   uint64 // fallback when estimation fails; 0 disables the fallback
	RPCTimeout int    // seconds, per RPC call
	ChainsFile string // optional yaml overlay for the chain registry
}

// CompilerConfig holds solc invocation settings
type CompilerConfig struct {
	SolcPath string
	Timeout  int // seconds
}

// ResolverConfig holds import resolution settings
type ResolverConfig struct {
	CDNBaseURL   string
	FetchTimeout int // seconds, per import fetch
}

// IPFSConfig holds artifact upload settings
type IPFSConfig struct {
	APIURL     string
	GatewayURL string
	Timeout    int // seconds
}

// SweeperConfig holds verification sweep settings
type SweeperConfig struct {
	Token            string // bearer token gating the sweep endpoint
	BacklogThreshold int
	MaxAttempts      int
	ExplorerTimeout  int    // seconds, per explorer call
	ExplorerAPIKey   string // applied to every chain's explorer API
}

// AnalyticsConfig holds the fire-and-forget event sink settings
type AnalyticsConfig struct {
	Enabled     bool
	EndpointURL string
	QueueSize   int
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	Enabled        bool
	RequestsPerMin int
	BurstSize      int
	CleanupMinutes int
}

// ProxyConfig holds reverse-proxy trust settings
type ProxyConfig struct {
	TrustProxy     bool
	TrustedProxies []string
}

// SecurityConfig holds request filtering settings
type SecurityConfig struct {
	FilterEnabled bool
	MaxBodySizeMB int
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvInt("PORT", 8080),
			Host:         getEnv("HOST", "0.0.0.0"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 120),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 120),
		},
		Storage: StorageConfig{
			Type: getEnv("STORAGE_TYPE", "sqlite"),
			Postgres: PostgresConfig{
				URL: getEnv("DATABASE_URL", ""),
			},
			SQLite: SQLiteConfig{
				Path: getEnv("SQLITE_PATH", "./data/solforge.db"),
			},
		},
		Deployer: DeployerConfig{
			PrivateKey: getEnv("DEPLOYER_PRIVATE_KEY", ""),
			GasLimit:   uint64(getEnvInt("DEPLOYER_GAS_LIMIT", 0)),
			RPCTimeout: getEnvInt("RPC_TIMEOUT", 30),
			ChainsFile: getEnv("CHAINS_FILE", ""),
		},
		Compiler: CompilerConfig{
			SolcPath: getEnv("SOLC_PATH", "solc"),
			Timeout:  getEnvInt("SOLC_TIMEOUT", 60),
		},
		Resolver: ResolverConfig{
			CDNBaseURL:   getEnv("IMPORT_CDN_URL", "https://unpkg.com"),
			FetchTimeout: getEnvInt("IMPORT_FETCH_TIMEOUT", 15),
		},
		IPFS: IPFSConfig{
			APIURL:     getEnv("IPFS_API_URL", ""),
			GatewayURL: getEnv("IPFS_GATEWAY_URL", "https://ipfs.io"),
			Timeout:    getEnvInt("IPFS_TIMEOUT", 30),
		},
		Sweeper: SweeperConfig{
			Token:            getEnv("SWEEP_TOKEN", ""),
			BacklogThreshold: getEnvInt("SWEEP_BACKLOG_THRESHOLD", 5),
			MaxAttempts:      getEnvInt("SWEEP_MAX_ATTEMPTS", 20),
			ExplorerTimeout:  getEnvInt("EXPLORER_TIMEOUT", 30),
			ExplorerAPIKey:   getEnv("ETHERSCAN_API_KEY", ""),
		},
		Analytics: AnalyticsConfig{
			Enabled:     getEnvBool("ANALYTICS_ENABLED", false),
			EndpointURL: getEnv("ANALYTICS_ENDPOINT", ""),
			QueueSize:   getEnvInt("ANALYTICS_QUEUE_SIZE", 256),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMin: getEnvInt("RATE_LIMIT_RPM", 120),
			BurstSize:      getEnvInt("RATE_LIMIT_BURST", 20),
			CleanupMinutes: getEnvInt("RATE_LIMIT_CLEANUP_MINUTES", 10),
		},
		Proxy: ProxyConfig{
			TrustProxy:     getEnvBool("TRUST_PROXY", false),
			TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
		},
		Security: SecurityConfig{
			FilterEnabled: getEnvBool("SECURITY_FILTER_ENABLED", true),
			MaxBodySizeMB: getEnvInt("MAX_BODY_SIZE_MB", 10),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Port:    getEnvInt("METRICS_PORT", 9090),
		},
	}

	// Key material may come from a file instead of the environment
	if cfg.Deployer.PrivateKey == "" {
		if path := getEnv("DEPLOYER_KEY_FILE", ""); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			cfg.Deployer.PrivateKey = strings.TrimSpace(string(data))
		}
	}

	// If DATABASE_URL is set, default to postgres
	if cfg.Storage.Postgres.URL != "" && cfg.Storage.Type == "sqlite" {
		cfg.Storage.Type = "postgres"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate performs small, direct schema checks.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Storage.Type != "sqlite" && c.Storage.Type != "postgres" {
		return errors.New("STORAGE_TYPE must be sqlite or postgres")
	}
	if c.Storage.Type == "postgres" && c.Storage.Postgres.URL == "" {
		return errors.New("DATABASE_URL is required for postgres storage")
	}
	if c.Sweeper.BacklogThreshold < 0 {
		return errors.New("SWEEP_BACKLOG_THRESHOLD must not be negative")
	}
	if c.Sweeper.MaxAttempts < 0 {
		return errors.New("SWEEP_MAX_ATTEMPTS must not be negative")
	}
	return nil
}

// String renders the config for startup logs with secrets redacted.
func (c *Config) String() string {
	return fmt.Sprintf(
		"port=%d storage=%s deployer_key=%s sweep_token=%s explorer_key=%s analytics=%t metrics=%t",
		c.Server.Port,
		c.Storage.Type,
		redact(c.Deployer.PrivateKey),
		redact(c.Sweeper.Token),
		redact(c.Sweeper.ExplorerAPIKey),
		c.Analytics.Enabled,
		c.Metrics.Enabled,
	)
}

func redact(secret string) string {
	if secret == "" {
		return "(unset)"
	}
	return "[REDACTED]"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
