package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/solfoundry/solforge/internal/auth"
	"github.com/solfoundry/solforge/internal/config"
	"github.com/solfoundry/solforge/internal/observability/metrics"
	"github.com/solfoundry/solforge/internal/server"
	"github.com/solfoundry/solforge/internal/storage"
	verificationDomain "github.com/solfoundry/solforge/internal/verification/domain"
)

var version = "dev"

func main() {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "solforge-server",
		Short:   "Solforge server - Solidity build, deploy, and verify pipeline",
		Version: version,
	}

	// Default behavior (no subcommand) is to serve
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe()
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSweepCmd())
	rootCmd.AddCommand(newKeyCmd())
	rootCmd.AddCommand(newTokenCmd())

	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one verification sweep over the pending backlog and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep()
		},
	}
}

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the deployer signing key",
	}
	cmd.AddCommand(newKeyImportCmd())
	return cmd
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the sweep endpoint bearer token",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Generate a bearer token for the sweep endpoint",
		Long: `Generate a random bearer token for the verification sweep endpoint.

EXAMPLES:
  export SWEEP_TOKEN=$(solforge-server token generate)
  solforge-server serve
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.GenerateToken()
			if err != nil {
				return fmt.Errorf("generating token: %w", err)
			}
			fmt.Println(token)
			return nil
		},
	})
	return cmd
}

func newKeyImportCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import the deployer private key from an interactive prompt",
		Long: `Import the deployer private key without it touching shell history.

The key is read from an interactive prompt and written to a file with
mode 0600. Point DEPLOYER_KEY_FILE at that file.

EXAMPLES:
  solforge-server key import
  solforge-server key import --output /secure/path/deployer.key
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyImport(outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "./deployer.key", "file to write the key to")
	return cmd
}

func runKeyImport(outputFile string) error {
	fmt.Fprint(os.Stderr, "Private key (hex): ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("reading key: %w", err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("empty key")
	}

	dir := filepath.Dir(outputFile)
	if dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
	}
	if err := os.WriteFile(outputFile, append(raw, '\n'), 0600); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}

	fmt.Printf("Key written to %s (mode 0600)\n", outputFile)
	fmt.Println()
	fmt.Println("  Usage:")
	fmt.Printf("    export DEPLOYER_KEY_FILE=%s\n", outputFile)
	fmt.Println("    solforge-server serve")
	return nil
}

func runSweep() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg)

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(context.Background()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	registry, err := server.BuildRegistry(cfg)
	if err != nil {
		return fmt.Errorf("building chain registry: %w", err)
	}

	manager := verificationDomain.NewManager(
		time.Duration(cfg.Sweeper.ExplorerTimeout)*time.Second, logger)
	sweeper := verificationDomain.NewSweeper(
		store, manager, registry,
		cfg.Sweeper.BacklogThreshold, cfg.Sweeper.MaxAttempts, logger)

	summary, err := sweeper.Sweep(context.Background())
	if err != nil {
		return fmt.Errorf("sweeping: %w", err)
	}

	fmt.Printf("Sweep finished: %d completed, %d errors, %d still pending\n",
		summary.Completed, summary.Errors, summary.VerificationCount)
	if summary.Overflow {
		fmt.Println("Warning: backlog exceeds the configured threshold")
	}
	return nil
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg)
	logger.Info("starting solforge-server", "version", version, "config", cfg.String())

	metrics.Init(cfg.Metrics.Enabled, "solforge")

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(context.Background()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	srv, err := server.New(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port),
			Handler: srv.MetricsHandler(),
		}
		go func() {
			logger.Info("metrics listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	if metricsServer != nil {
		_ = metricsServer.Shutdown(ctx)
	}

	logger.Info("server stopped")
	return nil
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
