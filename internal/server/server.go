// Package server provides the HTTP server setup and wiring.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/solfoundry/solforge/internal/analytics"
	"github.com/solfoundry/solforge/internal/artifacts"
	"github.com/solfoundry/solforge/internal/auth"
	"github.com/solfoundry/solforge/internal/chains"
	"github.com/solfoundry/solforge/internal/config"
	"github.com/solfoundry/solforge/internal/deployer"
	deploymentsDomain "github.com/solfoundry/solforge/internal/deployments/domain"
	deploymentsTransport "github.com/solfoundry/solforge/internal/deployments/transport"
	"github.com/solfoundry/solforge/internal/middleware/logging"
	"github.com/solfoundry/solforge/internal/middleware/ratelimit"
	"github.com/solfoundry/solforge/internal/middleware/realip"
	"github.com/solfoundry/solforge/internal/middleware/security"
	"github.com/solfoundry/solforge/internal/observability/metrics"
	"github.com/solfoundry/solforge/internal/solidity"
	"github.com/solfoundry/solforge/internal/storage"
	verificationDomain "github.com/solfoundry/solforge/internal/verification/domain"
	verificationTransport "github.com/solfoundry/solforge/internal/verification/transport"
)

// Server is the HTTP server
type Server struct {
	cfg    *config.Config
	store  storage.Store
	logger *slog.Logger
	router *chi.Mux

	tracker *analytics.Tracker

	deploymentsSvc deploymentsDomain.Service
	sweeper        *verificationDomain.Sweeper
}

// New creates a new server and wires the deployment pipeline.
func New(cfg *config.Config, store storage.Store, logger *slog.Logger) (*Server, error) {
	registry, err := BuildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	resolver := solidity.NewResolver(
		cfg.Resolver.CDNBaseURL,
		time.Duration(cfg.Resolver.FetchTimeout)*time.Second,
		logger,
	)
	compiler := solidity.NewCompiler(&solidity.SolcBinary{
		Path:    cfg.Compiler.SolcPath,
		Timeout: time.Duration(cfg.Compiler.Timeout) * time.Second,
	})
	artifactStore := artifacts.New(
		cfg.IPFS.APIURL,
		cfg.IPFS.GatewayURL,
		time.Duration(cfg.IPFS.Timeout)*time.Second,
		logger,
	)

	var contractDeployer deploymentsDomain.ContractDeployer
	d, err := deployer.New(
		cfg.Deployer.PrivateKey,
		time.Duration(cfg.Deployer.RPCTimeout)*time.Second,
		logger,
		deployer.WithGasLimitFallback(cfg.Deployer.GasLimit),
	)
	switch {
	case err == nil:
		contractDeployer = d
		logger.Info("deployer wallet loaded", "address", d.Address().Hex())
	case errors.Is(err, deployer.ErrWalletUnavailable):
		// The server still serves reads and sweeps without a wallet.
		contractDeployer = unavailableDeployer{}
		logger.Warn("deployer wallet not configured, deployments disabled")
	default:
		return nil, err
	}

	var trackerEndpoint string
	if cfg.Analytics.Enabled {
		trackerEndpoint = cfg.Analytics.EndpointURL
	}
	tracker := analytics.New(trackerEndpoint, cfg.Analytics.QueueSize, 10*time.Second, logger)

	manager := verificationDomain.NewManager(
		time.Duration(cfg.Sweeper.ExplorerTimeout)*time.Second,
		logger,
	)

	s := &Server{
		cfg:     cfg,
		store:   store,
		logger:  logger,
		router:  chi.NewRouter(),
		tracker: tracker,
		deploymentsSvc: deploymentsDomain.NewService(
			registry, resolver, compiler, contractDeployer, artifactStore, store, tracker, logger,
		),
		sweeper: verificationDomain.NewSweeper(
			store, manager, registry,
			cfg.Sweeper.BacklogThreshold, cfg.Sweeper.MaxAttempts, logger,
		),
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

// BuildRegistry constructs the chain registry from config: built-in
// descriptors, the optional yaml overlay, and explorer API keys.
func BuildRegistry(cfg *config.Config) (*chains.Registry, error) {
	registry := chains.NewRegistry()
	if cfg.Deployer.ChainsFile != "" {
		if err := registry.LoadOverlay(cfg.Deployer.ChainsFile); err != nil {
			return nil, err
		}
	}
	if key := cfg.Sweeper.ExplorerAPIKey; key != "" {
		for _, d := range registry.List() {
			registry.SetExplorerAPIKey(d.ChainID, key)
		}
	}
	return registry, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// MetricsHandler returns the metrics HTTP handler for separate metrics server
func (s *Server) MetricsHandler() http.Handler {
	return metrics.Handler()
}

// Close releases background resources. It drains the analytics queue.
func (s *Server) Close() {
	s.tracker.Close()
}

func (s *Server) setupMiddleware() {
	// Order matters! Security middleware runs first to block malicious requests early.

	// 1. Real IP extraction (must be first to set client IP for other middleware)
	s.router.Use(realip.Middleware(realip.Config{
		TrustProxy:     s.cfg.Proxy.TrustProxy,
		TrustedProxies: s.cfg.Proxy.TrustedProxies,
	}))

	// 2. Security filter (blocks malicious patterns, bypasses health checks)
	s.router.Use(security.Filter(s.cfg.Security.FilterEnabled))

	// 3. Body size limit
	s.router.Use(security.MaxBodySize(s.cfg.Security.MaxBodySizeMB))

	// 4. Rate limiting (bypasses health checks)
	s.router.Use(ratelimit.Middleware(ratelimit.Config{
		Enabled:        s.cfg.RateLimit.Enabled,
		RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
		BurstSize:      s.cfg.RateLimit.BurstSize,
		CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
	}))

	// 5. Standard middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// 6. CORS
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-API-Key, X-User-ID")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) setupRoutes() {
	// Health checks
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleHealth)

	deploymentsHandler := deploymentsTransport.NewHandler(s.deploymentsSvc)
	verificationHandler := verificationTransport.NewHandler(s.sweeper)

	// API v1 routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/deployments", deploymentsHandler.RegisterRoutes)

		// Sweeps are operator-only
		r.Route("/verifications", func(r chi.Router) {
			r.Use(auth.RequireToken(s.cfg.Sweeper.Token, writeError))
			verificationHandler.RegisterRoutes(r)
		})
	})
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// unavailableDeployer stands in when no signing key is configured.
type unavailableDeployer struct{}

func (unavailableDeployer) Deploy(ctx context.Context, chain chains.Descriptor, bytecode string, encodedArgs []byte) (*deployer.Result, error) {
	return nil, deployer.ErrWalletUnavailable
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
