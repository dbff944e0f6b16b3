package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/branchline/agentmesh/actions/crm"
	"github.com/branchline/agentmesh/actions/slack"
	"github.com/branchline/agentmesh/actions/twitter"
	"github.com/branchline/agentmesh/agent/bizdev"
	"github.com/branchline/agentmesh/agent/coding"
	"github.com/branchline/agentmesh/agent/marketing"
	"github.com/branchline/agentmesh/agent/security"
	"github.com/branchline/agentmesh/config"
	"github.com/branchline/agentmesh/gateway"
	"github.com/branchline/agentmesh/internal/metrics"
	"github.com/branchline/agentmesh/internal/server"
	"github.com/branchline/agentmesh/internal/telemetry"
	"github.com/branchline/agentmesh/licensing"
	"github.com/branchline/agentmesh/llm"
	"github.com/branchline/agentmesh/llm/local"
	"github.com/branchline/agentmesh/llm/openai"
)

// Server wires the platform together: collaborator clients, the four agent
// services, licensing, the gateway, and the two HTTP listeners.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	collector *metrics.Collector
	telemetry *telemetry.Providers

	usage    *licensing.UsageStore
	licenses *licensing.LicenseStore

	rateLimiterCancel context.CancelFunc
}

// NewServer creates an unstarted server.
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) *Server {
	return &Server{
		cfg:       cfg,
		logger:    logger,
		telemetry: otelProviders,
	}
}

// Start builds the full service graph and begins serving. It returns once
// both listeners are bound.
func (s *Server) Start() error {
	s.collector = metrics.NewCollector("agentmesh", prometheus.DefaultRegisterer, s.logger)

	handler, err := s.buildHandler()
	if err != nil {
		return fmt.Errorf("failed to build handler: %w", err)
	}

	if err := s.startHTTPServer(handler); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("all servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return nil
}

// buildHandler assembles the gateway, the licensing API, and the middleware
// chain into one handler.
func (s *Server) buildHandler() (http.Handler, error) {
	// Licensing: Redis-backed usage counters, SQLite license records.
	s.usage = licensing.NewUsageStore(s.cfg.Licensing.Redis, s.logger)
	licenses, err := licensing.OpenLicenseStore(s.cfg.Licensing.DatabasePath, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open license store: %w", err)
	}
	s.licenses = licenses
	licSvc := licensing.NewService(s.usage, licenses, s.logger)

	provider := s.newProvider()
	crmClient := crm.New(s.cfg.CRM, s.logger)
	slackClient := slack.New(s.cfg.Slack, s.logger)
	twitterClient := twitter.New(s.cfg.Twitter, s.logger)

	tracer := otel.Tracer("agentmesh")

	bizdevAgent, err := bizdev.New(provider, crmClient, slackClient,
		bizdev.WithRecorder(licSvc),
		bizdev.WithObserver(s.collector),
		bizdev.WithTracer(tracer),
		bizdev.WithLogger(s.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build bizdev agent: %w", err)
	}

	marketingAgent, err := marketing.New(provider, twitterClient, slackClient,
		marketing.WithRecorder(licSvc),
		marketing.WithObserver(s.collector),
		marketing.WithTracer(tracer),
		marketing.WithLogger(s.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build marketing agent: %w", err)
	}

	securityAgent, err := security.New(provider, slackClient,
		security.WithRecorder(licSvc),
		security.WithObserver(s.collector),
		security.WithTracer(tracer),
		security.WithLogger(s.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build security agent: %w", err)
	}

	codingAgent, err := coding.New(provider, coding.NewDemoHost(s.logger),
		coding.WithRecorder(licSvc),
		coding.WithObserver(s.collector),
		coding.WithTracer(tracer),
		coding.WithLogger(s.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build coding agent: %w", err)
	}

	gw := gateway.New(gateway.Agents{
		BizDev:    bizdevAgent,
		Marketing: marketingAgent,
		Security:  securityAgent,
		Coding:    codingAgent,
	},
		gateway.WithVersion(Version),
		gateway.WithTenantProvisioner(licSvc),
		gateway.WithLogger(s.logger),
		gateway.WithHealthCheck("llm", providerCheck(provider)),
		gateway.WithHealthCheck("redis", s.usage.Ping),
	)

	mux := http.NewServeMux()
	gw.Register(mux)
	licensing.NewHandler(licSvc, s.cfg.Licensing.ServiceToken, s.logger).Register(mux)

	rateLimiterCtx, cancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = cancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		OTelTracing(),
		MetricsMiddleware(s.collector),
		MaxBody(s.cfg.Gateway.MaxBodyBytes),
		RequestTimeout(s.cfg.Gateway.RequestTimeout),
		TenantRateLimiter(rateLimiterCtx, s.cfg.Gateway.RateLimit, s.cfg.Gateway.RateBurst, s.logger),
	}
	if s.cfg.Auth.Enabled {
		skipAuthPaths := []string{"/", "/health", "/version"}
		middlewares = append(middlewares, JWTAuth(s.cfg.Auth, skipAuthPaths, s.logger))
	}

	return Chain(mux, middlewares...), nil
}

// newProvider selects the LLM backend from config. Unknown providers fall
// back to openai, which serves canned demo responses without an API key.
func (s *Server) newProvider() llm.Provider {
	switch s.cfg.LLM.Provider {
	case "local":
		return local.New(s.cfg.LLM, s.logger)
	default:
		return openai.New(s.cfg.LLM, s.logger)
	}
}

func providerCheck(provider llm.Provider) gateway.HealthCheck {
	return func(ctx context.Context) error {
		status, err := provider.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if !status.Healthy {
			return fmt.Errorf("provider %s reported unhealthy", provider.Name())
		}
		return nil
	}
}

func (s *Server) startHTTPServer(handler http.Handler) error {
	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// WaitForShutdown blocks until a shutdown signal, then cleans up.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops both listeners and releases collaborator resources.
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")

	ctx := context.Background()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}
	if s.usage != nil {
		if err := s.usage.Close(); err != nil {
			s.logger.Error("usage store close error", zap.Error(err))
		}
	}
	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			s.logger.Error("telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("graceful shutdown completed")
}
