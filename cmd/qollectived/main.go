// Command qollectived is the reference host process wiring the envelope
// framework's bus client, security audit stack, and REST/WebSocket
// bindings into one running service. Bootstrap order: logger, tracer,
// config, bus, HTTP, graceful shutdown.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	qconfig "github.com/qollective/qollective-go/config"
	"github.com/qollective/qollective-go/jsonrpc"
	"github.com/qollective/qollective-go/metadata"
	"github.com/qollective/qollective-go/natsclient"
	"github.com/qollective/qollective-go/rest"
	"github.com/qollective/qollective-go/security"
	"github.com/qollective/qollective-go/telemetry"
	"github.com/qollective/qollective-go/tenant"
)

func main() {
	root := &cobra.Command{
		Use:   "qollectived",
		Short: "qollective envelope-framework host process",
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newHealthcheckCommand())
	root.AddCommand(newMigrateStreamsCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newHealthcheckCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe a running instance's /health endpoint and exit 0/1",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := http.Get(addr + "/health")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("health check failed: status %d", resp.StatusCode)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "base URL of the running instance")
	return cmd
}

func newMigrateStreamsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-streams",
		Short: "Provision JetStream streams from the bus configuration and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := telemetry.NewLogger(os.Getenv("QOLLECTIVE_ENV"))
			if err != nil {
				return err
			}
			defer logger.Sync()

			busCfg := qconfig.BusConfigFromEnv()
			client, err := natsclient.NewClient(busCfg, logger)
			if err != nil {
				return err
			}
			defer client.Disconnect(context.Background())

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := client.ProvisionStreams(ctx); err != nil {
				return err
			}
			logger.Info("streams provisioned", zap.Int("count", len(busCfg.Streams)))
			return nil
		},
	}
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/WebSocket surface and bus client",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve()
		},
	}
}

func serve() error {
	environment := os.Getenv("QOLLECTIVE_ENV")

	logger, err := telemetry.NewLogger(environment)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := qconfig.LoadDotEnv(".env"); err != nil {
		logger.Warn("failed to load .env", zap.Error(err))
	}

	var tracerShutdown func(context.Context) error
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		tp, err := telemetry.InitTracer(context.Background(), "qollectived", endpoint)
		if err != nil {
			logger.Error("failed to init OTel tracer", zap.Error(err))
		} else {
			tracerShutdown = tp.Shutdown
			logger.Info("OTel tracer initialized", zap.String("endpoint", endpoint))
		}
	}
	if tracerShutdown != nil {
		defer tracerShutdown(context.Background())
	}

	busCfg := qconfig.BusConfigFromEnv()
	busClient, err := natsclient.NewClient(busCfg, logger)
	if err != nil {
		logger.Fatal("bus client initialization failed", zap.Error(err))
	}
	defer busClient.Disconnect(context.Background())

	if busCfg.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := busClient.ProvisionStreams(ctx); err != nil {
			logger.Fatal("stream provisioning failed", zap.Error(err))
		}
		cancel()
	}

	secCfg := qconfig.SecurityConfigFromEnv(envOr("QOLLECTIVE_PRESET", "development"))
	auditLogger := buildAuditSink(secCfg, busClient, logger)

	var verifier *security.SignatureVerifier
	if secCfg.JwtValidation.VerifySignature && secCfg.JwtValidation.JwksURL != "" {
		verifier = security.NewSignatureVerifier(secCfg.JwtValidation.JwksURL, secCfg.JwtValidation.Algorithms, 10*time.Minute)
		defer verifier.Close()
	}

	var maintenance *security.MaintenanceScheduler
	if verifier != nil {
		maintenance = security.NewMaintenanceScheduler(verifier, nil, logger)
		if err := maintenance.Start(); err != nil {
			logger.Warn("maintenance scheduler failed to start", zap.Error(err))
		} else {
			defer maintenance.Stop()
		}
	}

	extractor := tenant.New(qconfig.TenantExtractionConfigFromEnv()).WithLogger(logger.Sugar())
	if redisURL := qconfig.RedisURLFromEnv(); redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisURL})
		extractor = extractor.WithCache(tenant.NewRedisCache(redisClient, 10*time.Minute))
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware("qollectived"))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("http request", zap.String("uri", v.URI), zap.Int("status", v.Status))
			return nil
		},
	}))
	e.Use(middleware.Recover())

	e.GET("/health", func(c echo.Context) error {
		healthy := !busCfg.Enabled() || busClient.IsHealthy()
		if !healthy {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	tools := jsonrpc.NewToolRegistry("qollectived", "0.1.0")
	rpcAdapter := jsonrpc.NewAdapter[jsonrpc.ToolCallPayload, jsonrpc.ToolResultPayload](
		toolRegistryHandler{tools}, extractor, logger,
	)
	rpcAdapter.Method = "tools/call"

	var rpcMiddleware []echo.MiddlewareFunc
	if verifier != nil && secCfg.JwtValidation.RequireVerified {
		gate := rest.NewJwtGate(verifier, auditLogger, logger)
		rpcMiddleware = append(rpcMiddleware, gate.Middleware())
	}

	e.POST("/rpc", func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
		}
		resp := rpcAdapter.Handle(c.Request().Context(), body, c.Request().Header)
		return c.JSONBlob(http.StatusOK, resp)
	}, rpcMiddleware...)

	wsBinding := rest.NewWSBinding[jsonrpc.ToolCallPayload, jsonrpc.ToolResultPayload](
		toolRegistryHandler{tools}, extractor, logger,
	)
	e.GET("/mcp", wsBinding.EchoHandler(), rpcMiddleware...)

	auditHandler := auditEventHandler{auditLogger}
	e.POST("/internal/audit-test", rest.NewBinding[security.Event, ackPayload](auditHandler, extractor, logger).EchoHandler())

	addr := envOr("QOLLECTIVE_LISTEN_ADDR", ":8080")
	go func() {
		logger.Info("qollectived HTTP server listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failure", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown error", zap.Error(err))
	}
	logger.Info("qollectived shut down cleanly")
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func buildAuditSink(cfg security.Config, bus *natsclient.Client, logger *zap.Logger) security.AuditLogger {
	switch cfg.Audit.Backend {
	case security.StorageFile:
		return security.NewFileAuditLogger(cfg.Audit.LogFilePath)
	case security.StorageNats:
		return security.NewNatsAuditSink(bus, security.DefaultAuditSubject)
	case security.StoragePostgres:
		pool, err := security.NewPostgresPool(context.Background(), cfg.Storage.ConnectionString)
		if err != nil {
			logger.Warn("postgres audit sink unavailable, falling back to in-memory", zap.Error(err))
			return security.NewInMemoryAuditLogger()
		}
		return security.NewPostgresAuditSink(pool)
	default:
		logger.Info("using in-memory audit sink", zap.String("backend", string(cfg.Audit.Backend)))
		return security.NewInMemoryAuditLogger()
	}
}

type toolRegistryHandler struct {
	tools *jsonrpc.ToolRegistry
}

func (h toolRegistryHandler) Handle(ctx context.Context, meta *metadata.Context, data jsonrpc.ToolCallPayload) (jsonrpc.ToolResultPayload, error) {
	return h.tools.Handle(ctx, meta, data)
}

type ackPayload struct {
	Acknowledged bool `json:"acknowledged"`
}

type auditEventHandler struct {
	logger security.AuditLogger
}

func (h auditEventHandler) Handle(ctx context.Context, meta *metadata.Context, data security.Event) (ackPayload, error) {
	if err := h.logger.LogEvent(data); err != nil {
		return ackPayload{}, err
	}
	return ackPayload{Acknowledged: true}, nil
}
