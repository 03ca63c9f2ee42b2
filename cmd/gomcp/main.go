// Command gomcp runs the protocol server over SSE or stdio, with the users
// REST API mounted alongside the SSE endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/lmittmann/tint"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/jpowersdev/gomcp"
	"github.com/jpowersdev/gomcp/servers/demo"
	"github.com/jpowersdev/gomcp/users"
)

const (
	serverName    = "gomcp"
	serverVersion = "1.0.0"
)

type config struct {
	Host      string `koanf:"host"`
	Port      int    `koanf:"port"`
	Transport string `koanf:"transport"`
	LogLevel  string `koanf:"log.level"`
	DBPath    string `koanf:"db.path"`
}

// loadConfig reads configuration from MCP_-prefixed environment variables,
// e.g. MCP_PORT=8080 or MCP_LOG_LEVEL=debug.
func loadConfig() (config, error) {
	cfg := config{
		Port:      3000,
		Transport: "sse",
		LogLevel:  "info",
		DBPath:    "users.db",
	}

	k := koanf.New(".")
	if err := k.Load(env.Provider("MCP_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "MCP_")), "_", ".")
	}), nil); err != nil {
		return config{}, fmt.Errorf("failed to load environment: %w", err)
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	// Logs go to stderr so stdout stays clean for the stdio transport.
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.Kitchen,
	}))
}

// setupTracing installs an OTLP trace exporter when the standard
// OTEL_EXPORTER_OTLP_ENDPOINT variable is set. Without it spans stay
// no-ops.
func setupTracing(ctx context.Context) (func(context.Context) error, error) {
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serverName),
		semconv.ServiceVersion(serverVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing(ctx)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("failed to shut down tracing", "err", err)
		}
	}()

	sessions := mcp.NewSessionStore()

	demoServer := demo.NewServer(demo.WithLogger(logger))

	adapter := mcp.NewProtocolAdapter(
		mcp.Info{Name: serverName, Version: serverVersion},
		sessions,
		mcp.WithToolServer(demoServer),
		mcp.WithResourceServer(demoServer),
		mcp.WithPromptServer(demoServer),
		mcp.WithAdapterLogger(logger),
	)

	broker := mcp.NewBroker(sessions, adapter, "/messages", mcp.WithBrokerLogger(logger))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := broker.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shut down broker", "err", err)
		}
	}()

	switch cfg.Transport {
	case "stdio":
		return runStdIO(ctx, sessions, broker, logger)
	case "sse":
		return runSSE(ctx, cfg, sessions, broker, logger)
	default:
		return fmt.Errorf("unknown transport: %s", cfg.Transport)
	}
}

func runStdIO(ctx context.Context, sessions *mcp.SessionStore, broker *mcp.Broker, logger *slog.Logger) error {
	stdIO := mcp.NewStdIO(os.Stdin, os.Stdout, sessions, broker, mcp.WithStdIOLogger(logger))

	logger.Info("serving on stdio")
	if err := stdIO.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runSSE(ctx context.Context, cfg config, sessions *mcp.SessionStore, broker *mcp.Broker, logger *slog.Logger) error {
	sseServer := mcp.NewSSEServer(sessions, broker, mcp.WithSSEServerLogger(logger))

	repo, err := users.NewRepo(cfg.DBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Method(http.MethodGet, "/sse", sseServer.HandleSSE())
	r.Method(http.MethodPost, "/messages", sseServer.HandleMessage())
	r.Mount("/users", users.NewHandler(repo, logger).Routes())

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("serving on http", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
