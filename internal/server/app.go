// Package server assembles the resolver service from configuration and owns
// its lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/paste-resolver/internal/api"
	"github.com/JakeFAU/paste-resolver/internal/config"
	"github.com/JakeFAU/paste-resolver/internal/id/uuid"
	"github.com/JakeFAU/paste-resolver/internal/resolver"
	"github.com/JakeFAU/paste-resolver/internal/telemetry"
)

const serviceName = "paste-resolver"

// App contains the application's dependencies.
type App struct {
	cfg            config.Config
	logger         *zap.Logger
	service        *resolver.Service
	apiServer      *api.Server
	closers        []closer
	tracerShutdown func(context.Context) error
}

type closer struct {
	name  string
	close func() error
}

// NewApp builds every backend named in cfg. On error, whatever was already
// opened is released before returning.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	tp, err := telemetry.InitTracerProvider(ctx, serviceName)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.tracerShutdown = tp.Shutdown

	idGen := uuid.New()
	svc, err := a.buildService(ctx, idGen)
	if err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	a.service = svc
	a.apiServer = api.NewServer(svc, idGen, cfg, logger.Named("api"))

	logger.Info("application built",
		zap.Int("port", cfg.Server.Port),
		zap.String("artifacts", cfg.Artifacts.Backend),
		zap.Bool("alerts_pubsub", cfg.Alerts.ProjectID != ""),
		zap.Bool("journal", cfg.Journal.DSN != ""),
		zap.Int("registry_rows", len(cfg.Registry.Rows)),
	)
	return a, nil
}

// Service exposes the resolver for one-shot use outside HTTP.
func (a *App) Service() *resolver.Service {
	return a.service
}

// Resolve runs one resolution without going through HTTP.
func (a *App) Resolve(ctx context.Context, rawURL string) resolver.Outcome {
	return a.service.Resolve(ctx, rawURL)
}

// Handler returns the HTTP handler of the API server.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves HTTP until ctx is canceled, then drains and shuts down.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")
	a.apiServer.Drain()

	timeout := time.Duration(a.cfg.Server.ShutdownTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	if err := a.Close(shutdownCtx); err != nil {
		return err
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close releases backends in reverse order of creation. It is safe to call
// more than once.
func (a *App) Close(ctx context.Context) error {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Warn("close failed", zap.String("component", c.name), zap.Error(err))
		}
	}
	a.closers = nil
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
		a.tracerShutdown = nil
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) onClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, close: fn})
}
