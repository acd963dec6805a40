// Package server provides the service lifecycle runner: signal handling,
// config loading, observability init, health checks and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/bagly/claim-intake/internal/config"
	"github.com/bagly/claim-intake/internal/domain"
	"github.com/bagly/claim-intake/internal/observability"
)

// SetupDeps is what Run hands to the service composition root.
type SetupDeps struct {
	Config *config.Config
	Logger *slog.Logger
	Router chi.Router
}

// SetupFunc builds the service and registers its routes. The returned
// cleanup runs after the HTTP server has drained; it may be nil.
type SetupFunc func(ctx context.Context, deps SetupDeps) (cleanup func(context.Context) error, err error)

// Params configures a service's lifecycle runner.
type Params struct {
	// Name identifies the service in logs, traces and /healthz.
	Name string

	// Version is reported to OTEL as service.version.
	Version string

	// Setup runs before the built-in /healthz and /metrics routes are
	// registered, so it may add router middleware.
	Setup SetupFunc
}

// Run executes the full service lifecycle. If ln is non-nil it is used
// instead of listening on the configured port (enables port-0 testing).
func Run(ctx context.Context, p Params, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(observability.LogConfig{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: p.Name,
		Environment: cfg.Environment,
	})

	// --- Startup order: tracer -> metrics -> service -> HTTP server ---

	info := observability.ServiceInfo{
		Name:         p.Name,
		Version:      p.Version,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTEL.Endpoint,
	}
	tracerProvider, err := observability.InitTracer(ctx, info)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	metricsProvider, err := observability.InitMetrics(ctx, info)
	if err != nil {
		return fmt.Errorf("initialize metrics: %w", err)
	}

	httpMetrics := observability.NewHTTPMetrics()
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(httpMetrics.Instrument)

	var cleanup func(context.Context) error
	if p.Setup != nil {
		cleanup, err = p.Setup(ctx, SetupDeps{Config: cfg, Logger: logger, Router: router})
		if err != nil {
			flushCtx, cancel := context.WithTimeout(context.Background(), domain.ShutdownOTELTimeout)
			defer cancel()
			_ = metricsProvider.Shutdown(flushCtx)
			_ = tracerProvider.Shutdown(flushCtx)
			return fmt.Errorf("setup %s: %w", p.Name, err)
		}
	}

	var shuttingDown atomic.Bool
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if shuttingDown.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"shutting_down","service":%q}`, p.Name)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":%q}`, p.Name)
	})
	router.Method(http.MethodGet, "/metrics", httpMetrics.Handler())

	if ln == nil {
		ln, err = (&net.ListenConfig{}).Listen(ctx, "tcp", fmt.Sprintf(":%d", cfg.HTTP.Port))
		if err != nil {
			flushCtx, cancel := context.WithTimeout(context.Background(), domain.ShutdownOTELTimeout)
			defer cancel()
			if cleanup != nil {
				if cleanupErr := cleanup(flushCtx); cleanupErr != nil {
					logger.Error("service cleanup error", slog.String("error", cleanupErr.Error()))
				}
			}
			_ = metricsProvider.Shutdown(flushCtx)
			_ = tracerProvider.Shutdown(flushCtx)
			return fmt.Errorf("listen: %w", err)
		}
	}

	server := &http.Server{
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server",
			slog.String("addr", ln.Addr().String()),
			slog.String("environment", cfg.Environment),
		)
		if serveErr := server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return serveErr
		}
		return nil
	})

	// Shutdown runs in reverse startup order: HTTP -> service -> metrics -> tracer.
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("received shutdown signal, starting graceful shutdown")

		// Health checks report 503 so the load balancer stops routing here.
		shuttingDown.Store(true)
		time.Sleep(domain.ShutdownDrainDelay)

		httpCtx, httpCancel := context.WithTimeout(context.Background(), domain.ShutdownHTTPTimeout)
		defer httpCancel()
		if shutdownErr := server.Shutdown(httpCtx); shutdownErr != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", shutdownErr.Error()))
		}

		if cleanup != nil {
			if cleanupErr := cleanup(httpCtx); cleanupErr != nil {
				logger.Error("service cleanup error", slog.String("error", cleanupErr.Error()))
			}
		}

		otelCtx, otelCancel := context.WithTimeout(context.Background(), domain.ShutdownOTELTimeout)
		defer otelCancel()
		if shutdownErr := metricsProvider.Shutdown(otelCtx); shutdownErr != nil {
			logger.Error("failed to shutdown metrics", slog.String("error", shutdownErr.Error()))
		}
		if shutdownErr := tracerProvider.Shutdown(otelCtx); shutdownErr != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", shutdownErr.Error()))
		}

		logger.Info("shutdown complete")
		return nil
	})

	return g.Wait()
}
