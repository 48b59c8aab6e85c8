// Package app wires configuration, storage, collaborators and transport into
// a running custody service.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"custodycore/internal/adapters/httpapi"
	"custodycore/internal/blob"
	"custodycore/internal/cache"
	"custodycore/internal/config"
	"custodycore/internal/core"
	"custodycore/internal/documents"
	"custodycore/pkg/domain"
)

const traceRetention = 1000

// App holds the wired service and the resources it must release.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Service    *core.Service
	Dispatcher *core.Dispatcher

	metrics http.Handler
	closers []io.Closer
}

// New opens every collaborator named by cfg. Logs go to logOut.
func New(ctx context.Context, cfg *config.Config, logOut io.Writer) (*App, error) {
	logger := NewLogger(logOut, cfg.LogLevel, cfg.LogFormat)
	a := &App{Config: cfg, Logger: logger}

	store, storeCloser, err := core.OpenPersistentStore(ctx, cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.closers = append(a.closers, storeCloser)

	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	configCache, err := a.openCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []core.ServiceOption{
		core.WithLogger(logger),
		core.WithBlobStore(blobs),
		core.WithCache(configCache, cfg.Cache.TTL),
	}
	if cfg.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		recorder, err := core.NewPrometheusMetricsRecorder(reg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		opts = append(opts, core.WithMetricsRecorder(recorder))
		a.metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	if cfg.TraceFile != "" {
		f, err := os.OpenFile(cfg.TraceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		a.closers = append(a.closers, f)
		opts = append(opts, core.WithTracer(core.NewJSONTracer(f, traceRetention)))
	}
	a.Service = core.NewService(store, opts...)

	issuer, issuerCloser, err := documents.Open(ctx, cfg.Documents, blobs, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open document issuer: %w", err)
	}
	a.closers = append(a.closers, issuerCloser)
	a.Dispatcher = a.Service.NewDispatcher(issuer, cfg.Dispatcher)
	return a, nil
}

func (a *App) openCache(ctx context.Context) (cache.Cache, error) {
	switch a.Config.Cache.Driver {
	case config.CacheRedis:
		r := cache.NewRedis(a.Config.Cache.Redis)
		if err := r.Ping(ctx); err != nil {
			a.Logger.Warn("redis unavailable, lists will be rebuilt per request", "error", err)
		}
		a.closers = append(a.closers, r)
		return r, nil
	case config.CacheMemory, "":
		return cache.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown cache driver %q", a.Config.Cache.Driver)
}

// Router builds the HTTP handler.
func (a *App) Router() *gin.Engine {
	return httpapi.NewRouter(a.Service, httpapi.Options{
		Logger:         a.Logger,
		RateLimitRPS:   a.Config.RateLimit.RPS,
		RateLimitBurst: a.Config.RateLimit.Burst,
		Metrics:        a.metrics,
		Health: func(ctx context.Context) error {
			return a.Service.Store().View(ctx, func(domain.TransactionView) error { return nil })
		},
	})
}

// Serve runs the HTTP server and the outbox dispatcher until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.HTTPAddr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		if err := a.Dispatcher.Run(ctx); err != nil {
			a.Logger.Error("outbox dispatcher stopped", "error", err)
		}
	}()

	served := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", "addr", srv.Addr)
		served <- srv.ListenAndServe()
	}()

	var err error
	select {
	case err = <-served:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		err = srv.Shutdown(shutdownCtx)
	}
	cancel()
	<-dispatched
	return err
}

// Close releases storage handles and broker connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
