// Command showgate launches the unified show-data service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/coalesced/showgate/config"
	"github.com/coalesced/showgate/errs"
	"github.com/coalesced/showgate/internal/dsconfig"
	"github.com/coalesced/showgate/internal/logging"
	"github.com/coalesced/showgate/internal/normalize"
	"github.com/coalesced/showgate/internal/query"
	"github.com/coalesced/showgate/internal/schema"
	httpserver "github.com/coalesced/showgate/internal/server/http"
	"github.com/coalesced/showgate/internal/sources/chain"
	"github.com/coalesced/showgate/internal/sources/rest"
	"github.com/coalesced/showgate/internal/telemetry"
)

const (
	defaultConfigPath        = "config/showgate.yaml"
	shutdownTimeout          = 30 * time.Second
	serverShutdownTimeout    = 5 * time.Second
	lifecycleShutdownTimeout = 10 * time.Second
	telemetryShutdownTimeout = 5 * time.Second
	readHeaderTimeout        = 5 * time.Second
)

func main() {
	cfgPathFlag := parseFlags()
	ctx, cancel := newSignalContext()
	defer cancel()

	configPath := resolveConfigPath(cfgPathFlag)
	settings, loadedFromFile, err := config.Load(configPath)
	if err != nil {
		slog.New(logging.NewHandler("error", nil)).Error("load config", "error", err)
		os.Exit(1)
	}
	settings = config.FromEnv(settings)

	logger := logging.NewLogger(settings.LogLevel, "showgate")
	if !loadedFromFile {
		logger.Info("configuration file not found, using defaults", "path", configPath)
	}
	logger.Info("configuration initialised",
		"env", settings.Environment,
		"backend", settings.BackendEnabled(),
		"poll", settings.PollEnabled())

	telemetryProvider, err := telemetry.NewProvider(ctx, settings.Telemetry, string(settings.Environment))
	if err != nil {
		logger.Error("initialize telemetry", "error", err)
		os.Exit(1)
	}
	metrics := telemetry.NewMetrics(telemetryProvider)

	store := buildStore(settings, logger)

	// Bootstrap runs even without a remote document URL: the persisted local
	// override must be re-applied on every start.
	var lifecycle conc.WaitGroup
	lifecycle.Go(func() {
		store.Bootstrap(ctx)
	})
	if settings.PollEnabled() {
		poller := dsconfig.NewPoller(store, settings.DataConfig.PollInterval, logger, metrics)
		lifecycle.Go(func() {
			poller.Run(ctx)
		})
		logger.Info("data-source config poller started", "interval", settings.DataConfig.PollInterval)
	}

	facade := buildFacade(settings, store, logger, metrics)

	apiServer := &http.Server{
		Addr:              settings.HTTPAddr,
		Handler:           httpserver.NewHandler(facade, store, metrics),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	lifecycle.Go(func() {
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server", "error", err)
		}
	})
	logger.Info("api listening", "addr", apiServer.Addr)

	<-ctx.Done()
	logger.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	shutdownStart := time.Now()
	performGracefulShutdown(shutdownCtx, logger, gracefulShutdownConfig{
		server:     apiServer,
		mainCancel: cancel,
		lifecycle:  &lifecycle,
		telemetry:  telemetryProvider,
	})
	logger.Info("shutdown completed", "elapsed", time.Since(shutdownStart))
}

func parseFlags() string {
	cfgPath := flag.String("config", "", fmt.Sprintf("Path to configuration file (default: %s)", defaultConfigPath))
	flag.Parse()
	return *cfgPath
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return filepath.Clean(defaultConfigPath)
}

func buildStore(settings config.Settings, logger *slog.Logger) *dsconfig.Store {
	opts := []dsconfig.StoreOption{
		dsconfig.WithLogger(logger),
		dsconfig.WithOverrides(dsconfig.NewFileOverrideStore(settings.DataConfig.OverridePath)),
	}
	if settings.DataConfig.URL != "" {
		opts = append(opts, dsconfig.WithRemote(dsconfig.NewHTTPRemote(settings.DataConfig.URL, nil)))
	}
	return dsconfig.NewStore(dsconfig.Seed(logger), opts...)
}

func buildFacade(settings config.Settings, store *dsconfig.Store, logger *slog.Logger, metrics *telemetry.Metrics) *query.Facade {
	contract := chain.NewSource(chain.Options{}, logger)

	var backend query.BackendSource
	if settings.BackendEnabled() {
		client := rest.NewClient(settings.Backend, rest.WithClientLogger(logger))
		backend = rest.NewSource(client, logger)
	} else {
		logger.Warn("backend base URL not configured; backend and hybrid views degrade to contract data")
		backend = unavailableBackend{}
	}
	normalizer := normalize.Normalizer{TimeFallback: func(any) { metrics.TimeFallback() }}
	return query.NewFacade(store, contract, backend, query.WithNormalizer(normalizer))
}

var errBackendDisabled = errs.New(errs.SourceBackend, errs.CodeUnavailable,
	errs.WithMessage("backend source not configured"))

// unavailableBackend satisfies the collaborator contract when no backend URL
// is configured: every observation is settled with an unavailable error, so
// hybrid views fall back to contract data.
type unavailableBackend struct{}

func (unavailableBackend) Shows(context.Context, schema.ListParams) query.State[[]map[string]any] {
	return query.State[[]map[string]any]{Err: errBackendDisabled}
}

func (unavailableBackend) Show(context.Context, string) query.State[map[string]any] {
	return query.State[map[string]any]{Err: errBackendDisabled}
}

type gracefulShutdownConfig struct {
	server     *http.Server
	mainCancel context.CancelFunc
	lifecycle  *conc.WaitGroup
	telemetry  *telemetry.Provider
}

func performGracefulShutdown(ctx context.Context, logger *slog.Logger, cfg gracefulShutdownConfig) {
	shutdownStep := func(name string, timeout time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		logger.Info("shutdown step", "step", name)
		if err := fn(stepCtx); err != nil {
			logger.Error("shutdown step failed", "step", name, "error", err)
		}
	}

	if cfg.server != nil {
		shutdownStep("stopping api server", serverShutdownTimeout, func(stepCtx context.Context) error {
			return cfg.server.Shutdown(stepCtx)
		})
	}

	if cfg.mainCancel != nil {
		cfg.mainCancel()
	}

	if cfg.lifecycle != nil {
		shutdownStep("waiting for lifecycle goroutines", lifecycleShutdownTimeout, func(stepCtx context.Context) error {
			done := make(chan struct{})
			go func() {
				cfg.lifecycle.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-stepCtx.Done():
				return fmt.Errorf("timeout waiting for goroutines: %w", stepCtx.Err())
			}
		})
	}

	if cfg.telemetry != nil {
		shutdownStep("shutting down telemetry", telemetryShutdownTimeout, func(stepCtx context.Context) error {
			return cfg.telemetry.Shutdown(stepCtx)
		})
	}
}
