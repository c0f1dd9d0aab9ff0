package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/nimburion/docroute/pkg/config"
	"github.com/nimburion/docroute/pkg/observability/logger"
	"github.com/nimburion/docroute/pkg/observability/metrics"
	"github.com/nimburion/docroute/pkg/observability/tracing"
	"github.com/nimburion/docroute/pkg/repository/partition"
	"github.com/nimburion/docroute/pkg/repository/selector"
	"github.com/nimburion/docroute/pkg/store"
	"github.com/nimburion/docroute/pkg/version"
)

// ClientFactory opens the document store described by the database section.
type ClientFactory func(cfg config.DatabaseConfig, log logger.Logger) (store.Client, error)

// Runtime wires the store, partitioning and routing for one command run.
type Runtime struct {
	Config     *config.Config
	Logger     logger.Logger
	Client     store.Client
	Partitions *partition.Manager
	Registry   *selector.Registry
	Selector   *selector.Selector

	tracer *tracing.TracerProvider
}

// NewRuntime opens the store and builds the selector from cfg. Types
// registered by register are routed with their declared metadata.
func NewRuntime(ctx context.Context, cfg *config.Config, log logger.Logger, open ClientFactory, register func(*selector.Registry)) (*Runtime, error) {
	partitions, err := partition.FromConfig(cfg.Partition)
	if err != nil {
		return nil, err
	}

	tp, err := tracing.NewTracerProvider(ctx, tracing.ConfigFrom(cfg, version.Current(cfg.Service.Name).Version))
	if err != nil {
		return nil, fmt.Errorf("create tracer provider: %w", err)
	}
	if cfg.Observability.MetricsEnabled {
		metrics.RegisterDefault()
	}

	client, err := open(cfg.Database, log)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("open document store: %w", err)
	}

	registry := selector.NewRegistry()
	if register != nil {
		register(registry)
	}

	log.Debug("runtime ready",
		"database_type", cfg.Database.Type,
		"default_database", cfg.Database.DatabaseName,
		"partition_level", partitions.Level().String(),
		"tracing", tp.Enabled(),
	)
	return &Runtime{
		Config:     cfg,
		Logger:     log,
		Client:     client,
		Partitions: partitions,
		Registry:   registry,
		Selector:   selector.New(client, partitions, registry, cfg.Database.DatabaseName),
		tracer:     tp,
	}, nil
}

// Bind binds partition to ctx. A blank partition leaves ctx unbound.
func (r *Runtime) Bind(ctx context.Context, name string) (context.Context, error) {
	if strings.TrimSpace(name) == "" {
		return ctx, nil
	}
	return r.Partitions.Bind(ctx, name)
}

// Close releases the store and flushes pending spans.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if err := r.Client.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close document store: %w", err))
	}
	if err := r.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
	}
	return errors.Join(errs...)
}

// loadConfig reads configuration with secrets and builds the logger.
func loadConfig(cfgPath, envPrefix, serviceName string) (*config.ViperLoader, *config.Config, *config.Config, logger.Logger, error) {
	loader := config.NewViperLoader(cfgPath, envPrefix).WithServiceNameDefault(serviceName)
	cfg, secrets, err := loader.LoadWithSecrets()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := newLogger(cfg.Observability)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logConfigIfDebug(log, cfg, secrets)
	return loader, cfg, secrets, log, nil
}

func newLogger(cfg config.ObservabilityConfig) (logger.Logger, error) {
	level, err := logger.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	format, err := logger.ParseLogFormat(cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	log, err := logger.NewZapLogger(logger.Config{Level: level, Format: format, Output: os.Stderr})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log, nil
}

func logConfigIfDebug(log logger.Logger, cfg, secrets *config.Config) {
	if !strings.EqualFold(cfg.Observability.LogLevel, string(logger.DebugLevel)) {
		return
	}
	log.Debug("effective configuration", "config", cfg.Redacted(secrets))
}
