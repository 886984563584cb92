package main

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragbrain/internal/config"
	"github.com/fyrsmithlabs/ragbrain/internal/gateway"
	"github.com/fyrsmithlabs/ragbrain/internal/logging"
	"github.com/fyrsmithlabs/ragbrain/internal/telemetry"
	"github.com/fyrsmithlabs/ragbrain/internal/vectorstore"
)

// app holds what every command needs: configuration, observability and
// the stores.
type app struct {
	config    *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	stores    *vectorstore.Stores
}

// newApp loads configuration and initializes logging and telemetry.
// Stores are opened separately by openStores.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if cfg.Logging.OTEL {
		tel.SetLoggerProvider(global.GetLoggerProvider())
	}

	logCfg, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return &app{config: cfg, logger: logger, telemetry: tel}, nil
}

func (a *app) openStores(ctx context.Context) error {
	stores, err := vectorstore.Open(ctx, a.config.Storage, a.config.Gateway.Embed.Dimension, a.logger)
	if err != nil {
		return fmt.Errorf("failed to open stores: %w", err)
	}
	a.stores = stores
	return nil
}

func (a *app) gateway() (*gateway.Client, error) {
	return gateway.NewClient(gateway.ConfigFrom(a.config.Gateway),
		gateway.WithLogger(a.logger),
		gateway.WithMeter(a.telemetry.Meter("github.com/fyrsmithlabs/ragbrain/internal/gateway")))
}

// close releases stores and flushes telemetry and logs.
func (a *app) close(ctx context.Context) {
	if a.stores != nil {
		if err := a.stores.Close(); err != nil {
			a.logger.Warn(ctx, "closing stores failed", zap.Error(err))
		}
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}
