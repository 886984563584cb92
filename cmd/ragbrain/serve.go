package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragbrain/internal/clienterrors"
	httpserver "github.com/fyrsmithlabs/ragbrain/internal/http"
	"github.com/fyrsmithlabs/ragbrain/internal/ingest"
	"github.com/fyrsmithlabs/ragbrain/internal/orchestrator"
	"github.com/fyrsmithlabs/ragbrain/internal/packet"
	"github.com/fyrsmithlabs/ragbrain/internal/retrieval"
	"github.com/fyrsmithlabs/ragbrain/pkg/secrets"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply the Postgres schema before serving")
}

// runServe wires the service and blocks until ctx is cancelled:
//  1. configuration, logging and telemetry
//  2. stores (and the schema when --migrate is set)
//  3. gateway client, retrieval engine and pipeline
//  4. ingestion and client error services
//  5. HTTP server with graceful shutdown
func runServe(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	shutdownCtx := context.WithoutCancel(ctx)
	defer a.close(shutdownCtx)

	cfg := a.config
	a.logger.Info(ctx, "starting ragbrain",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("conversations", cfg.Storage.Conversations),
		zap.String("documents", cfg.Storage.Documents))

	if err := a.openStores(ctx); err != nil {
		return err
	}
	if migrateOnStart {
		if err := a.stores.Migrate(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	gw, err := a.gateway()
	if err != nil {
		return err
	}

	systemPrompt, err := cfg.LoadSystemPrompt(packet.DefaultSystemPrompt)
	if err != nil {
		return err
	}
	engine := retrieval.NewEngine(a.stores.Conversations, a.stores.Documents,
		retrieval.WithRecencyWindow(cfg.Retrieval.RecencyWindow),
		retrieval.WithLogger(a.logger))
	pipeline, err := orchestrator.NewPipeline(orchestrator.ConfigFrom(cfg, systemPrompt), gw, engine, a.stores.Conversations,
		orchestrator.WithLogger(a.logger),
		orchestrator.WithMeter(a.telemetry.Meter("github.com/fyrsmithlabs/ragbrain/internal/orchestrator")),
		orchestrator.WithTracer(a.telemetry.Tracer("github.com/fyrsmithlabs/ragbrain/internal/orchestrator")))
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	ingester, err := ingest.NewService(ingest.Config{
		Provider:  cfg.Gateway.Embed.Provider,
		Model:     cfg.Gateway.Embed.Model,
		Dimension: cfg.Gateway.Embed.Dimension,
	}, gw, a.stores.Documents, a.logger)
	if err != nil {
		return err
	}

	var allowlists []string
	if cfg.Secrets.AllowlistPath != "" {
		allowlists = append(allowlists, cfg.Secrets.AllowlistPath)
	}
	redactor, err := secrets.NewRedactor(allowlists...)
	if err != nil {
		return fmt.Errorf("failed to create secret redactor: %w", err)
	}
	reports := clienterrors.NewService(a.stores.ClientErrors, a.logger, clienterrors.WithRedactor(redactor))

	srv, err := httpserver.NewServer(cfg, httpserver.Deps{
		Brain:        pipeline,
		Ingester:     ingester,
		ClientErrors: reports,
		Store:        a.stores,
		Gateway:      httpserver.CheckerFunc(gw.Health),
	}, a.logger, httpserver.WithMeter(a.telemetry.Meter("github.com/fyrsmithlabs/ragbrain/internal/http")))
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(shutdownCtx, cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.logger.Info(shutdownCtx, "server shutdown complete")
	return <-errCh
}
