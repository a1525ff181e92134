package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"slidesmith/internal/daemon"
	"slidesmith/internal/deckstore"
	"slidesmith/internal/llm"
	"slidesmith/internal/logging"
	"slidesmith/internal/telemetry"
	"slidesmith/internal/workflow"
)

const storeCheckInterval = time.Minute

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the slidesmith daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx)
		},
	}
}

func runServe(parent context.Context, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if bind := strings.TrimSpace(*ctx.bindFlag); bind != "" {
		cfg.Server.Bind = bind
	}

	hub := logging.NewHub(4096)
	base, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger := logging.TeeLogger(base, hub.Handler(slog.LevelDebug))

	tracing, err := telemetry.Setup(signalCtx, cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", logging.Error(err))
		}
	}()

	registry, err := llm.NewRegistry(cfg)
	if err != nil {
		return fmt.Errorf("configure providers: %w", err)
	}
	store, err := deckstore.Open(cfg, logger)
	if err != nil {
		logger.Error("open deck store", logging.Error(err))
		return err
	}
	manager := workflow.New(cfg, registry, store, logger)

	d, err := daemon.New(cfg, store, manager, hub, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(signalCtx)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("slidesmith daemon shutting down")
		d.Stop()
		return nil
	})
	g.Go(func() error {
		watchStore(gctx, store, logger)
		return nil
	})
	return g.Wait()
}

// watchStore pings the database periodically so a vanished data directory
// shows up in the log before the next save fails.
func watchStore(ctx context.Context, store *deckstore.Store, logger *slog.Logger) {
	ticker := time.NewTicker(storeCheckInterval)
	defer ticker.Stop()
	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		err := store.Ping(ctx)
		switch {
		case err != nil && healthy && ctx.Err() == nil:
			logging.WarnWithContext(logger, "deck store unreachable",
				"store_unreachable", "saving and loading decks will fail",
				logging.String("path", store.Path()),
				logging.Error(err),
			)
			healthy = false
		case err == nil && !healthy:
			logger.Info("deck store reachable again", logging.String("path", store.Path()))
			healthy = true
		}
	}
}
