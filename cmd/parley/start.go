// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/parley-dev/parley/internal/config"
	"github.com/parley-dev/parley/internal/interview"
	"github.com/parley-dev/parley/internal/planner"
	"github.com/parley-dev/parley/internal/planner/anthropic"
	"github.com/parley-dev/parley/internal/planner/ollama"
	"github.com/parley-dev/parley/internal/secrets"
	"github.com/parley-dev/parley/internal/server"
	"github.com/parley-dev/parley/internal/store"
	"github.com/parley-dev/parley/internal/store/sqlite"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the parley gateway",
		Long:  "Load configuration, probe planner providers, open the session store, and start the HTTP server.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	v := viper.GetViper()

	// Resolve keyring:// URIs before unmarshalling so provider
	// construction sees plain credentials.
	secrets.ResolveViperSecrets(v, secrets.NewKeyringStore())

	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg.Logging.Level, v.GetBool("verbose"))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Provider selection: remote primary first, local secondary. A
	// missing API key just skips the primary; the probe decides the rest.
	var primary planner.Provider
	if cfg.Providers.Anthropic.APIKey != "" {
		primary, err = anthropic.New(anthropic.Config{
			APIKey:  cfg.Providers.Anthropic.APIKey,
			Model:   cfg.Providers.Anthropic.Model,
			BaseURL: cfg.Providers.Anthropic.Endpoint,
		})
		if err != nil {
			return fmt.Errorf("configuring anthropic provider: %w", err)
		}
	} else {
		logger.Warn("anthropic api_key not configured, skipping remote provider")
	}
	secondary := ollama.New(ollama.Config{
		Endpoint: cfg.Providers.Ollama.Endpoint,
		Model:    cfg.Providers.Ollama.Model,
	})

	facade := planner.Select(ctx, logger, primary, secondary)
	defer func() { _ = facade.Close() }()

	// Store init failure is the one fatal startup error: a gateway
	// that cannot persist sessions must not come up.
	sessions, err := openStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer func() { _ = sessions.Close() }()

	orchestrator := interview.NewOrchestrator(sessions, facade, logger)

	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Server.Listen,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, facade)
	if err != nil {
		return fmt.Errorf("configuring server: %w", err)
	}
	srv.RegisterServices(orchestrator)

	logger.Info("starting parley gateway",
		"listen", cfg.Server.Listen,
		"storage", cfg.Storage.Backend,
		"provider", facade.ActiveProvider())

	return srv.Start(ctx)
}

func openStore(cfg config.StorageConfig) (store.SessionStore, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemorySessionStore(), nil
	default:
		return sqlite.NewSessionStore(cfg.Path)
	}
}

func newLogger(level string, verbose bool) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if verbose {
		lvl = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
