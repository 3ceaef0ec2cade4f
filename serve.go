package main

import (
	"context"
	"log/slog"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/healthdrive/healthdrive/internal/config"
	"github.com/healthdrive/healthdrive/internal/mcpserver"
	"github.com/healthdrive/healthdrive/internal/notes"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long: `Serve patient tools, notes, and Google Drive document search to an MCP
client over stdio (default) or streamable HTTP.

The server never opens a browser: run 'healthdrive login' first. The config
file is watched and reloaded on change or SIGHUP; log level and Drive
settings apply immediately, other changes need a restart.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("transport", "", "MCP transport: stdio or http (default: server.transport)")
	cmd.Flags().String("listen", "", "listen address for the http transport (default: server.listen_addr)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	logger := cc.Logger
	cfg := cc.Cfg

	ctx := shutdownContext(cmd.Context(), logger)

	repo, closeRepo, err := openPatients(ctx, cfg.Patients, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	store, err := notes.Open(cfg.Notes.Path)
	if err != nil {
		return err
	}

	holder := config.NewHolder(cfg, cc.CfgPath)
	docs := newDocumentSource(holder, logger)

	srv, err := mcpserver.New(mcpserver.Config{
		Name:      "healthdrive",
		Version:   version,
		Patients:  repo,
		Notes:     store,
		Documents: docs.Documents,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	reload := newReloader(cc, holder)

	hup := sighupChannel()
	defer signal.Stop(hup)

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)

	g.Go(func() error {
		// The watchers stop when the client disconnects.
		defer stop()

		return srv.Run(runCtx, cfg.Server.Transport, cfg.Server.ListenAddr)
	})

	g.Go(func() error {
		if err := config.Watch(runCtx, holder.Path(), logger, reload); err != nil {
			logger.Info("config file not watched", slog.String("error", err.Error()))
		}

		return nil
	})

	g.Go(func() error {
		return reloadOnSignal(runCtx, hup, logger, reload)
	})

	return g.Wait()
}

// newReloader returns a function that re-resolves the configuration with
// the original env and CLI overrides and publishes it. An invalid file keeps
// the current configuration.
func newReloader(cc *CLIContext, holder *config.Holder) func() {
	var mu sync.Mutex

	return func() {
		mu.Lock()
		defer mu.Unlock()

		next, _, err := config.Resolve(cc.Env, cc.CLI)
		if err != nil {
			cc.Logger.Warn("config reload failed, keeping current config", slog.String("error", err.Error()))
			return
		}

		prev := holder.Update(next)
		cc.Level.Set(logLevel(next.Logging.LogLevel, cc.Flags))

		if restartNeeded(prev, next) {
			cc.Logger.Warn("config changes to patients, notes, server, or log format apply after restart")
		}

		cc.Logger.Info("config reloaded",
			slog.String("log_level", cc.Level.Level().String()),
			slog.String("identity", next.Auth.Identity),
		)
	}
}

// restartNeeded reports changes to settings bound at startup.
func restartNeeded(prev, next *config.Config) bool {
	return prev.Patients != next.Patients ||
		prev.Notes != next.Notes ||
		prev.Server != next.Server ||
		prev.Logging.LogFormat != next.Logging.LogFormat
}
