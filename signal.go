package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// shutdownContext returns a context cancelled by SIGINT or SIGTERM. A second
// signal exits the process immediately, for when a Drive download or the MCP
// transport will not drain.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		done := ctx.Done()

		for received := 0; ; {
			select {
			case sig := <-sigCh:
				received++
				if received > 1 {
					logger.Warn("second signal, exiting now", slog.String("signal", sig.String()))
					os.Exit(1)
				}

				logger.Info("shutting down", slog.String("signal", sig.String()))
				cancel()

				// ctx is now done; only the parent ends the wait for a second signal.
				done = parent.Done()
			case <-done:
				return
			}
		}
	}()

	return ctx
}

// sighupChannel registers for SIGHUP. Callers release it with signal.Stop.
func sighupChannel() chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	return sigCh
}

// reloadOnSignal calls reload for every signal on sigCh until ctx is done.
func reloadOnSignal(ctx context.Context, sigCh <-chan os.Signal, logger *slog.Logger, reload func()) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-sigCh:
			logger.Info("reloading config", slog.String("signal", sig.String()))
			reload()
		}
	}
}
