package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/healthdrive/healthdrive/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// skipConfigAnnotation marks commands that must run without a valid config
// (config init writes the file others would fail to load).
const skipConfigAnnotation = "skipConfig"

// CLIFlags are the global persistent flags.
type CLIFlags struct {
	ConfigPath string
	JSON       bool
	Verbose    bool
	Quiet      bool
}

// CLIContext is built once in PersistentPreRunE and carried on the command
// context to every subcommand.
type CLIContext struct {
	Flags   CLIFlags
	Env     config.EnvOverrides
	CLI     config.CLIOverrides
	Cfg     *config.Config
	CfgPath string
	Logger  *slog.Logger
	// Level is shared by Logger's handler so a config reload can change
	// verbosity without rebuilding the logger.
	Level *slog.LevelVar
}

type cliContextKey struct{}

func withCLIContext(ctx context.Context, cc *CLIContext) context.Context {
	return context.WithValue(ctx, cliContextKey{}, cc)
}

// mustCLIContext returns the CLIContext stored by the root pre-run. A
// missing context is a programming error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cc == nil {
		panic("BUG: CLIContext not initialized; PersistentPreRunE did not run")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	flags := &CLIFlags{}

	cmd := &cobra.Command{
		Use:   "healthdrive",
		Short: "Patient records and Google Drive medical documents over MCP",
		Long: `healthdrive serves patient lookups, sticky notes, and medical documents
stored in Google Drive to Model Context Protocol clients, and exposes the same
operations on the command line.`,
		Version: version,
		// Errors are printed by exitOnError.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := newCLIContext(cmd, *flags)
			if err != nil {
				return err
			}

			cmd.SetContext(withCLIContext(cmd.Context(), cc))

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flags.JSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress informational output")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newPatientCmd())
	cmd.AddCommand(newNotesCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// newCLIContext resolves the effective configuration from the four-layer
// override chain and builds the logger.
func newCLIContext(cmd *cobra.Command, flags CLIFlags) (*CLIContext, error) {
	cc := &CLIContext{
		Flags: flags,
		Env:   config.ReadEnvOverrides(),
		CLI:   cliOverrides(cmd, flags),
		Level: new(slog.LevelVar),
	}

	if cmd.Annotations[skipConfigAnnotation] == "true" {
		cc.Cfg = config.DefaultConfig()
		cc.CfgPath = config.ResolvePath(cc.Env, cc.CLI)
	} else {
		cfg, path, err := config.Resolve(cc.Env, cc.CLI)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}

		cc.Cfg = cfg
		cc.CfgPath = path
	}

	cc.Level.Set(logLevel(cc.Cfg.Logging.LogLevel, flags))
	cc.Logger = buildLogger(os.Stderr, cc.Cfg.Logging.LogFormat, cc.Level, isTerminal(os.Stderr))

	cc.Logger.Debug("config resolved", slog.String("path", cc.CfgPath))

	return cc, nil
}

// cliOverrides collects the flags that participate in config resolution.
// Only flags the user actually set are passed on.
func cliOverrides(cmd *cobra.Command, flags CLIFlags) config.CLIOverrides {
	cli := config.CLIOverrides{ConfigPath: flags.ConfigPath}

	if f := cmd.Flags().Lookup("transport"); f != nil && f.Changed {
		v := f.Value.String()
		cli.Transport = &v
	}

	if f := cmd.Flags().Lookup("listen"); f != nil && f.Changed {
		v := f.Value.String()
		cli.ListenAddr = &v
	}

	return cli
}

// logLevel maps the configured level name to a slog level. --verbose and
// --quiet override the config because CLI flags always win.
func logLevel(name string, flags CLIFlags) slog.Level {
	if flags.Verbose {
		return slog.LevelDebug
	}

	if flags.Quiet {
		return slog.LevelError
	}

	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildLogger creates the process logger. Logs always go to stderr because
// stdout carries the MCP stdio channel. The "auto" format picks text for a
// terminal and JSON otherwise.
func buildLogger(w io.Writer, format string, level slog.Leveler, terminal bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	useJSON := format == config.LogFormatJSON || (format == config.LogFormatAuto && !terminal)
	if useJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
