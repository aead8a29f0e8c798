package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/workspace-engine/core/internal/appdb"
	"github.com/workspace-engine/core/internal/config"
	"github.com/workspace-engine/core/internal/pathresolve"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagAppDir     string
	flagJSON       bool
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// skipConfigAnnotation marks commands that handle bootstrap themselves.
// Commands annotated with this key skip the automatic config/store
// resolution in PersistentPreRunE.
const skipConfigAnnotation = "skipConfig"

// CLIContext bundles the resolved config, path service, logger, and an
// opened App DB handle. Created once in PersistentPreRunE so RunE handlers
// never re-resolve config or re-open the store.
type CLIContext struct {
	Cfg    *config.Config
	Paths  *pathresolve.Resolver
	App    *appdb.AppStore
	Logger *slog.Logger
	JSON   bool
}

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

func cliContextFrom(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		return nil
	}

	return cc
}

// mustCLIContext extracts the CLIContext or panics with an actionable
// message — always a programmer error, since the command tree guarantees
// PersistentPreRunE populates it before RunE runs.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not found in context — ensure the command " +
			"does not skip config loading (no skipConfigAnnotation) or " +
			"explicitly bootstraps in its RunE")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
//
// The CLI is a thin operator/debug surface over the engine — it reads and
// mutates the App DB directly (accounts, servers, staged logouts) and runs
// the cleanup task; it is not a product surface and has no document editing
// or sync-stream commands of its own.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "workspace-engine",
		Short:         "Local workspace engine operator CLI",
		Long:          "A debug and operations surface over the local workspace engine's App DB, accounts, and maintenance tasks.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfigAnnotation] == "true" {
				return nil
			}

			return bootstrap(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if cc := cliContextFrom(cmd.Context()); cc != nil && cc.App != nil {
				return cc.App.Close()
			}

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagAppDir, "app-dir", "", "app root directory (overrides the platform default)")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show detailed output")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newAccountsCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newCleanupCmd())

	return cmd
}

// bootstrap resolves the effective configuration path service, opens the App
// DB, and stores the result in the command's context for use by subcommands.
func bootstrap(cmd *cobra.Command) error {
	logger := buildLogger(nil)

	env := config.ReadEnvOverrides()

	cfgPath := flagConfigPath
	if cfgPath == "" {
		cfgPath = env.ConfigPath
	}

	cfg, err := config.LoadOrDefault(cfgPath, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	config.ApplyEnvOverrides(cfg, env)

	finalLogger := buildLogger(cfg)

	appDir := flagAppDir
	if appDir == "" {
		appDir = env.AppDir
	}

	paths := pathresolve.New(appDir)
	if err := paths.EnsureDirs("", ""); err != nil {
		return fmt.Errorf("preparing app directories: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := appdb.OpenApp(ctx, paths.AppDB(), finalLogger)
	if err != nil {
		return fmt.Errorf("opening app database: %w", err)
	}

	cc := &CLIContext{Cfg: cfg, Paths: paths, App: store, Logger: finalLogger, JSON: flagJSON}

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Pass nil for pre-config bootstrap (no config-file log level).
// Config-file log level is the baseline; --verbose, --debug, and --quiet
// override it because CLI flags always win (mutually exclusive via Cobra).
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn

	if cfg != nil {
		switch cfg.Logging.Level {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelInfo
	}

	if flagDebug {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
