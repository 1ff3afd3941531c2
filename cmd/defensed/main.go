// Command defensed runs the thesis defense scheduling service.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/example/defense-scheduler/internal/config"
	"github.com/example/defense-scheduler/internal/logging"
	"github.com/example/defense-scheduler/internal/persistence/sqlite"
	"github.com/example/defense-scheduler/internal/persistence/sqlite/migration"
)

const programName = "defensed"

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

type globalFlags struct {
	configFile string
	debug      bool
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:           programName,
		Short:         "Thesis defense scheduling service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdout)

	cmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "path to YAML config file")
	cmd.PersistentFlags().BoolVarP(&flags.debug, "debug", "D", false, "enable debug logging")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		cfg, err := config.Load(flags.configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if flags.debug {
			cfg.Log.Level = "debug"
		}
		logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		logger = logger.With("component", programName)
		slog.SetDefault(logger)

		ctx := config.WithContext(cmd.Context(), &cfg)
		ctx = logging.ContextWithLogger(ctx, logger)
		cmd.SetContext(ctx)
		return nil
	}

	cmd.AddCommand(serveCommand())
	cmd.AddCommand(migrateCommand())
	cmd.AddCommand(usersCommand())
	cmd.AddCommand(versionCommand())
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		stop()
		os.Exit(1)
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", programName, version)
		},
	}
}

// commandEnv returns the configuration and logger installed by the root command.
func commandEnv(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return nil, nil, fmt.Errorf("no config found in context")
	}
	return cfg, logging.Resolve(cmd.Context(), nil), nil
}

func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sqlite.Storage, error) {
	sqlCfg := migration.DefaultSQLiteConfig(cfg.Database.Path)
	sqlCfg.BusyTimeout = cfg.Database.BusyTimeout
	if cfg.Database.Path == migration.MemoryPath {
		sqlCfg.JournalMode = "MEMORY"
		sqlCfg.MaxOpenConns = 1
		sqlCfg.MaxIdleConns = 1
		sqlCfg.ConnMaxLifetime = 0
	}
	storage, err := sqlite.Open(ctx, sqlCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return storage, nil
}
