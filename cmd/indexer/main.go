package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/castarchive/castarchive/pkg/config"
	"github.com/castarchive/castarchive/pkg/logging"
	"github.com/castarchive/castarchive/pkg/telemetry"
)

// app holds what every subcommand shares once the root command has run
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	shutdown func()
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "castarchive",
		Short:         "Archive a Farcaster account's casts and the threads around them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load configuration
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			a.cfg = cfg

			// Initialize logger
			if err := logging.InitLogger(&cfg.Logging); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logging.GetLogger()

			// Initialize telemetry
			a.shutdown, err = telemetry.Init(&cfg.Telemetry)
			if err != nil {
				return fmt.Errorf("failed to initialize telemetry: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.shutdown != nil {
				a.shutdown()
			}
			_ = logging.GetLogger().Sync()
		},
	}

	root.AddCommand(newIngestCmd(a))
	root.AddCommand(newRenderCmd(a))
	root.AddCommand(newTraverseCmd(a))
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
