package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/alohomora/internal/config"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogMode    string

	cfg config.Config
	log *logger.Logger
}

// NewRootCommand creates the alohomora command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "alohomora",
		Short: "Shared workflow session authority, replica and client app",
		Long: `alohomora brokers capability tokens between independently owned systems
that take part in shared multi-step workflows.

Each process runs one role. The authority owns the registry and issues
tokens. Replicas mirror one group's state from the authority on a timer.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				opts.log.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file (default $ALOHOMORA_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.LogMode, "log-mode", "", "log mode: development|production (default $LOG_MODE)")

	cmd.AddCommand(NewServeCommand(opts, config.RoleAuthority, "Run the authority service"))
	cmd.AddCommand(NewServeCommand(opts, config.RoleReplica, "Run a replica and its sync scheduler"))
	cmd.AddCommand(NewServeCommand(opts, config.RoleApp, "Run a client application"))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

func (o *RootOptions) load() error {
	path := o.ConfigPath
	if path == "" {
		path = os.Getenv("ALOHOMORA_CONFIG")
	}
	cfg, err := config.LoadFrom(path, nil)
	if err != nil {
		return err
	}
	if o.LogMode != "" {
		cfg.LogMode = o.LogMode
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if path != "" {
		log.Info("Loaded config file", "path", path)
	}
	o.cfg, o.log = cfg, log
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM, or when parent is done.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
