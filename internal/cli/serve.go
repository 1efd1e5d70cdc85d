package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/yungbote/alohomora/internal/app"
	"github.com/yungbote/alohomora/internal/config"
)

// NewServeCommand runs one role until interrupted.
func NewServeCommand(rootOpts *RootOptions, role, short string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:           role,
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.cfg
			if addr != "" {
				setAddr(&cfg, role, addr)
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := app.New(ctx, role, cfg, rootOpts.log)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			rootOpts.log.Info("Stopped gracefully", "role", role)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides the configured one")
	return cmd
}

func setAddr(cfg *config.Config, role, addr string) {
	switch role {
	case config.RoleAuthority:
		cfg.Authority.Addr = addr
	case config.RoleReplica:
		cfg.Replica.Addr = addr
	case config.RoleApp:
		cfg.App.Addr = addr
	}
}
