package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/alohomora/internal/app"
	"github.com/yungbote/alohomora/internal/config"
)

// NewSyncCommand runs a single replica sync cycle and prints its report.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull one sync cycle from the authority into the replica store",
		Long: `Run one replica sync cycle outside the scheduler. The cycle takes the same
per-replica lock as the running replica, so it is skipped when a scheduled
cycle is already in flight.

Example:
  REPLICA_ID=r1 REPLICA_GROUP_ID=g1 ADMIN_KEY=... alohomora sync`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := app.New(ctx, config.RoleReplica, rootOpts.cfg, rootOpts.log)
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.SyncOnce(ctx)
			if err != nil {
				return err
			}
			checkpoint := "none"
			if !rep.Checkpoint.IsZero() {
				checkpoint = rep.Checkpoint.At.UTC().Format(time.RFC3339Nano)
				if rep.Checkpoint.Exact() {
					checkpoint += "/" + rep.Checkpoint.TokenHash
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pages=%d tokens=%d failed=%d checkpoint=%s advanced=%t\n",
				rep.Pages, rep.Tokens, rep.Failed, checkpoint, rep.Advanced)
			return nil
		},
	}
	return cmd
}
