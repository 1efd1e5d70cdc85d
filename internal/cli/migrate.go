package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/alohomora/internal/app"
	"github.com/yungbote/alohomora/internal/config"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Create or update the tables a role needs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch role {
			case config.RoleAuthority, config.RoleReplica, config.RoleApp:
			default:
				return fmt.Errorf("invalid role %q: must be authority, replica or app", role)
			}
			if err := app.Migrate(rootOpts.cfg, role, rootOpts.log); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s schema (%s)\n", role, rootOpts.cfg.DB.Driver)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", config.RoleAuthority, "schema to migrate: authority|replica|app")
	return cmd
}
