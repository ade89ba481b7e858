package cmd

import (
	"fmt"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	awsclient "tasnim.dev/mldev/internal/aws"
	"tasnim.dev/mldev/internal/tui"
)

func NewStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show a live dashboard of the environment's resources",
		Long: `Show a dashboard with one panel per environment resource: the spot
request, the instance, the data volume, and the latest snapshot. The
dashboard refreshes automatically (auto_refresh_interval in the config
file, 15s by default) and on demand with r.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sess, err := newSession(ctx, flags)
			if err != nil {
				return err
			}
			accountID := awsclient.GetAccountID(ctx, sess.client.Config)

			model := tui.NewStatusModel(
				sess.client.EC2,
				sess.env,
				sess.profile,
				sess.client.Config.Region,
				accountID,
				sess.cfg.RefreshInterval(),
			)
			if _, err := tea.NewProgram(model).Run(); err != nil {
				return fmt.Errorf("running status dashboard: %w", err)
			}
			return nil
		},
	}
}
