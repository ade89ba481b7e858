package cmd

import (
	"fmt"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	awsclient "tasnim.dev/mldev/internal/aws"
	"tasnim.dev/mldev/internal/tui"
)

func NewCostCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cost",
		Short: "Show the environment cost dashboard",
		Long: `Show a dashboard of AWS spend attributed to the environment tag:
today's spend, month-to-date with a month-over-month comparison, the
end-of-month forecast, a daily spend chart, and the per-service breakdown.
Use [ and ] to step through past months.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sess, err := newSession(ctx, flags)
			if err != nil {
				return err
			}
			accountID := awsclient.GetAccountID(ctx, sess.client.Config)

			model := tui.NewCostModel(sess.client.Cost, sess.env, sess.profile, accountID)
			if _, err := tea.NewProgram(model).Run(); err != nil {
				return fmt.Errorf("running cost dashboard: %w", err)
			}
			return nil
		},
	}
}
