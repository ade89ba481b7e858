package cmd

import (
	"github.com/spf13/cobra"
)

func NewTerminateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "terminate",
		Short: "Cancel the spot request and terminate the environment's instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sess, err := newSession(ctx, flags)
			if err != nil {
				return err
			}
			return sess.client.EC2.Terminate(ctx, sess.env)
		},
	}
}
