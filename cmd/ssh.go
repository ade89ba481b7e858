package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewSSHCmd(flags *rootFlags) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "ssh",
		Short: "Print the ssh command for the environment's instance",
		Long: `Print the ssh command for the environment's newest live instance.

The command is printed, not executed, so it composes with your shell:

  $(mldev ssh)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sess, err := newSession(ctx, flags)
			if err != nil {
				return err
			}

			inst, err := sess.client.EC2.FindLiveInstance(ctx, sess.env)
			if err != nil {
				return err
			}

			sshCmd, err := inst.SSHCommand(sess.cfg.ResolveSSHUser(user))
			if err != nil {
				return err
			}
			fmt.Println(sshCmd)
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", `login user (default "ubuntu")`)

	return cmd
}
