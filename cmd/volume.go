package cmd

import (
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
)

func NewVolumeCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "volume",
		Short: "Manage the environment's data volume",
	}

	cmd.AddCommand(
		newVolumeAttachCmd(flags),
		newVolumeDeleteCmd(flags),
		newVolumeSnapshotCmd(flags),
	)
	return cmd
}

func newVolumeAttachCmd(flags *rootFlags) *cobra.Command {
	var size int32
	var device string

	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Attach the tagged data volume to the live instance, creating one if needed",
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

			vol, err := sess.client.EC2.AttachVolume(ctx, inst, sess.env,
				sess.cfg.ResolveVolumeSize(size), sess.cfg.ResolveVolumeDevice(device))
			if err != nil {
				return err
			}

			fmt.Printf("volume %s attached to %s at %s\n", vol.ID, inst.ID, vol.Device)
			return nil
		},
	}

	cmd.Flags().Int32VarP(&size, "size", "s", 0, "volume size in GiB when creating (default 128)")
	cmd.Flags().StringVarP(&device, "device", "d", "", `device name (default "/dev/sdf")`)

	return cmd
}

func newVolumeDeleteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Detach and delete the environment's data volume",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sess, err := newSession(ctx, flags)
			if err != nil {
				return err
			}
			return sess.client.EC2.DeleteVolume(ctx, sess.env)
		},
	}
}

func newVolumeSnapshotCmd(flags *rootFlags) *cobra.Command {
	var description string
	var wait bool

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Snapshot the environment's data volume",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sess, err := newSession(ctx, flags)
			if err != nil {
				return err
			}

			snap, err := sess.client.EC2.CreateSnapshot(ctx, sess.env, description, wait)
			if err != nil {
				return err
			}

			if wait {
				clog.FromContext(ctx).Infof("snapshot %s completed", snap.ID)
			} else {
				clog.FromContext(ctx).Infof("snapshot %s started (%s)", snap.ID, snap.State)
			}
			fmt.Println(snap.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "snapshot description (default \"<env>-ec2-snapshot\")")
	cmd.Flags().BoolVar(&wait, "wait", false, "wait until the snapshot completes")

	return cmd
}
