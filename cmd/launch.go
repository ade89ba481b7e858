package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"

	"tasnim.dev/mldev/internal/aws/cfn"
	"tasnim.dev/mldev/internal/aws/ec2"
	"tasnim.dev/mldev/internal/constants"
)

func NewLaunchCmd(flags *rootFlags) *cobra.Command {
	var (
		ami           string
		instanceType  string
		keyName       string
		securityGroup string
		stackName     string
		subnetID      string
		spotPrice     string
		userDataFile  string
	)

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Request a spot instance and wait until it is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sess, err := newSession(ctx, flags)
			if err != nil {
				return err
			}

			sg, err := resolveSecurityGroup(ctx, sess, securityGroup, stackName)
			if err != nil {
				return err
			}

			var userData string
			if userDataFile != "" {
				raw, err := os.ReadFile(userDataFile)
				if err != nil {
					return fmt.Errorf("reading user data: %w", err)
				}
				userData = string(raw)
			}

			spec := ec2.LaunchSpec{
				Environment:   sess.env,
				AMI:           sess.cfg.ResolveAMI(ami),
				InstanceType:  sess.cfg.ResolveInstanceType(instanceType),
				KeyName:       sess.cfg.ResolveKeyName(keyName),
				SecurityGroup: sg,
				SubnetID:      subnetID,
				SpotPrice:     spotPrice,
				RootVolumeGiB: constants.DefaultRootVolumeGiB,
				UserData:      userData,
			}

			inst, err := sess.client.EC2.LaunchSpot(ctx, spec)
			if err != nil {
				return err
			}

			sshCmd, err := inst.SSHCommand(sess.cfg.ResolveSSHUser(""))
			if err != nil {
				return err
			}
			fmt.Println(sshCmd)
			return nil
		},
	}

	cmd.Flags().StringVar(&ami, "ami", "", "AMI ID (default "+constants.DefaultAMI+")")
	cmd.Flags().StringVarP(&instanceType, "instance-type", "t", "", "instance type (default "+constants.DefaultInstanceType+")")
	cmd.Flags().StringVarP(&keyName, "key", "k", "", "key pair name (default "+constants.DefaultKeyName+")")
	cmd.Flags().StringVar(&securityGroup, "security-group", "", "security group ID for the instance")
	cmd.Flags().StringVar(&stackName, "stack", "", "CloudFormation stack exporting the security group (default: environment name)")
	cmd.Flags().StringVar(&subnetID, "subnet", "", "subnet ID (default VPC when empty)")
	cmd.Flags().StringVar(&spotPrice, "spot-price", "", "maximum spot price per hour (default on-demand ceiling)")
	cmd.Flags().StringVar(&userDataFile, "user-data", "", "path to a user data script")

	return cmd
}

// resolveSecurityGroup applies flag, then config file, then CloudFormation
// stack output precedence. The stack name falls back to the environment
// name, which matches the IaC convention of naming the stack after the
// environment it provisions.
func resolveSecurityGroup(ctx context.Context, sess *session, flagSG, flagStack string) (string, error) {
	if sg := sess.cfg.ResolveSecurityGroup(flagSG); sg != "" {
		return sg, nil
	}

	stack := sess.cfg.ResolveStackName(flagStack)
	if stack == "" {
		stack = sess.env
	}

	sg, err := sess.client.CFN.StackOutput(ctx, stack, cfn.SecurityGroupOutputKey)
	if err != nil {
		return "", fmt.Errorf("resolving security group from stack %q: %w", stack, err)
	}
	clog.FromContext(ctx).Infof("using security group %s from stack %s", sg, stack)
	return sg, nil
}
