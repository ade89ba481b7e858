package cmd

import (
	"context"
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"

	awsclient "tasnim.dev/mldev/internal/aws"
	"tasnim.dev/mldev/internal/config"
)

// version is overridden at build time via
// -ldflags "-X tasnim.dev/mldev/cmd.version=...".
var version = "dev"

// rootFlags holds the persistent flags shared by every subcommand.
type rootFlags struct {
	profile string
	region  string
	env     string
	verbose bool
}

// NewRootCmd builds the mldev command tree.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "mldev",
		Short:         "Manage spot-instance ML development environments on AWS",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts := charmlog.Options{ReportTimestamp: true}
			if flags.verbose {
				opts.Level = charmlog.DebugLevel
			}
			logger := clog.New(charmlog.NewWithOptions(os.Stderr, opts))
			cmd.SetContext(clog.WithLogger(cmd.Context(), logger))
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.profile, "profile", "p", "", "AWS profile to use")
	pf.StringVarP(&flags.region, "region", "r", "", "AWS region to use")
	pf.StringVarP(&flags.env, "env", "e", "", `environment name (default "ml-dev")`)
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		NewLaunchCmd(flags),
		NewTerminateCmd(flags),
		NewVolumeCmd(flags),
		NewSSHCmd(flags),
		NewStatusCmd(flags),
		NewCostCmd(flags),
	)

	return root
}

// session holds what a subcommand needs once flags and the config file have
// been resolved.
type session struct {
	cfg     *config.Config
	client  *awsclient.ServiceClient
	env     string
	profile string
	region  string
}

func newSession(ctx context.Context, flags *rootFlags) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	profile, region := cfg.Merge(flags.profile, flags.region)
	env := cfg.ResolveEnv(flags.env)

	client, err := awsclient.NewServiceClient(ctx, profile, region, env)
	if err != nil {
		return nil, fmt.Errorf("initializing AWS client: %w", err)
	}

	return &session{cfg: cfg, client: client, env: env, profile: profile, region: region}, nil
}
