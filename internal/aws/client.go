package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	awscfn "tasnim.dev/mldev/internal/aws/cfn"
	awscost "tasnim.dev/mldev/internal/aws/cost"
	awsec2 "tasnim.dev/mldev/internal/aws/ec2"
)

// ServiceClient bundles the per-service clients an environment command needs.
type ServiceClient struct {
	Config aws.Config
	EC2    *awsec2.Client
	CFN    *awscfn.Client
	Cost   *awscost.Client
}

// NewServiceClient loads AWS configuration and constructs the service
// clients. The environment name scopes cost queries only; EC2 operations
// take it per call.
func NewServiceClient(ctx context.Context, profile, region, env string) (*ServiceClient, error) {
	cfg, err := LoadConfig(ctx, profile, region)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &ServiceClient{
		Config: cfg,
		EC2:    awsec2.NewClient(ec2.NewFromConfig(cfg)),
		CFN:    awscfn.NewClient(cloudformation.NewFromConfig(cfg)),
		Cost:   awscost.NewClient(cfg, env),
	}, nil
}
