package cfn

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
)

// SecurityGroupOutputKey is the stack output holding the environment's
// security group.
const SecurityGroupOutputKey = "SecurityGroupId"

var (
	ErrStackNotReady  = errors.New("stack is not in a completed state")
	ErrOutputNotFound = errors.New("stack output not found")
)

// CloudFormationAPI is the subset of the CloudFormation client we use.
type CloudFormationAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
}

// Client wraps the CloudFormation API.
type Client struct {
	api CloudFormationAPI
}

// NewClient creates a new CloudFormation client.
func NewClient(api CloudFormationAPI) *Client {
	return &Client{api: api}
}

// StackOutput returns the value of the named output. The stack must be in
// CREATE_COMPLETE or UPDATE_COMPLETE; outputs of a half-applied stack are
// not trusted.
func (c *Client) StackOutput(ctx context.Context, stackName, key string) (string, error) {
	out, err := c.api.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return "", fmt.Errorf("DescribeStacks: %w", err)
	}
	if len(out.Stacks) == 0 {
		return "", fmt.Errorf("stack %q not found", stackName)
	}

	stack := out.Stacks[0]
	switch stack.StackStatus {
	case types.StackStatusCreateComplete, types.StackStatusUpdateComplete:
	default:
		return "", fmt.Errorf("%w: %s is %s", ErrStackNotReady, stackName, stack.StackStatus)
	}

	for _, output := range stack.Outputs {
		if aws.ToString(output.OutputKey) == key {
			return aws.ToString(output.OutputValue), nil
		}
	}
	return "", fmt.Errorf("%w: %s in stack %s", ErrOutputNotFound, key, stackName)
}
