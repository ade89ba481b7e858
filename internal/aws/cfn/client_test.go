package cfn

import (
	"context"
	"errors"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
)

type mockCFNAPI struct {
	describeStacksFunc func(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
}

func (m *mockCFNAPI) DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	return m.describeStacksFunc(ctx, params, optFns...)
}

func stackOutput(status types.StackStatus, outputs ...types.Output) *cloudformation.DescribeStacksOutput {
	return &cloudformation.DescribeStacksOutput{
		Stacks: []types.Stack{{
			StackName:   awssdk.String("ml-dev"),
			StackStatus: status,
			Outputs:     outputs,
		}},
	}
}

func TestStackOutput(t *testing.T) {
	mock := &mockCFNAPI{
		describeStacksFunc: func(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
			if awssdk.ToString(params.StackName) != "ml-dev" {
				t.Errorf("StackName = %s, want ml-dev", awssdk.ToString(params.StackName))
			}
			return stackOutput(types.StackStatusCreateComplete,
				types.Output{OutputKey: awssdk.String("VpcId"), OutputValue: awssdk.String("vpc-123")},
				types.Output{OutputKey: awssdk.String(SecurityGroupOutputKey), OutputValue: awssdk.String("sg-0abc")},
			), nil
		},
	}

	client := NewClient(mock)
	got, err := client.StackOutput(context.Background(), "ml-dev", SecurityGroupOutputKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "sg-0abc" {
		t.Errorf("StackOutput = %s, want sg-0abc", got)
	}
}

func TestStackOutput_UpdateCompleteAccepted(t *testing.T) {
	mock := &mockCFNAPI{
		describeStacksFunc: func(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
			return stackOutput(types.StackStatusUpdateComplete,
				types.Output{OutputKey: awssdk.String(SecurityGroupOutputKey), OutputValue: awssdk.String("sg-0abc")},
			), nil
		},
	}

	client := NewClient(mock)
	if _, err := client.StackOutput(context.Background(), "ml-dev", SecurityGroupOutputKey); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStackOutput_StackNotReady(t *testing.T) {
	mock := &mockCFNAPI{
		describeStacksFunc: func(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
			return stackOutput(types.StackStatusUpdateInProgress), nil
		},
	}

	client := NewClient(mock)
	_, err := client.StackOutput(context.Background(), "ml-dev", SecurityGroupOutputKey)
	if !errors.Is(err, ErrStackNotReady) {
		t.Fatalf("expected ErrStackNotReady, got %v", err)
	}
}

func TestStackOutput_KeyMissing(t *testing.T) {
	mock := &mockCFNAPI{
		describeStacksFunc: func(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
			return stackOutput(types.StackStatusCreateComplete,
				types.Output{OutputKey: awssdk.String("VpcId"), OutputValue: awssdk.String("vpc-123")},
			), nil
		},
	}

	client := NewClient(mock)
	_, err := client.StackOutput(context.Background(), "ml-dev", SecurityGroupOutputKey)
	if !errors.Is(err, ErrOutputNotFound) {
		t.Fatalf("expected ErrOutputNotFound, got %v", err)
	}
}
