package ec2

import (
	"context"
	"errors"
	"time"

	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/smithy-go"
)

// EC2API is the subset of the EC2 client the tool uses.
type EC2API interface {
	RequestSpotInstances(ctx context.Context, params *awsec2.RequestSpotInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.RequestSpotInstancesOutput, error)
	DescribeSpotInstanceRequests(ctx context.Context, params *awsec2.DescribeSpotInstanceRequestsInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeSpotInstanceRequestsOutput, error)
	CancelSpotInstanceRequests(ctx context.Context, params *awsec2.CancelSpotInstanceRequestsInput, optFns ...func(*awsec2.Options)) (*awsec2.CancelSpotInstanceRequestsOutput, error)
	CreateTags(ctx context.Context, params *awsec2.CreateTagsInput, optFns ...func(*awsec2.Options)) (*awsec2.CreateTagsOutput, error)
	DescribeInstances(ctx context.Context, params *awsec2.DescribeInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeInstancesOutput, error)
	TerminateInstances(ctx context.Context, params *awsec2.TerminateInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.TerminateInstancesOutput, error)
	CreateVolume(ctx context.Context, params *awsec2.CreateVolumeInput, optFns ...func(*awsec2.Options)) (*awsec2.CreateVolumeOutput, error)
	DescribeVolumes(ctx context.Context, params *awsec2.DescribeVolumesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeVolumesOutput, error)
	AttachVolume(ctx context.Context, params *awsec2.AttachVolumeInput, optFns ...func(*awsec2.Options)) (*awsec2.AttachVolumeOutput, error)
	DetachVolume(ctx context.Context, params *awsec2.DetachVolumeInput, optFns ...func(*awsec2.Options)) (*awsec2.DetachVolumeOutput, error)
	DeleteVolume(ctx context.Context, params *awsec2.DeleteVolumeInput, optFns ...func(*awsec2.Options)) (*awsec2.DeleteVolumeOutput, error)
	CreateSnapshot(ctx context.Context, params *awsec2.CreateSnapshotInput, optFns ...func(*awsec2.Options)) (*awsec2.CreateSnapshotOutput, error)
	DescribeSnapshots(ctx context.Context, params *awsec2.DescribeSnapshotsInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeSnapshotsOutput, error)
}

// Discovery and lifecycle failure classes. Teardown paths treat ErrNoInstance
// and ErrNoVolume as clean no-ops; everything else surfaces them.
var (
	ErrNoInstance        = errors.New("no instance found")
	ErrNoVolume          = errors.New("no volume found")
	ErrSpotRequestFailed = errors.New("spot request not fulfilled")
)

// API error codes that mean the resource is already gone.
const (
	volumeNotFoundCode      = "InvalidVolume.NotFound"
	instanceNotFoundCode    = "InvalidInstanceID.NotFound"
	spotRequestNotFoundCode = "InvalidSpotInstanceRequestID.NotFound"
)

// waitBudget bounds one polling loop: fixed interval, fixed attempt count.
type waitBudget struct {
	interval time.Duration
	attempts int
}

// Client wraps the EC2 API with the environment lifecycle workflows.
type Client struct {
	api EC2API

	// Wait budgets per lifecycle transition; tests shorten these.
	spotWait      waitBudget
	instanceWait  waitBudget
	terminateWait waitBudget
	volumeWait    waitBudget
	snapshotWait  waitBudget
}

// NewClient creates a client with production wait budgets.
func NewClient(api EC2API) *Client {
	return &Client{
		api:           api,
		spotWait:      waitBudget{interval: 5 * time.Second, attempts: 60},
		instanceWait:  waitBudget{interval: 5 * time.Second, attempts: 60},
		terminateWait: waitBudget{interval: 5 * time.Second, attempts: 120},
		volumeWait:    waitBudget{interval: 3 * time.Second, attempts: 40},
		snapshotWait:  waitBudget{interval: 15 * time.Second, attempts: 120},
	}
}

// isErrorCode reports whether err is an AWS API error with the given code.
func isErrorCode(err error, code string) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == code
}
