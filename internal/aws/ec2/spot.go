package ec2

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"

	"tasnim.dev/mldev/internal/aws/tags"
	"tasnim.dev/mldev/internal/poll"
)

// Root volume baked into the launch specification.
const (
	rootDeviceName       = "/dev/sda1"
	rootVolumeIops       = 3000
	rootVolumeThroughput = 125
)

// LaunchSpec describes the spot instance to request.
type LaunchSpec struct {
	Environment   string
	AMI           string
	InstanceType  string
	KeyName       string
	SecurityGroup string
	SubnetID      string // optional; empty uses the default VPC subnet
	SpotPrice     string // optional max price; empty means on-demand ceiling
	RootVolumeGiB int32
	UserData      string // raw script; base64-encoded on the wire
}

func (s LaunchSpec) requestInput() *awsec2.RequestSpotInstancesInput {
	launch := &types.RequestSpotLaunchSpecification{
		ImageId:      aws.String(s.AMI),
		InstanceType: types.InstanceType(s.InstanceType),
		KeyName:      aws.String(s.KeyName),
		BlockDeviceMappings: []types.BlockDeviceMapping{{
			DeviceName: aws.String(rootDeviceName),
			Ebs: &types.EbsBlockDevice{
				VolumeType:          types.VolumeTypeGp3,
				VolumeSize:          aws.Int32(s.RootVolumeGiB),
				Iops:                aws.Int32(rootVolumeIops),
				Throughput:          aws.Int32(rootVolumeThroughput),
				DeleteOnTermination: aws.Bool(true),
			},
		}},
		// Security groups ride on the interface spec so the instance
		// gets a public address in the default VPC.
		NetworkInterfaces: []types.InstanceNetworkInterfaceSpecification{{
			DeviceIndex:              aws.Int32(0),
			AssociatePublicIpAddress: aws.Bool(true),
			Groups:                   []string{s.SecurityGroup},
		}},
	}
	if s.SubnetID != "" {
		launch.NetworkInterfaces[0].SubnetId = aws.String(s.SubnetID)
	}
	if s.UserData != "" {
		launch.UserData = aws.String(base64.StdEncoding.EncodeToString([]byte(s.UserData)))
	}

	input := &awsec2.RequestSpotInstancesInput{
		ClientToken:                  aws.String(uuid.New().String()),
		InstanceCount:                aws.Int32(1),
		Type:                         types.SpotInstanceTypeOneTime,
		InstanceInterruptionBehavior: types.InstanceInterruptionBehaviorTerminate,
		LaunchSpecification:          launch,
		TagSpecifications: []types.TagSpecification{
			tags.Spec(types.ResourceTypeSpotInstancesRequest, s.Environment),
		},
	}
	if s.SpotPrice != "" {
		input.SpotPrice = aws.String(s.SpotPrice)
	}
	return input
}

// LaunchSpot submits a one-time spot request and follows it all the way to a
// running instance with a public address. The fulfilled instance is tagged
// with the discovery key as soon as its ID is known, before waiting on
// state, so later failures still leave a discoverable instance behind.
func (c *Client) LaunchSpot(ctx context.Context, spec LaunchSpec) (*Instance, error) {
	log := clog.FromContext(ctx)

	out, err := c.api.RequestSpotInstances(ctx, spec.requestInput())
	if err != nil {
		return nil, fmt.Errorf("RequestSpotInstances: %w", err)
	}
	if len(out.SpotInstanceRequests) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrSpotRequestFailed)
	}
	req := mapSpotRequest(out.SpotInstanceRequests[0])
	log.Infof("spot request %s submitted (%s, %s)", req.ID, spec.InstanceType, spec.AMI)

	fulfilled, err := c.awaitSpotFulfilled(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	log.Infof("spot request %s fulfilled by instance %s", fulfilled.ID, fulfilled.InstanceID)

	if err := c.tagResources(ctx, spec.Environment, fulfilled.InstanceID); err != nil {
		return nil, err
	}

	inst, err := c.awaitInstanceRunning(ctx, fulfilled.InstanceID)
	if err != nil {
		return nil, err
	}
	inst.SpotRequestID = fulfilled.ID
	log.Infof("instance %s running at %s", inst.ID, inst.PublicAddress())
	return inst, nil
}

// awaitSpotFulfilled polls the request until it leaves the open state.
// active means fulfilled; closed, cancelled and failed are terminal.
func (c *Client) awaitSpotFulfilled(ctx context.Context, requestID string) (*SpotRequest, error) {
	log := clog.FromContext(ctx)
	var req SpotRequest

	err := poll.Until(ctx, c.spotWait.interval, c.spotWait.attempts, func(ctx context.Context) (bool, error) {
		out, err := c.api.DescribeSpotInstanceRequests(ctx, &awsec2.DescribeSpotInstanceRequestsInput{
			SpotInstanceRequestIds: []string{requestID},
		})
		if err != nil {
			// A fresh request may not be visible yet.
			if isErrorCode(err, spotRequestNotFoundCode) {
				return false, nil
			}
			return false, fmt.Errorf("DescribeSpotInstanceRequests: %w", err)
		}
		if len(out.SpotInstanceRequests) == 0 {
			return false, nil
		}

		req = mapSpotRequest(out.SpotInstanceRequests[0])
		log.Debugf("spot request %s state %s (%s)", req.ID, req.State, req.StatusCode)
		switch types.SpotInstanceState(req.State) {
		case types.SpotInstanceStateOpen:
			return false, nil
		case types.SpotInstanceStateActive:
			return req.InstanceID != "", nil
		default:
			return false, fmt.Errorf("%w: request %s is %s (%s: %s)",
				ErrSpotRequestFailed, req.ID, req.State, req.StatusCode, req.StatusMessage)
		}
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// awaitInstanceRunning polls until the instance is running with a public
// address. Running without an address keeps polling; a shutdown state is
// terminal.
func (c *Client) awaitInstanceRunning(ctx context.Context, id string) (*Instance, error) {
	log := clog.FromContext(ctx)
	var inst *Instance

	err := poll.Until(ctx, c.instanceWait.interval, c.instanceWait.attempts, func(ctx context.Context) (bool, error) {
		got, err := c.instanceByID(ctx, id)
		if err != nil {
			return false, err
		}
		if got == nil {
			return false, fmt.Errorf("instance %s disappeared while waiting for running", id)
		}
		inst = got

		log.Debugf("instance %s state %s", id, inst.State)
		switch types.InstanceStateName(inst.State) {
		case types.InstanceStateNameRunning:
			return inst.PublicAddress() != "", nil
		case types.InstanceStateNameShuttingDown, types.InstanceStateNameTerminated:
			return false, fmt.Errorf("instance %s entered %s before running", id, inst.State)
		default:
			return false, nil
		}
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// FindSpotRequest returns the most recent spot request tagged for the
// environment, or nil when none exist.
func (c *Client) FindSpotRequest(ctx context.Context, env string) (*SpotRequest, error) {
	out, err := c.api.DescribeSpotInstanceRequests(ctx, &awsec2.DescribeSpotInstanceRequestsInput{
		Filters: []types.Filter{tags.EnvironmentFilter(env)},
	})
	if err != nil {
		return nil, fmt.Errorf("DescribeSpotInstanceRequests: %w", err)
	}

	var latest *SpotRequest
	for _, raw := range out.SpotInstanceRequests {
		req := mapSpotRequest(raw)
		if latest == nil || !req.CreateTime.Before(latest.CreateTime) {
			latest = &req
		}
	}
	return latest, nil
}

// tagResources applies the discovery tags to freshly created resources.
func (c *Client) tagResources(ctx context.Context, env string, ids ...string) error {
	_, err := c.api.CreateTags(ctx, &awsec2.CreateTagsInput{
		Resources: ids,
		Tags:      tags.Pairs(env),
	})
	if err != nil {
		return fmt.Errorf("CreateTags: %w", err)
	}
	return nil
}
