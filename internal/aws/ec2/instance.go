package ec2

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"

	"tasnim.dev/mldev/internal/aws/tags"
	"tasnim.dev/mldev/internal/poll"
)

// FindLatestInstance returns the newest instance (by launch time) tagged for
// the environment, optionally restricted to the given states. Returns
// ErrNoInstance when nothing matches.
func (c *Client) FindLatestInstance(ctx context.Context, env string, states ...types.InstanceStateName) (*Instance, error) {
	filters := []types.Filter{tags.EnvironmentFilter(env)}
	if len(states) > 0 {
		filters = append(filters, tags.InstanceStateFilter(states...))
	}

	var latest *Instance
	var nextToken *string
	for {
		out, err := c.api.DescribeInstances(ctx, &awsec2.DescribeInstancesInput{
			Filters:   filters,
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("DescribeInstances: %w", err)
		}

		for _, reservation := range out.Reservations {
			for _, raw := range reservation.Instances {
				inst := mapInstance(raw)
				if latest == nil || !inst.LaunchTime.Before(latest.LaunchTime) {
					latest = &inst
				}
			}
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	if latest == nil {
		return nil, fmt.Errorf("%w: environment %q", ErrNoInstance, env)
	}
	return latest, nil
}

// FindLiveInstance returns the newest pending or running instance tagged for
// the environment.
func (c *Client) FindLiveInstance(ctx context.Context, env string) (*Instance, error) {
	return c.FindLatestInstance(ctx, env,
		types.InstanceStateNamePending, types.InstanceStateNameRunning)
}

// Terminate tears down the environment's instance. A live one-time spot
// request must be cancelled before its instance is terminated, otherwise it
// can refulfill; the cancel therefore always goes first. No instance is a
// clean no-op.
func (c *Client) Terminate(ctx context.Context, env string) error {
	log := clog.FromContext(ctx)

	inst, err := c.FindLatestInstance(ctx, env,
		types.InstanceStateNamePending, types.InstanceStateNameRunning,
		types.InstanceStateNameStopping, types.InstanceStateNameStopped)
	if errors.Is(err, ErrNoInstance) {
		log.Infof("no instance tagged %s=%s, nothing to terminate", tags.Environment, env)
		return nil
	}
	if err != nil {
		return err
	}

	if err := c.cancelSpotRequests(ctx, inst.ID); err != nil {
		return err
	}

	log.Infof("terminating instance %s", inst.ID)
	if _, err := c.api.TerminateInstances(ctx, &awsec2.TerminateInstancesInput{
		InstanceIds: []string{inst.ID},
	}); err != nil {
		if isErrorCode(err, instanceNotFoundCode) {
			return nil
		}
		return fmt.Errorf("TerminateInstances: %w", err)
	}

	if err := c.awaitInstanceTerminated(ctx, inst.ID); err != nil {
		return err
	}
	log.Infof("instance %s terminated", inst.ID)
	return nil
}

// cancelSpotRequests cancels any open or active spot request attached to the
// instance.
func (c *Client) cancelSpotRequests(ctx context.Context, instanceID string) error {
	log := clog.FromContext(ctx)

	out, err := c.api.DescribeSpotInstanceRequests(ctx, &awsec2.DescribeSpotInstanceRequestsInput{
		Filters: []types.Filter{
			{Name: aws.String("instance-id"), Values: []string{instanceID}},
			{Name: aws.String("state"), Values: []string{"open", "active"}},
		},
	})
	if err != nil {
		return fmt.Errorf("DescribeSpotInstanceRequests: %w", err)
	}
	if len(out.SpotInstanceRequests) == 0 {
		return nil
	}

	ids := make([]string, 0, len(out.SpotInstanceRequests))
	for _, r := range out.SpotInstanceRequests {
		ids = append(ids, aws.ToString(r.SpotInstanceRequestId))
	}
	log.Infof("cancelling spot request %s", strings.Join(ids, ", "))
	if _, err := c.api.CancelSpotInstanceRequests(ctx, &awsec2.CancelSpotInstanceRequestsInput{
		SpotInstanceRequestIds: ids,
	}); err != nil {
		return fmt.Errorf("CancelSpotInstanceRequests: %w", err)
	}
	return nil
}

func (c *Client) awaitInstanceTerminated(ctx context.Context, id string) error {
	log := clog.FromContext(ctx)

	return poll.Until(ctx, c.terminateWait.interval, c.terminateWait.attempts, func(ctx context.Context) (bool, error) {
		inst, err := c.instanceByID(ctx, id)
		if err != nil {
			return false, err
		}
		if inst == nil {
			return true, nil
		}
		log.Debugf("instance %s state %s", id, inst.State)
		return types.InstanceStateName(inst.State) == types.InstanceStateNameTerminated, nil
	})
}

// instanceByID returns the instance, or nil when it no longer exists.
func (c *Client) instanceByID(ctx context.Context, id string) (*Instance, error) {
	out, err := c.api.DescribeInstances(ctx, &awsec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		if isErrorCode(err, instanceNotFoundCode) {
			return nil, nil
		}
		return nil, fmt.Errorf("DescribeInstances: %w", err)
	}
	for _, reservation := range out.Reservations {
		for _, raw := range reservation.Instances {
			inst := mapInstance(raw)
			return &inst, nil
		}
	}
	return nil, nil
}
