package ec2

import (
	"context"
	"errors"
)

// Status gathers everything tagged for the environment in one pass for the
// dashboard. Missing resources are nil fields, not errors.
func (c *Client) Status(ctx context.Context, env string) (*EnvironmentStatus, error) {
	status := &EnvironmentStatus{}

	req, err := c.FindSpotRequest(ctx, env)
	if err != nil {
		return nil, err
	}
	status.Request = req

	inst, err := c.FindLatestInstance(ctx, env)
	if err != nil && !errors.Is(err, ErrNoInstance) {
		return nil, err
	}
	status.Instance = inst

	vol, err := c.FindLatestVolume(ctx, env)
	if err != nil && !errors.Is(err, ErrNoVolume) {
		return nil, err
	}
	status.Volume = vol

	snap, err := c.FindLatestSnapshot(ctx, env)
	if err != nil {
		return nil, err
	}
	status.Snapshot = snap

	return status, nil
}
