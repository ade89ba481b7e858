package ec2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"

	"tasnim.dev/mldev/internal/aws/tags"
	"tasnim.dev/mldev/internal/poll"
)

// CreateSnapshot snapshots the environment's volume. Returns right after the
// snapshot is started unless wait is set, in which case it polls until the
// snapshot completes. No volume to snapshot is an error (ErrNoVolume).
func (c *Client) CreateSnapshot(ctx context.Context, env, description string, wait bool) (*Snapshot, error) {
	log := clog.FromContext(ctx)

	vol, err := c.FindLatestVolume(ctx, env)
	if err != nil {
		return nil, err
	}
	if description == "" {
		description = env + "-ec2-snapshot"
	}

	out, err := c.api.CreateSnapshot(ctx, &awsec2.CreateSnapshotInput{
		VolumeId:    aws.String(vol.ID),
		Description: aws.String(description),
		TagSpecifications: []types.TagSpecification{
			tags.Spec(types.ResourceTypeSnapshot, env),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("CreateSnapshot: %w", err)
	}

	snap := &Snapshot{
		ID:          aws.ToString(out.SnapshotId),
		State:       string(out.State),
		VolumeID:    aws.ToString(out.VolumeId),
		Progress:    aws.ToString(out.Progress),
		Description: aws.ToString(out.Description),
		StartTime:   aws.ToTime(out.StartTime),
	}
	log.Infof("snapshot %s started for volume %s", snap.ID, vol.ID)

	if !wait {
		return snap, nil
	}
	return c.awaitSnapshotCompleted(ctx, snap.ID)
}

func (c *Client) awaitSnapshotCompleted(ctx context.Context, id string) (*Snapshot, error) {
	log := clog.FromContext(ctx)
	var snap Snapshot

	err := poll.Until(ctx, c.snapshotWait.interval, c.snapshotWait.attempts, func(ctx context.Context) (bool, error) {
		out, err := c.api.DescribeSnapshots(ctx, &awsec2.DescribeSnapshotsInput{
			SnapshotIds: []string{id},
		})
		if err != nil {
			return false, fmt.Errorf("DescribeSnapshots: %w", err)
		}
		if len(out.Snapshots) == 0 {
			return false, fmt.Errorf("snapshot %s disappeared while waiting", id)
		}

		snap = mapSnapshot(out.Snapshots[0])
		log.Debugf("snapshot %s state %s (%s)", id, snap.State, snap.Progress)
		switch types.SnapshotState(snap.State) {
		case types.SnapshotStateCompleted:
			return true, nil
		case types.SnapshotStateError:
			return false, fmt.Errorf("snapshot %s entered error state", id)
		default:
			return false, nil
		}
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// FindLatestSnapshot returns the most recent snapshot tagged for the
// environment, or nil when none exist.
func (c *Client) FindLatestSnapshot(ctx context.Context, env string) (*Snapshot, error) {
	var latest *Snapshot
	var nextToken *string
	for {
		out, err := c.api.DescribeSnapshots(ctx, &awsec2.DescribeSnapshotsInput{
			Filters:   []types.Filter{tags.EnvironmentFilter(env)},
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("DescribeSnapshots: %w", err)
		}

		for _, raw := range out.Snapshots {
			snap := mapSnapshot(raw)
			if latest == nil || !snap.StartTime.Before(latest.StartTime) {
				latest = &snap
			}
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	return latest, nil
}
