package ec2

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"

	"tasnim.dev/mldev/internal/aws/tags"
	"tasnim.dev/mldev/internal/poll"
)

// AttachVolume ensures a data volume is attached to the instance at device.
// A detached leftover volume in the available state is reused; anything else
// gets a fresh gp3 volume in the instance's zone. Re-running attach while a
// volume is already attached therefore creates a second volume.
func (c *Client) AttachVolume(ctx context.Context, inst *Instance, env string, sizeGiB int32, device string) (*Volume, error) {
	log := clog.FromContext(ctx)

	vol, err := c.FindLatestVolume(ctx, env)
	if err != nil && !errors.Is(err, ErrNoVolume) {
		return nil, err
	}

	if vol != nil && types.VolumeState(vol.State) == types.VolumeStateAvailable {
		log.Infof("reusing volume %s (%d GiB, %s)", vol.ID, vol.SizeGiB, vol.AvailabilityZone)
	} else {
		vol, err = c.createVolume(ctx, env, inst.AvailabilityZone, sizeGiB)
		if err != nil {
			return nil, err
		}
	}

	log.Infof("attaching volume %s to instance %s at %s", vol.ID, inst.ID, device)
	if _, err := c.api.AttachVolume(ctx, &awsec2.AttachVolumeInput{
		Device:     aws.String(device),
		InstanceId: aws.String(inst.ID),
		VolumeId:   aws.String(vol.ID),
	}); err != nil {
		return nil, fmt.Errorf("AttachVolume: %w", err)
	}

	attached, err := c.awaitVolumeAttached(ctx, vol.ID)
	if err != nil {
		return nil, err
	}
	log.Infof("volume %s attached at %s", attached.ID, attached.Device)
	return attached, nil
}

// createVolume provisions a tagged gp3 volume and waits until it is
// available.
func (c *Client) createVolume(ctx context.Context, env, zone string, sizeGiB int32) (*Volume, error) {
	log := clog.FromContext(ctx)

	log.Infof("creating %d GiB gp3 volume in %s", sizeGiB, zone)
	out, err := c.api.CreateVolume(ctx, &awsec2.CreateVolumeInput{
		AvailabilityZone: aws.String(zone),
		Size:             aws.Int32(sizeGiB),
		VolumeType:       types.VolumeTypeGp3,
		ClientToken:      aws.String(uuid.New().String()),
		TagSpecifications: []types.TagSpecification{
			tags.Spec(types.ResourceTypeVolume, env),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("CreateVolume: %w", err)
	}

	return c.awaitVolumeState(ctx, aws.ToString(out.VolumeId), types.VolumeStateAvailable)
}

// DeleteVolume detaches (if needed) and deletes the environment's volume.
// No volume, or a volume that disappears mid-teardown, is a clean no-op.
func (c *Client) DeleteVolume(ctx context.Context, env string) error {
	log := clog.FromContext(ctx)

	vol, err := c.FindLatestVolume(ctx, env)
	if errors.Is(err, ErrNoVolume) {
		log.Infof("no volume tagged %s=%s, nothing to delete", tags.Environment, env)
		return nil
	}
	if err != nil {
		return err
	}

	if types.VolumeState(vol.State) == types.VolumeStateInUse {
		log.Infof("detaching volume %s from instance %s", vol.ID, vol.InstanceID)
		if _, err := c.api.DetachVolume(ctx, &awsec2.DetachVolumeInput{
			VolumeId: aws.String(vol.ID),
		}); err != nil {
			if isErrorCode(err, volumeNotFoundCode) {
				return nil
			}
			return fmt.Errorf("DetachVolume: %w", err)
		}
		if _, err := c.awaitVolumeState(ctx, vol.ID, types.VolumeStateAvailable); err != nil {
			return err
		}
	}

	log.Infof("deleting volume %s", vol.ID)
	if _, err := c.api.DeleteVolume(ctx, &awsec2.DeleteVolumeInput{
		VolumeId: aws.String(vol.ID),
	}); err != nil {
		if isErrorCode(err, volumeNotFoundCode) {
			return nil
		}
		return fmt.Errorf("DeleteVolume: %w", err)
	}

	if err := c.awaitVolumeGone(ctx, vol.ID); err != nil {
		return err
	}
	log.Infof("volume %s deleted", vol.ID)
	return nil
}

// FindLatestVolume returns the newest volume (by create time) tagged for the
// environment. Returns ErrNoVolume when nothing matches.
func (c *Client) FindLatestVolume(ctx context.Context, env string) (*Volume, error) {
	var latest *Volume
	var nextToken *string
	for {
		out, err := c.api.DescribeVolumes(ctx, &awsec2.DescribeVolumesInput{
			Filters:   []types.Filter{tags.EnvironmentFilter(env)},
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("DescribeVolumes: %w", err)
		}

		for _, raw := range out.Volumes {
			vol := mapVolume(raw)
			if latest == nil || !vol.CreateTime.Before(latest.CreateTime) {
				latest = &vol
			}
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	if latest == nil {
		return nil, fmt.Errorf("%w: environment %q", ErrNoVolume, env)
	}
	return latest, nil
}

// awaitVolumeState polls until the volume reaches want. The error state is
// terminal; a volume that vanishes mid-wait is an error here (teardown paths
// use awaitVolumeGone instead).
func (c *Client) awaitVolumeState(ctx context.Context, id string, want types.VolumeState) (*Volume, error) {
	log := clog.FromContext(ctx)
	var vol *Volume

	err := poll.Until(ctx, c.volumeWait.interval, c.volumeWait.attempts, func(ctx context.Context) (bool, error) {
		got, err := c.volumeByID(ctx, id)
		if err != nil {
			return false, err
		}
		if got == nil {
			return false, fmt.Errorf("volume %s disappeared while waiting for %s", id, want)
		}
		vol = got

		log.Debugf("volume %s state %s", id, vol.State)
		if types.VolumeState(vol.State) == types.VolumeStateError {
			return false, fmt.Errorf("volume %s entered error state", id)
		}
		return types.VolumeState(vol.State) == want, nil
	})
	if err != nil {
		return nil, err
	}
	return vol, nil
}

// awaitVolumeAttached polls until the volume is in-use with its attachment
// attached.
func (c *Client) awaitVolumeAttached(ctx context.Context, id string) (*Volume, error) {
	log := clog.FromContext(ctx)
	var vol *Volume

	err := poll.Until(ctx, c.volumeWait.interval, c.volumeWait.attempts, func(ctx context.Context) (bool, error) {
		got, err := c.volumeByID(ctx, id)
		if err != nil {
			return false, err
		}
		if got == nil {
			return false, fmt.Errorf("volume %s disappeared while attaching", id)
		}
		vol = got

		log.Debugf("volume %s state %s (attachment %s)", id, vol.State, vol.AttachmentState)
		return types.VolumeState(vol.State) == types.VolumeStateInUse &&
			types.VolumeAttachmentState(vol.AttachmentState) == types.VolumeAttachmentStateAttached, nil
	})
	if err != nil {
		return nil, err
	}
	return vol, nil
}

// awaitVolumeGone polls until the volume is deleted or no longer returned.
func (c *Client) awaitVolumeGone(ctx context.Context, id string) error {
	log := clog.FromContext(ctx)

	return poll.Until(ctx, c.volumeWait.interval, c.volumeWait.attempts, func(ctx context.Context) (bool, error) {
		vol, err := c.volumeByID(ctx, id)
		if err != nil {
			return false, err
		}
		if vol == nil {
			return true, nil
		}
		log.Debugf("volume %s state %s", id, vol.State)
		return types.VolumeState(vol.State) == types.VolumeStateDeleted, nil
	})
}

// volumeByID returns the volume, or nil when it no longer exists.
func (c *Client) volumeByID(ctx context.Context, id string) (*Volume, error) {
	out, err := c.api.DescribeVolumes(ctx, &awsec2.DescribeVolumesInput{
		VolumeIds: []string{id},
	})
	if err != nil {
		if isErrorCode(err, volumeNotFoundCode) {
			return nil, nil
		}
		return nil, fmt.Errorf("DescribeVolumes: %w", err)
	}
	if len(out.Volumes) == 0 {
		return nil, nil
	}
	vol := mapVolume(out.Volumes[0])
	return &vol, nil
}
