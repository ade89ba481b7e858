package ec2

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

func testInstance() *Instance {
	return &Instance{
		ID:               "i-0abc",
		State:            "running",
		AvailabilityZone: "us-east-1a",
		KeyName:          "ml-dev-key",
	}
}

func sdkVolume(id string, state types.VolumeState, created time.Time, attachment *types.VolumeAttachment) types.Volume {
	vol := types.Volume{
		VolumeId:         awssdk.String(id),
		State:            state,
		Size:             awssdk.Int32(128),
		AvailabilityZone: awssdk.String("us-east-1a"),
		CreateTime:       &created,
	}
	if attachment != nil {
		vol.Attachments = []types.VolumeAttachment{*attachment}
	}
	return vol
}

func volumesOutput(vols ...types.Volume) *awsec2.DescribeVolumesOutput {
	return &awsec2.DescribeVolumesOutput{Volumes: vols}
}

func TestAttachVolume_CreatesWhenNoneTagged(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var createInput *awsec2.CreateVolumeInput
	var attachInput *awsec2.AttachVolumeInput
	describeByID := 0

	mock := &mockEC2API{
		describeVolumesFunc: func(ctx context.Context, params *awsec2.DescribeVolumesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeVolumesOutput, error) {
			if len(params.VolumeIds) == 0 {
				// discovery by tag: nothing exists yet
				return volumesOutput(), nil
			}
			describeByID++
			switch describeByID {
			case 1:
				return volumesOutput(sdkVolume("vol-1", types.VolumeStateCreating, created, nil)), nil
			case 2:
				return volumesOutput(sdkVolume("vol-1", types.VolumeStateAvailable, created, nil)), nil
			case 3:
				return volumesOutput(sdkVolume("vol-1", types.VolumeStateInUse, created, &types.VolumeAttachment{
					State:      types.VolumeAttachmentStateAttaching,
					Device:     awssdk.String("/dev/sdf"),
					InstanceId: awssdk.String("i-0abc"),
				})), nil
			default:
				return volumesOutput(sdkVolume("vol-1", types.VolumeStateInUse, created, &types.VolumeAttachment{
					State:      types.VolumeAttachmentStateAttached,
					Device:     awssdk.String("/dev/sdf"),
					InstanceId: awssdk.String("i-0abc"),
				})), nil
			}
		},
		createVolumeFunc: func(ctx context.Context, params *awsec2.CreateVolumeInput, optFns ...func(*awsec2.Options)) (*awsec2.CreateVolumeOutput, error) {
			createInput = params
			return &awsec2.CreateVolumeOutput{VolumeId: awssdk.String("vol-1"), State: types.VolumeStateCreating}, nil
		},
		attachVolumeFunc: func(ctx context.Context, params *awsec2.AttachVolumeInput, optFns ...func(*awsec2.Options)) (*awsec2.AttachVolumeOutput, error) {
			attachInput = params
			return &awsec2.AttachVolumeOutput{State: types.VolumeAttachmentStateAttaching}, nil
		},
	}

	client := newTestClient(mock)
	vol, err := client.AttachVolume(context.Background(), testInstance(), "ml-dev", 128, "/dev/sdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if vol.ID != "vol-1" || vol.State != "in-use" || vol.AttachmentState != "attached" {
		t.Errorf("volume = %+v, want vol-1 in-use/attached", vol)
	}
	if vol.Device != "/dev/sdf" {
		t.Errorf("Device = %s, want /dev/sdf", vol.Device)
	}

	if awssdk.ToString(createInput.AvailabilityZone) != "us-east-1a" {
		t.Errorf("CreateVolume AZ = %s, want us-east-1a (instance zone)", awssdk.ToString(createInput.AvailabilityZone))
	}
	if awssdk.ToInt32(createInput.Size) != 128 {
		t.Errorf("CreateVolume Size = %d, want 128", awssdk.ToInt32(createInput.Size))
	}
	if createInput.VolumeType != types.VolumeTypeGp3 {
		t.Errorf("CreateVolume Type = %s, want gp3", createInput.VolumeType)
	}
	if len(createInput.TagSpecifications) != 1 || createInput.TagSpecifications[0].ResourceType != types.ResourceTypeVolume {
		t.Errorf("TagSpecifications = %+v", createInput.TagSpecifications)
	}

	if awssdk.ToString(attachInput.Device) != "/dev/sdf" {
		t.Errorf("AttachVolume Device = %s, want /dev/sdf", awssdk.ToString(attachInput.Device))
	}
	if awssdk.ToString(attachInput.InstanceId) != "i-0abc" {
		t.Errorf("AttachVolume InstanceId = %s, want i-0abc", awssdk.ToString(attachInput.InstanceId))
	}
	if awssdk.ToString(attachInput.VolumeId) != "vol-1" {
		t.Errorf("AttachVolume VolumeId = %s, want vol-1", awssdk.ToString(attachInput.VolumeId))
	}

	// creating→available took one extra poll, attaching→attached one more
	if describeByID != 4 {
		t.Errorf("expected 4 polls by id, got %d", describeByID)
	}
}

func TestAttachVolume_ReusesAvailableVolume(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	createCalls := 0

	mock := &mockEC2API{
		describeVolumesFunc: func(ctx context.Context, params *awsec2.DescribeVolumesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeVolumesOutput, error) {
			if len(params.VolumeIds) == 0 {
				return volumesOutput(sdkVolume("vol-old", types.VolumeStateAvailable, created, nil)), nil
			}
			return volumesOutput(sdkVolume("vol-old", types.VolumeStateInUse, created, &types.VolumeAttachment{
				State:      types.VolumeAttachmentStateAttached,
				Device:     awssdk.String("/dev/sdf"),
				InstanceId: awssdk.String("i-0abc"),
			})), nil
		},
		createVolumeFunc: func(ctx context.Context, params *awsec2.CreateVolumeInput, optFns ...func(*awsec2.Options)) (*awsec2.CreateVolumeOutput, error) {
			createCalls++
			return &awsec2.CreateVolumeOutput{}, nil
		},
		attachVolumeFunc: func(ctx context.Context, params *awsec2.AttachVolumeInput, optFns ...func(*awsec2.Options)) (*awsec2.AttachVolumeOutput, error) {
			return &awsec2.AttachVolumeOutput{}, nil
		},
	}

	client := newTestClient(mock)
	vol, err := client.AttachVolume(context.Background(), testInstance(), "ml-dev", 128, "/dev/sdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if createCalls != 0 {
		t.Errorf("expected reuse without CreateVolume, got %d calls", createCalls)
	}
	if vol.ID != "vol-old" {
		t.Errorf("ID = %s, want vol-old", vol.ID)
	}
}

func TestAttachVolume_InUseVolumeGetsSecond(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	createCalls := 0
	attached := false

	mock := &mockEC2API{
		describeVolumesFunc: func(ctx context.Context, params *awsec2.DescribeVolumesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeVolumesOutput, error) {
			if len(params.VolumeIds) == 0 {
				// the tagged volume is attached to a live instance
				return volumesOutput(sdkVolume("vol-busy", types.VolumeStateInUse, created, &types.VolumeAttachment{
					State:      types.VolumeAttachmentStateAttached,
					Device:     awssdk.String("/dev/sdf"),
					InstanceId: awssdk.String("i-0abc"),
				})), nil
			}
			if params.VolumeIds[0] != "vol-2" {
				t.Errorf("unexpected volume id %s", params.VolumeIds[0])
			}
			if attached {
				return volumesOutput(sdkVolume("vol-2", types.VolumeStateInUse, created.Add(time.Hour), &types.VolumeAttachment{
					State:      types.VolumeAttachmentStateAttached,
					Device:     awssdk.String("/dev/sdg"),
					InstanceId: awssdk.String("i-0abc"),
				})), nil
			}
			return volumesOutput(sdkVolume("vol-2", types.VolumeStateAvailable, created.Add(time.Hour), nil)), nil
		},
		createVolumeFunc: func(ctx context.Context, params *awsec2.CreateVolumeInput, optFns ...func(*awsec2.Options)) (*awsec2.CreateVolumeOutput, error) {
			createCalls++
			return &awsec2.CreateVolumeOutput{VolumeId: awssdk.String("vol-2"), State: types.VolumeStateCreating}, nil
		},
		attachVolumeFunc: func(ctx context.Context, params *awsec2.AttachVolumeInput, optFns ...func(*awsec2.Options)) (*awsec2.AttachVolumeOutput, error) {
			attached = true
			return &awsec2.AttachVolumeOutput{}, nil
		},
	}

	client := newTestClient(mock)
	vol, err := client.AttachVolume(context.Background(), testInstance(), "ml-dev", 128, "/dev/sdg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if createCalls != 1 {
		t.Fatalf("expected a second volume to be created, got %d calls", createCalls)
	}
	if vol.ID != "vol-2" {
		t.Errorf("ID = %s, want vol-2", vol.ID)
	}
}

func TestDeleteVolume_NothingTaggedIsNoOp(t *testing.T) {
	deleted := 0
	mock := &mockEC2API{
		describeVolumesFunc: func(ctx context.Context, params *awsec2.DescribeVolumesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeVolumesOutput, error) {
			return volumesOutput(), nil
		},
		deleteVolumeFunc: func(ctx context.Context, params *awsec2.DeleteVolumeInput, optFns ...func(*awsec2.Options)) (*awsec2.DeleteVolumeOutput, error) {
			deleted++
			return &awsec2.DeleteVolumeOutput{}, nil
		},
	}

	client := newTestClient(mock)
	if err := client.DeleteVolume(context.Background(), "ml-dev"); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected no DeleteVolume calls, got %d", deleted)
	}
}

func TestDeleteVolume_DetachesBeforeDelete(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var order []string
	describeByID := 0

	mock := &mockEC2API{
		describeVolumesFunc: func(ctx context.Context, params *awsec2.DescribeVolumesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeVolumesOutput, error) {
			if len(params.VolumeIds) == 0 {
				return volumesOutput(sdkVolume("vol-1", types.VolumeStateInUse, created, &types.VolumeAttachment{
					State:      types.VolumeAttachmentStateAttached,
					Device:     awssdk.String("/dev/sdf"),
					InstanceId: awssdk.String("i-0abc"),
				})), nil
			}
			describeByID++
			switch describeByID {
			case 1:
				return volumesOutput(sdkVolume("vol-1", types.VolumeStateInUse, created, &types.VolumeAttachment{
					State: types.VolumeAttachmentStateDetaching,
				})), nil
			case 2:
				return volumesOutput(sdkVolume("vol-1", types.VolumeStateAvailable, created, nil)), nil
			default:
				return nil, notFoundErr(volumeNotFoundCode)
			}
		},
		detachVolumeFunc: func(ctx context.Context, params *awsec2.DetachVolumeInput, optFns ...func(*awsec2.Options)) (*awsec2.DetachVolumeOutput, error) {
			order = append(order, "detach")
			return &awsec2.DetachVolumeOutput{}, nil
		},
		deleteVolumeFunc: func(ctx context.Context, params *awsec2.DeleteVolumeInput, optFns ...func(*awsec2.Options)) (*awsec2.DeleteVolumeOutput, error) {
			order = append(order, "delete")
			if awssdk.ToString(params.VolumeId) != "vol-1" {
				t.Errorf("VolumeId = %s, want vol-1", awssdk.ToString(params.VolumeId))
			}
			return &awsec2.DeleteVolumeOutput{}, nil
		},
	}

	client := newTestClient(mock)
	if err := client.DeleteVolume(context.Background(), "ml-dev"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	detachIdx := slices.Index(order, "detach")
	deleteIdx := slices.Index(order, "delete")
	if detachIdx == -1 || deleteIdx == -1 || detachIdx > deleteIdx {
		t.Errorf("detach must happen before delete, order = %v", order)
	}
}

func TestDeleteVolume_AvailableSkipsDetach(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	detached := 0
	mock := &mockEC2API{
		describeVolumesFunc: func(ctx context.Context, params *awsec2.DescribeVolumesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeVolumesOutput, error) {
			if len(params.VolumeIds) == 0 {
				return volumesOutput(sdkVolume("vol-1", types.VolumeStateAvailable, created, nil)), nil
			}
			return volumesOutput(sdkVolume("vol-1", types.VolumeStateDeleted, created, nil)), nil
		},
		detachVolumeFunc: func(ctx context.Context, params *awsec2.DetachVolumeInput, optFns ...func(*awsec2.Options)) (*awsec2.DetachVolumeOutput, error) {
			detached++
			return &awsec2.DetachVolumeOutput{}, nil
		},
		deleteVolumeFunc: func(ctx context.Context, params *awsec2.DeleteVolumeInput, optFns ...func(*awsec2.Options)) (*awsec2.DeleteVolumeOutput, error) {
			return &awsec2.DeleteVolumeOutput{}, nil
		},
	}

	client := newTestClient(mock)
	if err := client.DeleteVolume(context.Background(), "ml-dev"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detached != 0 {
		t.Errorf("expected no detach for available volume, got %d", detached)
	}
}

func TestDeleteVolume_AlreadyGone(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock := &mockEC2API{
		describeVolumesFunc: func(ctx context.Context, params *awsec2.DescribeVolumesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeVolumesOutput, error) {
			return volumesOutput(sdkVolume("vol-1", types.VolumeStateAvailable, created, nil)), nil
		},
		deleteVolumeFunc: func(ctx context.Context, params *awsec2.DeleteVolumeInput, optFns ...func(*awsec2.Options)) (*awsec2.DeleteVolumeOutput, error) {
			return nil, notFoundErr(volumeNotFoundCode)
		},
	}

	client := newTestClient(mock)
	if err := client.DeleteVolume(context.Background(), "ml-dev"); err != nil {
		t.Fatalf("expected success for already-deleted volume, got %v", err)
	}
}

func TestFindLatestVolume_PicksNewest(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock := &mockEC2API{
		describeVolumesFunc: func(ctx context.Context, params *awsec2.DescribeVolumesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeVolumesOutput, error) {
			return volumesOutput(
				sdkVolume("vol-old", types.VolumeStateAvailable, base, nil),
				sdkVolume("vol-new", types.VolumeStateAvailable, base.Add(time.Hour), nil),
			), nil
		},
	}

	client := newTestClient(mock)
	vol, err := client.FindLatestVolume(context.Background(), "ml-dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vol.ID != "vol-new" {
		t.Errorf("ID = %s, want vol-new", vol.ID)
	}
}

func TestFindLatestVolume_NoneFound(t *testing.T) {
	mock := &mockEC2API{
		describeVolumesFunc: func(ctx context.Context, params *awsec2.DescribeVolumesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeVolumesOutput, error) {
			return volumesOutput(), nil
		},
	}

	client := newTestClient(mock)
	_, err := client.FindLatestVolume(context.Background(), "ml-dev")
	if !errors.Is(err, ErrNoVolume) {
		t.Fatalf("expected ErrNoVolume, got %v", err)
	}
}
