package ec2

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// SpotRequest represents a one-time spot instance request.
type SpotRequest struct {
	ID            string
	State         string // open | active | closed | cancelled | failed
	StatusCode    string // provider detail, e.g. fulfilled, price-too-low
	StatusMessage string
	InstanceID    string // set once the request is fulfilled
	CreateTime    time.Time
}

// Instance represents the EC2 instance backing the environment.
type Instance struct {
	ID               string
	State            string
	InstanceType     string
	KeyName          string
	AvailabilityZone string
	PublicDNS        string
	PublicIP         string
	PrivateIP        string
	AMI              string
	LaunchTime       time.Time
	SpotRequestID    string
}

// PublicAddress returns the public DNS name when present, the public IP
// otherwise. Empty when the instance has neither yet.
func (i *Instance) PublicAddress() string {
	if i.PublicDNS != "" {
		return i.PublicDNS
	}
	return i.PublicIP
}

// SSHCommand renders the ssh invocation for the instance. The key file is
// assumed to live at ~/.ssh/<KeyName>.pem. The command is returned, never run.
func (i *Instance) SSHCommand(user string) (string, error) {
	addr := i.PublicAddress()
	if addr == "" {
		return "", fmt.Errorf("instance %s has no public address", i.ID)
	}
	if i.KeyName == "" {
		return "", fmt.Errorf("instance %s has no key pair", i.ID)
	}
	return fmt.Sprintf("ssh -i ~/.ssh/%s.pem %s@%s", i.KeyName, user, addr), nil
}

// Volume represents the managed data volume.
type Volume struct {
	ID               string
	State            string // creating | available | in-use | deleting | deleted | error
	AttachmentState  string // attaching | attached | detaching | detached (when attached)
	SizeGiB          int32
	AvailabilityZone string
	Device           string
	InstanceID       string
	CreateTime       time.Time
}

// Snapshot represents an EBS snapshot of the data volume.
type Snapshot struct {
	ID          string
	State       string // pending | completed | error
	VolumeID    string
	Progress    string
	Description string
	StartTime   time.Time
}

// EnvironmentStatus aggregates everything tagged for one environment.
// Nil fields mean the resource does not exist.
type EnvironmentStatus struct {
	Request  *SpotRequest
	Instance *Instance
	Volume   *Volume
	Snapshot *Snapshot
}

func mapSpotRequest(r types.SpotInstanceRequest) SpotRequest {
	req := SpotRequest{
		ID:         aws.ToString(r.SpotInstanceRequestId),
		State:      string(r.State),
		InstanceID: aws.ToString(r.InstanceId),
		CreateTime: aws.ToTime(r.CreateTime),
	}
	if r.Status != nil {
		req.StatusCode = aws.ToString(r.Status.Code)
		req.StatusMessage = aws.ToString(r.Status.Message)
	}
	return req
}

func mapInstance(i types.Instance) Instance {
	inst := Instance{
		ID:            aws.ToString(i.InstanceId),
		InstanceType:  string(i.InstanceType),
		KeyName:       aws.ToString(i.KeyName),
		PublicDNS:     aws.ToString(i.PublicDnsName),
		PublicIP:      aws.ToString(i.PublicIpAddress),
		PrivateIP:     aws.ToString(i.PrivateIpAddress),
		AMI:           aws.ToString(i.ImageId),
		LaunchTime:    aws.ToTime(i.LaunchTime),
		SpotRequestID: aws.ToString(i.SpotInstanceRequestId),
	}
	if i.State != nil {
		inst.State = string(i.State.Name)
	}
	if i.Placement != nil {
		inst.AvailabilityZone = aws.ToString(i.Placement.AvailabilityZone)
	}
	return inst
}

func mapVolume(v types.Volume) Volume {
	vol := Volume{
		ID:               aws.ToString(v.VolumeId),
		State:            string(v.State),
		SizeGiB:          aws.ToInt32(v.Size),
		AvailabilityZone: aws.ToString(v.AvailabilityZone),
		CreateTime:       aws.ToTime(v.CreateTime),
	}
	if len(v.Attachments) > 0 {
		att := v.Attachments[0]
		vol.AttachmentState = string(att.State)
		vol.Device = aws.ToString(att.Device)
		vol.InstanceID = aws.ToString(att.InstanceId)
	}
	return vol
}

func mapSnapshot(s types.Snapshot) Snapshot {
	return Snapshot{
		ID:          aws.ToString(s.SnapshotId),
		State:       string(s.State),
		VolumeID:    aws.ToString(s.VolumeId),
		Progress:    aws.ToString(s.Progress),
		Description: aws.ToString(s.Description),
		StartTime:   aws.ToTime(s.StartTime),
	}
}
