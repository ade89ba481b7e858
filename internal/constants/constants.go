package constants

// Defaults for the managed environment. The AMI is the AWS Deep Learning
// Base GPU AMI (Ubuntu); region-specific, overridable via config or flag.
const (
	DefaultEnvironment  = "ml-dev"
	DefaultKeyName      = "ml-dev-key"
	DefaultAMI          = "ami-08b9a877bc0de2016"
	DefaultInstanceType = "t2.micro"
	DefaultSSHUser      = "ubuntu"

	// Root volume baked into the spot launch specification.
	DefaultRootVolumeGiB = 128

	// Data volume managed by the volume subcommands.
	DefaultVolumeSizeGiB = 128
	DefaultVolumeDevice  = "/dev/sdf"
)
