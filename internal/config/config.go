package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"tasnim.dev/mldev/internal/constants"
)

// Config holds optional defaults loaded from ~/.config/mldev/config.yaml.
// Every field can be overridden by a CLI flag, and unset fields fall back
// to the built-in defaults.
type Config struct {
	DefaultProfile      string `yaml:"default_profile"`
	DefaultRegion       string `yaml:"default_region"`
	Environment         string `yaml:"environment"`
	KeyName             string `yaml:"key_name"`
	InstanceType        string `yaml:"instance_type"`
	AMI                 string `yaml:"ami"`
	SecurityGroupID     string `yaml:"security_group_id"`
	StackName           string `yaml:"stack_name"`
	VolumeSizeGiB       int32  `yaml:"volume_size_gib"`
	VolumeDevice        string `yaml:"volume_device"`
	SSHUser             string `yaml:"ssh_user"`
	AutoRefreshInterval int    `yaml:"auto_refresh_interval"`
}

// Load reads the config file. Returns zero-value Config if the file doesn't exist.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return &Config{}, nil
	}

	path := filepath.Join(home, ".config", "mldev", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Merge applies CLI flag overrides. Flags take precedence over config defaults.
func (c *Config) Merge(profile, region string) (string, string) {
	p := c.DefaultProfile
	if profile != "" {
		p = profile
	}
	r := c.DefaultRegion
	if region != "" {
		r = region
	}
	return p, r
}

// The Resolve helpers apply the same precedence everywhere: CLI flag, then
// config file, then built-in default.

func (c *Config) ResolveEnv(flag string) string {
	return pick(flag, c.Environment, constants.DefaultEnvironment)
}

func (c *Config) ResolveKeyName(flag string) string {
	return pick(flag, c.KeyName, constants.DefaultKeyName)
}

func (c *Config) ResolveInstanceType(flag string) string {
	return pick(flag, c.InstanceType, constants.DefaultInstanceType)
}

func (c *Config) ResolveAMI(flag string) string {
	return pick(flag, c.AMI, constants.DefaultAMI)
}

func (c *Config) ResolveVolumeDevice(flag string) string {
	return pick(flag, c.VolumeDevice, constants.DefaultVolumeDevice)
}

func (c *Config) ResolveSSHUser(flag string) string {
	return pick(flag, c.SSHUser, constants.DefaultSSHUser)
}

// ResolveSecurityGroup has no built-in default; an empty result means the
// caller should look the group up from the CloudFormation stack.
func (c *Config) ResolveSecurityGroup(flag string) string {
	return pick(flag, c.SecurityGroupID)
}

func (c *Config) ResolveStackName(flag string) string {
	return pick(flag, c.StackName)
}

func (c *Config) ResolveVolumeSize(flag int32) int32 {
	if flag > 0 {
		return flag
	}
	if c.VolumeSizeGiB > 0 {
		return c.VolumeSizeGiB
	}
	return constants.DefaultVolumeSizeGiB
}

// RefreshInterval returns the status dashboard refresh period, clamped to a
// 5 second floor. Zero means the 15 second default.
func (c *Config) RefreshInterval() time.Duration {
	if c.AutoRefreshInterval == 0 {
		return 15 * time.Second
	}
	if c.AutoRefreshInterval < 5 {
		return 5 * time.Second
	}
	return time.Duration(c.AutoRefreshInterval) * time.Second
}

func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
