package tags

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// Environment is the discovery tag key. Every resource the tool creates
// carries it, and every lookup filters on it; tags are the only state the
// tool keeps.
const Environment = "mldev:environment"

// Name mirrors the environment onto the console-visible Name tag.
const Name = "Name"

// Spec returns the tag specification applied when a resource is created, so
// discovery works even if a later step of the workflow fails.
func Spec(rt types.ResourceType, env string) types.TagSpecification {
	return types.TagSpecification{
		ResourceType: rt,
		Tags:         Pairs(env),
	}
}

// Pairs returns the tag set for an environment, for APIs that take raw tags.
func Pairs(env string) []types.Tag {
	return []types.Tag{
		{Key: aws.String(Environment), Value: aws.String(env)},
		{Key: aws.String(Name), Value: aws.String(env)},
	}
}

// EnvironmentFilter matches resources tagged with the discovery key.
func EnvironmentFilter(env string) types.Filter {
	return types.Filter{
		Name:   aws.String("tag:" + Environment),
		Values: []string{env},
	}
}

// InstanceStateFilter restricts DescribeInstances to the given states.
func InstanceStateFilter(states ...types.InstanceStateName) types.Filter {
	values := make([]string, len(states))
	for i, s := range states {
		values[i] = string(s)
	}
	return types.Filter{
		Name:   aws.String("instance-state-name"),
		Values: values,
	}
}
