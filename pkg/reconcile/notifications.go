package reconcile

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// NotificationConfig is a bucket's full notification configuration. All
// subscription kinds are carried so that writing a merged configuration back
// never drops entries registered by other tools.
type NotificationConfig struct {
	Lambda      []s3types.LambdaFunctionConfiguration
	Queue       []s3types.QueueConfiguration
	Topic       []s3types.TopicConfiguration
	EventBridge *s3types.EventBridgeConfiguration
}

// NewLambdaRule builds a function subscription for the given event types.
// The filter block is attached only when a prefix or suffix was supplied:
// the remote API treats an empty filter-rule list as a real (match-nothing)
// filter, not as "no filter".
func NewLambdaRule(functionArn string, events []string, prefix, suffix string) s3types.LambdaFunctionConfiguration {
	rule := s3types.LambdaFunctionConfiguration{
		LambdaFunctionArn: aws.String(functionArn),
	}
	for _, e := range events {
		rule.Events = append(rule.Events, s3types.Event(e))
	}

	var filters []s3types.FilterRule
	if prefix != "" {
		filters = append(filters, s3types.FilterRule{
			Name:  s3types.FilterRuleNamePrefix,
			Value: aws.String(prefix),
		})
	}
	if suffix != "" {
		filters = append(filters, s3types.FilterRule{
			Name:  s3types.FilterRuleNameSuffix,
			Value: aws.String(suffix),
		})
	}
	if len(filters) > 0 {
		rule.Filter = &s3types.NotificationConfigurationFilter{
			Key: &s3types.S3KeyFilter{FilterRules: filters},
		}
	}
	return rule
}

// AppendLambdaRule appends rule to the bucket's existing configuration.
// A nil existing configuration yields a singleton; otherwise prior entries
// are preserved unchanged and in order, with rule added at the end. The
// input configuration is not mutated.
func AppendLambdaRule(existing *NotificationConfig, rule s3types.LambdaFunctionConfiguration) NotificationConfig {
	if existing == nil {
		return NotificationConfig{
			Lambda: []s3types.LambdaFunctionConfiguration{rule},
		}
	}
	merged := NotificationConfig{
		Lambda:      make([]s3types.LambdaFunctionConfiguration, 0, len(existing.Lambda)+1),
		Queue:       existing.Queue,
		Topic:       existing.Topic,
		EventBridge: existing.EventBridge,
	}
	merged.Lambda = append(merged.Lambda, existing.Lambda...)
	merged.Lambda = append(merged.Lambda, rule)
	return merged
}
