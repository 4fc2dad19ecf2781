package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/lofty-sh/lofty/pkg/reconcile"
)

// ObjectStoreService reads and writes bucket notification configurations.
//
// The store offers no conditional write, so fetch-merge-write against the
// same bucket from concurrent runs is last-writer-wins. Callers merge with
// reconcile.AppendLambdaRule rather than overwriting.
type ObjectStoreService interface {
	GetNotificationConfig(ctx context.Context, bucketID string) (*reconcile.NotificationConfig, error)
	PutNotificationConfig(ctx context.Context, bucketID string, cfg reconcile.NotificationConfig) error
}

// S3ObjectStoreService implements ObjectStoreService against S3.
type S3ObjectStoreService struct {
	client *s3.Client
}

// NewS3ObjectStoreService creates the S3-backed object store service.
func NewS3ObjectStoreService(client *s3.Client) *S3ObjectStoreService {
	return &S3ObjectStoreService{client: client}
}

// GetNotificationConfig returns the bucket's current configuration, or nil
// when the bucket has no subscriptions of any kind.
func (s *S3ObjectStoreService) GetNotificationConfig(ctx context.Context, bucketID string) (*reconcile.NotificationConfig, error) {
	out, err := s.client.GetBucketNotificationConfiguration(ctx, &s3.GetBucketNotificationConfigurationInput{
		Bucket: aws.String(bucketID),
	})
	if err != nil {
		return nil, fmt.Errorf("reading notification configuration of bucket %s: %w", bucketID, err)
	}
	cfg := &reconcile.NotificationConfig{
		Lambda:      out.LambdaFunctionConfigurations,
		Queue:       out.QueueConfigurations,
		Topic:       out.TopicConfigurations,
		EventBridge: out.EventBridgeConfiguration,
	}
	if len(cfg.Lambda) == 0 && len(cfg.Queue) == 0 && len(cfg.Topic) == 0 && cfg.EventBridge == nil {
		return nil, nil
	}
	return cfg, nil
}

func (s *S3ObjectStoreService) PutNotificationConfig(ctx context.Context, bucketID string, cfg reconcile.NotificationConfig) error {
	_, err := s.client.PutBucketNotificationConfiguration(ctx, &s3.PutBucketNotificationConfigurationInput{
		Bucket: aws.String(bucketID),
		NotificationConfiguration: &s3types.NotificationConfiguration{
			LambdaFunctionConfigurations: cfg.Lambda,
			QueueConfigurations:          cfg.Queue,
			TopicConfigurations:          cfg.Topic,
			EventBridgeConfiguration:     cfg.EventBridge,
		},
	})
	if err != nil {
		return fmt.Errorf("writing notification configuration of bucket %s: %w", bucketID, err)
	}
	return nil
}
