// Package cloud holds the capability contracts the provisioning pipeline
// drives and their AWS implementations. The pipeline treats every adapter
// as already authenticated; credentials come from the SDK's default chain.
package cloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// CallerIdentity describes the account the pipeline operates in.
type CallerIdentity struct {
	AccountID string
	Partition string
	Region    string
}

// Session bundles the typed service clients for one region plus the caller
// identity resolved once at session start.
type Session struct {
	Identity    *IAMIdentityService
	Functions   *LambdaFunctionService
	Gateway     *APIGatewayService
	ObjectStore *S3ObjectStoreService
	Caller      CallerIdentity
}

// NewSession loads the default AWS configuration for region and resolves
// the caller identity through STS.
func NewSession(ctx context.Context, region string) (*Session, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}

	out, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("resolving caller identity: %w", err)
	}
	caller := CallerIdentity{
		AccountID: aws.ToString(out.Account),
		Partition: partitionFromArn(aws.ToString(out.Arn)),
		Region:    region,
	}

	return &Session{
		Identity:    NewIAMIdentityService(iam.NewFromConfig(cfg)),
		Functions:   NewLambdaFunctionService(lambda.NewFromConfig(cfg)),
		Gateway:     NewAPIGatewayService(apigateway.NewFromConfig(cfg)),
		ObjectStore: NewS3ObjectStoreService(s3.NewFromConfig(cfg)),
		Caller:      caller,
	}, nil
}

// partitionFromArn extracts the partition segment of an ARN
// (arn:PARTITION:service:...), defaulting to the commercial partition.
func partitionFromArn(arn string) string {
	parts := strings.Split(arn, ":")
	if len(parts) > 1 && parts[1] != "" {
		return parts[1]
	}
	return "aws"
}
