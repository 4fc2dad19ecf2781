package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	gwtypes "github.com/aws/aws-sdk-go-v2/service/apigateway/types"

	"github.com/lofty-sh/lofty/pkg/retry"
)

// GatewayResource is one node of an API's resource tree.
type GatewayResource struct {
	ID       string
	ParentID string
	Path     string
	PathPart string
}

// GatewayService manages the HTTP front end: the API itself, its resource
// tree and stage deployments.
type GatewayService interface {
	CreateApi(ctx context.Context, name string) (string, error)
	ListResources(ctx context.Context, apiID string) ([]GatewayResource, error)
	CreateResource(ctx context.Context, apiID, parentID, pathPart string) (string, error)
	DeleteResource(ctx context.Context, apiID, resourceID string) error
	PutMethod(ctx context.Context, apiID, resourceID, httpMethod string) error
	PutProxyIntegration(ctx context.Context, apiID, resourceID, httpMethod, invocationURI string) error
	CreateDeployment(ctx context.Context, apiID, stageName string, stageVariables map[string]string) error
	DeleteApi(ctx context.Context, apiID string) error
}

// APIGatewayService implements GatewayService against API Gateway. The
// management API enforces a low request-rate ceiling, so every call here is
// wrapped in the rate-limit retry predicate.
type APIGatewayService struct {
	client        *apigateway.Client
	retryDelay    time.Duration
	retryAttempts int
}

// NewAPIGatewayService creates the API Gateway-backed gateway service.
func NewAPIGatewayService(client *apigateway.Client) *APIGatewayService {
	return &APIGatewayService{
		client:        client,
		retryDelay:    3 * time.Second,
		retryAttempts: 10,
	}
}

func (s *APIGatewayService) retryOpts() retry.Options {
	return retry.Options{
		Delay:       s.retryDelay,
		MaxAttempts: s.retryAttempts,
		Retryable:   IsRateLimited,
	}
}

func (s *APIGatewayService) CreateApi(ctx context.Context, name string) (string, error) {
	out, err := retry.Do(ctx, func() (*apigateway.CreateRestApiOutput, error) {
		return s.client.CreateRestApi(ctx, &apigateway.CreateRestApiInput{
			Name: aws.String(name),
		})
	}, s.retryOpts())
	if err != nil {
		return "", fmt.Errorf("creating API %s: %w", name, err)
	}
	return aws.ToString(out.Id), nil
}

func (s *APIGatewayService) ListResources(ctx context.Context, apiID string) ([]GatewayResource, error) {
	var resources []GatewayResource
	var position *string
	for {
		out, err := retry.Do(ctx, func() (*apigateway.GetResourcesOutput, error) {
			return s.client.GetResources(ctx, &apigateway.GetResourcesInput{
				RestApiId: aws.String(apiID),
				Position:  position,
			})
		}, s.retryOpts())
		if err != nil {
			return nil, fmt.Errorf("listing resources of API %s: %w", apiID, err)
		}
		for _, item := range out.Items {
			resources = append(resources, GatewayResource{
				ID:       aws.ToString(item.Id),
				ParentID: aws.ToString(item.ParentId),
				Path:     aws.ToString(item.Path),
				PathPart: aws.ToString(item.PathPart),
			})
		}
		if out.Position == nil {
			return resources, nil
		}
		position = out.Position
	}
}

func (s *APIGatewayService) CreateResource(ctx context.Context, apiID, parentID, pathPart string) (string, error) {
	out, err := retry.Do(ctx, func() (*apigateway.CreateResourceOutput, error) {
		return s.client.CreateResource(ctx, &apigateway.CreateResourceInput{
			RestApiId: aws.String(apiID),
			ParentId:  aws.String(parentID),
			PathPart:  aws.String(pathPart),
		})
	}, s.retryOpts())
	if err != nil {
		return "", fmt.Errorf("creating resource %s in API %s: %w", pathPart, apiID, err)
	}
	return aws.ToString(out.Id), nil
}

func (s *APIGatewayService) DeleteResource(ctx context.Context, apiID, resourceID string) error {
	err := retry.DoVoid(ctx, func() error {
		_, err := s.client.DeleteResource(ctx, &apigateway.DeleteResourceInput{
			RestApiId:  aws.String(apiID),
			ResourceId: aws.String(resourceID),
		})
		return err
	}, s.retryOpts())
	if err != nil {
		return fmt.Errorf("deleting resource %s from API %s: %w", resourceID, apiID, err)
	}
	return nil
}

func (s *APIGatewayService) PutMethod(ctx context.Context, apiID, resourceID, httpMethod string) error {
	err := retry.DoVoid(ctx, func() error {
		_, err := s.client.PutMethod(ctx, &apigateway.PutMethodInput{
			RestApiId:         aws.String(apiID),
			ResourceId:        aws.String(resourceID),
			HttpMethod:        aws.String(httpMethod),
			AuthorizationType: aws.String("NONE"),
		})
		return err
	}, s.retryOpts())
	if err != nil {
		return fmt.Errorf("putting method %s on resource %s: %w", httpMethod, resourceID, err)
	}
	return nil
}

// PutProxyIntegration binds the method to the function through an AWS_PROXY
// integration. Gateway-to-function calls are always POST regardless of the
// front-end method.
func (s *APIGatewayService) PutProxyIntegration(ctx context.Context, apiID, resourceID, httpMethod, invocationURI string) error {
	err := retry.DoVoid(ctx, func() error {
		_, err := s.client.PutIntegration(ctx, &apigateway.PutIntegrationInput{
			RestApiId:             aws.String(apiID),
			ResourceId:            aws.String(resourceID),
			HttpMethod:            aws.String(httpMethod),
			Type:                  gwtypes.IntegrationTypeAwsProxy,
			IntegrationHttpMethod: aws.String("POST"),
			Uri:                   aws.String(invocationURI),
		})
		return err
	}, s.retryOpts())
	if err != nil {
		return fmt.Errorf("putting integration for %s on resource %s: %w", httpMethod, resourceID, err)
	}
	return nil
}

func (s *APIGatewayService) CreateDeployment(ctx context.Context, apiID, stageName string, stageVariables map[string]string) error {
	err := retry.DoVoid(ctx, func() error {
		_, err := s.client.CreateDeployment(ctx, &apigateway.CreateDeploymentInput{
			RestApiId: aws.String(apiID),
			StageName: aws.String(stageName),
			Variables: stageVariables,
		})
		return err
	}, s.retryOpts())
	if err != nil {
		return fmt.Errorf("deploying stage %s of API %s: %w", stageName, apiID, err)
	}
	return nil
}

func (s *APIGatewayService) DeleteApi(ctx context.Context, apiID string) error {
	err := retry.DoVoid(ctx, func() error {
		_, err := s.client.DeleteRestApi(ctx, &apigateway.DeleteRestApiInput{
			RestApiId: aws.String(apiID),
		})
		return err
	}, s.retryOpts())
	if err != nil {
		return fmt.Errorf("deleting API %s: %w", apiID, err)
	}
	return nil
}
