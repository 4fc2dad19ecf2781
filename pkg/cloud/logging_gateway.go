package cloud

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LoggedGatewayService decorates a GatewayService with call logging.
type LoggedGatewayService struct {
	next GatewayService
	log  zerolog.Logger
}

// WithGatewayLogging wraps svc so every call is logged.
func WithGatewayLogging(svc GatewayService, log zerolog.Logger) *LoggedGatewayService {
	return &LoggedGatewayService{next: svc, log: log}
}

func (s *LoggedGatewayService) CreateApi(ctx context.Context, name string) (string, error) {
	start := time.Now()
	id, err := s.next.CreateApi(ctx, name)
	logCall(s.log, "gateway", "CreateApi", start, err)
	return id, err
}

func (s *LoggedGatewayService) ListResources(ctx context.Context, apiID string) ([]GatewayResource, error) {
	start := time.Now()
	resources, err := s.next.ListResources(ctx, apiID)
	logCall(s.log, "gateway", "ListResources", start, err)
	return resources, err
}

func (s *LoggedGatewayService) CreateResource(ctx context.Context, apiID, parentID, pathPart string) (string, error) {
	start := time.Now()
	id, err := s.next.CreateResource(ctx, apiID, parentID, pathPart)
	logCall(s.log, "gateway", "CreateResource", start, err)
	return id, err
}

func (s *LoggedGatewayService) DeleteResource(ctx context.Context, apiID, resourceID string) error {
	start := time.Now()
	err := s.next.DeleteResource(ctx, apiID, resourceID)
	logCall(s.log, "gateway", "DeleteResource", start, err)
	return err
}

func (s *LoggedGatewayService) PutMethod(ctx context.Context, apiID, resourceID, httpMethod string) error {
	start := time.Now()
	err := s.next.PutMethod(ctx, apiID, resourceID, httpMethod)
	logCall(s.log, "gateway", "PutMethod", start, err)
	return err
}

func (s *LoggedGatewayService) PutProxyIntegration(ctx context.Context, apiID, resourceID, httpMethod, invocationURI string) error {
	start := time.Now()
	err := s.next.PutProxyIntegration(ctx, apiID, resourceID, httpMethod, invocationURI)
	logCall(s.log, "gateway", "PutProxyIntegration", start, err)
	return err
}

func (s *LoggedGatewayService) CreateDeployment(ctx context.Context, apiID, stageName string, stageVariables map[string]string) error {
	start := time.Now()
	err := s.next.CreateDeployment(ctx, apiID, stageName, stageVariables)
	logCall(s.log, "gateway", "CreateDeployment", start, err)
	return err
}

func (s *LoggedGatewayService) DeleteApi(ctx context.Context, apiID string) error {
	start := time.Now()
	err := s.next.DeleteApi(ctx, apiID)
	logCall(s.log, "gateway", "DeleteApi", start, err)
	return err
}
