package cloud

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/lofty-sh/lofty/pkg/reconcile"
)

// Call-logging decorators. Each wraps an adapter and records every remote
// call at debug level with its duration and outcome. They sit outside the
// retry engine, so a retried call logs once per attempt when the decorator
// wraps the raw adapter and once per logical call when it wraps the
// retried one.

func logCall(log zerolog.Logger, service, call string, start time.Time, err error) {
	evt := log.Debug().Str("service", service).Str("call", call).Dur("took", time.Since(start))
	if err != nil {
		evt = evt.Err(err).Str("code", ErrorCode(err))
	}
	evt.Msg("remote call")
}

// LoggedIdentityService decorates an IdentityService with call logging.
type LoggedIdentityService struct {
	next IdentityService
	log  zerolog.Logger
}

// WithIdentityLogging wraps svc so every call is logged.
func WithIdentityLogging(svc IdentityService, log zerolog.Logger) *LoggedIdentityService {
	return &LoggedIdentityService{next: svc, log: log}
}

func (s *LoggedIdentityService) GetRole(ctx context.Context, name string) (*ExecutionRole, error) {
	start := time.Now()
	role, err := s.next.GetRole(ctx, name)
	logCall(s.log, "identity", "GetRole", start, err)
	return role, err
}

func (s *LoggedIdentityService) CreateRole(ctx context.Context, name, trustPolicyDocument string) (*ExecutionRole, error) {
	start := time.Now()
	role, err := s.next.CreateRole(ctx, name, trustPolicyDocument)
	logCall(s.log, "identity", "CreateRole", start, err)
	return role, err
}

func (s *LoggedIdentityService) PutInlinePolicy(ctx context.Context, roleName, policyName, documentJSON string) error {
	start := time.Now()
	err := s.next.PutInlinePolicy(ctx, roleName, policyName, documentJSON)
	logCall(s.log, "identity", "PutInlinePolicy", start, err)
	return err
}

func (s *LoggedIdentityService) DeleteRole(ctx context.Context, name string) error {
	start := time.Now()
	err := s.next.DeleteRole(ctx, name)
	logCall(s.log, "identity", "DeleteRole", start, err)
	return err
}

// LoggedFunctionService decorates a FunctionService with call logging.
type LoggedFunctionService struct {
	next FunctionService
	log  zerolog.Logger
}

// WithFunctionLogging wraps svc so every call is logged.
func WithFunctionLogging(svc FunctionService, log zerolog.Logger) *LoggedFunctionService {
	return &LoggedFunctionService{next: svc, log: log}
}

func (s *LoggedFunctionService) GetConfiguration(ctx context.Context, name, qualifier string) (*FunctionConfigInfo, error) {
	start := time.Now()
	info, err := s.next.GetConfiguration(ctx, name, qualifier)
	logCall(s.log, "function", "GetConfiguration", start, err)
	return info, err
}

func (s *LoggedFunctionService) Create(ctx context.Context, spec FunctionSpec) (*FunctionInfo, error) {
	start := time.Now()
	info, err := s.next.Create(ctx, spec)
	logCall(s.log, "function", "Create", start, err)
	return info, err
}

func (s *LoggedFunctionService) UpdateCode(ctx context.Context, name string, zipFile []byte) (*FunctionInfo, error) {
	start := time.Now()
	info, err := s.next.UpdateCode(ctx, name, zipFile)
	logCall(s.log, "function", "UpdateCode", start, err)
	return info, err
}

func (s *LoggedFunctionService) PublishVersion(ctx context.Context, name string) (string, error) {
	start := time.Now()
	version, err := s.next.PublishVersion(ctx, name)
	logCall(s.log, "function", "PublishVersion", start, err)
	return version, err
}

func (s *LoggedFunctionService) CreateAlias(ctx context.Context, name, label, version string) error {
	start := time.Now()
	err := s.next.CreateAlias(ctx, name, label, version)
	logCall(s.log, "function", "CreateAlias", start, err)
	return err
}

func (s *LoggedFunctionService) UpdateAlias(ctx context.Context, name, label, version string) error {
	start := time.Now()
	err := s.next.UpdateAlias(ctx, name, label, version)
	logCall(s.log, "function", "UpdateAlias", start, err)
	return err
}

func (s *LoggedFunctionService) AddInvokePermission(ctx context.Context, name, principal, sourceArn, qualifier, statementID string) error {
	start := time.Now()
	err := s.next.AddInvokePermission(ctx, name, principal, sourceArn, qualifier, statementID)
	logCall(s.log, "function", "AddInvokePermission", start, err)
	return err
}

func (s *LoggedFunctionService) UpdateConfiguration(ctx context.Context, name string, env map[string]string, kmsKeyArn string) error {
	start := time.Now()
	err := s.next.UpdateConfiguration(ctx, name, env, kmsKeyArn)
	logCall(s.log, "function", "UpdateConfiguration", start, err)
	return err
}

func (s *LoggedFunctionService) Delete(ctx context.Context, name string) error {
	start := time.Now()
	err := s.next.Delete(ctx, name)
	logCall(s.log, "function", "Delete", start, err)
	return err
}

// LoggedObjectStoreService decorates an ObjectStoreService with call logging.
type LoggedObjectStoreService struct {
	next ObjectStoreService
	log  zerolog.Logger
}

// WithObjectStoreLogging wraps svc so every call is logged.
func WithObjectStoreLogging(svc ObjectStoreService, log zerolog.Logger) *LoggedObjectStoreService {
	return &LoggedObjectStoreService{next: svc, log: log}
}

func (s *LoggedObjectStoreService) GetNotificationConfig(ctx context.Context, bucketID string) (*reconcile.NotificationConfig, error) {
	start := time.Now()
	cfg, err := s.next.GetNotificationConfig(ctx, bucketID)
	logCall(s.log, "objectstore", "GetNotificationConfig", start, err)
	return cfg, err
}

func (s *LoggedObjectStoreService) PutNotificationConfig(ctx context.Context, bucketID string, cfg reconcile.NotificationConfig) error {
	start := time.Now()
	err := s.next.PutNotificationConfig(ctx, bucketID, cfg)
	logCall(s.log, "objectstore", "PutNotificationConfig", start, err)
	return err
}
