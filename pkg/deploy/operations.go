package deploy

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lofty-sh/lofty/pkg/cloud"
	"github.com/lofty-sh/lofty/pkg/descriptor"
	"github.com/lofty-sh/lofty/pkg/reconcile"
	"github.com/lofty-sh/lofty/pkg/routes"
)

// SetVersionRequest are the inputs of a set-version run against an
// existing deployment.
type SetVersionRequest struct {
	Label     string
	Env       map[string]string
	EnvMode   reconcile.EnvMode
	KMSKeyArn string
}

// SetVersion reconciles environment variables, publishes a fresh version
// and binds the label to it. When the deployment has a gateway, the
// matching stage is deployed and granted invoke permission.
func (p *Pipeline) SetVersion(ctx context.Context, cfg *descriptor.DeploymentConfig, req SetVersionRequest) (*Result, error) {
	p.reporter.Stage(StageValidate)
	if req.Label == "" {
		return nil, NewValidationError("a version label is required (--label)").WithStage(StageValidate)
	}
	if req.Label == LatestLabel {
		return nil, NewValidationError("label latest is reserved").WithStage(StageValidate)
	}
	name := cfg.Function.Name

	if len(req.Env) > 0 || req.KMSKeyArn != "" {
		if err := p.reconcileEnv(ctx, cfg, req.Env, req.EnvMode, req.KMSKeyArn); err != nil {
			return nil, err
		}
	}

	p.reporter.Stage(StageBindAliases)
	version, err := p.services.Functions.PublishVersion(ctx, name)
	if err != nil {
		return nil, wrapProviderError("publishing version", err, StageBindAliases)
	}
	if err := p.aliases.Ensure(ctx, name, version, req.Label); err != nil {
		return nil, wrapProviderError("binding alias "+req.Label, err, StageBindAliases)
	}
	p.reporter.Substage(StageBindAliases, fmt.Sprintf("alias %s now points at version %s", req.Label, version))

	result := &Result{Config: cfg, FunctionVersion: version}
	if cfg.Gateway != nil {
		p.reporter.Stage(StageExposeApi)
		sourceArn := routes.InvokeSourceArn(p.services.Caller, cfg.Gateway.ID)
		err := p.services.Functions.AddInvokePermission(ctx, name, gatewayPrincipal, sourceArn, req.Label, "lofty-gw-"+uuid.NewString())
		if err != nil && !cloud.IsAlreadyExists(err) {
			return nil, wrapProviderError("granting gateway invoke permission", err, StageExposeApi)
		}
		if err := p.services.Gateway.CreateDeployment(ctx, cfg.Gateway.ID, req.Label, reconcile.StageVariables(req.Label, nil)); err != nil {
			return nil, wrapProviderError("deploying stage "+req.Label, err, StageExposeApi)
		}
		result.ApiURL = routes.StageURL(p.services.Caller, cfg.Gateway.ID, req.Label)
	}

	p.reporter.Stage(StagePersist)
	if err := p.store.Save(cfg); err != nil {
		return nil, NewLocalError("persisting deployment descriptor", err).WithStage(StagePersist)
	}
	p.reporter.Done(fmt.Sprintf("version %s published as %s", version, req.Label))
	return result, nil
}

// UpdateEnvRequest are the inputs of an environment-only update.
type UpdateEnvRequest struct {
	Env       map[string]string
	EnvMode   reconcile.EnvMode
	KMSKeyArn string
}

// UpdateEnv reconciles the function's environment variables without
// publishing a new version.
func (p *Pipeline) UpdateEnv(ctx context.Context, cfg *descriptor.DeploymentConfig, req UpdateEnvRequest) error {
	p.reporter.Stage(StageValidate)
	if len(req.Env) == 0 && req.KMSKeyArn == "" {
		return NewValidationError("nothing to update: supply variables or a KMS key").WithStage(StageValidate)
	}
	if err := p.reconcileEnv(ctx, cfg, req.Env, req.EnvMode, req.KMSKeyArn); err != nil {
		return err
	}
	p.reporter.Stage(StagePersist)
	if err := p.store.Save(cfg); err != nil {
		return NewLocalError("persisting deployment descriptor", err).WithStage(StagePersist)
	}
	p.reporter.Done("function configuration updated")
	return nil
}

// reconcileEnv fetch-merge-writes the function's environment variable set.
// In merge mode the existing remote set is honored; replace discards it.
func (p *Pipeline) reconcileEnv(ctx context.Context, cfg *descriptor.DeploymentConfig, env map[string]string, mode reconcile.EnvMode, kmsKeyArn string) error {
	p.reporter.Stage(StageUpdateConfig)
	name := cfg.Function.Name
	var existing map[string]string
	if mode == reconcile.EnvMerge {
		info, err := p.services.Functions.GetConfiguration(ctx, name, "")
		if err != nil {
			return NewReconcileError("reading current function configuration", err).WithStage(StageUpdateConfig)
		}
		existing = info.Env
	}
	merged := reconcile.MergeEnvVars(existing, env, mode)
	if kmsKeyArn == "" {
		kmsKeyArn = cfg.StorageKey
	}
	if err := p.services.Functions.UpdateConfiguration(ctx, name, merged, kmsKeyArn); err != nil {
		return wrapProviderError("updating function configuration", err, StageUpdateConfig)
	}
	cfg.StorageKey = kmsKeyArn
	return nil
}

// EventSourceRequest binds the deployed function to object-storage events
// on one bucket.
type EventSourceRequest struct {
	Bucket string
	Prefix string
	Suffix string
	Events []string

	// Label scopes the binding to an alias; empty binds the unqualified
	// function.
	Label string
}

// AddEventSource attaches an invoke permission scoped to the storage
// principal, then fetch-merge-writes the bucket's notification
// configuration. Subscriptions registered by other tools on the same bucket
// are never removed or rewritten. The read-modify-write is not atomic
// against concurrent writers; last writer wins.
func (p *Pipeline) AddEventSource(ctx context.Context, cfg *descriptor.DeploymentConfig, req EventSourceRequest) error {
	p.reporter.Stage(StageValidate)
	if req.Bucket == "" {
		return NewValidationError("a bucket is required (--bucket)").WithStage(StageValidate)
	}
	events := req.Events
	if len(events) == 0 {
		events = []string{"s3:ObjectCreated:*"}
	}
	name := cfg.Function.Name

	info, err := p.services.Functions.GetConfiguration(ctx, name, req.Label)
	if err != nil {
		return wrapProviderError("resolving function", err, StageRegisterEvents)
	}

	p.reporter.Stage(StageRegisterEvents)
	bucketArn := fmt.Sprintf("arn:%s:s3:::%s", p.services.Caller.Partition, req.Bucket)
	err = p.services.Functions.AddInvokePermission(ctx, name, objectStorePrincipal, bucketArn, req.Label, "lofty-s3-"+uuid.NewString())
	if err != nil && !cloud.IsAlreadyExists(err) {
		return wrapProviderError("granting storage invoke permission", err, StageRegisterEvents)
	}

	existing, err := p.services.ObjectStore.GetNotificationConfig(ctx, req.Bucket)
	if err != nil {
		return NewReconcileError("reading bucket notification configuration", err).WithStage(StageRegisterEvents)
	}
	rule := reconcile.NewLambdaRule(info.Arn, events, req.Prefix, req.Suffix)
	merged := reconcile.AppendLambdaRule(existing, rule)
	if err := p.services.ObjectStore.PutNotificationConfig(ctx, req.Bucket, merged); err != nil {
		return wrapProviderError("writing bucket notification configuration", err, StageRegisterEvents)
	}
	p.reporter.Done(fmt.Sprintf("bucket %s now notifies %s", req.Bucket, name))
	return nil
}

// UpdateRequest are the inputs of a code update against an existing
// deployment.
type UpdateRequest struct {
	SourceDir    string
	Label        string
	Ignore       []string
	KeepArtifact bool
}

// Update packages the source again, uploads it, publishes the resulting
// version and re-points latest (plus an optional label). When the
// deployment has a gateway with a recorded route module, the route tree is
// rebuilt and its stages redeployed.
func (p *Pipeline) Update(ctx context.Context, cfg *descriptor.DeploymentConfig, req UpdateRequest) (result *Result, err error) {
	pctx := &Context{
		OwnerAccountID: p.services.Caller.AccountID,
		Partition:      p.services.Caller.Partition,
		keepArtifact:   req.KeepArtifact,
	}
	defer func() {
		p.reporter.Stage(StageCleanup)
		pctx.Cleanup(p.reporter)
	}()

	p.reporter.Stage(StageValidate)
	if req.SourceDir == "" {
		return nil, NewValidationError("source directory is required (--source)").WithStage(StageValidate)
	}
	if req.Label == LatestLabel {
		return nil, NewValidationError("label latest is reserved").WithStage(StageValidate)
	}
	name := cfg.Function.Name

	p.reporter.Stage(StagePackage)
	zipFile, err := p.resolvePackage(ctx, pctx, req.SourceDir, req.Ignore)
	if err != nil {
		return nil, err
	}

	p.reporter.Stage(StageCreateFunction)
	info, err := p.services.Functions.UpdateCode(ctx, name, zipFile)
	if err != nil {
		return nil, wrapProviderError("updating function code", err, StageCreateFunction)
	}
	pctx.FunctionArn = info.Arn
	pctx.FunctionVersion = info.Version

	p.reporter.Stage(StageBindAliases)
	if err := p.bindAliases(ctx, name, info.Version, req.Label); err != nil {
		return nil, err
	}

	result = &Result{
		Config:          cfg,
		FunctionArn:     info.Arn,
		FunctionVersion: info.Version,
	}
	if cfg.Gateway != nil && cfg.Gateway.ModuleRef != "" {
		p.reporter.Stage(StageExposeApi)
		provider := routes.NewFileProvider(cfg.Gateway.ModuleRef)
		if err := p.deployApi(ctx, pctx, provider, name, req.Label, cfg, result, false); err != nil {
			return nil, err
		}
	}

	if req.KeepArtifact {
		result.ArtifactPath = pctx.ArtifactPath
	}
	p.reporter.Done(fmt.Sprintf("updated %s to version %s", name, info.Version))
	return result, nil
}

// Destroy removes the deployment's remote resources: the gateway, the
// function and, unless the role was shared, the execution role.
func (p *Pipeline) Destroy(ctx context.Context, cfg *descriptor.DeploymentConfig) error {
	name := cfg.Function.Name
	if cfg.Gateway != nil {
		p.reporter.Stage(StageExposeApi)
		if err := p.services.Gateway.DeleteApi(ctx, cfg.Gateway.ID); err != nil && !cloud.IsNotFound(err) {
			return wrapProviderError("deleting API", err, StageExposeApi)
		}
	}
	p.reporter.Stage(StageCreateFunction)
	if err := p.services.Functions.Delete(ctx, name); err != nil && !cloud.IsNotFound(err) {
		return wrapProviderError("deleting function", err, StageCreateFunction)
	}
	if !cfg.Function.SharedRole {
		p.reporter.Stage(StageAcquireRole)
		if err := p.services.Identity.DeleteRole(ctx, cfg.Function.ExecutionRoleName); err != nil && !cloud.IsNotFound(err) {
			return wrapProviderError("deleting execution role", err, StageAcquireRole)
		}
	}
	p.reporter.Done(fmt.Sprintf("destroyed deployment %s", name))
	return nil
}
