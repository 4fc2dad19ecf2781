// Package deploy implements the provisioning pipeline: the ordered,
// retryable, partially idempotent sequence of control-plane operations that
// turns a packaged artifact into a deployed, aliasable, externally
// reachable function.
package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lofty-sh/lofty/pkg/cloud"
	"github.com/lofty-sh/lofty/pkg/descriptor"
	"github.com/lofty-sh/lofty/pkg/packager"
	"github.com/lofty-sh/lofty/pkg/reconcile"
	"github.com/lofty-sh/lofty/pkg/retry"
	"github.com/lofty-sh/lofty/pkg/routes"
	"github.com/lofty-sh/lofty/pkg/telemetry"
)

// Pipeline stage names, in forced order. No stage runs before its
// predecessor completes; once a stage fails non-retryably the only
// remaining transition is to cleanup.
const (
	StageValidate       = "validate"
	StagePackage        = "package"
	StageAcquireRole    = "acquire-role"
	StageCreateFunction = "create-function"
	StageBindAliases    = "bind-aliases"
	StageExposeApi      = "expose-api"
	StageRegisterEvents = "register-event-source"
	StageUpdateConfig   = "update-config"
	StagePersist        = "persist"
	StageCleanup        = "cleanup"
)

const (
	gatewayPrincipal     = "apigateway.amazonaws.com"
	objectStorePrincipal = "s3.amazonaws.com"
	logPolicyName        = "log-writer"
)

// Services are the remote capability adapters one pipeline drives. The
// pipeline treats them as already authenticated.
type Services struct {
	Identity    cloud.IdentityService
	Functions   cloud.FunctionService
	Gateway     cloud.GatewayService
	ObjectStore cloud.ObjectStoreService
	Caller      cloud.CallerIdentity
}

// Pipeline sequences the adapter calls for one deployment command.
type Pipeline struct {
	services Services
	builder  packager.Builder
	store    *descriptor.Store
	reporter telemetry.Reporter
	aliases  *AliasManager

	createRetryDelay    time.Duration
	createRetryAttempts int
}

// Option adjusts pipeline behavior.
type Option func(*Pipeline)

// WithCreateRetry overrides the delay and attempt cap used while waiting
// out identity propagation during function creation.
func WithCreateRetry(delay time.Duration, attempts int) Option {
	return func(p *Pipeline) {
		p.createRetryDelay = delay
		p.createRetryAttempts = attempts
	}
}

// New creates a pipeline over the given services and collaborators.
func New(services Services, builder packager.Builder, store *descriptor.Store, reporter telemetry.Reporter, opts ...Option) *Pipeline {
	p := &Pipeline{
		services:            services,
		builder:             builder,
		store:               store,
		reporter:            reporter,
		aliases:             NewAliasManager(services.Functions),
		createRetryDelay:    5 * time.Second,
		createRetryAttempts: 10,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CreateRequest are the inputs of a full create run.
type CreateRequest struct {
	SourceDir    string
	FunctionName string
	Region       string
	Runtime      string
	MemoryMB     int32
	TimeoutSec   int32

	// Handler names the function entry point. Mutually exclusive with
	// APIModule, which derives the handler from the route spec module and
	// provisions an HTTP front end for it.
	Handler   string
	APIModule string

	// RoleRef references an existing execution role by name or full ARN.
	// Empty means create a role exclusive to this deployment.
	RoleRef string

	// Label optionally binds a second alias besides latest.
	Label string

	Env       map[string]string
	KMSKeyArn string

	Ignore       []string
	KeepArtifact bool
}

// Result reports what a successful run produced.
type Result struct {
	Config          *descriptor.DeploymentConfig
	FunctionArn     string
	FunctionVersion string
	ApiURL          string
	ArtifactPath    string
	Metadata        map[string]string
}

// Create runs the full provisioning pipeline. Local staging is cleaned up
// on every path; remote resources already created before a failure are left
// for manual inspection, never rolled back automatically.
func (p *Pipeline) Create(ctx context.Context, req CreateRequest) (result *Result, err error) {
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
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	p.reporter.Stage(StagePackage)
	zipFile, err := p.resolvePackage(ctx, pctx, req.SourceDir, req.Ignore)
	if err != nil {
		return nil, err
	}

	p.reporter.Stage(StageAcquireRole)
	if err := p.acquireRole(ctx, pctx, req); err != nil {
		return nil, err
	}

	p.reporter.Stage(StageCreateFunction)
	if err := p.createFunction(ctx, pctx, req, zipFile); err != nil {
		return nil, err
	}

	p.reporter.Stage(StageBindAliases)
	if err := p.bindAliases(ctx, req.FunctionName, pctx.FunctionVersion, req.Label); err != nil {
		return nil, err
	}

	cfg := &descriptor.DeploymentConfig{
		Function: descriptor.FunctionConfig{
			Name:              req.FunctionName,
			ExecutionRoleName: pctx.Role.Name,
			Region:            req.Region,
			SharedRole:        req.RoleRef != "",
		},
		StorageKey: req.KMSKeyArn,
	}
	result = &Result{
		Config:          cfg,
		FunctionArn:     pctx.FunctionArn,
		FunctionVersion: pctx.FunctionVersion,
	}

	if req.APIModule != "" {
		p.reporter.Stage(StageExposeApi)
		if err := p.exposeApi(ctx, pctx, req, cfg, result); err != nil {
			return nil, err
		}
	}

	p.reporter.Stage(StagePersist)
	if err := p.store.Save(cfg); err != nil {
		return nil, NewLocalError("persisting deployment descriptor", err).WithStage(StagePersist)
	}

	if req.KeepArtifact {
		result.ArtifactPath = pctx.ArtifactPath
	}
	p.reporter.Done(fmt.Sprintf("deployed %s version %s", req.FunctionName, pctx.FunctionVersion))
	return result, nil
}

// validateCreate gates pipeline entry. It is the only stage permitted to
// fail without having created any remote resource.
func validateCreate(req CreateRequest) error {
	var offending string
	switch {
	case req.FunctionName == "":
		offending = "function name is required (--name)"
	case req.Region == "":
		offending = "region is required (--region)"
	case req.SourceDir == "":
		offending = "source directory is required (--source)"
	case req.Runtime == "":
		offending = "runtime is required (--runtime or lofty.yml)"
	case req.Handler != "" && req.APIModule != "":
		offending = "handler and api-module are mutually exclusive"
	case req.Handler == "" && req.APIModule == "":
		offending = "one of handler or api-module is required"
	case req.Label == LatestLabel:
		offending = "label latest is reserved"
	}
	if offending != "" {
		return NewValidationError(offending).WithStage(StageValidate)
	}
	return nil
}

// resolvePackage delegates to the packager and loads the artifact bytes.
func (p *Pipeline) resolvePackage(ctx context.Context, pctx *Context, sourceDir string, ignore []string) ([]byte, error) {
	artifact, err := p.builder.Build(ctx, sourceDir, packager.Options{Ignore: ignore})
	if err != nil {
		return nil, NewLocalError("packaging source", err).WithStage(StagePackage)
	}
	pctx.artifact = artifact
	pctx.StagingDir = artifact.StagingDir
	pctx.ArtifactPath = artifact.Path
	p.reporter.Substage(StagePackage, "artifact staged at "+artifact.Path)

	zipFile, err := os.ReadFile(artifact.Path)
	if err != nil {
		return nil, NewLocalError("reading artifact", err).WithStage(StagePackage)
	}
	return zipFile, nil
}

// acquireRole resolves or creates the execution role. A fully qualified
// ARN reference skips every identity call. The logging policy attachment is
// best-effort for a referenced role and fatal for a freshly created one,
// since the function would otherwise be unable to emit diagnostics.
func (p *Pipeline) acquireRole(ctx context.Context, pctx *Context, req CreateRequest) error {
	if strings.HasPrefix(req.RoleRef, "arn:") {
		pctx.Role = &cloud.ExecutionRole{
			Name: roleNameFromArn(req.RoleRef),
			Arn:  req.RoleRef,
		}
		p.reporter.Substage(StageAcquireRole, "using referenced role "+pctx.Role.Name)
		return nil
	}

	if req.RoleRef != "" {
		role, err := p.services.Identity.GetRole(ctx, req.RoleRef)
		if err != nil {
			return wrapProviderError("resolving referenced role", err, StageAcquireRole)
		}
		pctx.Role = role
		if err := p.services.Identity.PutInlinePolicy(ctx, role.Name, logPolicyName, cloud.LogWriterPolicy); err != nil {
			p.reporter.Warn(StageAcquireRole, err)
		}
		return nil
	}

	roleName := req.FunctionName + "-executor"
	role, err := p.services.Identity.CreateRole(ctx, roleName, cloud.LambdaTrustPolicy)
	if err != nil {
		return wrapProviderError("creating execution role", err, StageAcquireRole)
	}
	pctx.Role = role
	pctx.RoleCreated = true
	if err := p.services.Identity.PutInlinePolicy(ctx, role.Name, logPolicyName, cloud.LogWriterPolicy); err != nil {
		return wrapProviderError("attaching logging policy to new role", err, StageAcquireRole)
	}
	p.reporter.Substage(StageAcquireRole, "created role "+role.Name)
	return nil
}

// createFunction creates the function under the identity-propagation retry
// predicate: a brand-new role may be rejected by the compute platform until
// propagation completes, and retrying replaces an artificial upfront sleep.
func (p *Pipeline) createFunction(ctx context.Context, pctx *Context, req CreateRequest, zipFile []byte) error {
	handler := req.Handler
	if handler == "" {
		handler = deriveHandler(req.APIModule)
	}
	spec := cloud.FunctionSpec{
		Name:       req.FunctionName,
		Handler:    handler,
		Runtime:    req.Runtime,
		RoleArn:    pctx.Role.Arn,
		MemoryMB:   req.MemoryMB,
		TimeoutSec: req.TimeoutSec,
		Env:        req.Env,
		KMSKeyArn:  req.KMSKeyArn,
		ZipFile:    zipFile,
	}
	info, err := retry.Do(ctx, func() (*cloud.FunctionInfo, error) {
		return p.services.Functions.Create(ctx, spec)
	}, retry.Options{
		Delay:       p.createRetryDelay,
		MaxAttempts: p.createRetryAttempts,
		Retryable:   cloud.IsRolePropagationDelay,
		OnRetry: func(attempt int, err error) {
			p.reporter.Retrying(StageCreateFunction, attempt, err)
		},
	})
	if err != nil {
		return wrapProviderError("creating function", err, StageCreateFunction)
	}
	pctx.FunctionArn = info.Arn
	pctx.FunctionVersion = info.Version
	pctx.StorageKey = req.KMSKeyArn
	return nil
}

// bindAliases binds latest to the just-published version, plus the user
// label when one was requested. The bindings are independent: a failed
// label binding never unwinds an already-bound latest.
func (p *Pipeline) bindAliases(ctx context.Context, functionName, version, label string) error {
	if err := p.aliases.Ensure(ctx, functionName, version, LatestLabel); err != nil {
		return wrapProviderError("binding latest alias", err, StageBindAliases)
	}
	if label != "" {
		if err := p.aliases.Ensure(ctx, functionName, version, label); err != nil {
			// latest is already live and re-running the bind is safe, so
			// the run continues and still persists the descriptor.
			p.reporter.Warn(StageBindAliases, wrapProviderError("binding alias "+label, err, StageBindAliases))
		}
	}
	return nil
}

// exposeApi creates the gateway, rebuilds its route tree from the declared
// route specification, deploys the stages and runs the spec's post-deploy
// hook when it has one. Any failure here is fatal for the run.
func (p *Pipeline) exposeApi(ctx context.Context, pctx *Context, req CreateRequest, cfg *descriptor.DeploymentConfig, result *Result) error {
	provider := routes.NewFileProvider(req.APIModule)
	return p.deployApi(ctx, pctx, provider, req.FunctionName, req.Label, cfg, result, true)
}

// deployApi is shared by create and update: ensure the API exists, rebuild
// routes, grant invoke permissions and deploy the stages.
func (p *Pipeline) deployApi(ctx context.Context, pctx *Context, provider routes.Provider, functionName, label string, cfg *descriptor.DeploymentConfig, result *Result, create bool) error {
	spec, err := provider.Config()
	if err != nil {
		return NewLocalError("loading route spec", err).WithStage(StageExposeApi)
	}

	apiID := ""
	if cfg.Gateway != nil {
		apiID = cfg.Gateway.ID
	}
	if apiID == "" {
		if !create {
			return NewValidationError("deployment has no gateway").WithStage(StageExposeApi)
		}
		name := spec.Name
		if name == "" {
			name = functionName
		}
		apiID, err = p.services.Gateway.CreateApi(ctx, name)
		if err != nil {
			return wrapProviderError("creating API", err, StageExposeApi)
		}
		p.reporter.Substage(StageExposeApi, "created API "+apiID)
	}

	if err := routes.Rebuild(ctx, p.services.Gateway, apiID, spec, p.services.Caller, pctx.FunctionArn); err != nil {
		return wrapProviderError("rebuilding route tree", err, StageExposeApi)
	}

	labels := []string{LatestLabel}
	if label != "" {
		labels = append(labels, label)
	}
	sourceArn := routes.InvokeSourceArn(p.services.Caller, apiID)
	for _, l := range labels {
		err := p.services.Functions.AddInvokePermission(ctx, functionName, gatewayPrincipal, sourceArn, l, "lofty-gw-"+uuid.NewString())
		if err != nil && !cloud.IsAlreadyExists(err) {
			return wrapProviderError("granting gateway invoke permission", err, StageExposeApi)
		}
		if err := p.services.Gateway.CreateDeployment(ctx, apiID, l, reconcile.StageVariables(l, nil)); err != nil {
			return wrapProviderError("deploying stage "+l, err, StageExposeApi)
		}
	}

	moduleRef := ""
	if fp, ok := provider.(*routes.FileProvider); ok {
		moduleRef = fp.Path()
	}
	cfg.Gateway = &descriptor.GatewayConfig{ID: apiID, ModuleRef: moduleRef}
	result.ApiURL = routes.StageURL(p.services.Caller, apiID, LatestLabel)

	if hook, ok := provider.(routes.PostDeployer); ok {
		meta, err := hook.PostDeploy(ctx, routes.DeployedInfo{
			ApiID:       apiID,
			ApiURL:      result.ApiURL,
			FunctionArn: pctx.FunctionArn,
			Label:       label,
			Region:      p.services.Caller.Region,
		})
		if err != nil {
			return wrapProviderError("post-deploy hook", err, StageExposeApi)
		}
		result.Metadata = meta
	}
	return nil
}

// wrapProviderError classifies a raw adapter error into the pipeline
// taxonomy, preserving the provider's classification code.
func wrapProviderError(message string, err error, stage string) error {
	code := cloud.ErrorCode(err)
	var derr *Error
	switch {
	case cloud.IsRateLimited(err):
		derr = NewThrottledError(message, err)
	case cloud.IsRolePropagationDelay(err):
		derr = NewTransientError(message, err)
	default:
		derr = NewPermanentError(message, err)
	}
	return derr.WithCode(code).WithStage(stage)
}

func roleNameFromArn(arn string) string {
	if idx := strings.LastIndex(arn, "/"); idx >= 0 {
		return arn[idx+1:]
	}
	return arn
}

// deriveHandler maps a route spec module reference to the function entry
// point exported next to it: routes/app.json -> app.handler.
func deriveHandler(apiModule string) string {
	base := filepath.Base(apiModule)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return base + ".handler"
}
