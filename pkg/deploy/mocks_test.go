package deploy

import (
	"context"
	"fmt"

	"github.com/aws/smithy-go"

	"github.com/lofty-sh/lofty/pkg/cloud"
	"github.com/lofty-sh/lofty/pkg/reconcile"
)

// apiError fakes a provider error with a stable classification code.
type apiError struct {
	code string
}

func (e *apiError) Error() string                 { return e.code }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }

var _ smithy.APIError = (*apiError)(nil)

type mockIdentity struct {
	calls       []string
	roles       map[string]*cloud.ExecutionRole
	createErr   error
	policyErr   error
	policiesPut []string
}

func newMockIdentity() *mockIdentity {
	return &mockIdentity{roles: make(map[string]*cloud.ExecutionRole)}
}

func (m *mockIdentity) GetRole(ctx context.Context, name string) (*cloud.ExecutionRole, error) {
	m.calls = append(m.calls, "GetRole")
	if role, ok := m.roles[name]; ok {
		return role, nil
	}
	return nil, &apiError{code: cloud.CodeNoSuchEntity}
}

func (m *mockIdentity) CreateRole(ctx context.Context, name, trust string) (*cloud.ExecutionRole, error) {
	m.calls = append(m.calls, "CreateRole")
	if m.createErr != nil {
		return nil, m.createErr
	}
	role := &cloud.ExecutionRole{
		Name: name,
		Arn:  "arn:aws:iam::123456789012:role/" + name,
	}
	m.roles[name] = role
	return role, nil
}

func (m *mockIdentity) PutInlinePolicy(ctx context.Context, roleName, policyName, doc string) error {
	m.calls = append(m.calls, "PutInlinePolicy")
	if m.policyErr != nil {
		return m.policyErr
	}
	m.policiesPut = append(m.policiesPut, roleName+"/"+policyName)
	return nil
}

func (m *mockIdentity) DeleteRole(ctx context.Context, name string) error {
	m.calls = append(m.calls, "DeleteRole")
	delete(m.roles, name)
	return nil
}

type mockFunctions struct {
	calls []string

	createFailures  int // initial Create calls fail with propagation code
	createErr       error
	created         *cloud.FunctionSpec
	version         int
	env             map[string]string
	kmsKeyArn       string
	updateConfigErr error

	aliases        map[string]string // label -> version
	aliasCreateErr error
	aliasFailLabel string // CreateAlias fails for this label only
	permissions    []string // principal|sourceArn|qualifier
}

func newMockFunctions() *mockFunctions {
	return &mockFunctions{aliases: make(map[string]string)}
}

func (m *mockFunctions) arn() string {
	return "arn:aws:lambda:us-east-1:123456789012:function:" + m.created.Name
}

func (m *mockFunctions) GetConfiguration(ctx context.Context, name, qualifier string) (*cloud.FunctionConfigInfo, error) {
	m.calls = append(m.calls, "GetConfiguration")
	arn := "arn:aws:lambda:us-east-1:123456789012:function:" + name
	if qualifier != "" {
		arn += ":" + qualifier
	}
	return &cloud.FunctionConfigInfo{Arn: arn, Version: fmt.Sprint(m.version), Env: m.env}, nil
}

func (m *mockFunctions) Create(ctx context.Context, spec cloud.FunctionSpec) (*cloud.FunctionInfo, error) {
	m.calls = append(m.calls, "Create")
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.createFailures > 0 {
		m.createFailures--
		return nil, &apiError{code: cloud.CodeInvalidParameter}
	}
	m.created = &spec
	m.version = 1
	m.env = spec.Env
	return &cloud.FunctionInfo{Arn: m.arn(), Version: "1"}, nil
}

func (m *mockFunctions) UpdateCode(ctx context.Context, name string, zip []byte) (*cloud.FunctionInfo, error) {
	m.calls = append(m.calls, "UpdateCode")
	m.version++
	return &cloud.FunctionInfo{
		Arn:     "arn:aws:lambda:us-east-1:123456789012:function:" + name,
		Version: fmt.Sprint(m.version),
	}, nil
}

func (m *mockFunctions) PublishVersion(ctx context.Context, name string) (string, error) {
	m.calls = append(m.calls, "PublishVersion")
	m.version++
	return fmt.Sprint(m.version), nil
}

func (m *mockFunctions) CreateAlias(ctx context.Context, name, label, version string) error {
	m.calls = append(m.calls, "CreateAlias")
	if m.aliasCreateErr != nil {
		return m.aliasCreateErr
	}
	if m.aliasFailLabel != "" && label == m.aliasFailLabel {
		return &apiError{code: "ServiceException"}
	}
	if _, exists := m.aliases[label]; exists {
		return &apiError{code: cloud.CodeResourceConflict}
	}
	m.aliases[label] = version
	return nil
}

func (m *mockFunctions) UpdateAlias(ctx context.Context, name, label, version string) error {
	m.calls = append(m.calls, "UpdateAlias")
	if _, exists := m.aliases[label]; !exists {
		return &apiError{code: cloud.CodeResourceNotFound}
	}
	m.aliases[label] = version
	return nil
}

func (m *mockFunctions) AddInvokePermission(ctx context.Context, name, principal, sourceArn, qualifier, statementID string) error {
	m.calls = append(m.calls, "AddInvokePermission")
	m.permissions = append(m.permissions, principal+"|"+sourceArn+"|"+qualifier)
	return nil
}

func (m *mockFunctions) UpdateConfiguration(ctx context.Context, name string, env map[string]string, kmsKeyArn string) error {
	m.calls = append(m.calls, "UpdateConfiguration")
	if m.updateConfigErr != nil {
		return m.updateConfigErr
	}
	m.env = env
	m.kmsKeyArn = kmsKeyArn
	return nil
}

func (m *mockFunctions) Delete(ctx context.Context, name string) error {
	m.calls = append(m.calls, "Delete")
	return nil
}

type mockGateway struct {
	calls       []string
	apiID       string
	resources   map[string]string // path -> id
	methods     []string          // resourceID|method
	deployments []string          // stage
	stageVars   map[string]map[string]string
	nextID      int
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		resources: map[string]string{"/": "root"},
		stageVars: make(map[string]map[string]string),
	}
}

func (m *mockGateway) CreateApi(ctx context.Context, name string) (string, error) {
	m.calls = append(m.calls, "CreateApi")
	m.apiID = "api-" + name
	return m.apiID, nil
}

func (m *mockGateway) ListResources(ctx context.Context, apiID string) ([]cloud.GatewayResource, error) {
	m.calls = append(m.calls, "ListResources")
	var out []cloud.GatewayResource
	for path, id := range m.resources {
		out = append(out, cloud.GatewayResource{ID: id, Path: path})
	}
	return out, nil
}

func (m *mockGateway) CreateResource(ctx context.Context, apiID, parentID, pathPart string) (string, error) {
	m.calls = append(m.calls, "CreateResource")
	m.nextID++
	id := fmt.Sprintf("res-%d", m.nextID)
	m.resources["/"+pathPart] = id
	return id, nil
}

func (m *mockGateway) DeleteResource(ctx context.Context, apiID, resourceID string) error {
	m.calls = append(m.calls, "DeleteResource")
	for path, id := range m.resources {
		if id == resourceID {
			delete(m.resources, path)
		}
	}
	return nil
}

func (m *mockGateway) PutMethod(ctx context.Context, apiID, resourceID, httpMethod string) error {
	m.calls = append(m.calls, "PutMethod")
	m.methods = append(m.methods, resourceID+"|"+httpMethod)
	return nil
}

func (m *mockGateway) PutProxyIntegration(ctx context.Context, apiID, resourceID, httpMethod, uri string) error {
	m.calls = append(m.calls, "PutProxyIntegration")
	return nil
}

func (m *mockGateway) CreateDeployment(ctx context.Context, apiID, stage string, vars map[string]string) error {
	m.calls = append(m.calls, "CreateDeployment")
	m.deployments = append(m.deployments, stage)
	m.stageVars[stage] = vars
	return nil
}

func (m *mockGateway) DeleteApi(ctx context.Context, apiID string) error {
	m.calls = append(m.calls, "DeleteApi")
	return nil
}

type mockObjectStore struct {
	calls   []string
	config  *reconcile.NotificationConfig
	getErr  error
	written *reconcile.NotificationConfig
}

func (m *mockObjectStore) GetNotificationConfig(ctx context.Context, bucket string) (*reconcile.NotificationConfig, error) {
	m.calls = append(m.calls, "GetNotificationConfig")
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.config, nil
}

func (m *mockObjectStore) PutNotificationConfig(ctx context.Context, bucket string, cfg reconcile.NotificationConfig) error {
	m.calls = append(m.calls, "PutNotificationConfig")
	m.written = &cfg
	return nil
}

func testCaller() cloud.CallerIdentity {
	return cloud.CallerIdentity{
		AccountID: "123456789012",
		Partition: "aws",
		Region:    "us-east-1",
	}
}
