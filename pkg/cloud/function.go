package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

// FunctionSpec describes a function to create.
type FunctionSpec struct {
	Name        string
	Handler     string
	Runtime     string
	RoleArn     string
	Description string
	MemoryMB    int32
	TimeoutSec  int32
	Env         map[string]string
	KMSKeyArn   string
	ZipFile     []byte
}

// FunctionInfo identifies a function and one concrete version of it.
type FunctionInfo struct {
	Arn     string
	Version string
}

// FunctionConfigInfo is a function's current remote configuration, as much
// of it as the pipeline reads back.
type FunctionConfigInfo struct {
	Arn     string
	Version string
	Env     map[string]string
}

// FunctionService manages the compute function resource: creation, code and
// configuration updates, version publication, aliasing and invoke
// permissions.
type FunctionService interface {
	GetConfiguration(ctx context.Context, name, qualifier string) (*FunctionConfigInfo, error)
	Create(ctx context.Context, spec FunctionSpec) (*FunctionInfo, error)
	UpdateCode(ctx context.Context, name string, zipFile []byte) (*FunctionInfo, error)
	PublishVersion(ctx context.Context, name string) (string, error)
	CreateAlias(ctx context.Context, name, label, version string) error
	UpdateAlias(ctx context.Context, name, label, version string) error
	AddInvokePermission(ctx context.Context, name, principal, sourceArn, qualifier, statementID string) error
	UpdateConfiguration(ctx context.Context, name string, env map[string]string, kmsKeyArn string) error
	Delete(ctx context.Context, name string) error
}

// LambdaFunctionService implements FunctionService against Lambda.
type LambdaFunctionService struct {
	client *lambda.Client
}

// NewLambdaFunctionService creates the Lambda-backed function service.
func NewLambdaFunctionService(client *lambda.Client) *LambdaFunctionService {
	return &LambdaFunctionService{client: client}
}

func (s *LambdaFunctionService) GetConfiguration(ctx context.Context, name, qualifier string) (*FunctionConfigInfo, error) {
	input := &lambda.GetFunctionConfigurationInput{FunctionName: aws.String(name)}
	if qualifier != "" {
		input.Qualifier = aws.String(qualifier)
	}
	out, err := s.client.GetFunctionConfiguration(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("getting configuration of %s: %w", name, err)
	}
	info := &FunctionConfigInfo{
		Arn:     aws.ToString(out.FunctionArn),
		Version: aws.ToString(out.Version),
	}
	if out.Environment != nil {
		info.Env = out.Environment.Variables
	}
	return info, nil
}

// Create provisions the function and publishes its first version. A name
// collision fails with the provider's conflict code; it is never converted
// into an update.
func (s *LambdaFunctionService) Create(ctx context.Context, spec FunctionSpec) (*FunctionInfo, error) {
	input := &lambda.CreateFunctionInput{
		FunctionName: aws.String(spec.Name),
		Handler:      aws.String(spec.Handler),
		Runtime:      lambdatypes.Runtime(spec.Runtime),
		Role:         aws.String(spec.RoleArn),
		Code:         &lambdatypes.FunctionCode{ZipFile: spec.ZipFile},
		Publish:      true,
	}
	if spec.Description != "" {
		input.Description = aws.String(spec.Description)
	}
	if spec.MemoryMB > 0 {
		input.MemorySize = aws.Int32(spec.MemoryMB)
	}
	if spec.TimeoutSec > 0 {
		input.Timeout = aws.Int32(spec.TimeoutSec)
	}
	if len(spec.Env) > 0 {
		input.Environment = &lambdatypes.Environment{Variables: spec.Env}
	}
	if spec.KMSKeyArn != "" {
		input.KMSKeyArn = aws.String(spec.KMSKeyArn)
	}
	out, err := s.client.CreateFunction(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("creating function %s: %w", spec.Name, err)
	}
	return &FunctionInfo{
		Arn:     aws.ToString(out.FunctionArn),
		Version: aws.ToString(out.Version),
	}, nil
}

func (s *LambdaFunctionService) UpdateCode(ctx context.Context, name string, zipFile []byte) (*FunctionInfo, error) {
	out, err := s.client.UpdateFunctionCode(ctx, &lambda.UpdateFunctionCodeInput{
		FunctionName: aws.String(name),
		ZipFile:      zipFile,
		Publish:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("updating code of %s: %w", name, err)
	}
	return &FunctionInfo{
		Arn:     aws.ToString(out.FunctionArn),
		Version: aws.ToString(out.Version),
	}, nil
}

func (s *LambdaFunctionService) PublishVersion(ctx context.Context, name string) (string, error) {
	out, err := s.client.PublishVersion(ctx, &lambda.PublishVersionInput{
		FunctionName: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("publishing version of %s: %w", name, err)
	}
	return aws.ToString(out.Version), nil
}

func (s *LambdaFunctionService) CreateAlias(ctx context.Context, name, label, version string) error {
	_, err := s.client.CreateAlias(ctx, &lambda.CreateAliasInput{
		FunctionName:    aws.String(name),
		Name:            aws.String(label),
		FunctionVersion: aws.String(version),
	})
	if err != nil {
		return fmt.Errorf("creating alias %s on %s: %w", label, name, err)
	}
	return nil
}

func (s *LambdaFunctionService) UpdateAlias(ctx context.Context, name, label, version string) error {
	_, err := s.client.UpdateAlias(ctx, &lambda.UpdateAliasInput{
		FunctionName:    aws.String(name),
		Name:            aws.String(label),
		FunctionVersion: aws.String(version),
	})
	if err != nil {
		return fmt.Errorf("repointing alias %s on %s: %w", label, name, err)
	}
	return nil
}

func (s *LambdaFunctionService) AddInvokePermission(ctx context.Context, name, principal, sourceArn, qualifier, statementID string) error {
	input := &lambda.AddPermissionInput{
		FunctionName: aws.String(name),
		Action:       aws.String("lambda:InvokeFunction"),
		Principal:    aws.String(principal),
		StatementId:  aws.String(statementID),
	}
	if sourceArn != "" {
		input.SourceArn = aws.String(sourceArn)
	}
	if qualifier != "" {
		input.Qualifier = aws.String(qualifier)
	}
	if _, err := s.client.AddPermission(ctx, input); err != nil {
		return fmt.Errorf("granting %s invoke permission on %s: %w", principal, name, err)
	}
	return nil
}

func (s *LambdaFunctionService) UpdateConfiguration(ctx context.Context, name string, env map[string]string, kmsKeyArn string) error {
	input := &lambda.UpdateFunctionConfigurationInput{
		FunctionName: aws.String(name),
		Environment:  &lambdatypes.Environment{Variables: env},
	}
	if kmsKeyArn != "" {
		input.KMSKeyArn = aws.String(kmsKeyArn)
	}
	if _, err := s.client.UpdateFunctionConfiguration(ctx, input); err != nil {
		return fmt.Errorf("updating configuration of %s: %w", name, err)
	}
	return nil
}

func (s *LambdaFunctionService) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteFunction(ctx, &lambda.DeleteFunctionInput{
		FunctionName: aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("deleting function %s: %w", name, err)
	}
	return nil
}
