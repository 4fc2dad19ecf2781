package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
)

// ExecutionRole is the identity resource a function assumes at invocation
// time.
type ExecutionRole struct {
	Name string
	Arn  string
}

// LambdaTrustPolicy is the trust document allowing the compute platform to
// assume a freshly created execution role.
const LambdaTrustPolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {"Service": "lambda.amazonaws.com"},
      "Action": "sts:AssumeRole"
    }
  ]
}`

// LogWriterPolicy grants the function permission to emit diagnostics to
// CloudWatch Logs.
const LogWriterPolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Action": [
        "logs:CreateLogGroup",
        "logs:CreateLogStream",
        "logs:PutLogEvents"
      ],
      "Resource": "arn:*:logs:*:*:*"
    }
  ]
}`

// IdentityService manages execution roles and their inline policies. No
// retry is built in; callers apply the retry engine where eventual
// consistency is expected.
type IdentityService interface {
	GetRole(ctx context.Context, name string) (*ExecutionRole, error)
	CreateRole(ctx context.Context, name, trustPolicyDocument string) (*ExecutionRole, error)
	PutInlinePolicy(ctx context.Context, roleName, policyName, documentJSON string) error
	DeleteRole(ctx context.Context, name string) error
}

// IAMIdentityService implements IdentityService against IAM.
type IAMIdentityService struct {
	client *iam.Client
}

// NewIAMIdentityService creates the IAM-backed identity service.
func NewIAMIdentityService(client *iam.Client) *IAMIdentityService {
	return &IAMIdentityService{client: client}
}

func (s *IAMIdentityService) GetRole(ctx context.Context, name string) (*ExecutionRole, error) {
	out, err := s.client.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
	if err != nil {
		return nil, fmt.Errorf("getting role %s: %w", name, err)
	}
	return &ExecutionRole{
		Name: aws.ToString(out.Role.RoleName),
		Arn:  aws.ToString(out.Role.Arn),
	}, nil
}

func (s *IAMIdentityService) CreateRole(ctx context.Context, name, trustPolicyDocument string) (*ExecutionRole, error) {
	out, err := s.client.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(name),
		AssumeRolePolicyDocument: aws.String(trustPolicyDocument),
	})
	if err != nil {
		return nil, fmt.Errorf("creating role %s: %w", name, err)
	}
	return &ExecutionRole{
		Name: aws.ToString(out.Role.RoleName),
		Arn:  aws.ToString(out.Role.Arn),
	}, nil
}

func (s *IAMIdentityService) PutInlinePolicy(ctx context.Context, roleName, policyName, documentJSON string) error {
	_, err := s.client.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(roleName),
		PolicyName:     aws.String(policyName),
		PolicyDocument: aws.String(documentJSON),
	})
	if err != nil {
		return fmt.Errorf("attaching policy %s to role %s: %w", policyName, roleName, err)
	}
	return nil
}

// DeleteRole removes the role's inline policies, then the role itself.
func (s *IAMIdentityService) DeleteRole(ctx context.Context, name string) error {
	policies, err := s.client.ListRolePolicies(ctx, &iam.ListRolePoliciesInput{
		RoleName: aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("listing policies of role %s: %w", name, err)
	}
	for _, policy := range policies.PolicyNames {
		_, err := s.client.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
			RoleName:   aws.String(name),
			PolicyName: aws.String(policy),
		})
		if err != nil {
			return fmt.Errorf("detaching policy %s from role %s: %w", policy, name, err)
		}
	}
	if _, err := s.client.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(name)}); err != nil {
		return fmt.Errorf("deleting role %s: %w", name, err)
	}
	return nil
}
