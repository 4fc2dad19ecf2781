// Package descriptor persists the deployment descriptor: the JSON record of
// the resources a deployment owns. Commands after the first deployment
// resolve their target exclusively through this file.
package descriptor

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// DefaultFileName is the descriptor filename unless overridden by flag.
const DefaultFileName = "lofty.json"

// ErrNoDeployment is returned when a command requires a descriptor and none
// exists or it cannot be parsed.
var ErrNoDeployment = errors.New("no deployment found: run create first or pass --descriptor")

// DeploymentConfig is the persisted descriptor. Written once at the end of
// the first successful deployment, then selectively updated by later
// commands. Function name and region never change once set.
type DeploymentConfig struct {
	Function   FunctionConfig `json:"function" validate:"required"`
	Gateway    *GatewayConfig `json:"gateway,omitempty"`
	StorageKey string         `json:"storageKey,omitempty"`
}

// FunctionConfig identifies the deployed function and its execution role.
type FunctionConfig struct {
	Name              string `json:"name" validate:"required"`
	ExecutionRoleName string `json:"executionRoleName" validate:"required"`
	Region            string `json:"region" validate:"required"`
	// SharedRole marks an execution role referenced from elsewhere; the
	// tool never deletes a shared role.
	SharedRole bool `json:"sharedRole,omitempty"`
}

// GatewayConfig records the HTTP front end, when one was requested.
type GatewayConfig struct {
	ID        string `json:"id" validate:"required"`
	ModuleRef string `json:"moduleRef,omitempty"`
}

var validate = validator.New()

// Validate checks the descriptor's required shape.
func (c *DeploymentConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid deployment descriptor: %w", err)
	}
	return nil
}
