package deploy

import (
	"context"

	"github.com/lofty-sh/lofty/pkg/cloud"
	"github.com/lofty-sh/lofty/pkg/reconcile"
)

// LatestLabel is the alias repointed at the newly published version on
// every deploy.
const LatestLabel = "latest"

// AliasManager binds human-readable labels to concrete immutable versions.
type AliasManager struct {
	functions cloud.FunctionService
}

// NewAliasManager creates an alias manager over the given function service.
func NewAliasManager(functions cloud.FunctionService) *AliasManager {
	return &AliasManager{functions: functions}
}

// Ensure is an idempotent upsert: create the alias, and if the label
// already exists repoint it at version. Any other creation failure
// propagates unchanged.
func (m *AliasManager) Ensure(ctx context.Context, functionName, version, label string) error {
	target := reconcile.ResolveAlias(label, version)
	err := m.functions.CreateAlias(ctx, functionName, target.Label, target.Version)
	if err == nil {
		return nil
	}
	if cloud.IsAlreadyExists(err) {
		return m.functions.UpdateAlias(ctx, functionName, target.Label, target.Version)
	}
	return err
}
