package auth

import (
	"context"
	"fmt"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/registry"
)

// CanUseModel reports whether id may query the model described by desc.
// Free-tier identities are limited to free models. A nil identity means
// authentication is disabled and every model is allowed.
func CanUseModel(id *Identity, desc registry.ModelDescriptor) bool {
	if id == nil {
		return true
	}
	if id.Tier() == TierFree {
		return desc.IsFree
	}
	return true
}

// CheckModels returns a forbidden APIError for the first model in ids the
// caller in ctx may not use. Unknown ids are left for the engine to reject.
func CheckModels(ctx context.Context, catalog *registry.Registry, ids []string) *api.APIError {
	id := IdentityFromContext(ctx)
	if id == nil {
		return nil
	}
	for _, modelID := range ids {
		desc, err := catalog.Resolve(modelID)
		if err != nil {
			continue
		}
		if !CanUseModel(id, desc) {
			return api.NewForbiddenError(api.CodeModelNotEntitled,
				fmt.Sprintf("model %q is not available on the %s tier", modelID, id.Tier()))
		}
	}
	return nil
}
