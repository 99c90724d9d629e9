package api

import (
	"context"

	"github.com/Checker-Finance/lakefs-adapter/internal/lakefs"
)

// ResolverValidator implements ClientValidator by attempting to resolve the
// client's config. If resolution succeeds the client is considered known.
type ResolverValidator struct {
	resolver lakefs.ConfigResolver
}

func NewResolverValidator(resolver lakefs.ConfigResolver) *ResolverValidator {
	return &ResolverValidator{resolver: resolver}
}

// IsKnownClient returns true if the client has lakeFS credentials configured.
func (v *ResolverValidator) IsKnownClient(ctx context.Context, clientID string) bool {
	_, err := v.resolver.Resolve(ctx, clientID)
	return err == nil
}
