package lakefs

import (
	"context"

	"go.uber.org/zap"

	intsecrets "github.com/Checker-Finance/lakefs-adapter/internal/secrets"
	pkgsecrets "github.com/Checker-Finance/lakefs-adapter/pkg/secrets"
)

// SecretsResolver resolves per-client lakeFS configuration from a secrets
// provider. It wraps the generic intsecrets.Resolver[ClientConfig].
//
// Secret naming convention: {env}/{clientID}/lakefs
type SecretsResolver struct {
	inner *intsecrets.Resolver[ClientConfig]
}

var _ ConfigResolver = (*SecretsResolver)(nil)

// NewSecretsResolver constructs a lakeFS config resolver backed by provider and cache.
func NewSecretsResolver(
	logger *zap.Logger,
	env string,
	defaultBaseURL string,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[ClientConfig],
) *SecretsResolver {
	inner := intsecrets.NewResolver(logger, env, ServiceName, provider, cache, ParseClientConfig(defaultBaseURL))
	return &SecretsResolver{inner: inner}
}

func (r *SecretsResolver) Resolve(ctx context.Context, clientID string) (*ClientConfig, error) {
	cfg, err := r.inner.Resolve(ctx, clientID)
	if err != nil {
		return nil, err
	}
	cfg.ClientID = clientID
	return &cfg, nil
}

func (r *SecretsResolver) Invalidate(clientID string) {
	r.inner.Invalidate(clientID)
}

func (r *SecretsResolver) DiscoverClients(ctx context.Context) ([]string, error) {
	return r.inner.DiscoverClients(ctx)
}
