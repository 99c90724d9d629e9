package secrets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Checker-Finance/lakefs-adapter/internal/metrics"
	pkgsecrets "github.com/Checker-Finance/lakefs-adapter/pkg/secrets"
)

// Resolver resolves per-client configuration from a secrets provider, caching
// parsed results locally to reduce API calls. It is generic over the parsed
// config type T.
//
// Secret naming convention: {env}/{clientID}/{service}
type Resolver[T any] struct {
	logger   *zap.Logger
	env      string
	service  string
	provider pkgsecrets.Provider
	cache    *pkgsecrets.Cache[T]
	parse    func(map[string]string) (T, error)
}

// NewResolver constructs a multi-tenant config resolver. parse extracts T from
// the raw secret map and should reject incomplete secrets.
func NewResolver[T any](
	logger *zap.Logger,
	env string,
	service string,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[T],
	parse func(map[string]string) (T, error),
) *Resolver[T] {
	return &Resolver[T]{
		logger:   logger,
		env:      env,
		service:  service,
		provider: provider,
		cache:    cache,
		parse:    parse,
	}
}

func (r *Resolver[T]) cacheKey(clientID string) string {
	return strings.ToLower(fmt.Sprintf("%s|%s", clientID, r.service))
}

// SecretName returns the provider key for a client: {env}/{clientID}/{service}.
func (r *Resolver[T]) SecretName(clientID string) string {
	return strings.ToLower(fmt.Sprintf("%s/%s/%s", r.env, clientID, r.service))
}

// Resolve fetches or caches config T for a given client ID.
func (r *Resolver[T]) Resolve(ctx context.Context, clientID string) (T, error) {
	var zero T
	if strings.TrimSpace(clientID) == "" {
		return zero, fmt.Errorf("resolve client config: empty client id")
	}
	key := r.cacheKey(clientID)

	if cfg, ok := r.cache.Get(key); ok {
		metrics.IncCacheHit("hit")
		return cfg, nil
	}
	metrics.IncCacheHit("miss")

	secretName := r.SecretName(clientID)
	secretMap, err := r.provider.GetSecret(ctx, secretName)
	if err != nil {
		r.logger.Warn("secrets.fetch_failed",
			zap.String("key", secretName),
			zap.Error(err))
		return zero, fmt.Errorf("resolve client config for %q: %w", clientID, err)
	}

	cfg, err := r.parse(secretMap)
	if err != nil {
		metrics.IncError("secrets", "parse")
		return zero, fmt.Errorf("parse secret %q: %w", secretName, err)
	}

	r.cache.Put(key, cfg)

	r.logger.Info("secrets.client_config_resolved",
		zap.String("client", clientID),
		zap.String("service", r.service),
	)
	return cfg, nil
}

// Invalidate drops the cached config for a client so the next Resolve refetches it.
func (r *Resolver[T]) Invalidate(clientID string) {
	r.cache.Bust(r.cacheKey(clientID))
}

// DiscoverClients lists all client IDs that have a secret for this service.
// Names look like "{env}/{clientID}/{service}"; anything else is skipped.
func (r *Resolver[T]) DiscoverClients(ctx context.Context) ([]string, error) {
	prefix := strings.ToLower(r.env + "/")
	suffix := "/" + strings.ToLower(r.service)

	names, err := r.provider.ListSecrets(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("discover clients: %w", err)
	}

	var clients []string
	for _, name := range names {
		lower := strings.ToLower(name)
		if !strings.HasPrefix(lower, prefix) || !strings.HasSuffix(lower, suffix) {
			continue
		}
		trimmed := strings.TrimSuffix(strings.TrimPrefix(lower, prefix), suffix)
		if trimmed != "" && !strings.Contains(trimmed, "/") {
			clients = append(clients, trimmed)
		}
	}

	r.logger.Info("secrets.clients_discovered",
		zap.Int("count", len(clients)),
		zap.Strings("clients", clients),
	)
	return clients, nil
}
