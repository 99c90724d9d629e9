package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvProvider serves a single client's secret from environment variables. It is
// meant for local runs where AWS Secrets Manager is not available.
//
// For secret name "{env}/{client}/lakefs" and prefix "LAKEFS", the variables
// LAKEFS_ACCESS_KEY_ID, LAKEFS_SECRET_ACCESS_KEY and LAKEFS_BASE_URL become the
// keys access_key_id, secret_access_key and base_url.
type EnvProvider struct {
	name   string
	prefix string
	lookup func(string) (string, bool)
}

// NewEnvProvider exposes the variables under prefix as the secret called name.
func NewEnvProvider(name, prefix string) *EnvProvider {
	return &EnvProvider{name: strings.ToLower(name), prefix: strings.ToUpper(prefix), lookup: os.LookupEnv}
}

func (p *EnvProvider) GetSecret(_ context.Context, key string) (map[string]string, error) {
	if strings.ToLower(key) != p.name {
		return nil, fmt.Errorf("secret [%s]: %w", key, ErrNotFound)
	}

	out := make(map[string]string)
	for _, field := range []string{"access_key_id", "secret_access_key", "base_url"} {
		if v, ok := p.lookup(p.prefix + "_" + strings.ToUpper(field)); ok && v != "" {
			out[field] = v
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("secret [%s]: no %s_* variables set: %w", key, p.prefix, ErrNotFound)
	}
	return out, nil
}

func (p *EnvProvider) ListSecrets(_ context.Context, prefix string) ([]string, error) {
	if strings.HasPrefix(p.name, strings.ToLower(prefix)) {
		return []string{p.name}, nil
	}
	return nil, nil
}
