package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is returned by providers when a secret does not exist.
var ErrNotFound = errors.New("secret not found")

// Provider fetches flat key/value secrets such as a lakeFS access key pair.
type Provider interface {
	// GetSecret retrieves a secret by key/path and returns a key-value map.
	GetSecret(ctx context.Context, key string) (map[string]string, error)

	// ListSecrets returns the names of all secrets whose name starts with prefix.
	ListSecrets(ctx context.Context, prefix string) ([]string, error)
}
