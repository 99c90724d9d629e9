package lakefs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Checker-Finance/lakefs-adapter/pkg/model"
)

//
// ────────────────────────────────────────────────
//   Client Configuration (per-client, from secrets)
// ────────────────────────────────────────────────
//

// ServiceName is the trailing segment of every lakeFS client secret name.
const ServiceName = "lakefs"

// secretBaseURL is the secret key naming the lakeFS endpoint. It is not part
// of the login payload.
const secretBaseURL = "base_url"

// ClientConfig holds per-client lakeFS configuration resolved from secrets.
// Secret format: {"access_key_id": "...", "secret_access_key": "...", "base_url": "https://lakefs.example.com/api/v1"}
type ClientConfig struct {
	ClientID string
	BaseURL  string // lakeFS API root, including /api/v1
	Login    *model.LoginInformation
}

// ConfigResolver resolves per-client lakeFS configuration.
type ConfigResolver interface {
	// Resolve fetches the ClientConfig for a given client ID, using cache when available.
	Resolve(ctx context.Context, clientID string) (*ClientConfig, error)

	// Invalidate drops any cached config for the client.
	Invalidate(clientID string)

	// DiscoverClients lists all client IDs that have lakeFS secrets configured.
	DiscoverClients(ctx context.Context) ([]string, error)
}

// ParseClientConfig returns a parser turning a raw secret map into a
// ClientConfig. defaultBaseURL is used when the secret has no base_url.
// Keys besides the credentials and base_url are kept as additional login
// properties.
func ParseClientConfig(defaultBaseURL string) func(map[string]string) (ClientConfig, error) {
	return func(m map[string]string) (ClientConfig, error) {
		fields := make(map[string]string, len(m))
		baseURL := defaultBaseURL
		for k, v := range m {
			if k == secretBaseURL {
				if strings.TrimSpace(v) != "" {
					baseURL = v
				}
				continue
			}
			fields[k] = v
		}

		login, err := model.LoginInformationFromMap(fields)
		if err != nil {
			return ClientConfig{}, redactSecretError(err)
		}
		if err := login.Validate(); err != nil {
			return ClientConfig{}, err
		}
		if strings.TrimSpace(baseURL) == "" {
			return ClientConfig{}, fmt.Errorf("missing required field '%s'", secretBaseURL)
		}

		return ClientConfig{
			BaseURL: strings.TrimRight(baseURL, "/"),
			Login:   login,
		}, nil
	}
}

// redactSecretError drops the echoed document from schema errors so secret
// values never reach logs or events.
func redactSecretError(err error) error {
	var se *model.SchemaError
	if !errors.As(err, &se) {
		return err
	}
	return se.Redacted()
}

//
// ────────────────────────────────────────────────
//   lakeFS error payload
// ────────────────────────────────────────────────
//

// errorResponse is the body lakeFS sends with 4xx responses.
type errorResponse struct {
	Message string `json:"message"`
}
