package lakefs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/Checker-Finance/lakefs-adapter/internal/httpclient"
	"github.com/Checker-Finance/lakefs-adapter/internal/rate"
	"github.com/Checker-Finance/lakefs-adapter/pkg/model"
)

const (
	loginPath       = "/auth/login"
	currentUserPath = "/user"
)

// ErrBadResponse marks a lakeFS answer that could not be used, such as a 200
// login response without a token.
var ErrBadResponse = errors.New("lakefs returned an unusable response")

// Client wraps low-level HTTP communication with the lakeFS API.
// Configuration (base URL, credentials) is supplied per call so that a single
// Client instance can serve multiple tenants.
type Client struct {
	logger *zap.Logger
	exec   *httpclient.Executor
}

// NewClient constructs a lakeFS HTTP client. httpClient may be nil.
func NewClient(logger *zap.Logger, rateMgr *rate.Manager, httpClient *http.Client, retryMax int) *Client {
	exec := httpclient.New(logger, rateMgr, httpClient, retryMax, "lakefs", func(status int, body []byte) error {
		var errResp errorResponse
		_ = json.Unmarshal(body, &errResp)

		msg := errResp.Message
		if msg == "" {
			msg = http.StatusText(status)
		}
		logger.Warn("lakefs.client_error",
			zap.Int("status", status),
			zap.String("message", msg))
		return &model.APIError{StatusCode: status, Message: msg}
	})
	return &Client{logger: logger, exec: exec}
}

// Login exchanges an access key pair for a session token.
// POST /auth/login
func (c *Client) Login(ctx context.Context, cfg *ClientConfig, login *model.LoginInformation) (*model.AuthenticationToken, error) {
	if err := login.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(login)
	if err != nil {
		return nil, fmt.Errorf("encode login: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var tok model.AuthenticationToken
	if err := c.exec.DoJSON(ctx, req, cfg.ClientID, &tok); err != nil {
		return nil, upstreamError(err)
	}
	if tok.Token == "" {
		return nil, fmt.Errorf("%w: login for %q returned no token", ErrBadResponse, cfg.ClientID)
	}
	return &tok, nil
}

// CurrentUser returns the user a session token belongs to.
// GET /user
func (c *Client) CurrentUser(ctx context.Context, cfg *ClientConfig, token string) (*model.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+currentUserPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	var resp model.CurrentUser
	if err := c.exec.DoJSON(ctx, req, cfg.ClientID, &resp); err != nil {
		return nil, upstreamError(err)
	}
	return &resp.User, nil
}

// upstreamError tags decode failures of a 2xx body as ErrBadResponse so they
// are not mistaken for a rejected credential payload.
func upstreamError(err error) error {
	if errors.Is(err, httpclient.ErrDecode) {
		return fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	return err
}
