package model

import (
	"encoding/json"
	"time"
)

const authenticationTokenType = "AuthenticationToken"

// AuthenticationTokenSchema is the JSON schema of the lakeFS login response.
const AuthenticationTokenSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "AuthenticationToken",
  "type": "object",
  "required": ["token"],
  "properties": {
    "token": {"type": "string"},
    "token_expiration": {"type": "integer"}
  }
}`

var authenticationTokenSchema = mustCompileSchema(
	authenticationTokenType,
	[]string{"token"},
	AuthenticationTokenSchema,
)

// AuthenticationToken is returned by a successful login.
type AuthenticationToken struct {
	Token string `json:"token"`
	// TokenExpiration is the unix time in seconds at which Token stops being accepted.
	TokenExpiration *int64 `json:"token_expiration,omitempty"`
}

// UnmarshalJSON rejects responses without a token.
func (t *AuthenticationToken) UnmarshalJSON(data []byte) error {
	if err := authenticationTokenSchema.validate(data); err != nil {
		return err
	}
	type plain AuthenticationToken
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = AuthenticationToken(p)
	return nil
}

// ExpiresAt returns the expiry time, or fallback after now when the server did
// not send one.
func (t *AuthenticationToken) ExpiresAt(now time.Time, fallback time.Duration) time.Time {
	if t.TokenExpiration == nil {
		return now.Add(fallback)
	}
	return time.Unix(*t.TokenExpiration, 0)
}

// User is a lakeFS user as returned by GET /user.
type User struct {
	ID           string  `json:"id"`
	CreationDate int64   `json:"creation_date"`
	FriendlyName *string `json:"friendly_name,omitempty"`
	Email        *string `json:"email,omitempty"`
}

// CurrentUser wraps the GET /user response.
type CurrentUser struct {
	User User `json:"user"`
}

// Session is a cached login result for one client.
type Session struct {
	ClientID    string    `json:"client_id"`
	AccessKeyID string    `json:"access_key_id"`
	Token       string    `json:"token"`
	UserID      string    `json:"user_id,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ValidAt reports whether the session can still be used at t given a refresh buffer.
func (s *Session) ValidAt(t time.Time, buffer time.Duration) bool {
	return s != nil && s.Token != "" && t.Before(s.ExpiresAt.Add(-buffer))
}
