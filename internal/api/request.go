package api

import (
	"encoding/json"

	"github.com/Checker-Finance/lakefs-adapter/pkg/model"
)

// SessionRequest asks the adapter to establish (or reuse) a lakeFS session.
type SessionRequest struct {
	ClientID string `json:"clientId" example:"client-demo-01"`
}

// SessionResponse describes a session without exposing its token.
type SessionResponse struct {
	ClientID  string `json:"clientId"`
	UserID    string `json:"userId,omitempty"`
	IssuedAt  int64  `json:"issuedAt,omitempty"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
	ErrorMsg  string `json:"error,omitempty"`
}

// ValidationResponse is returned by the LoginInformation validation endpoint.
// Payload is the normalised document with the secret masked.
type ValidationResponse struct {
	Valid   bool               `json:"valid"`
	Payload json.RawMessage    `json:"payload,omitempty"`
	Error   *model.SchemaError `json:"error,omitempty"`
}
