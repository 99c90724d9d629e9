package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventSessionEstablished = "session.established"
	EventSessionFailed      = "session.failed"
	EventSessionRevoked     = "session.revoked"
	EventSessionsRefreshed  = "sessions.refreshed"
)

// Envelope is the canonical event wrapper published on NATS.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	ClientID      string          `json:"client_id,omitempty"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// SessionEvent reports the outcome of a login for one client.
type SessionEvent struct {
	ClientID    string     `json:"client_id"`
	AccessKeyID string     `json:"access_key_id"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// RefreshSummary is emitted after each background refresh cycle.
type RefreshSummary struct {
	Refreshed  int       `json:"refreshed"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}
