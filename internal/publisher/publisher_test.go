package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/lakefs-adapter/pkg/model"
)

// --- mock types ---

type mockJetStream struct {
	published []*nats.Msg
	fail      bool
	streams   map[string]*nats.StreamConfig
	infoErr   error
}

func (m *mockJetStream) PublishMsg(msg *nats.Msg, _ ...nats.PubOpt) (*nats.PubAck, error) {
	if m.fail {
		return nil, errors.New("mock publish error")
	}
	m.published = append(m.published, msg)
	return &nats.PubAck{Stream: "LAKEFS_EVENTS"}, nil
}

func (m *mockJetStream) StreamInfo(stream string, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	if m.infoErr != nil {
		return nil, m.infoErr
	}
	cfg, ok := m.streams[stream]
	if !ok {
		return nil, nats.ErrStreamNotFound
	}
	return &nats.StreamInfo{Config: *cfg}, nil
}

func (m *mockJetStream) AddStream(cfg *nats.StreamConfig, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	if m.streams == nil {
		m.streams = map[string]*nats.StreamConfig{}
	}
	m.streams[cfg.Name] = cfg
	return &nats.StreamInfo{Config: *cfg}, nil
}

// --- helper ---

func newTestPublisher(fail bool) (*Publisher, *mockJetStream) {
	js := &mockJetStream{fail: fail}
	return &Publisher{
		js:      js,
		prefix:  "evt.lakefs",
		service: "lakefs-adapter",
	}, js
}

// --- tests ---

func TestPublishEnvelope_Success(t *testing.T) {
	pub, js := newTestPublisher(false)
	env := &model.Envelope{
		ID:            uuid.New(),
		CorrelationID: uuid.New(),
		ClientID:      "client-001",
		Topic:         "evt.lakefs.session.established.v1",
		EventType:     model.EventSessionEstablished,
		Version:       "1.0.0",
		Timestamp:     time.Now(),
		Payload:       json.RawMessage(`{"client_id":"client-001","status":"established"}`),
	}

	require.NoError(t, pub.PublishEnvelope(context.Background(), env.Topic, env))
	require.Len(t, js.published, 1)

	msg := js.published[0]
	assert.Equal(t, "evt.lakefs.session.established.v1", msg.Subject)
	assert.Equal(t, "session.established", msg.Header.Get("event_type"))
	assert.Equal(t, "lakefs-adapter", msg.Header.Get("service"))
	assert.Equal(t, env.ID.String(), msg.Header.Get(nats.MsgIdHdr), "message id enables JetStream dedup")

	var parsed model.Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &parsed))
	assert.Equal(t, "client-001", parsed.ClientID)
	assert.Equal(t, env.ID, parsed.ID)
}

func TestPublishEnvelope_Failure(t *testing.T) {
	pub, _ := newTestPublisher(true)
	env := &model.Envelope{ID: uuid.New(), EventType: model.EventSessionFailed}

	assert.Error(t, pub.PublishEnvelope(context.Background(), "evt.lakefs.session.failed.v1", env))
}

func TestPublishSessionEvent(t *testing.T) {
	pub, js := newTestPublisher(false)
	ev := model.SessionEvent{
		ClientID:    "client-001",
		AccessKeyID: "****MPLE",
		Status:      "failed",
		Error:       "lakefs returned 401: error authenticating request",
		Timestamp:   time.Now().UTC(),
	}

	require.NoError(t, pub.PublishSessionEvent(context.Background(), model.EventSessionFailed, ev))
	require.Len(t, js.published, 1)

	var env model.Envelope
	require.NoError(t, json.Unmarshal(js.published[0].Data, &env))
	assert.Equal(t, "evt.lakefs.session.failed.v1", env.Topic)
	assert.Equal(t, model.EventSessionFailed, env.EventType)
	assert.Equal(t, "client-001", env.ClientID)
	assert.NotEqual(t, uuid.Nil, env.ID)

	var payload model.SessionEvent
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, ev.Error, payload.Error)
	assert.Nil(t, payload.ExpiresAt)
	assert.NotContains(t, string(env.Payload), "expires_at", "no zero expiry on failed events")
}

func TestPublishSessionEvent_CarriesExpiry(t *testing.T) {
	pub, js := newTestPublisher(false)
	expires := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, pub.PublishSessionEvent(context.Background(), model.EventSessionEstablished, model.SessionEvent{
		ClientID:  "client-001",
		Status:    "established",
		ExpiresAt: &expires,
		Timestamp: time.Now().UTC(),
	}))
	require.Len(t, js.published, 1)

	var env model.Envelope
	require.NoError(t, json.Unmarshal(js.published[0].Data, &env))
	var payload model.SessionEvent
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	require.NotNil(t, payload.ExpiresAt)
	assert.True(t, expires.Equal(*payload.ExpiresAt))
}

func TestPublishRefreshSummary(t *testing.T) {
	pub, js := newTestPublisher(false)

	require.NoError(t, pub.PublishRefreshSummary(context.Background(), model.RefreshSummary{Refreshed: 3, Failed: 1}))
	require.Len(t, js.published, 1)
	assert.Equal(t, "evt.lakefs.sessions.refreshed.v1", js.published[0].Subject)
	assert.Empty(t, js.published[0].Header.Get("client_id"))
}

func TestEnsureStream(t *testing.T) {
	pub, js := newTestPublisher(false)

	require.NoError(t, pub.EnsureStream("LAKEFS_EVENTS"))
	require.Contains(t, js.streams, "LAKEFS_EVENTS")
	assert.Equal(t, []string{"evt.lakefs.>"}, js.streams["LAKEFS_EVENTS"].Subjects)

	// second call finds the stream and does nothing
	require.NoError(t, pub.EnsureStream("LAKEFS_EVENTS"))
	assert.Len(t, js.streams, 1)
}

func TestEnsureStream_InfoError(t *testing.T) {
	pub, js := newTestPublisher(false)
	js.infoErr = errors.New("jetstream not enabled")

	err := pub.EnsureStream("LAKEFS_EVENTS")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jetstream not enabled")
	assert.Empty(t, js.streams)
}

func TestHealthCheck_NoConnection(t *testing.T) {
	pub, _ := newTestPublisher(false)
	assert.Error(t, pub.HealthCheck(context.Background()))
	assert.NotPanics(t, pub.Close)
}
