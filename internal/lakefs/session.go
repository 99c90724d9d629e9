package lakefs

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Checker-Finance/lakefs-adapter/internal/audit"
	"github.com/Checker-Finance/lakefs-adapter/internal/metrics"
	"github.com/Checker-Finance/lakefs-adapter/internal/store"
	"github.com/Checker-Finance/lakefs-adapter/pkg/model"
	"github.com/Checker-Finance/lakefs-adapter/pkg/utils"
)

// TokenIssuer is the part of Client the session manager uses.
type TokenIssuer interface {
	Login(ctx context.Context, cfg *ClientConfig, login *model.LoginInformation) (*model.AuthenticationToken, error)
	CurrentUser(ctx context.Context, cfg *ClientConfig, token string) (*model.User, error)
}

// EventPublisher emits session lifecycle events.
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, eventType string, ev model.SessionEvent) error
}

// AuditRecorder stores one row per login attempt.
type AuditRecorder interface {
	Record(ctx context.Context, e audit.Entry) error
}

// SessionOptions configures a SessionManager. Store, Publisher and Audit are optional.
type SessionOptions struct {
	Resolver  ConfigResolver
	Client    TokenIssuer
	Store     store.SessionStore
	Publisher EventPublisher
	Audit     AuditRecorder
	// RefreshBuffer renews a token this long before it expires.
	RefreshBuffer time.Duration
	// DefaultTTL applies when lakeFS does not report token_expiration.
	DefaultTTL time.Duration
}

// SessionManager hands out lakeFS session tokens per client. Lookups go to
// memory first, then the session store, and only then to lakeFS. Concurrent
// logins for the same client share one request.
type SessionManager struct {
	logger *zap.Logger
	opts   SessionOptions
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*model.Session
	group    singleflight.Group
}

// NewSessionManager constructs a session manager.
func NewSessionManager(logger *zap.Logger, opts SessionOptions) *SessionManager {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = time.Hour
	}
	return &SessionManager{
		logger:   logger,
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*model.Session),
	}
}

func sessionKey(clientID string) string {
	return strings.ToLower(strings.TrimSpace(clientID))
}

// Session returns a usable session for clientID, logging in when needed.
func (m *SessionManager) Session(ctx context.Context, clientID string) (*model.Session, error) {
	s, _, err := m.ensure(ctx, clientID)
	return s, err
}

// Ensure makes sure clientID holds a session that is valid beyond the refresh
// buffer. renewed reports whether a new login happened.
func (m *SessionManager) Ensure(ctx context.Context, clientID string) (renewed bool, err error) {
	_, renewed, err = m.ensure(ctx, clientID)
	return renewed, err
}

func (m *SessionManager) ensure(ctx context.Context, clientID string) (*model.Session, bool, error) {
	key := sessionKey(clientID)
	if key == "" {
		return nil, false, fmt.Errorf("session: empty client id")
	}
	now := m.now()

	m.mu.RLock()
	cached := m.sessions[key]
	m.mu.RUnlock()
	if cached.ValidAt(now, m.opts.RefreshBuffer) {
		return cached, false, nil
	}

	if m.opts.Store != nil {
		stored, err := m.opts.Store.GetSession(ctx, key)
		if err != nil {
			m.logger.Warn("lakefs.session_store_read_failed",
				zap.String("client", key),
				zap.Error(err))
		} else if stored.ValidAt(now, m.opts.RefreshBuffer) {
			m.remember(key, stored)
			return stored, false, nil
		}
	}

	s, err := m.Refresh(ctx, key)
	return s, err == nil, err
}

// Refresh logs in to lakeFS for clientID regardless of any cached session.
func (m *SessionManager) Refresh(ctx context.Context, clientID string) (*model.Session, error) {
	key := sessionKey(clientID)
	v, err, _ := m.group.Do(key, func() (any, error) {
		return m.login(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Session), nil
}

func (m *SessionManager) login(ctx context.Context, clientID string) (*model.Session, error) {
	cfg, err := m.opts.Resolver.Resolve(ctx, clientID)
	if err != nil {
		m.logger.Error("lakefs.resolve_config_failed",
			zap.String("client", clientID),
			zap.Error(err))
		metrics.IncError("lakefs", "resolve_config")
		m.fail(ctx, clientID, "", err)
		return nil, fmt.Errorf("resolve client config for %q: %w", clientID, err)
	}

	m.logger.Info("lakefs.login.start",
		zap.String("client", clientID),
		zap.Object("login", cfg.Login))

	tok, err := m.opts.Client.Login(ctx, cfg, cfg.Login)
	if err != nil {
		if model.IsUnauthorized(err) {
			// the cached secret may predate a key rotation
			m.opts.Resolver.Invalidate(clientID)
		}
		m.logger.Error("lakefs.login.failed",
			zap.String("client", clientID),
			zap.Error(err))
		metrics.IncError("lakefs", "login")
		m.fail(ctx, clientID, cfg.Login.GetAccessKeyID(), err)
		return nil, fmt.Errorf("lakefs login failed: %w", err)
	}

	now := m.now()
	sess := &model.Session{
		ClientID:    clientID,
		AccessKeyID: cfg.Login.GetAccessKeyID(),
		Token:       tok.Token,
		IssuedAt:    now.UTC(),
		ExpiresAt:   tok.ExpiresAt(now, m.opts.DefaultTTL).UTC(),
	}

	if user, err := m.opts.Client.CurrentUser(ctx, cfg, tok.Token); err != nil {
		m.logger.Warn("lakefs.current_user_failed",
			zap.String("client", clientID),
			zap.Error(err))
	} else {
		sess.UserID = user.ID
	}

	m.remember(clientID, sess)
	if m.opts.Store != nil {
		if err := m.opts.Store.SaveSession(ctx, sess, sess.ExpiresAt.Sub(now)); err != nil {
			m.logger.Warn("lakefs.session_store_write_failed",
				zap.String("client", clientID),
				zap.Error(err))
		}
	}

	m.logger.Info("lakefs.login.success",
		zap.String("client", clientID),
		zap.String("user", sess.UserID),
		zap.Time("expires_at", sess.ExpiresAt))

	expiresAt := sess.ExpiresAt
	m.publish(ctx, model.EventSessionEstablished, model.SessionEvent{
		ClientID:    clientID,
		AccessKeyID: utils.MaskSecret(sess.AccessKeyID),
		Status:      "established",
		ExpiresAt:   &expiresAt,
		Timestamp:   now.UTC(),
	})
	m.record(ctx, audit.Entry{
		ClientID:    clientID,
		AccessKeyID: sess.AccessKeyID,
		Outcome:     audit.OutcomeSuccess,
		UserID:      sess.UserID,
		At:          now.UTC(),
	})
	return sess, nil
}

// Revoke forgets the session of clientID in memory and in the store.
func (m *SessionManager) Revoke(ctx context.Context, clientID string) error {
	key := sessionKey(clientID)
	if key == "" {
		return fmt.Errorf("session: empty client id")
	}

	m.mu.Lock()
	prev := m.sessions[key]
	delete(m.sessions, key)
	metrics.SessionsActive.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	if m.opts.Store != nil {
		if err := m.opts.Store.DeleteSession(ctx, key); err != nil {
			return fmt.Errorf("delete session %q: %w", key, err)
		}
	}

	var accessKeyID string
	if prev != nil {
		accessKeyID = prev.AccessKeyID
	}
	now := m.now().UTC()
	m.publish(ctx, model.EventSessionRevoked, model.SessionEvent{
		ClientID:    key,
		AccessKeyID: utils.MaskSecret(accessKeyID),
		Status:      "revoked",
		Timestamp:   now,
	})
	m.record(ctx, audit.Entry{
		ClientID:    key,
		AccessKeyID: accessKeyID,
		Outcome:     audit.OutcomeRevoked,
		At:          now,
	})
	m.logger.Info("lakefs.session_revoked", zap.String("client", key))
	return nil
}

// Active returns the number of sessions held in memory.
func (m *SessionManager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// DiscoverClients lists the clients that have lakeFS credentials configured.
func (m *SessionManager) DiscoverClients(ctx context.Context) ([]string, error) {
	return m.opts.Resolver.DiscoverClients(ctx)
}

func (m *SessionManager) remember(clientID string, s *model.Session) {
	m.mu.Lock()
	m.sessions[clientID] = s
	metrics.SessionsActive.Set(float64(len(m.sessions)))
	m.mu.Unlock()
}

func (m *SessionManager) fail(ctx context.Context, clientID, accessKeyID string, cause error) {
	now := m.now().UTC()
	m.publish(ctx, model.EventSessionFailed, model.SessionEvent{
		ClientID:    clientID,
		AccessKeyID: utils.MaskSecret(accessKeyID),
		Status:      "failed",
		Error:       cause.Error(),
		Timestamp:   now,
	})
	m.record(ctx, audit.Entry{
		ClientID:    clientID,
		AccessKeyID: accessKeyID,
		Outcome:     audit.OutcomeFailure,
		Error:       cause.Error(),
		At:          now,
	})
}

func (m *SessionManager) publish(ctx context.Context, eventType string, ev model.SessionEvent) {
	if m.opts.Publisher == nil {
		return
	}
	if err := m.opts.Publisher.PublishSessionEvent(ctx, eventType, ev); err != nil {
		m.logger.Warn("lakefs.publish_failed",
			zap.String("event_type", eventType),
			zap.String("client", ev.ClientID),
			zap.Error(err))
	}
}

func (m *SessionManager) record(ctx context.Context, e audit.Entry) {
	if m.opts.Audit == nil {
		return
	}
	if err := m.opts.Audit.Record(ctx, e); err != nil {
		m.logger.Warn("lakefs.audit_failed",
			zap.String("client", e.ClientID),
			zap.Error(err))
	}
}
