package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Checker-Finance/lakefs-adapter/pkg/model"
)

const sessionKeyPrefix = "lakefs:session:"

// SessionStore persists lakeFS sessions so a restarted adapter can reuse
// tokens that are still valid.
type SessionStore interface {
	SaveSession(ctx context.Context, s *model.Session, ttl time.Duration) error
	GetSession(ctx context.Context, clientID string) (*model.Session, error)
	DeleteSession(ctx context.Context, clientID string) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) error
	HealthCheck(ctx context.Context) error
	Close() error
}

type RedisStore struct {
	redis  *redis.Client
	logger *zap.Logger
}

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis(addr string, db int, password string, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       db,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{redis: rdb, logger: logger}, nil
}

// SessionKey returns the Redis key holding the session of clientID.
func SessionKey(clientID string) string {
	return sessionKeyPrefix + strings.ToLower(clientID)
}

// SaveSession stores s until ttl elapses. A non-positive ttl means the session
// is already expired and nothing is written.
func (s *RedisStore) SaveSession(ctx context.Context, sess *model.Session, ttl time.Duration) error {
	if sess == nil || sess.ClientID == "" {
		return fmt.Errorf("save session: missing client id")
	}
	if ttl <= 0 {
		s.logger.Debug("store.session_skip_expired", zap.String("client", sess.ClientID))
		return nil
	}
	if err := s.SetJSON(ctx, SessionKey(sess.ClientID), sess, ttl); err != nil {
		s.logger.Error("store.redis.save_session_failed",
			zap.String("client", sess.ClientID),
			zap.Error(err))
		return err
	}
	return nil
}

// GetSession returns the stored session, or nil when none exists.
func (s *RedisStore) GetSession(ctx context.Context, clientID string) (*model.Session, error) {
	var sess model.Session
	err := s.GetJSON(ctx, SessionKey(clientID), &sess)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("get session %q: %w", clientID, err)
	}
	return &sess, nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, clientID string) error {
	return s.redis.Del(ctx, SessionKey(clientID)).Err()
}

func (s *RedisStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, ttl).Err()
}

func (s *RedisStore) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
