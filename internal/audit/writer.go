package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Checker-Finance/lakefs-adapter/pkg/utils"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeRevoked = "revoked"
)

// Entry is one row of lakefs.login_audit.
type Entry struct {
	ClientID    string
	AccessKeyID string
	Outcome     string
	Error       string
	UserID      string
	At          time.Time
}

// executor is satisfied by *pgxpool.Pool and by test fakes.
type executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PoolConfig tunes the pgx pool; zero values keep the pgx defaults.
type PoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

const createSchema = `
	CREATE SCHEMA IF NOT EXISTS lakefs;
	CREATE TABLE IF NOT EXISTS lakefs.login_audit (
		id            BIGSERIAL PRIMARY KEY,
		client_id     TEXT        NOT NULL,
		access_key_id TEXT        NOT NULL,
		outcome       TEXT        NOT NULL,
		error         TEXT,
		user_id       TEXT,
		source        TEXT        NOT NULL,
		recorded_at   TIMESTAMPTZ NOT NULL
	);
`

const insertEntry = `
	INSERT INTO lakefs.login_audit (
		client_id, access_key_id, outcome, error, user_id, source, recorded_at
	)
	VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7);
`

// Writer appends login attempts to lakefs.login_audit. Access key ids are
// masked before they reach the database.
type Writer struct {
	db     executor
	pool   *pgxpool.Pool
	logger *zap.Logger
	source string
}

// NewPool opens a pgx pool for the audit database.
func NewPool(ctx context.Context, url string, pc PoolConfig) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid pg config: %w", err)
	}
	if pc.MaxConns > 0 {
		cfg.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		cfg.MinConns = pc.MinConns
	}
	if pc.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pc.MaxConnLifetime
	}
	if pc.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pc.MaxConnIdleTime
	}
	if pc.HealthCheckPeriod > 0 {
		cfg.HealthCheckPeriod = pc.HealthCheckPeriod
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return pool, nil
}

// NewWriter builds a writer on pool. source identifies the writing service.
func NewWriter(pool *pgxpool.Pool, logger *zap.Logger, source string) *Writer {
	w := newWriter(pool, logger, source)
	w.pool = pool
	return w
}

func newWriter(db executor, logger *zap.Logger, source string) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{db: db, logger: logger, source: source}
}

// EnsureSchema creates the audit table when missing.
func (w *Writer) EnsureSchema(ctx context.Context) error {
	if _, err := w.db.Exec(ctx, createSchema); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

// Record appends one entry. A nil Writer records nothing, so callers can
// leave auditing unconfigured.
func (w *Writer) Record(ctx context.Context, e Entry) error {
	if w == nil || w.db == nil {
		return nil
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	_, err := w.db.Exec(ctx, insertEntry,
		e.ClientID,
		utils.MaskSecret(e.AccessKeyID),
		e.Outcome,
		e.Error,
		e.UserID,
		w.source,
		e.At,
	)
	if err != nil {
		w.logger.Error("audit.record_failed",
			zap.String("client", e.ClientID),
			zap.String("outcome", e.Outcome),
			zap.Error(err),
		)
		return err
	}

	w.logger.Debug("audit.recorded",
		zap.String("client", e.ClientID),
		zap.String("outcome", e.Outcome),
	)
	return nil
}

// HealthCheck pings the pool when the writer owns one.
func (w *Writer) HealthCheck(ctx context.Context) error {
	if w == nil || w.pool == nil {
		return nil
	}
	if err := w.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

func (w *Writer) Close() {
	if w != nil && w.pool != nil {
		w.pool.Close()
	}
}
