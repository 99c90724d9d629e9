package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/lakefs-adapter/internal/metrics"
	"github.com/Checker-Finance/lakefs-adapter/pkg/model"
)

// SessionSource is the part of lakefs.SessionManager the refresher drives.
type SessionSource interface {
	DiscoverClients(ctx context.Context) ([]string, error)
	Ensure(ctx context.Context, clientID string) (renewed bool, err error)
}

// ThrottleChecker reports clients that lakeFS asked to back off.
type ThrottleChecker interface {
	Throttled(clientID string) bool
}

// SummaryPublisher emits the per-cycle summary event.
type SummaryPublisher interface {
	PublishRefreshSummary(ctx context.Context, sum model.RefreshSummary) error
}

// SessionRefresher periodically renews lakeFS sessions of every configured
// client before they expire and emits a sessions.refreshed summary.
type SessionRefresher struct {
	logger    *zap.Logger
	sessions  SessionSource
	publisher SummaryPublisher
	interval  time.Duration
	throttle  ThrottleChecker
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewSessionRefresher constructs a background job that runs every interval.
// pub may be nil.
func NewSessionRefresher(logger *zap.Logger, sessions SessionSource, pub SummaryPublisher, interval time.Duration) *SessionRefresher {
	return &SessionRefresher{
		logger:    logger,
		sessions:  sessions,
		publisher: pub,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// SetThrottleChecker makes each cycle skip clients that are currently throttled;
// their sessions are renewed on a later cycle or on demand.
func (r *SessionRefresher) SetThrottleChecker(t ThrottleChecker) {
	r.throttle = t
}

// Start runs one cycle immediately and then one per interval until Stop or
// ctx cancellation.
func (r *SessionRefresher) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("session_refresher.started", zap.Duration("interval", r.interval))
	r.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			r.runOnce(ctx)
		case <-r.stopCh:
			r.logger.Info("session_refresher.stopped (manual stop)")
			return
		case <-ctx.Done():
			r.logger.Info("session_refresher.stopped (context canceled)")
			return
		}
	}
}

// Stop halts the refresher. It is safe to call more than once.
func (r *SessionRefresher) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// runOnce executes one refresh cycle and returns its summary.
func (r *SessionRefresher) runOnce(ctx context.Context) model.RefreshSummary {
	start := time.Now()

	clients, err := r.sessions.DiscoverClients(ctx)
	if err != nil {
		r.logger.Error("session_refresher.discover_failed", zap.Error(err))
		metrics.IncError("session_refresher", "discover")
		return model.RefreshSummary{}
	}

	var sum model.RefreshSummary
	for _, clientID := range clients {
		if ctx.Err() != nil {
			break
		}
		if r.throttle != nil && r.throttle.Throttled(clientID) {
			sum.Skipped++
			r.logger.Info("session_refresher.client_throttled", zap.String("client", clientID))
			continue
		}
		renewed, err := r.sessions.Ensure(ctx, clientID)
		switch {
		case err != nil:
			sum.Failed++
			r.logger.Warn("session_refresher.client_failed",
				zap.String("client", clientID),
				zap.Error(err))
		case renewed:
			sum.Refreshed++
		}
	}

	sum.DurationMS = time.Since(start).Milliseconds()
	sum.Timestamp = time.Now().UTC()
	metrics.SetLastRefresh("session_refresher", sum.Timestamp)

	if r.publisher != nil {
		if err := r.publisher.PublishRefreshSummary(ctx, sum); err != nil {
			r.logger.Warn("session_refresher.nats_publish_failed", zap.Error(err))
		}
	}

	r.logger.Info("session_refresher.success",
		zap.Int("clients", len(clients)),
		zap.Int("refreshed", sum.Refreshed),
		zap.Int("failed", sum.Failed),
		zap.Int("skipped", sum.Skipped),
		zap.Duration("duration", time.Since(start)))
	return sum
}
