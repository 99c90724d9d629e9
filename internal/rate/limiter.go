package rate

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Config is the request budget each lakeFS client gets.
type Config struct {
	RequestsPerSecond int
	Burst             int
	// Cooldown is how long a limiter reports itself throttled after a local denial.
	Cooldown time.Duration
}

// Limiter is a token bucket that lakeFS can also pause, e.g. with a 429 and a
// Retry-After header. While paused every request is denied.
type Limiter struct {
	mu  sync.Mutex
	now func() time.Time

	tokens float64
	last   time.Time
	rate   float64
	burst  float64

	cooldown    time.Duration
	lastDenied  time.Time
	pausedUntil time.Time
}

// New creates a limiter with a full bucket.
func New(cfg Config) *Limiter {
	return newLimiter(cfg, time.Now)
}

func newLimiter(cfg Config, now func() time.Time) *Limiter {
	return &Limiter{
		now:      now,
		tokens:   float64(cfg.Burst),
		last:     now(),
		rate:     float64(cfg.RequestsPerSecond),
		burst:    float64(cfg.Burst),
		cooldown: cfg.Cooldown,
	}
}

// Allow takes a token if the limiter is not paused and one is available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	l.last = now
	if l.tokens > l.burst {
		l.tokens = l.burst
	}

	if now.Before(l.pausedUntil) {
		return false
	}
	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	l.lastDenied = now
	return false
}

// Pause denies every request for d. A shorter pause never cuts a longer one short.
func (l *Limiter) Pause(d time.Duration) {
	if d <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if until := l.now().Add(d); until.After(l.pausedUntil) {
		l.pausedUntil = until
	}
}

// PausedFor returns how much of the current pause is left.
func (l *Limiter) PausedFor() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if left := l.pausedUntil.Sub(l.now()); left > 0 {
		return left
	}
	return 0
}

// Throttled reports whether the limiter is paused or denied a request within
// the cooldown window.
func (l *Limiter) Throttled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Before(l.pausedUntil) {
		return true
	}
	return l.cooldown > 0 && !l.lastDenied.IsZero() && now.Sub(l.lastDenied) < l.cooldown
}

// Wait blocks until a token is available or ctx is done. During a pause it
// sleeps for the rest of the pause instead of polling.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		if l.Allow() {
			return nil
		}
		d := l.PausedFor()
		if d <= 0 {
			d = 50 * time.Millisecond
		}
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}

// Manager holds one limiter per lakeFS client so a noisy tenant cannot
// starve the others. Client ids are matched case-insensitively.
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
	defaults Config
	now      func() time.Time
}

func NewManager(defaults Config) *Manager {
	return &Manager{
		limiters: make(map[string]*Limiter),
		defaults: defaults,
		now:      time.Now,
	}
}

func normalize(clientID string) string {
	return strings.ToLower(strings.TrimSpace(clientID))
}

func (m *Manager) GetLimiter(clientID string) *Limiter {
	key := normalize(clientID)

	m.mu.RLock()
	if lim, ok := m.limiters[key]; ok {
		m.mu.RUnlock()
		return lim
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if lim, ok := m.limiters[key]; ok {
		return lim
	}
	lim := newLimiter(m.defaults, m.now)
	m.limiters[key] = lim
	return lim
}

// Wait ensures rate limit compliance for a client.
func (m *Manager) Wait(ctx context.Context, clientID string) error {
	return m.GetLimiter(clientID).Wait(ctx)
}

// Pause stops all requests of a client for d.
func (m *Manager) Pause(clientID string, d time.Duration) {
	m.GetLimiter(clientID).Pause(d)
}

// Throttled reports whether a client is currently held back. Unknown clients
// are never throttled.
func (m *Manager) Throttled(clientID string) bool {
	m.mu.RLock()
	lim, ok := m.limiters[normalize(clientID)]
	m.mu.RUnlock()
	return ok && lim.Throttled()
}

// ThrottledClients lists the clients currently held back, sorted.
func (m *Manager) ThrottledClients() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for k, lim := range m.limiters {
		if lim.Throttled() {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
