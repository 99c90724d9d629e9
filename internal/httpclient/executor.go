package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/lakefs-adapter/internal/metrics"
	"github.com/Checker-Finance/lakefs-adapter/internal/rate"
)

// ErrDecode marks a 2xx response whose body could not be decoded.
var ErrDecode = errors.New("decode failed")

// Backoff returns the retry sleep duration for the given attempt number.
func Backoff(attempt int) time.Duration {
	switch attempt {
	case 0:
		return 100 * time.Millisecond
	case 1:
		return 250 * time.Millisecond
	default:
		return 500 * time.Millisecond
	}
}

// Executor handles rate-limited, retrying HTTP execution with JSON decoding.
type Executor struct {
	logger       *zap.Logger
	rateMgr      *rate.Manager
	http         *http.Client
	retryMax     int
	serviceTag   string
	errorHandler func(status int, body []byte) error
}

// New creates an Executor. errorHandler is called on 4xx failure responses to
// produce a service-specific error. If nil, a default error is returned.
func New(
	logger *zap.Logger,
	rateMgr *rate.Manager,
	httpClient *http.Client,
	retryMax int,
	serviceTag string,
	errorHandler func(status int, body []byte) error,
) *Executor {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Executor{
		logger:       logger,
		rateMgr:      rateMgr,
		http:         httpClient,
		retryMax:     retryMax,
		serviceTag:   serviceTag,
		errorHandler: errorHandler,
	}
}

// maxRetryAfter caps how long a Retry-After header can hold a client back.
const maxRetryAfter = time.Minute

// DoJSON executes req with rate limiting and retries, then JSON-decodes the
// response into out. rateLimitKey scopes the rate limiter per client.
// Transport errors, 5xx and 429 responses are retried; other 4xx are not.
// A 429 pauses the client's limiter for the Retry-After period.
func (e *Executor) DoJSON(ctx context.Context, req *http.Request, rateLimitKey string, out any) error {
	endpoint := req.URL.Path
	attempts := e.retryMax + 1

	var lastErr error
	var delay time.Duration
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, delay); err != nil {
				return err
			}
			if err := rewind(req); err != nil {
				return err
			}
		}
		if e.rateMgr != nil {
			if err := e.rateMgr.Wait(ctx, rateLimitKey); err != nil {
				return fmt.Errorf("rate limit wait: %w", err)
			}
		}
		delay = Backoff(attempt)

		start := time.Now()
		resp, err := e.http.Do(req)
		if err != nil {
			lastErr = err
			metrics.IncLakeFSRequest(endpoint, req.Method, "transport_error")
			e.logger.Warn(e.serviceTag+".http_failed",
				zap.String("url", req.URL.String()),
				zap.Error(err),
				zap.Int("attempt", attempt))
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		elapsed := time.Since(start)
		metrics.IncLakeFSRequest(endpoint, req.Method, strconv.Itoa(resp.StatusCode))
		metrics.ObserveDuration(metrics.LakeFSRequestDuration, start, endpoint, req.Method)

		if readErr != nil {
			lastErr = fmt.Errorf("read body: %w", readErr)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfter(resp.Header.Get("Retry-After"), time.Now(), delay)
			e.logger.Warn(e.serviceTag+".rate_limited",
				zap.String("client", rateLimitKey),
				zap.String("url", req.URL.String()),
				zap.Duration("retry_after", wait),
				zap.Int("attempt", attempt))
			metrics.IncError(e.serviceTag, "rate_limited")
			if e.rateMgr != nil {
				// the limiter wait at the top of the next attempt covers the pause
				e.rateMgr.Pause(rateLimitKey, wait)
				delay = 0
			} else {
				delay = wait
			}
			lastErr = e.clientError(resp.StatusCode, body)
			continue
		}

		if resp.StatusCode >= 500 {
			e.logger.Warn(e.serviceTag+".server_error",
				zap.Int("status", resp.StatusCode),
				zap.String("url", req.URL.String()),
				zap.Duration("latency", elapsed))
			lastErr = fmt.Errorf("%s server error: %d", e.serviceTag, resp.StatusCode)
			continue
		}

		if resp.StatusCode >= 400 {
			return e.clientError(resp.StatusCode, body)
		}

		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				e.logger.Warn(e.serviceTag+".decode_failed",
					zap.Error(err),
					zap.String("url", req.URL.String()),
					zap.Int("body_bytes", len(body)))
				return fmt.Errorf("%w: %w", ErrDecode, err)
			}
		}

		e.logger.Debug(e.serviceTag+".http_success",
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", elapsed))

		return nil
	}

	return fmt.Errorf("%s request failed after %d attempts: %w", e.serviceTag, attempts, lastErr)
}

func (e *Executor) clientError(status int, body []byte) error {
	if e.errorHandler != nil {
		return e.errorHandler(status, body)
	}
	return fmt.Errorf("%s returned %d", e.serviceTag, status)
}

// retryAfter reads a Retry-After header given in seconds or as an HTTP date.
// Missing or unparsable values fall back to def; results are capped at maxRetryAfter.
func retryAfter(header string, now time.Time, def time.Duration) time.Duration {
	header = strings.TrimSpace(header)
	d := def
	if header != "" {
		if secs, err := strconv.Atoi(header); err == nil {
			d = time.Duration(secs) * time.Second
		} else if at, err := http.ParseTime(header); err == nil {
			d = at.Sub(now)
		}
	}
	if d < 0 {
		d = 0
	}
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d
}

// rewind restores the request body for a retry.
func rewind(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody {
		return nil
	}
	if req.GetBody == nil {
		return fmt.Errorf("cannot retry %s %s: body is not replayable", req.Method, req.URL.Path)
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("rewind body: %w", err)
	}
	req.Body = body
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
