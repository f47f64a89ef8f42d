// Package upstream is the shared outbound HTTP layer for review providers:
// client-side rate limiting, bounded retries, status classification, and
// JSON decoding.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"reviews_dashboard/internal/adapters/observability"
)

var (
	ErrNotFound     = errors.New("upstream: not found")
	ErrUnauthorized = errors.New("upstream: unauthorized")
	ErrForbidden    = errors.New("upstream: forbidden")
	ErrStatus       = errors.New("upstream: bad status")
)

const (
	maxAttempts = 4
	baseDelay   = 200 * time.Millisecond
	maxDelay    = 3 * time.Second
	errBodyMax  = 4 << 10
)

type Client struct {
	provider string
	hc       *http.Client
	rl       *rate.Limiter
}

// New builds a client for one provider. timeout bounds every attempt and
// rps caps the request rate across all callers of this client.
func New(provider string, timeout time.Duration, rps int) *Client {
	if rps <= 0 {
		rps = 5
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		provider: provider,
		hc:       &http.Client{Timeout: timeout},
		rl:       rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// RequestFunc builds a fresh request for each attempt.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// outcome of one attempt: done, or retry after wait.
type outcome struct {
	err   error
	retry bool
	wait  time.Duration
}

// Do sends the request, retrying transport errors, 429 and transient 5xx
// up to maxAttempts. Each attempt waits on the rate limiter. A 2xx body is
// decoded into out; endpoint labels metrics only.
func (c *Client) Do(ctx context.Context, endpoint string, build RequestFunc, out any) error {
	var last error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := c.rl.Wait(ctx); err != nil {
			return err
		}
		req, err := build(ctx)
		if err != nil {
			return err
		}
		o := c.attempt(req, endpoint, out)
		if !o.retry {
			return o.err
		}
		last = o.err
		if attempt == maxAttempts-1 {
			break
		}
		wait := o.wait
		if wait == 0 {
			wait = backoff(attempt)
		}
		if !sleepCtx(ctx, wait) {
			return ctx.Err()
		}
	}
	return last
}

func (c *Client) attempt(req *http.Request, endpoint string, out any) outcome {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	req.Header.Set("User-Agent", "reviews-dashboard/1.0")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal(c.provider, endpoint, 0, time.Since(start))
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return outcome{err: ctxErr}
		}
		return outcome{err: err, retry: true}
	}
	defer resp.Body.Close()
	observability.ObserveExternal(c.provider, endpoint, resp.StatusCode, time.Since(start))

	switch code := resp.StatusCode; {
	case code == http.StatusNoContent:
		return outcome{}
	case code >= 200 && code < 300:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return outcome{err: fmt.Errorf("decode %s response: %w", c.provider, err)}
		}
		return outcome{}
	case code == http.StatusNotFound:
		return outcome{err: ErrNotFound}
	case code == http.StatusUnauthorized:
		return outcome{err: ErrUnauthorized}
	case code == http.StatusForbidden:
		return outcome{err: ErrForbidden}
	case transient(code):
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, errBodyMax))
		return outcome{err: fmt.Errorf("%w %d", ErrStatus, code), retry: true, wait: retryAfter(resp.Header.Get("Retry-After"), time.Now())}
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyMax))
		return outcome{err: fmt.Errorf("%w %d: %s", ErrStatus, code, strings.TrimSpace(string(b)))}
	}
}

func transient(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// sleepCtx waits for d; false means ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter reads a Retry-After value (seconds or HTTP date), capped at
// maxDelay. Zero means absent or unusable.
func retryAfter(h string, now time.Time) time.Duration {
	h = strings.TrimSpace(h)
	if h == "" {
		return 0
	}
	var d time.Duration
	if secs, err := strconv.Atoi(h); err == nil && secs >= 0 {
		d = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(h); err == nil {
		d = t.Sub(now)
	}
	if d <= 0 {
		return 0
	}
	return min(d, maxDelay)
}

// backoff doubles from baseDelay per attempt with up to 50% jitter.
func backoff(attempt int) time.Duration {
	d := min(baseDelay<<attempt, maxDelay)
	return d + rand.N(d/2+1)
}
