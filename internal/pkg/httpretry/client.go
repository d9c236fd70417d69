// Package httpretry wraps an HTTP client with bounded retries and jittered
// exponential backoff. Use it only for idempotent deliveries; a retried
// request may reach the server more than once.
package httpretry

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/ignite/dispatch-engine/internal/pkg/logger"
)

// Doer executes HTTP requests. *http.Client and *Client both satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Policy bounds the retry loop. Zero fields take the defaults.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultPolicy retries three times, starting at 500ms and capped at 10s.
var DefaultPolicy = Policy{MaxRetries: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second}

// Client retries transient failures of the wrapped Doer.
type Client struct {
	doer   Doer
	policy Policy
}

// New wraps doer. A nil doer becomes an http.Client with a 30s timeout.
func New(doer Doer, p Policy) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 30 * time.Second}
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultPolicy.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultPolicy.MaxDelay
	}
	return &Client{doer: doer, policy: p}
}

// Do sends req, retrying network errors and 429/5xx gateway statuses.
// Other statuses are returned as-is. The last retryable response is also
// returned as-is so the caller can read its body. Requests with a body
// must set GetBody to be retried.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			if req.Body != nil && req.GetBody == nil {
				return nil, lastErr
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("httpretry: reset request body: %w", err)
				}
				req.Body = body
			}

			delay := c.backoff(attempt)
			logger.Debug("httpretry: retrying request",
				"attempt", attempt,
				"max_retries", c.policy.MaxRetries,
				"host", req.URL.Host,
				"path", req.URL.Path,
				"wait", delay)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-req.Context().Done():
				timer.Stop()
				return nil, lastErr
			}
		}

		resp, err := c.doer.Do(req)
		if err != nil {
			if req.Context().Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}
		if !Retryable(resp.StatusCode) || attempt == c.policy.MaxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: server returned %d", resp.StatusCode)
	}
	return nil, lastErr
}

// backoff is full jitter over min(MaxDelay, BaseDelay*2^(attempt-1)).
func (c *Client) backoff(attempt int) time.Duration {
	d := float64(c.policy.BaseDelay) * math.Pow(2, float64(attempt-1))
	if d > float64(c.policy.MaxDelay) {
		d = float64(c.policy.MaxDelay)
	}
	j := time.Duration(rand.Float64() * d)
	if j < time.Millisecond {
		j = time.Millisecond
	}
	return j
}

// Retryable reports whether a status is worth another attempt.
func Retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
