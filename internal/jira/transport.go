package jira

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// AttemptObserver is notified about each retried attempt. The engine
// itself never logs; callers plug in an observer to surface retries
// however they like.
type AttemptObserver interface {
	// ObserveRetry fires before the transport sleeps ahead of the next
	// attempt. attempt is the 1-based number of the attempt that just
	// failed, delay is the computed backoff, status is the HTTP status
	// that triggered the retry (0 for a timeout).
	ObserveRetry(attempt int, delay time.Duration, status int)
}

// AttemptObserverFunc adapts a function to the AttemptObserver
// interface.
type AttemptObserverFunc func(attempt int, delay time.Duration, status int)

func (f AttemptObserverFunc) ObserveRetry(attempt int, delay time.Duration, status int) {
	f(attempt, delay, status)
}

// RetryConfig controls the resilient transport. The zero value is
// usable and matches the defaults below.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the
	// first. Defaults to 3.
	MaxAttempts int

	// InitialInterval is the delay before the second attempt; each
	// subsequent delay doubles. Defaults to 1s.
	InitialInterval time.Duration

	// MaxInterval caps the computed delay. Defaults to 30s.
	MaxInterval time.Duration

	// AttemptTimeout bounds each individual attempt. Exceeding it is
	// treated exactly like a 5xx response. Defaults to 30s.
	AttemptTimeout time.Duration

	// Observer receives retry notifications. Optional.
	Observer AttemptObserver
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = time.Second
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 30 * time.Second
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 30 * time.Second
	}
	return c
}

// retryTransport is an http.RoundTripper that retries 429 and 5xx
// responses (and per-attempt timeouts) with exponential backoff. Any
// other response passes through untouched, so non-retryable 4xx
// surfaces immediately to the layer above.
//
// GET retries are always safe. POST retries can double-create when a
// write succeeded but the response was lost; the provisioning path
// pairs every create with a duplicate probe to narrow that window.
type retryTransport struct {
	base http.RoundTripper
	cfg  RetryConfig
}

// NewRetryTransport wraps base with bounded retry/backoff. base
// typically carries authentication so that every attempt is
// authenticated independently.
func NewRetryTransport(base http.RoundTripper, cfg RetryConfig) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &retryTransport{base: base, cfg: cfg.withDefaults()}
}

// retryable reports whether a response status should be retried.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func (t *retryTransport) newBackOff(ctx context.Context) backoff.BackOff {
	// BackOff implementations are stateful; always build a fresh one.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = t.cfg.InitialInterval
	bo.Multiplier = 2
	bo.MaxInterval = t.cfg.MaxInterval
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	capped := backoff.WithMaxRetries(bo, uint64(t.cfg.MaxAttempts-1))
	return backoff.WithContext(capped, ctx)
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var (
		resp       *http.Response
		attempt    int
		lastStatus int
	)

	operation := func() error {
		attempt++

		attemptReq, cancel, err := t.cloneRequest(req)
		if err != nil {
			return backoff.Permanent(err)
		}

		r, err := t.base.RoundTrip(attemptReq)
		if err != nil {
			cancel()
			if isTimeout(err) {
				lastStatus = 0
				return err
			}
			return backoff.Permanent(err)
		}

		if retryable(r.StatusCode) {
			body, _ := io.ReadAll(io.LimitReader(r.Body, 4096))
			r.Body.Close()
			cancel()
			lastStatus = r.StatusCode
			return &TransientFailure{StatusCode: r.StatusCode, Body: string(body), Attempts: attempt}
		}

		// Hand the attempt's cancel to the body so the caller can
		// finish reading before the per-attempt context dies.
		r.Body = &cancelOnClose{ReadCloser: r.Body, cancel: cancel}
		resp = r
		return nil
	}

	notify := func(err error, delay time.Duration) {
		if t.cfg.Observer != nil {
			t.cfg.Observer.ObserveRetry(attempt, delay, lastStatus)
		}
	}

	if err := backoff.RetryNotify(operation, t.newBackOff(req.Context()), notify); err != nil {
		// Only a retryable final condition becomes a TransientFailure.
		// A hard transport error after an earlier retryable status must
		// not be repackaged under that stale status.
		var transient *TransientFailure
		if errors.As(err, &transient) {
			return nil, transient
		}
		if isTimeout(err) {
			return nil, &TransientFailure{StatusCode: 0, Attempts: attempt}
		}
		return nil, err
	}

	return resp, nil
}

// cloneRequest produces a fresh request for one attempt, with its own
// timeout context and a rewound body.
func (t *retryTransport) cloneRequest(req *http.Request) (*http.Request, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(req.Context(), t.cfg.AttemptTimeout)
	clone := req.Clone(ctx)

	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			cancel()
			return nil, nil, err
		}
		clone.Body = body
	}

	return clone, cancel, nil
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	var t interface{ Timeout() bool }
	if errors.As(err, &t) && t.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// cancelOnClose releases an attempt's context when the response body
// is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
