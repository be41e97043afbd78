// Package upstream holds HTTP clients for the collaborator services: cart,
// discount, notification, and auth. Each call carries the request context,
// a per-attempt timeout, and a small bounded retry budget so a slow
// collaborator cannot stall checkout indefinitely.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RetryConfig bounds the retry loop for collaborator calls.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultRetryConfig keeps collaborator calls short: two attempts with a
// small backoff, so the worst case stays inside the checkout deadline.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 2,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
		Multiplier:  2,
	}
}

// statusError carries a non-2xx collaborator response. Callers use the code
// to distinguish "told us no" (4xx) from "could not answer" (5xx).
type statusError struct {
	Code int
	Body []byte
}

func (e *statusError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

func statusCode(err error) (int, bool) {
	var se *statusError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}

// client is the shared JSON-over-HTTP base for the collaborator clients.
type client struct {
	base  string
	http  *http.Client
	retry RetryConfig
}

func newClient(baseURL string, timeout time.Duration, retry RetryConfig) *client {
	if retry.MaxAttempts < 1 {
		retry = DefaultRetryConfig()
	}
	return &client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		retry: retry,
	}
}

// doJSON performs one logical call with retries. Network failures and 5xx
// responses are retried; 4xx responses are returned immediately since the
// collaborator has already made up its mind.
func (c *client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
	}

	_, err := retryWithBackoff(ctx, c.retry, func() (struct{}, error) {
		return struct{}{}, c.attempt(ctx, method, path, payload, out)
	})
	return err
}

func (c *client) attempt(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &statusError{Code: resp.StatusCode, Body: b}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(err, "decode response")
		}
	}
	return nil
}

// retryWithBackoff runs fn with exponential backoff. Retry stops on context
// cancellation and on 4xx responses.
func retryWithBackoff[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	backoff := cfg.BaseDelay

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if code, ok := statusCode(err); ok && code < 500 {
			return zero, err
		}

		if attempt < cfg.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * cfg.Multiplier)
				if backoff > cfg.MaxDelay {
					backoff = cfg.MaxDelay
				}
			}
		}
	}

	return zero, lastErr
}
