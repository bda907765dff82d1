// Package retry retries HTTP calls to the marketplace and payment gateway
// with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/recapturedocs/recapturedocs/internal/observability"
)

const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 30 * time.Second
)

// Config holds retry configuration. The zero value never retries.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     defaultMaxRetries,
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
	}
}

// Retryable reports whether a response status is worth retrying. A call that
// is not idempotent is only retried on 429, where the server rejected the
// request before acting on it.
func Retryable(statusCode int, idempotent bool) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	if !idempotent {
		return false
	}
	switch statusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Backoff calculates the exponential backoff before retry attempt+1.
func Backoff(attempt int, cfg Config) time.Duration {
	backoff := float64(cfg.InitialBackoff) * math.Pow(2, float64(attempt))
	if cfg.MaxBackoff > 0 && backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}
	return time.Duration(backoff)
}

// Do sends a request until it yields a non-retryable response or the
// retries run out. Transport errors are retried only for idempotent calls.
// The last response is returned when retries are exhausted on a status, so
// the caller can report it; its body is still open.
func Do(ctx context.Context, cfg Config, logger *observability.Logger, idempotent bool, send func() (*http.Response, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := send()
		final := attempt >= cfg.MaxRetries
		switch {
		case err != nil:
			lastErr = err
			if !idempotent || final {
				return nil, err
			}
		case !Retryable(resp.StatusCode, idempotent) || final:
			return resp, nil
		default:
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
			resp.Body.Close()
		}

		backoff := Backoff(attempt, cfg)
		logger.Warn().
			Err(lastErr).
			Int("attempt", attempt+1).
			Int("max_retries", cfg.MaxRetries).
			Dur("backoff", backoff).
			Msg("Request failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}
