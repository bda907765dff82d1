package retry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recapturedocs/recapturedocs/internal/observability"
)

func response(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}
}

func fast(n int) Config {
	return Config{MaxRetries: n, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		status     int
		idempotent bool
		want       bool
	}{
		{http.StatusTooManyRequests, false, true},
		{http.StatusTooManyRequests, true, true},
		{http.StatusServiceUnavailable, true, true},
		{http.StatusServiceUnavailable, false, false},
		{http.StatusInternalServerError, true, true},
		{http.StatusBadRequest, true, false},
		{http.StatusOK, true, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Retryable(tt.status, tt.idempotent), "status %d idempotent %v", tt.status, tt.idempotent)
	}
}

func TestBackoff(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, time.Second, Backoff(0, cfg))
	assert.Equal(t, 4*time.Second, Backoff(2, cfg))
	assert.Equal(t, 30*time.Second, Backoff(10, cfg))
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	resp, err := Do(context.Background(), fast(3), observability.Nop(), true, func() (*http.Response, error) {
		calls++
		if calls < 3 {
			return response(http.StatusServiceUnavailable), nil
		}
		return response(http.StatusOK), nil
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, calls)
}

func TestDo_ReturnsLastResponseWhenExhausted(t *testing.T) {
	calls := 0
	resp, err := Do(context.Background(), fast(2), observability.Nop(), true, func() (*http.Response, error) {
		calls++
		return response(http.StatusBadGateway), nil
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, 3, calls)
}

func TestDo_NonIdempotentSkipsServerErrors(t *testing.T) {
	calls := 0
	resp, err := Do(context.Background(), fast(3), observability.Nop(), false, func() (*http.Response, error) {
		calls++
		return response(http.StatusInternalServerError), nil
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, 1, calls)

	calls = 0
	_, err = Do(context.Background(), fast(3), observability.Nop(), false, func() (*http.Response, error) {
		calls++
		return nil, errors.New("connection reset")
	})
	assert.EqualError(t, err, "connection reset")
	assert.Equal(t, 1, calls)
}

func TestDo_ZeroConfigNeverRetries(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Config{}, observability.Nop(), true, func() (*http.Response, error) {
		calls++
		return nil, errors.New("dial")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxRetries: 5, InitialBackoff: time.Hour}
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, cfg, observability.Nop(), true, func() (*http.Response, error) {
			return response(http.StatusServiceUnavailable), nil
		})
		done <- err
	}()
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancel")
	}
}
