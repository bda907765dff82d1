package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recapturedocs/recapturedocs/internal/domain"
	"github.com/recapturedocs/recapturedocs/internal/observability"
	"github.com/recapturedocs/recapturedocs/internal/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(ClientConfig{Endpoint: srv.URL, AccessKey: "key-1", Timeout: 5 * time.Second}, observability.Nop())
}

func TestHTTPClient_CreateTask(t *testing.T) {
	var got createTaskRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tasks", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"taskId":"HIT123"}`))
	})

	id, err := client.CreateTask(context.Background(), domain.TaskSpec{
		Title:          "Type a Page",
		RewardCents:    100,
		QuestionURL:    "http://localhost:8082/process",
		FrameHeight:    600,
		MaxAssignments: 1,
		Lifetime:       48 * time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, "HIT123", id)
	assert.Equal(t, "1.00", got.Reward)
	assert.Equal(t, int64(172800), got.LifetimeSeconds)
	assert.Equal(t, 600, got.FrameHeight)
}

func TestHTTPClient_CreateTaskRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "insufficient funds", http.StatusBadRequest)
	})

	_, err := client.CreateTask(context.Background(), domain.TaskSpec{Title: "Type a Page"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRegistration)
	assert.Contains(t, err.Error(), "insufficient funds")
}

func TestHTTPClient_PollTask(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks/HIT123/assignments", r.URL.Path)
		_, _ = w.Write([]byte(`{"assignments":[{"assignmentId":"A1","workerId":"W1","status":"Submitted",
			"answers":[[{"questionId":"content","freeText":"Hello world"}]]}]}`))
	})

	assignments, err := client.PollTask(context.Background(), "HIT123")
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, domain.AssignmentSubmitted, assignments[0].Status)
	assert.Equal(t, "Hello world", assignments[0].Answers[0][0].FreeText)
	assert.Equal(t, domain.ContentQuestionID, assignments[0].Answers[0][0].QuestionID)
}

func TestHTTPClient_PollTaskFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `oops`},
		{"schema violation", http.StatusOK, `{"assignments":[{"status":"Submitted"}]}`},
		{"unknown status", http.StatusOK, `{"assignments":[{"assignmentId":"A1","status":"Lost"}]}`},
		{"not json", http.StatusOK, `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.PollTask(context.Background(), "HIT123")
			assert.ErrorIs(t, err, domain.ErrPoll)
		})
	}
}

func TestHTTPClient_DisableTask(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})
	assert.NoError(t, client.DisableTask(context.Background(), "HIT123"))
}

func TestHTTPClient_Retries(t *testing.T) {
	var polls, creates int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			polls++
			if polls == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"assignments":[]}`))
		case http.MethodPost:
			creates++
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)

	client := NewHTTPClient(ClientConfig{
		Endpoint: srv.URL,
		Retry:    retry.Config{MaxRetries: 2, InitialBackoff: time.Millisecond},
	}, observability.Nop())

	assignments, err := client.PollTask(context.Background(), "HIT123")
	require.NoError(t, err)
	assert.Empty(t, assignments)
	assert.Equal(t, 2, polls)

	_, err = client.CreateTask(context.Background(), domain.TaskSpec{Title: "Type a Page"})
	assert.ErrorIs(t, err, domain.ErrRegistration)
	assert.Equal(t, 1, creates, "task creation is not retried on server errors")
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "1.00", FormatCents(100))
	assert.Equal(t, "12.05", FormatCents(1205))
	assert.Equal(t, "0.07", FormatCents(7))
}
