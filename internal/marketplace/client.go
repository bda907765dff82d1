// Package marketplace talks to the crowdsourcing service that hosts retype tasks.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/recapturedocs/recapturedocs/internal/domain"
	"github.com/recapturedocs/recapturedocs/internal/observability"
	"github.com/recapturedocs/recapturedocs/internal/retry"
)

// HTTPClient is a domain.Marketplace backed by the marketplace REST API.
type HTTPClient struct {
	endpoint   string
	accessKey  string
	httpClient *http.Client
	retry      retry.Config
	logger     *observability.Logger
}

// ClientConfig holds HTTP client settings.
type ClientConfig struct {
	Endpoint  string
	AccessKey string
	Timeout   time.Duration
	Retry     retry.Config
}

// NewHTTPClient creates a marketplace client.
func NewHTTPClient(cfg ClientConfig, logger *observability.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		accessKey:  cfg.AccessKey,
		httpClient: &http.Client{Timeout: timeout},
		retry:      cfg.Retry,
		logger:     logger,
	}
}

type createTaskRequest struct {
	Title                     string   `json:"title"`
	Description               string   `json:"description"`
	Keywords                  []string `json:"keywords"`
	Reward                    string   `json:"reward"`
	QuestionURL               string   `json:"externalQuestionUrl"`
	FrameHeight               int      `json:"frameHeight"`
	MaxAssignments            int      `json:"maxAssignments"`
	LifetimeSeconds           int64    `json:"lifetimeInSeconds"`
	AssignmentDurationSeconds int64    `json:"assignmentDurationInSeconds"`
}

type createTaskResponse struct {
	TaskID string `json:"taskId"`
}

type assignmentDTO struct {
	AssignmentID string        `json:"assignmentId"`
	WorkerID     string        `json:"workerId"`
	Status       string        `json:"status"`
	SubmitTime   *time.Time    `json:"submitTime,omitempty"`
	Answers      [][]answerDTO `json:"answers"`
}

type answerDTO struct {
	QuestionID string `json:"questionId"`
	FreeText   string `json:"freeText"`
}

type listAssignmentsResponse struct {
	Assignments []assignmentDTO `json:"assignments"`
}

// CreateTask implements domain.Marketplace.
func (c *HTTPClient) CreateTask(ctx context.Context, spec domain.TaskSpec) (string, error) {
	body, err := json.Marshal(createTaskRequest{
		Title:                     spec.Title,
		Description:               spec.Description,
		Keywords:                  spec.Keywords,
		Reward:                    FormatCents(spec.RewardCents),
		QuestionURL:               spec.QuestionURL,
		FrameHeight:               spec.FrameHeight,
		MaxAssignments:            spec.MaxAssignments,
		LifetimeSeconds:           int64(spec.Lifetime / time.Second),
		AssignmentDurationSeconds: int64(spec.AssignmentDuration / time.Second),
	})
	if err != nil {
		return "", domain.RegistrationFailure("marshal task", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/tasks", body, false, http.StatusOK, http.StatusCreated)
	if err != nil {
		return "", domain.RegistrationFailure("create task", err)
	}

	var resp createTaskResponse
	if err := createTaskSchema.Decode(data, &resp); err != nil {
		return "", domain.RegistrationFailure("create task response", err)
	}

	c.logger.Debug().Str("task_id", resp.TaskID).Msg("Marketplace task created")
	return resp.TaskID, nil
}

// PollTask implements domain.Marketplace.
func (c *HTTPClient) PollTask(ctx context.Context, taskID string) ([]domain.Assignment, error) {
	path := "/tasks/" + url.PathEscape(taskID) + "/assignments"
	data, err := c.do(ctx, http.MethodGet, path, nil, true, http.StatusOK)
	if err != nil {
		return nil, domain.PollFailure(fmt.Sprintf("poll task %s", taskID), err)
	}

	var resp listAssignmentsResponse
	if err := assignmentsSchema.Decode(data, &resp); err != nil {
		return nil, domain.PollFailure(fmt.Sprintf("poll task %s response", taskID), err)
	}

	out := make([]domain.Assignment, 0, len(resp.Assignments))
	for _, a := range resp.Assignments {
		sets := make([]domain.AnswerSet, 0, len(a.Answers))
		for _, raw := range a.Answers {
			set := make(domain.AnswerSet, 0, len(raw))
			for _, ans := range raw {
				set = append(set, domain.Answer{QuestionID: ans.QuestionID, FreeText: ans.FreeText})
			}
			sets = append(sets, set)
		}
		out = append(out, domain.Assignment{
			ID:          a.AssignmentID,
			WorkerID:    a.WorkerID,
			Status:      domain.AssignmentStatus(a.Status),
			Answers:     sets,
			SubmittedAt: a.SubmitTime,
		})
	}
	return out, nil
}

// DisableTask implements domain.Marketplace.
func (c *HTTPClient) DisableTask(ctx context.Context, taskID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(taskID), nil, true, http.StatusOK, http.StatusNoContent)
	if err != nil {
		return fmt.Errorf("disable task %s: %w", taskID, err)
	}
	return nil
}

// do sends one API call. Calls that are not idempotent are only retried
// when the marketplace throttles them.
func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, idempotent bool, okStatus ...int) ([]byte, error) {
	send := func() (*http.Response, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.accessKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.accessKey)
		}
		if traceID := observability.TraceIDFromContext(ctx); traceID != "" {
			req.Header.Set("X-Request-ID", traceID)
		}
		return c.httpClient.Do(req)
	}

	start := time.Now()
	resp, err := retry.Do(ctx, c.retry, c.logger, idempotent, send)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Marketplace call")

	for _, s := range okStatus {
		if resp.StatusCode == s {
			return data, nil
		}
	}
	return nil, fmt.Errorf("marketplace returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}

// FormatCents renders an amount in cents as a decimal dollar string.
func FormatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
