// Package monitoring records the job lifecycle audit trail.
package monitoring

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/recapturedocs/recapturedocs/internal/cache"
	"github.com/recapturedocs/recapturedocs/internal/observability"
)

// Action names a lifecycle transition.
type Action string

const (
	ActionUploaded           Action = "uploaded"
	ActionSplitFailed        Action = "split_failed"
	ActionRegistered         Action = "registered"
	ActionRegistrationFailed Action = "registration_failed"
	ActionPolled             Action = "polled"
	ActionCompleted          Action = "completed"
	ActionReopened           Action = "reopened"
	ActionPaymentInitiated   Action = "payment_initiated"
	ActionPaymentDeclined    Action = "payment_declined"
	ActionAuthorized         Action = "authorized"
	ActionSimulatedPayment   Action = "simulated_payment"
	ActionTasksDisabled      Action = "tasks_disabled"
	ActionPurged             Action = "purged"
)

// DefaultChannel is the pub/sub channel lifecycle events go to.
const DefaultChannel = "jobs.events"

// AuditLogger handles lifecycle event logging and publishing.
type AuditLogger struct {
	logger    *observability.Logger
	publisher cache.PubSub
	channel   string
}

// LifecycleEvent represents an auditable job transition.
type LifecycleEvent struct {
	ID         uuid.UUID              `json:"id"`
	JobID      string                 `json:"job_id,omitempty"`
	Action     Action                 `json:"action"`
	State      string                 `json:"state,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// NewAuditLogger creates a new audit logger. publisher may be nil, in which
// case events are only logged.
func NewAuditLogger(logger *observability.Logger, publisher cache.PubSub, channel string) *AuditLogger {
	if channel == "" {
		channel = DefaultChannel
	}
	return &AuditLogger{
		logger:    logger,
		publisher: publisher,
		channel:   channel,
	}
}

// LogEvent records a lifecycle event.
func (a *AuditLogger) LogEvent(ctx context.Context, event LifecycleEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	e := a.logger.WithContext(ctx).Info().
		Str("event_id", event.ID.String()).
		Str("job_id", event.JobID).
		Str("action", string(event.Action))
	if event.State != "" {
		e = e.Str("state", event.State)
	}
	if len(event.Payload) > 0 {
		e = e.Interface("payload", event.Payload)
	}
	e.Msg("Lifecycle event")

	if a.publisher == nil {
		return nil
	}
	return a.publisher.Publish(ctx, a.channel, event)
}

// Record logs an event and reports publish failures as warnings only.
func (a *AuditLogger) Record(ctx context.Context, jobID string, action Action, state string, payload map[string]interface{}) {
	err := a.LogEvent(ctx, LifecycleEvent{
		JobID:   jobID,
		Action:  action,
		State:   state,
		Payload: payload,
	})
	if err != nil {
		a.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to publish lifecycle event")
	}
}

// Subscribe streams decoded lifecycle events until ctx ends or the returned
// stop function is called. Malformed messages are skipped.
func (a *AuditLogger) Subscribe(ctx context.Context) (<-chan LifecycleEvent, func(), error) {
	if a.publisher == nil {
		ch := make(chan LifecycleEvent)
		close(ch)
		return ch, func() {}, nil
	}

	raw, unsubscribe, err := a.publisher.Subscribe(ctx, a.channel)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan LifecycleEvent, 16)
	go func() {
		defer close(out)
		for msg := range raw {
			var ev LifecycleEvent
			if err := json.Unmarshal(msg, &ev); err != nil {
				a.logger.Debug().Err(err).Msg("Skipping malformed lifecycle event")
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, unsubscribe, nil
}
