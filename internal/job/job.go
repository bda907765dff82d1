// Package job models a conversion job: an uploaded document, its pages and
// the marketplace tasks that retype them.
package job

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/recapturedocs/recapturedocs/internal/domain"
)

// RewardCents is what a worker earns for retyping one page.
const RewardCents int64 = 100

// PageBreak separates page texts in the assembled result.
const PageBreak = "\n\nPAGE\n\n"

// State is the lifecycle position of a job.
type State string

const (
	StateUploaded         State = "uploaded"
	StateSplit            State = "split"
	StateRegistered       State = "registered"
	StateCompleted        State = "completed"
	StatePaymentInitiated State = "payment_initiated"
	StateAuthorized       State = "authorized"
)

// Job is a document conversion job.
type Job struct {
	// ID is the primary key, assigned at creation.
	ID string `json:"id"`
	// Digest is the MD5 of the ordered task ids, set once every task is registered.
	Digest string `json:"digest,omitempty"`

	Filename    string        `json:"filename"`
	ContentType string        `json:"content_type"`
	Source      []byte        `json:"source"`
	Pages       []domain.Page `json:"pages"`
	Tasks       []*Task       `json:"tasks"`

	CallerToken    string `json:"caller_token,omitempty"`
	RecipientToken string `json:"recipient_token,omitempty"`
	SenderToken    string `json:"sender_token,omitempty"`
	TransactionID  string `json:"transaction_id,omitempty"`

	Completed     bool   `json:"completed"`
	Authorized    bool   `json:"authorized"`
	Declined      bool   `json:"declined,omitempty"`
	DeclineStatus string `json:"decline_status,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	AuthorizedAt *time.Time `json:"authorized_at,omitempty"`
}

// New creates a job for an uploaded document.
func New(data []byte, contentType, filename string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:          uuid.NewString(),
		Filename:    filename,
		ContentType: contentType,
		Source:      data,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Cost is the price of the job in cents.
func (j *Job) Cost() int64 {
	return int64(len(j.Pages)) * RewardCents
}

// State derives the lifecycle position from the recorded fields.
func (j *Job) State() State {
	switch {
	case j.Authorized:
		return StateAuthorized
	case j.CallerToken != "" && j.RecipientToken != "":
		return StatePaymentInitiated
	case j.Completed:
		return StateCompleted
	case len(j.Tasks) > 0 && j.AllRegistered():
		return StateRegistered
	case len(j.Pages) > 0:
		return StateSplit
	default:
		return StateUploaded
	}
}

// Run splits the document and registers one task per page. A split
// failure returns before anything is registered.
func (j *Job) Run(ctx context.Context, splitter domain.PageSplitter, mp domain.Marketplace, tmpl TaskTemplate) error {
	if err := j.Split(ctx, splitter); err != nil {
		return err
	}
	return j.RegisterTasks(ctx, mp, tmpl)
}

// Split populates the pages. Calling it on a split job does nothing.
func (j *Job) Split(ctx context.Context, splitter domain.PageSplitter) error {
	if len(j.Pages) > 0 {
		return nil
	}
	pages, err := splitter.Split(ctx, j.Source, j.Filename)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return domain.SplitFailure(fmt.Sprintf("%q produced no pages", j.Filename), nil)
	}
	j.Pages = pages
	j.Touch()
	return nil
}

// RegisterTasks creates one task per page and registers each in page order.
// Tasks registered before a failure keep their ids; a later call registers
// only the remaining ones.
func (j *Job) RegisterTasks(ctx context.Context, mp domain.Marketplace, tmpl TaskTemplate) error {
	if len(j.Pages) == 0 {
		return domain.RegistrationFailure("job has no pages to register", nil)
	}
	if len(j.Tasks) == 0 {
		j.Tasks = make([]*Task, len(j.Pages))
		for i, p := range j.Pages {
			j.Tasks[i] = &Task{PageNumber: p.Number, Status: TaskIncomplete}
		}
		j.Completed = false
	}
	if len(j.Tasks) != len(j.Pages) {
		return domain.RegistrationFailure(
			fmt.Sprintf("job has %d tasks for %d pages", len(j.Tasks), len(j.Pages)), nil)
	}

	defer j.Touch()
	for i, t := range j.Tasks {
		if err := t.Register(ctx, mp, tmpl.Spec()); err != nil {
			return domain.RegistrationFailure(
				fmt.Sprintf("registered %d of %d tasks", j.RegisteredCount(), len(j.Tasks)),
				fmt.Errorf("task for page %d: %w", i+1, err))
		}
	}

	if j.Digest == "" {
		j.Digest = ComputeDigest(j.TaskIDs())
	}
	return nil
}

// AllRegistered reports whether every task has an external id.
func (j *Job) AllRegistered() bool {
	for _, t := range j.Tasks {
		if !t.Registered() {
			return false
		}
	}
	return true
}

// RegisteredCount counts tasks holding an external id.
func (j *Job) RegisteredCount() int {
	n := 0
	for _, t := range j.Tasks {
		if t.Registered() {
			n++
		}
	}
	return n
}

// CompletedCount counts tasks whose last poll was complete.
func (j *Job) CompletedCount() int {
	n := 0
	for _, t := range j.Tasks {
		if t.Status == TaskComplete {
			n++
		}
	}
	return n
}

// TaskIDs returns the external ids in page order.
func (j *Job) TaskIDs() []string {
	ids := make([]string, 0, len(j.Tasks))
	for _, t := range j.Tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

// ComputeDigest is the hex MD5 of the concatenated ids. It returns "" for no ids.
func ComputeDigest(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	sum := md5.Sum([]byte(strings.Join(ids, "")))
	return hex.EncodeToString(sum[:])
}

// IsComplete polls every task and reports whether all are complete. It is
// recomputed on each call and Completed follows the result, so a rejected
// assignment takes the job back to incomplete. A job without pages is
// complete; a job whose pages do not all have a task is not.
func (j *Job) IsComplete(ctx context.Context, mp domain.Marketplace) (bool, error) {
	complete := len(j.Tasks) == len(j.Pages)
	for _, t := range j.Tasks {
		status, err := t.PollStatus(ctx, mp)
		if err != nil {
			return false, err
		}
		if status != TaskComplete {
			complete = false
		}
	}
	if complete != j.Completed {
		j.Completed = complete
		j.Touch()
	}
	return complete, nil
}

// GetData joins every page text with PageBreak. It fails without returning
// partial text when any task is incomplete.
func (j *Job) GetData(ctx context.Context, mp domain.Marketplace) (string, error) {
	complete, err := j.IsComplete(ctx, mp)
	if err != nil {
		return "", err
	}
	if !complete {
		return "", domain.IncompleteError(
			fmt.Sprintf("job %s: %d of %d tasks complete", j.ID, j.CompletedCount(), len(j.Tasks)), nil)
	}

	texts := make([]string, 0, len(j.Tasks))
	for _, t := range j.Tasks {
		text, err := t.FetchResult()
		if err != nil {
			return "", err
		}
		texts = append(texts, text)
	}
	return strings.Join(texts, PageBreak), nil
}

// PageForTask returns the page retyped by the task with the given id.
func (j *Job) PageForTask(taskID string) (domain.Page, bool) {
	for i, t := range j.Tasks {
		if t.Matches(taskID) && i < len(j.Pages) {
			return j.Pages[i], true
		}
	}
	return domain.Page{}, false
}

// HasTask reports whether a task with the given id belongs to the job.
func (j *Job) HasTask(taskID string) bool {
	for _, t := range j.Tasks {
		if t.Matches(taskID) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy, safe to mutate independently.
func (j *Job) Clone() *Job {
	c := *j
	c.Source = append([]byte(nil), j.Source...)
	if j.Pages != nil {
		c.Pages = make([]domain.Page, len(j.Pages))
		for i, p := range j.Pages {
			c.Pages[i] = p
			c.Pages[i].Data = append([]byte(nil), p.Data...)
		}
	}
	if j.Tasks != nil {
		c.Tasks = make([]*Task, len(j.Tasks))
		for i, t := range j.Tasks {
			c.Tasks[i] = t.clone()
		}
	}
	if j.AuthorizedAt != nil {
		at := *j.AuthorizedAt
		c.AuthorizedAt = &at
	}
	return &c
}

// Touch records a modification time.
func (j *Job) Touch() {
	j.UpdatedAt = time.Now().UTC()
}
