// Package orchestrator exposes the job lifecycle operations used by the HTTP
// API and the CLI: upload, status, payment, results and page images.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/recapturedocs/recapturedocs/internal/domain"
	"github.com/recapturedocs/recapturedocs/internal/export"
	"github.com/recapturedocs/recapturedocs/internal/job"
	"github.com/recapturedocs/recapturedocs/internal/marketplace"
	"github.com/recapturedocs/recapturedocs/internal/monitoring"
	"github.com/recapturedocs/recapturedocs/internal/observability"
	"github.com/recapturedocs/recapturedocs/internal/payment"
	"github.com/recapturedocs/recapturedocs/internal/storage"
)

// NotComplete is the results text returned while tasks are outstanding.
const NotComplete = "not complete"

// Deps are the collaborators a Service is built from.
type Deps struct {
	Store       *storage.JobStore
	Splitter    domain.PageSplitter
	Marketplace domain.Marketplace
	Gateway     domain.PaymentGateway
	Payment     payment.Config
	Template    job.TaskTemplate
	Audit       *monitoring.AuditLogger
	Logger      *observability.Logger
}

// Service runs every lifecycle transition synchronously within the caller's
// request.
type Service struct {
	store       *storage.JobStore
	splitter    domain.PageSplitter
	marketplace domain.Marketplace
	payments    *payment.Coordinator
	template    job.TaskTemplate
	audit       *monitoring.AuditLogger
	logger      *observability.Logger
}

// NewService creates a Service.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = observability.DefaultLogger()
	}
	audit := d.Audit
	if audit == nil {
		audit = monitoring.NewAuditLogger(logger, nil, "")
	}
	return &Service{
		store:       d.Store,
		splitter:    d.Splitter,
		marketplace: d.Marketplace,
		payments:    payment.NewCoordinator(d.Gateway, d.Marketplace, d.Store, d.Payment, logger),
		template:    d.Template,
		audit:       audit,
		logger:      logger,
	}
}

// Results is the outcome of a results request.
type Results struct {
	Complete bool   `json:"complete"`
	Text     string `json:"text"`
}

// Upload creates a job, splits the document and registers one task per
// page. A split failure persists nothing. A registration failure persists
// the partially registered job, which is returned with the error so that
// RetryRegistration can finish it.
func (s *Service) Upload(ctx context.Context, data []byte, contentType, filename string) (*job.Job, error) {
	j := job.New(data, contentType, filename)
	log := s.logger.WithContext(ctx).WithJob(j.ID).WithOperation("upload")

	if err := j.Split(ctx, s.splitter); err != nil {
		log.Warn().Err(err).Str("filename", filename).Msg("Split failed")
		s.audit.Record(ctx, j.ID, monitoring.ActionSplitFailed, string(j.State()), map[string]interface{}{
			"filename": filename,
			"error":    err.Error(),
		})
		return nil, err
	}

	if err := s.store.Add(ctx, j); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, j.ID, monitoring.ActionUploaded, string(j.State()), map[string]interface{}{
		"filename": filename,
		"pages":    len(j.Pages),
		"bytes":    len(data),
	})

	return s.register(ctx, j.ID)
}

// RetryRegistration registers the tasks a previous upload failed to create.
// Tasks that already have an id are not posted again.
func (s *Service) RetryRegistration(ctx context.Context, jobID string) (*job.Job, error) {
	return s.register(ctx, jobID)
}

func (s *Service) register(ctx context.Context, jobID string) (*job.Job, error) {
	log := s.logger.WithContext(ctx).WithJob(jobID).WithOperation("register")

	updated, err := s.store.Update(ctx, jobID, func(j *job.Job) (bool, error) {
		if len(j.Tasks) > 0 && j.AllRegistered() {
			return false, nil
		}
		return true, j.RegisterTasks(ctx, s.marketplace, s.template)
	})
	if err != nil {
		if updated == nil {
			return nil, err
		}
		log.Error().Err(err).
			Int("registered", updated.RegisteredCount()).
			Int("tasks", len(updated.Tasks)).
			Msg("Task registration incomplete")
		s.audit.Record(ctx, jobID, monitoring.ActionRegistrationFailed, string(updated.State()), map[string]interface{}{
			"registered": updated.RegisteredCount(),
			"tasks":      len(updated.Tasks),
			"error":      err.Error(),
		})
		return updated, err
	}

	log.Info().Int("tasks", len(updated.Tasks)).Str("digest", updated.Digest).Msg("Tasks registered")
	s.audit.Record(ctx, jobID, monitoring.ActionRegistered, string(updated.State()), map[string]interface{}{
		"tasks":  len(updated.Tasks),
		"digest": updated.Digest,
	})
	return updated, nil
}

// Poll queries the marketplace for every task of the job and records the
// observed assignments.
func (s *Service) Poll(ctx context.Context, jobID string) (*job.Job, error) {
	j, _, err := s.poll(ctx, jobID)
	return j, err
}

// poll returns the job together with the completeness computed by this
// poll, never a value cached from an earlier one.
func (s *Service) poll(ctx context.Context, jobID string) (*job.Job, bool, error) {
	var wasComplete, complete bool
	updated, err := s.store.Update(ctx, jobID, func(j *job.Job) (bool, error) {
		wasComplete = j.Completed
		var err error
		if complete, err = j.IsComplete(ctx, s.marketplace); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return nil, false, err
	}

	switch {
	case complete && !wasComplete:
		s.audit.Record(ctx, jobID, monitoring.ActionCompleted, string(updated.State()), map[string]interface{}{
			"tasks": len(updated.Tasks),
		})
	case !complete && wasComplete:
		s.logger.WithContext(ctx).WithJob(jobID).Warn().
			Int("tasks_complete", updated.CompletedCount()).
			Int("tasks", len(updated.Tasks)).
			Msg("Job no longer complete")
		s.audit.Record(ctx, jobID, monitoring.ActionReopened, string(updated.State()), map[string]interface{}{
			"tasks_complete": updated.CompletedCount(),
			"tasks":          len(updated.Tasks),
		})
	}
	return updated, complete, nil
}

// Status polls the job and returns its view.
func (s *Service) Status(ctx context.Context, jobID string) (JobView, error) {
	j, err := s.Poll(ctx, jobID)
	if err != nil {
		return JobView{}, err
	}
	return NewJobView(j), nil
}

// Watch polls the job every interval, reporting each view to fn, until the
// job completes or ctx ends.
func (s *Service) Watch(ctx context.Context, jobID string, interval time.Duration, fn func(JobView)) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		j, err := s.Poll(ctx, jobID)
		if err != nil {
			return err
		}
		if fn != nil {
			fn(NewJobView(j))
		}
		if j.Completed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// InitiatePayment returns the payment redirect URL for a completed job.
func (s *Service) InitiatePayment(ctx context.Context, jobID string) (string, error) {
	j, complete, err := s.poll(ctx, jobID)
	if err != nil {
		return "", err
	}
	if !complete {
		return "", domain.IncompleteError(
			fmt.Sprintf("job %s: %d of %d tasks complete", j.ID, j.CompletedCount(), len(j.Tasks)), nil)
	}

	redirect, err := s.payments.InitiatePayment(ctx, jobID)
	if err != nil {
		return "", err
	}
	s.audit.Record(ctx, jobID, monitoring.ActionPaymentInitiated, string(job.StatePaymentInitiated), map[string]interface{}{
		"cost_cents": j.Cost(),
	})
	return redirect, nil
}

// CompletePayment handles the gateway callback and returns the terminal
// view state.
func (s *Service) CompletePayment(ctx context.Context, jobID string, cb payment.Callback) (payment.Outcome, error) {
	outcome, err := s.payments.CompletePayment(ctx, jobID, cb)
	if err != nil {
		return "", err
	}

	switch outcome {
	case payment.OutcomeDeclined:
		s.audit.Record(ctx, jobID, monitoring.ActionPaymentDeclined, "", map[string]interface{}{"status": cb.Status})
	case payment.OutcomeAuthorized:
		s.audit.Record(ctx, jobID, monitoring.ActionAuthorized, string(job.StateAuthorized), nil)
	}
	return outcome, nil
}

// GetResults returns the assembled text, or the NotComplete sentinel while
// any task is outstanding. Partial text is never returned.
func (s *Service) GetResults(ctx context.Context, jobID string) (Results, error) {
	var text string
	complete := true
	_, err := s.store.Update(ctx, jobID, func(j *job.Job) (bool, error) {
		data, err := j.GetData(ctx, s.marketplace)
		if domain.IsType(err, domain.ErrorTypeIncomplete) {
			complete = false
			return true, nil
		}
		if err != nil {
			return false, err
		}
		text = data
		return true, nil
	})
	if err != nil {
		return Results{}, err
	}
	if !complete {
		return Results{Complete: false, Text: NotComplete}, nil
	}
	return Results{Complete: true, Text: text}, nil
}

// Image returns the page served to the worker holding taskID.
func (s *Service) Image(ctx context.Context, taskID string) (domain.Page, error) {
	j, err := s.store.FindByTask(taskID)
	if err != nil {
		return domain.Page{}, err
	}
	page, ok := j.PageForTask(taskID)
	if !ok {
		return domain.Page{}, domain.LookupFailure(fmt.Sprintf("page for task %s", taskID), storage.ErrNotFound)
	}
	return page, nil
}

// Get returns the job view without polling.
func (s *Service) Get(jobID string) (JobView, error) {
	j, err := s.store.Get(jobID)
	if err != nil {
		return JobView{}, err
	}
	return NewJobView(j), nil
}

// ListJobs returns views of all jobs without polling.
func (s *Service) ListJobs() []JobView {
	jobs := s.store.List()
	views := make([]JobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, NewJobView(j))
	}
	return views
}

// SimulatePayment marks a job authorized without contacting the gateway.
func (s *Service) SimulatePayment(ctx context.Context, jobID string) (JobView, error) {
	updated, err := s.store.Mutate(ctx, jobID, func(j *job.Job) error {
		if j.Authorized {
			return nil
		}
		now := time.Now().UTC()
		j.Authorized = true
		j.AuthorizedAt = &now
		j.Declined, j.DeclineStatus = false, ""
		j.Touch()
		return nil
	})
	if err != nil {
		return JobView{}, err
	}
	s.audit.Record(ctx, jobID, monitoring.ActionSimulatedPayment, string(updated.State()), nil)
	return NewJobView(updated), nil
}

// DisableReport summarizes a DisableAll run.
type DisableReport struct {
	Jobs     int      `json:"jobs"`
	Disabled int      `json:"disabled"`
	Failed   []string `json:"failed,omitempty"`
}

// DisableAll disables every registered task on the marketplace and then
// purges the store. progress, when set, is called after each task.
func (s *Service) DisableAll(ctx context.Context, progress func(done, total int)) (DisableReport, error) {
	jobs := s.store.List()
	var ids []string
	for _, j := range jobs {
		for _, t := range j.Tasks {
			if t.Registered() {
				ids = append(ids, t.ID)
			}
		}
	}

	report := DisableReport{}
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.marketplace.DisableTask(ctx, id); err != nil {
			s.logger.Warn().Err(err).Str("task_id", id).Msg("Failed to disable task")
			report.Failed = append(report.Failed, id)
		} else {
			report.Disabled++
		}
		if progress != nil {
			progress(i+1, len(ids))
		}
	}
	s.audit.Record(ctx, "", monitoring.ActionTasksDisabled, "", map[string]interface{}{
		"disabled": report.Disabled,
		"failed":   len(report.Failed),
	})

	n, err := s.store.Purge(ctx)
	if err != nil {
		return report, err
	}
	report.Jobs = n
	s.audit.Record(ctx, "", monitoring.ActionPurged, "", map[string]interface{}{"jobs": n})
	return report, nil
}

// ExportXLSX renders all jobs as a workbook.
func (s *Service) ExportXLSX(ctx context.Context) ([]byte, error) {
	return export.JobsXLSX(s.store.List())
}

// SandboxSubmit records a worker's text for a task on the sandbox
// marketplace. It fails when the marketplace is not the sandbox.
func (s *Service) SandboxSubmit(ctx context.Context, taskID, workerID, text string) (string, error) {
	sb, ok := s.marketplace.(*marketplace.Sandbox)
	if !ok {
		return "", domain.ValidationError("the configured marketplace is not the sandbox", nil)
	}
	if _, err := s.store.FindByTask(taskID); err != nil {
		return "", err
	}
	if workerID == "" {
		workerID = "SANDBOX-WORKER"
	}
	id, err := sb.Submit(taskID, workerID, text)
	if err != nil {
		return "", domain.ValidationError(fmt.Sprintf("submit to task %s", taskID), err)
	}
	return id, nil
}

// Save persists the store.
func (s *Service) Save(ctx context.Context) error {
	return s.store.Save(ctx)
}
