package orchestrator

import (
	"time"

	"github.com/recapturedocs/recapturedocs/internal/job"
	"github.com/recapturedocs/recapturedocs/internal/payment"
)

// JobView is the presentation snapshot of a job.
type JobView struct {
	ID              string     `json:"id"`
	Digest          string     `json:"digest,omitempty"`
	Filename        string     `json:"filename"`
	State           job.State  `json:"state"`
	Pages           int        `json:"pages"`
	TasksRegistered int        `json:"tasksRegistered"`
	TasksComplete   int        `json:"tasksComplete"`
	CostCents       int64      `json:"costCents"`
	Cost            string     `json:"cost"`
	Authorized      bool       `json:"authorized"`
	Declined        bool       `json:"declined,omitempty"`
	DeclineStatus   string     `json:"declineStatus,omitempty"`
	TransactionID   string     `json:"transactionId,omitempty"`
	Tasks           []TaskView `json:"tasks"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	AuthorizedAt    *time.Time `json:"authorizedAt,omitempty"`
}

// TaskView is the presentation snapshot of a task.
type TaskView struct {
	ID          string         `json:"id,omitempty"`
	Page        int            `json:"page"`
	Status      job.TaskStatus `json:"status"`
	Assignments int            `json:"assignments"`
}

// NewJobView builds the view of j.
func NewJobView(j *job.Job) JobView {
	v := JobView{
		ID:              j.ID,
		Digest:          j.Digest,
		Filename:        j.Filename,
		State:           j.State(),
		Pages:           len(j.Pages),
		TasksRegistered: j.RegisteredCount(),
		TasksComplete:   j.CompletedCount(),
		CostCents:       j.Cost(),
		Cost:            payment.FormatAmount(j.Cost()),
		Authorized:      j.Authorized,
		Declined:        j.Declined,
		DeclineStatus:   j.DeclineStatus,
		TransactionID:   j.TransactionID,
		Tasks:           make([]TaskView, 0, len(j.Tasks)),
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
		AuthorizedAt:    j.AuthorizedAt,
	}
	for _, t := range j.Tasks {
		v.Tasks = append(v.Tasks, TaskView{
			ID:          t.ID,
			Page:        t.PageNumber,
			Status:      t.Status,
			Assignments: len(t.Assignments),
		})
	}
	return v
}

// Complete reports whether every task is complete.
func (v JobView) Complete() bool {
	return len(v.Tasks) == v.Pages && v.TasksComplete == len(v.Tasks)
}
