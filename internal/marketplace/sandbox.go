package marketplace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recapturedocs/recapturedocs/internal/domain"
)

// Sandbox is an in-memory marketplace for development and tests.
type Sandbox struct {
	mu    sync.RWMutex
	tasks map[string]*sandboxTask
	order []string
	newID func() string

	// FailCreate, when set, is consulted before each CreateTask.
	FailCreate func(spec domain.TaskSpec) error
}

type sandboxTask struct {
	spec        domain.TaskSpec
	assignments []domain.Assignment
	disabled    bool
	createdAt   time.Time
}

// SandboxTask is a read-only view of a sandbox task.
type SandboxTask struct {
	ID          string
	Spec        domain.TaskSpec
	Assignments int
	Disabled    bool
	CreatedAt   time.Time
}

// NewSandbox creates an empty sandbox marketplace.
func NewSandbox() *Sandbox {
	return &Sandbox{
		tasks: make(map[string]*sandboxTask),
		newID: func() string { return "SBX" + uuid.NewString() },
	}
}

// WithIDs makes the sandbox hand out ids from next instead of random UUIDs.
func (s *Sandbox) WithIDs(next func() string) *Sandbox {
	s.newID = next
	return s
}

// CreateTask implements domain.Marketplace.
func (s *Sandbox) CreateTask(ctx context.Context, spec domain.TaskSpec) (string, error) {
	if s.FailCreate != nil {
		if err := s.FailCreate(spec); err != nil {
			return "", domain.RegistrationFailure("sandbox create task", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	if _, exists := s.tasks[id]; exists {
		return "", domain.RegistrationFailure(fmt.Sprintf("duplicate task id %s", id), nil)
	}
	s.tasks[id] = &sandboxTask{spec: spec, createdAt: time.Now()}
	s.order = append(s.order, id)
	return id, nil
}

// PollTask implements domain.Marketplace.
func (s *Sandbox) PollTask(ctx context.Context, taskID string) ([]domain.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return nil, domain.PollFailure(fmt.Sprintf("unknown task %s", taskID), nil)
	}
	out := make([]domain.Assignment, len(t.assignments))
	copy(out, t.assignments)
	return out, nil
}

// DisableTask implements domain.Marketplace.
func (s *Sandbox) DisableTask(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("unknown task %s", taskID)
	}
	t.disabled = true
	return nil
}

// Accept records a worker taking the task without submitting yet.
func (s *Sandbox) Accept(taskID, workerID string) (string, error) {
	return s.addAssignment(taskID, domain.Assignment{
		WorkerID: workerID,
		Status:   domain.AssignmentAccepted,
	})
}

// Submit records a worker's retyped text for the task.
func (s *Sandbox) Submit(taskID, workerID, text string) (string, error) {
	now := time.Now().UTC()
	return s.addAssignment(taskID, domain.Assignment{
		WorkerID:    workerID,
		Status:      domain.AssignmentSubmitted,
		Answers:     []domain.AnswerSet{{{QuestionID: domain.ContentQuestionID, FreeText: text}}},
		SubmittedAt: &now,
	})
}

// SetStatus moves an existing assignment to status.
func (s *Sandbox) SetStatus(taskID, assignmentID string, status domain.AssignmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("unknown task %s", taskID)
	}
	for i := range t.assignments {
		if t.assignments[i].ID == assignmentID {
			t.assignments[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("unknown assignment %s on task %s", assignmentID, taskID)
}

// Tasks lists the sandbox tasks in creation order.
func (s *Sandbox) Tasks() []SandboxTask {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SandboxTask, 0, len(s.order))
	for _, id := range s.order {
		t := s.tasks[id]
		out = append(out, SandboxTask{
			ID:          id,
			Spec:        t.spec,
			Assignments: len(t.assignments),
			Disabled:    t.disabled,
			CreatedAt:   t.createdAt,
		})
	}
	return out
}

func (s *Sandbox) addAssignment(taskID string, a domain.Assignment) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return "", fmt.Errorf("unknown task %s", taskID)
	}
	if t.disabled {
		return "", fmt.Errorf("task %s is disabled", taskID)
	}
	a.ID = uuid.NewString()
	t.assignments = append(t.assignments, a)
	return a.ID, nil
}
