package job

import (
	"context"
	"fmt"

	"github.com/recapturedocs/recapturedocs/internal/domain"
)

// TaskStatus is the classified result of polling a task.
type TaskStatus string

const (
	TaskIncomplete TaskStatus = "incomplete"
	TaskComplete   TaskStatus = "complete"
)

// Task is one page of a job posted to the marketplace.
type Task struct {
	ID          string              `json:"id,omitempty"`
	PageNumber  int                 `json:"page_number"`
	Status      TaskStatus          `json:"status"`
	Assignments []domain.Assignment `json:"assignments,omitempty"`
	Result      string              `json:"result,omitempty"`
}

// Registered reports whether the marketplace has assigned an id.
func (t *Task) Registered() bool {
	return t.ID != ""
}

// Register creates the task on the marketplace. It is a no-op for a task
// that already has an external id, so re-running registration never posts
// a duplicate.
func (t *Task) Register(ctx context.Context, mp domain.Marketplace, spec domain.TaskSpec) error {
	if t.Registered() {
		return nil
	}
	id, err := mp.CreateTask(ctx, spec)
	if err != nil {
		if domain.TypeOf(err) == "" {
			err = domain.RegistrationFailure(fmt.Sprintf("page %d", t.PageNumber), err)
		}
		return err
	}
	if id == "" {
		return domain.RegistrationFailure(fmt.Sprintf("page %d: marketplace returned an empty id", t.PageNumber), nil)
	}
	t.ID = id
	t.Status = TaskIncomplete
	return nil
}

// PollStatus queries the marketplace and caches the assignments. A task is
// complete when at least one assignment exists and all of them are
// submitted or approved.
func (t *Task) PollStatus(ctx context.Context, mp domain.Marketplace) (TaskStatus, error) {
	if !t.Registered() {
		return TaskIncomplete, nil
	}
	assignments, err := mp.PollTask(ctx, t.ID)
	if err != nil {
		if domain.TypeOf(err) == "" {
			err = domain.PollFailure(fmt.Sprintf("task %s", t.ID), err)
		}
		return TaskIncomplete, err
	}
	t.Assignments = assignments
	t.Status = classify(assignments)
	return t.Status, nil
}

func classify(assignments []domain.Assignment) TaskStatus {
	if len(assignments) == 0 {
		return TaskIncomplete
	}
	for _, a := range assignments {
		if !a.Status.Terminal() {
			return TaskIncomplete
		}
	}
	return TaskComplete
}

// FetchResult extracts the retyped text from the last observed poll.
// Exactly one assignment with exactly one answer set is supported.
func (t *Task) FetchResult() (string, error) {
	if t.Status != TaskComplete {
		return "", domain.IncompleteError(fmt.Sprintf("task %s has not completed", t.ID), nil)
	}
	if len(t.Assignments) != 1 {
		return "", fmt.Errorf("task %s: expected one assignment, got %d", t.ID, len(t.Assignments))
	}
	sets := t.Assignments[0].Answers
	if len(sets) != 1 {
		return "", fmt.Errorf("task %s: expected one answer set, got %d", t.ID, len(sets))
	}
	for _, ans := range sets[0] {
		if ans.QuestionID == domain.ContentQuestionID {
			t.Result = ans.FreeText
			return ans.FreeText, nil
		}
	}
	return "", fmt.Errorf("task %s: no %q answer", t.ID, domain.ContentQuestionID)
}

// Matches reports whether id is this task's external id.
func (t *Task) Matches(id string) bool {
	return t.Registered() && t.ID == id
}

func (t *Task) clone() *Task {
	c := *t
	if t.Assignments != nil {
		c.Assignments = make([]domain.Assignment, len(t.Assignments))
		for i, a := range t.Assignments {
			c.Assignments[i] = a
			if a.Answers != nil {
				c.Assignments[i].Answers = make([]domain.AnswerSet, len(a.Answers))
				for j, set := range a.Answers {
					c.Assignments[i].Answers[j] = append(domain.AnswerSet(nil), set...)
				}
			}
		}
	}
	return &c
}
