package job

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recapturedocs/recapturedocs/internal/domain"
)

type scriptedMarketplace struct {
	created     int
	assignments []domain.Assignment
	pollErr     error
}

func (m *scriptedMarketplace) CreateTask(ctx context.Context, spec domain.TaskSpec) (string, error) {
	m.created++
	return "HIT-X", nil
}

func (m *scriptedMarketplace) PollTask(ctx context.Context, taskID string) ([]domain.Assignment, error) {
	return m.assignments, m.pollErr
}

func (m *scriptedMarketplace) DisableTask(ctx context.Context, taskID string) error { return nil }

func submitted(sets ...domain.AnswerSet) domain.Assignment {
	return domain.Assignment{ID: "A", Status: domain.AssignmentSubmitted, Answers: sets}
}

func TestTask_RegisterIsGuarded(t *testing.T) {
	mp := &scriptedMarketplace{}
	task := &Task{PageNumber: 1}

	require.NoError(t, task.Register(context.Background(), mp, domain.TaskSpec{}))
	require.NoError(t, task.Register(context.Background(), mp, domain.TaskSpec{}))
	assert.Equal(t, 1, mp.created)
	assert.Equal(t, "HIT-X", task.ID)
}

func TestTask_PollStatus(t *testing.T) {
	tests := []struct {
		name        string
		assignments []domain.Assignment
		want        TaskStatus
	}{
		{"no assignments", nil, TaskIncomplete},
		{"accepted", []domain.Assignment{{Status: domain.AssignmentAccepted}}, TaskIncomplete},
		{"submitted", []domain.Assignment{{Status: domain.AssignmentSubmitted}}, TaskComplete},
		{"approved", []domain.Assignment{{Status: domain.AssignmentApproved}}, TaskComplete},
		{"mixed", []domain.Assignment{{Status: domain.AssignmentApproved}, {Status: domain.AssignmentReturned}}, TaskIncomplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{ID: "HIT-1"}
			got, err := task.PollStatus(context.Background(), &scriptedMarketplace{assignments: tt.assignments})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTask_PollFailureIsTyped(t *testing.T) {
	task := &Task{ID: "HIT-1"}
	_, err := task.PollStatus(context.Background(), &scriptedMarketplace{pollErr: errors.New("timeout")})
	assert.ErrorIs(t, err, domain.ErrPoll)
}

func TestTask_FetchResult(t *testing.T) {
	content := domain.AnswerSet{{QuestionID: domain.ContentQuestionID, FreeText: "Dear Sir"}}
	other := domain.AnswerSet{{QuestionID: "notes", FreeText: "n/a"}}

	tests := []struct {
		name        string
		status      TaskStatus
		assignments []domain.Assignment
		want        string
		wantErr     bool
	}{
		{"single answer", TaskComplete, []domain.Assignment{submitted(content)}, "Dear Sir", false},
		{"not complete", TaskIncomplete, []domain.Assignment{submitted(content)}, "", true},
		{"two assignments", TaskComplete, []domain.Assignment{submitted(content), submitted(content)}, "", true},
		{"two answer sets", TaskComplete, []domain.Assignment{submitted(content, content)}, "", true},
		{"no answer sets", TaskComplete, []domain.Assignment{submitted()}, "", true},
		{"missing content question", TaskComplete, []domain.Assignment{submitted(other)}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{ID: "HIT-1", Status: tt.status, Assignments: tt.assignments}
			got, err := task.FetchResult()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTask_Matches(t *testing.T) {
	assert.True(t, (&Task{ID: "HIT-1"}).Matches("HIT-1"))
	assert.False(t, (&Task{ID: "HIT-1"}).Matches("HIT-2"))
	assert.False(t, (&Task{}).Matches(""))
}
