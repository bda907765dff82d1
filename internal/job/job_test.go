package job

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recapturedocs/recapturedocs/internal/domain"
	"github.com/recapturedocs/recapturedocs/internal/marketplace"
)

type stubSplitter struct {
	pages int
	err   error
	calls int
}

func (s *stubSplitter) Split(ctx context.Context, data []byte, filename string) ([]domain.Page, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	pages := make([]domain.Page, s.pages)
	for i := range pages {
		pages[i] = domain.Page{Number: i + 1, Data: []byte(fmt.Sprintf("page %d", i+1)), ContentType: "application/pdf"}
	}
	return pages, nil
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func newRunJob(t *testing.T, pages int) (*Job, *marketplace.Sandbox) {
	t.Helper()
	sb := marketplace.NewSandbox().WithIDs(sequentialIDs("HIT"))
	j := New([]byte("%PDF-1.4"), "application/pdf", "scan.pdf")
	require.NoError(t, j.Run(context.Background(), &stubSplitter{pages: pages}, sb, RetypePageTemplate("http://localhost/process")))
	return j, sb
}

func TestJob_ThreePageScenario(t *testing.T) {
	ctx := context.Background()
	j, sb := newRunJob(t, 3)

	require.Len(t, j.Pages, 3)
	require.Len(t, j.Tasks, 3)
	assert.Equal(t, []string{"HIT1", "HIT2", "HIT3"}, j.TaskIDs())

	sum := md5.Sum([]byte("HIT1HIT2HIT3"))
	assert.Equal(t, hex.EncodeToString(sum[:]), j.Digest)
	assert.Equal(t, StateRegistered, j.State())
	assert.Equal(t, int64(300), j.Cost())

	complete, err := j.IsComplete(ctx, sb)
	require.NoError(t, err)
	assert.False(t, complete)

	for i, id := range j.TaskIDs() {
		_, err := sb.Submit(id, "W1", fmt.Sprintf("text of page %d", i+1))
		require.NoError(t, err)
	}

	complete, err = j.IsComplete(ctx, sb)
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, StateCompleted, j.State())

	data, err := j.GetData(ctx, sb)
	require.NoError(t, err)
	assert.Equal(t, "text of page 1\n\nPAGE\n\ntext of page 2\n\nPAGE\n\ntext of page 3", data)
}

// A job without tasks is complete by vacuous truth. This is intended: there
// is nothing left to wait for, and GetData returns an empty document.
func TestJob_ZeroTasksIsVacuouslyComplete(t *testing.T) {
	ctx := context.Background()
	j := New(nil, "application/pdf", "empty.pdf")

	complete, err := j.IsComplete(ctx, marketplace.NewSandbox())
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Empty(t, j.Digest)

	data, err := j.GetData(ctx, marketplace.NewSandbox())
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestJob_IsCompleteIffEveryTaskComplete(t *testing.T) {
	tests := []struct {
		name     string
		statuses []domain.AssignmentStatus // "" means no assignment
		want     bool
	}{
		{"all submitted", []domain.AssignmentStatus{domain.AssignmentSubmitted, domain.AssignmentSubmitted}, true},
		{"approved and submitted", []domain.AssignmentStatus{domain.AssignmentApproved, domain.AssignmentSubmitted}, true},
		{"one without assignments", []domain.AssignmentStatus{domain.AssignmentSubmitted, ""}, false},
		{"one accepted only", []domain.AssignmentStatus{domain.AssignmentAccepted, domain.AssignmentSubmitted}, false},
		{"one rejected", []domain.AssignmentStatus{domain.AssignmentSubmitted, domain.AssignmentRejected}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			j, sb := newRunJob(t, len(tt.statuses))
			for i, status := range tt.statuses {
				if status == "" {
					continue
				}
				aid, err := sb.Submit(j.Tasks[i].ID, "W", "x")
				require.NoError(t, err)
				require.NoError(t, sb.SetStatus(j.Tasks[i].ID, aid, status))
			}

			got, err := j.IsComplete(ctx, sb)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJob_IsCompleteFollowsLatestPoll(t *testing.T) {
	ctx := context.Background()
	j, sb := newRunJob(t, 2)
	var aids []string
	for _, id := range j.TaskIDs() {
		aid, err := sb.Submit(id, "W1", "x")
		require.NoError(t, err)
		aids = append(aids, aid)
	}

	complete, err := j.IsComplete(ctx, sb)
	require.NoError(t, err)
	assert.True(t, complete)
	assert.True(t, j.Completed)

	require.NoError(t, sb.SetStatus(j.Tasks[1].ID, aids[1], domain.AssignmentRejected))
	complete, err = j.IsComplete(ctx, sb)
	require.NoError(t, err)
	assert.False(t, complete)
	assert.False(t, j.Completed)
	assert.Equal(t, StateRegistered, j.State())
}

func TestJob_PagesWithoutTasksAreNotComplete(t *testing.T) {
	ctx := context.Background()
	j := New([]byte("%PDF-1.4"), "application/pdf", "scan.pdf")
	require.NoError(t, j.Split(ctx, &stubSplitter{pages: 2}))
	j.Completed = true

	complete, err := j.IsComplete(ctx, marketplace.NewSandbox())
	require.NoError(t, err)
	assert.False(t, complete)
	assert.False(t, j.Completed)
	assert.Equal(t, StateSplit, j.State())
}

func TestComputeDigest(t *testing.T) {
	a := ComputeDigest([]string{"A1", "B2", "C3"})
	assert.Equal(t, a, ComputeDigest([]string{"A1", "B2", "C3"}))
	assert.NotEqual(t, a, ComputeDigest([]string{"B2", "A1", "C3"}))
	assert.NotEqual(t, a, ComputeDigest([]string{"A1", "B2"}))
	assert.NotEqual(t, a, ComputeDigest([]string{"A1", "B2", "C4"}))
	assert.Len(t, a, 32)
	assert.Empty(t, ComputeDigest(nil))
}

func TestJob_GetDataIncompleteReturnsNoPartialText(t *testing.T) {
	ctx := context.Background()
	j, sb := newRunJob(t, 3)
	_, err := sb.Submit(j.Tasks[0].ID, "W1", "first")
	require.NoError(t, err)
	_, err = sb.Submit(j.Tasks[2].ID, "W1", "third")
	require.NoError(t, err)

	data, err := j.GetData(ctx, sb)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIncomplete)
	assert.Empty(t, data)
	assert.Equal(t, 2, j.CompletedCount())
}

func TestJob_SplitFailureAbortsBeforeRegistration(t *testing.T) {
	sb := marketplace.NewSandbox()
	j := New([]byte("%PDF-1.4"), "application/pdf", "scan.pdf")

	err := j.Run(context.Background(), &stubSplitter{err: domain.SplitFailure("pdftk exited 1", nil)}, sb, RetypePageTemplate("http://x/process"))
	assert.ErrorIs(t, err, domain.ErrSplit)
	assert.Empty(t, j.Tasks)
	assert.Empty(t, sb.Tasks())
	assert.Equal(t, StateUploaded, j.State())
}

func TestJob_PartialRegistrationResumesWithoutDuplicates(t *testing.T) {
	ctx := context.Background()
	sb := marketplace.NewSandbox()
	calls := 0
	sb.FailCreate = func(domain.TaskSpec) error {
		calls++
		if calls == 2 {
			return errors.New("service unavailable")
		}
		return nil
	}

	j := New([]byte("%PDF-1.4"), "application/pdf", "scan.pdf")
	tmpl := RetypePageTemplate("http://x/process")
	err := j.Run(ctx, &stubSplitter{pages: 3}, sb, tmpl)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRegistration)
	assert.Equal(t, 1, j.RegisteredCount())
	assert.Empty(t, j.Digest)
	assert.Equal(t, StateSplit, j.State())

	sb.FailCreate = nil
	require.NoError(t, j.RegisterTasks(ctx, sb, tmpl))
	assert.Equal(t, 3, j.RegisteredCount())
	assert.Len(t, sb.Tasks(), 3)
	assert.Equal(t, ComputeDigest(j.TaskIDs()), j.Digest)

	// A second full run is a no-op.
	require.NoError(t, j.Run(ctx, &stubSplitter{pages: 3}, sb, tmpl))
	assert.Len(t, sb.Tasks(), 3)
}

func TestJob_PageForTask(t *testing.T) {
	j, _ := newRunJob(t, 2)

	page, ok := j.PageForTask("HIT2")
	require.True(t, ok)
	assert.Equal(t, 2, page.Number)
	assert.Equal(t, "page 2", string(page.Data))

	_, ok = j.PageForTask("HIT9")
	assert.False(t, ok)
	assert.True(t, j.HasTask("HIT1"))
}

func TestJob_CloneIsIndependent(t *testing.T) {
	j, _ := newRunJob(t, 2)
	c := j.Clone()

	c.Tasks[0].ID = "changed"
	c.Pages[0].Data[0] = 'X'
	c.Authorized = true

	assert.Equal(t, "HIT1", j.Tasks[0].ID)
	assert.Equal(t, byte('p'), j.Pages[0].Data[0])
	assert.False(t, j.Authorized)
}

func TestJob_StateProgression(t *testing.T) {
	j, _ := newRunJob(t, 1)
	assert.Equal(t, StateRegistered, j.State())

	j.Completed = true
	assert.Equal(t, StateCompleted, j.State())

	j.CallerToken, j.RecipientToken = "caller", "recipient"
	assert.Equal(t, StatePaymentInitiated, j.State())

	j.Authorized = true
	assert.Equal(t, StateAuthorized, j.State())
}
