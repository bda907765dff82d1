package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recapturedocs/recapturedocs/internal/cache"
	"github.com/recapturedocs/recapturedocs/internal/config"
	"github.com/recapturedocs/recapturedocs/internal/domain"
	"github.com/recapturedocs/recapturedocs/internal/job"
	"github.com/recapturedocs/recapturedocs/internal/observability"
)

func sampleJob(taskIDs ...string) *job.Job {
	j := job.New([]byte("%PDF-1.4 sample"), "application/pdf", "letter.pdf")
	for i, id := range taskIDs {
		j.Pages = append(j.Pages, domain.Page{Number: i + 1, Data: []byte{byte(i), 0xff}, ContentType: "application/pdf"})
		j.Tasks = append(j.Tasks, &job.Task{
			ID:         id,
			PageNumber: i + 1,
			Status:     job.TaskComplete,
			Assignments: []domain.Assignment{{
				ID:      "A-" + id,
				Status:  domain.AssignmentSubmitted,
				Answers: []domain.AnswerSet{{{QuestionID: domain.ContentQuestionID, FreeText: "text " + id}}},
			}},
		})
	}
	j.Digest = job.ComputeDigest(j.TaskIDs())
	j.CallerToken = "caller"
	j.RecipientToken = "recipient"
	return j
}

func backends(t *testing.T) map[string]domain.SnapshotBackend {
	t.Helper()
	dir := t.TempDir()

	file, err := NewFileBackend(filepath.Join(dir, "files"))
	require.NoError(t, err)

	sqlite, err := OpenSQLite(context.Background(), config.SQLiteConfig{Path: filepath.Join(dir, "jobs.db")})
	require.NoError(t, err)

	return map[string]domain.SnapshotBackend{
		"file":   file,
		"sqlite": sqlite,
		"memory": NewCacheBackend(cache.NewMemoryClient(0)),
	}
}

func TestJobStore_RoundTrip(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			defer backend.Close()

			store := NewJobStore(backend, "server", observability.Nop())
			first, second := sampleJob("HIT1", "HIT2"), sampleJob("HIT3")
			require.NoError(t, store.Add(ctx, first))
			require.NoError(t, store.Add(ctx, second))

			reloaded := NewJobStore(backend, "server", observability.Nop())
			require.NoError(t, reloaded.Load(ctx))

			assert.Equal(t, store.List(), reloaded.List())
			ids := []string{}
			for _, j := range reloaded.List() {
				ids = append(ids, j.ID)
			}
			assert.Equal(t, []string{first.ID, second.ID}, ids)
		})
	}
}

func TestJobStore_LoadMissingSnapshotIsEmpty(t *testing.T) {
	store := NewJobStore(NewCacheBackend(cache.NewMemoryClient(0)), "fresh", observability.Nop())
	require.NoError(t, store.Load(context.Background()))
	assert.Equal(t, 0, store.Len())
}

func TestJobStore_GetReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewJobStore(NewCacheBackend(cache.NewMemoryClient(0)), "server", observability.Nop())
	j := sampleJob("HIT1")
	require.NoError(t, store.Add(ctx, j))

	got, err := store.Get(j.ID)
	require.NoError(t, err)
	got.Authorized = true

	again, err := store.Get(j.ID)
	require.NoError(t, err)
	assert.False(t, again.Authorized)
}

func TestJobStore_Lookups(t *testing.T) {
	ctx := context.Background()
	store := NewJobStore(NewCacheBackend(cache.NewMemoryClient(0)), "server", observability.Nop())
	j := sampleJob("HIT1", "HIT2")
	require.NoError(t, store.Add(ctx, j))

	owner, err := store.FindByTask("HIT2")
	require.NoError(t, err)
	assert.Equal(t, j.ID, owner.ID)

	_, err = store.FindByTask("HIT9")
	assert.ErrorIs(t, err, domain.ErrLookup)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get("nope")
	assert.ErrorIs(t, err, domain.ErrLookup)

	err = store.Add(ctx, j)
	assert.ErrorIs(t, err, ErrConflict)
}

type failingBackend struct {
	domain.SnapshotBackend
	fail bool
}

func (f *failingBackend) Save(ctx context.Context, name string, data []byte) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.SnapshotBackend.Save(ctx, name, data)
}

func TestJobStore_UpdateCommitsOnlyOnSuccess(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{SnapshotBackend: NewCacheBackend(cache.NewMemoryClient(0))}
	store := NewJobStore(backend, "server", observability.Nop())
	j := sampleJob("HIT1")
	require.NoError(t, store.Add(ctx, j))

	_, err := store.Mutate(ctx, j.ID, func(j *job.Job) error {
		j.Authorized = true
		return domain.PaymentGatewayFailure("capture refused", nil)
	})
	assert.ErrorIs(t, err, domain.ErrPaymentGateway)
	got, _ := store.Get(j.ID)
	assert.False(t, got.Authorized)

	backend.fail = true
	_, err = store.Mutate(ctx, j.ID, func(j *job.Job) error {
		j.Authorized = true
		return nil
	})
	require.Error(t, err)
	got, _ = store.Get(j.ID)
	assert.False(t, got.Authorized)

	backend.fail = false
	updated, err := store.Mutate(ctx, j.ID, func(j *job.Job) error {
		j.Authorized = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.Authorized)
}

func TestJobStore_UpdateKeepsPartialProgress(t *testing.T) {
	ctx := context.Background()
	store := NewJobStore(NewCacheBackend(cache.NewMemoryClient(0)), "server", observability.Nop())
	j := sampleJob("HIT1")
	require.NoError(t, store.Add(ctx, j))

	failure := domain.RegistrationFailure("registered 1 of 2 tasks", nil)
	updated, err := store.Update(ctx, j.ID, func(j *job.Job) (bool, error) {
		j.Digest = ""
		return true, failure
	})
	assert.ErrorIs(t, err, domain.ErrRegistration)
	assert.Empty(t, updated.Digest)

	got, _ := store.Get(j.ID)
	assert.Empty(t, got.Digest)
}

func TestJobStore_ConcurrentUpdatesAreSerialized(t *testing.T) {
	ctx := context.Background()
	store := NewJobStore(NewCacheBackend(cache.NewMemoryClient(0)), "server", observability.Nop())
	j := sampleJob()
	require.NoError(t, store.Add(ctx, j))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Mutate(ctx, j.ID, func(j *job.Job) error {
				j.Pages = append(j.Pages, domain.Page{Number: len(j.Pages) + 1})
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.Get(j.ID)
	require.NoError(t, err)
	assert.Len(t, got.Pages, 20)
}

func TestJobStore_Purge(t *testing.T) {
	ctx := context.Background()
	backend := NewCacheBackend(cache.NewMemoryClient(0))
	store := NewJobStore(backend, "server", observability.Nop())
	require.NoError(t, store.Add(ctx, sampleJob("HIT1")))
	require.NoError(t, store.Add(ctx, sampleJob("HIT2")))

	n, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	reloaded := NewJobStore(backend, "server", observability.Nop())
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, 0, reloaded.Len())
}

func TestFileBackend_RejectsPathNames(t *testing.T) {
	b, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, b.Save(context.Background(), "../escape", []byte("x")))

	_, err = b.Load(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}
