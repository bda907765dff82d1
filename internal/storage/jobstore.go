package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/recapturedocs/recapturedocs/internal/domain"
	"github.com/recapturedocs/recapturedocs/internal/job"
	"github.com/recapturedocs/recapturedocs/internal/observability"
)

// JobStore is the ordered in-memory collection of jobs, persisted as one
// snapshot after every mutation. Callers only ever see copies; changes go
// through Add, Update and Purge.
type JobStore struct {
	backend domain.SnapshotBackend
	name    string
	logger  *observability.Logger

	mu    sync.RWMutex
	jobs  map[string]*job.Job
	order []string

	// saveMu serializes snapshot writes so an older snapshot never lands
	// after a newer one.
	saveMu sync.Mutex

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewJobStore creates an empty store writing snapshots named name.
func NewJobStore(backend domain.SnapshotBackend, name string, logger *observability.Logger) *JobStore {
	if name == "" {
		name = "server"
	}
	return &JobStore{
		backend: backend,
		name:    name,
		logger:  logger,
		jobs:    make(map[string]*job.Job),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Load replaces the in-memory jobs with the stored snapshot. A missing
// snapshot yields an empty store.
func (s *JobStore) Load(ctx context.Context) error {
	data, err := s.backend.Load(ctx, s.name)
	if errors.Is(err, ErrSnapshotNotFound) {
		s.logger.Info().Str("snapshot", s.name).Msg("No snapshot found, starting empty")
		return nil
	}
	if err != nil {
		return domain.IOError("load job store", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.IOError("decode job store snapshot", err)
	}
	if snap.Version != SnapshotVersion {
		return domain.IOError(fmt.Sprintf("unsupported snapshot version %d", snap.Version), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = make(map[string]*job.Job, len(snap.Jobs))
	s.order = s.order[:0]
	for _, j := range snap.Jobs {
		if j == nil || j.ID == "" {
			continue
		}
		if _, dup := s.jobs[j.ID]; dup {
			continue
		}
		s.jobs[j.ID] = j
		s.order = append(s.order, j.ID)
	}

	s.logger.Info().Str("snapshot", s.name).Int("jobs", len(s.order)).Msg("Job store loaded")
	return nil
}

// Save writes the current store as one snapshot.
func (s *JobStore) Save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	snap := Snapshot{Version: SnapshotVersion, SavedAt: time.Now().UTC(), Jobs: make([]*job.Job, 0, len(s.order))}
	for _, id := range s.order {
		snap.Jobs = append(snap.Jobs, s.jobs[id])
	}
	data, err := json.Marshal(snap)
	s.mu.RUnlock()
	if err != nil {
		return domain.IOError("encode job store snapshot", err)
	}

	if err := s.backend.Save(ctx, s.name, data); err != nil {
		return domain.IOError("save job store", err)
	}
	return nil
}

// Add inserts a new job and persists the store.
func (s *JobStore) Add(ctx context.Context, j *job.Job) error {
	if j == nil || j.ID == "" {
		return domain.ValidationError("job id is required", nil)
	}

	s.mu.Lock()
	if _, exists := s.jobs[j.ID]; exists {
		s.mu.Unlock()
		return domain.NewError(domain.ErrorTypeValidation, fmt.Sprintf("job %s already exists", j.ID), ErrConflict)
	}
	s.jobs[j.ID] = j.Clone()
	s.order = append(s.order, j.ID)
	s.mu.Unlock()

	if err := s.Save(ctx); err != nil {
		s.remove(j.ID)
		return err
	}
	return nil
}

// Get returns a copy of the job with the given id.
func (s *JobStore) Get(id string) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, domain.LookupFailure(fmt.Sprintf("job %s", id), ErrNotFound)
	}
	return j.Clone(), nil
}

// List returns copies of all jobs in insertion order.
func (s *JobStore) List() []*job.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*job.Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.jobs[id].Clone())
	}
	return out
}

// Len returns the number of stored jobs.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// FindByTask returns a copy of the job owning the task with the given
// external id.
func (s *JobStore) FindByTask(taskID string) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if j := s.jobs[id]; j.HasTask(taskID) {
			return j.Clone(), nil
		}
	}
	return nil, domain.LookupFailure(fmt.Sprintf("task %s", taskID), ErrNotFound)
}

// Update runs fn against a copy of the job while holding the job's lock and
// commits the copy only when fn succeeds. The store is then persisted; if
// that fails the previous version is restored. fn may return a non-nil error
// together with commit=true to keep partial progress, such as tasks
// registered before a failure.
func (s *JobStore) Update(ctx context.Context, id string, fn func(j *job.Job) (commit bool, err error)) (*job.Job, error) {
	unlock := s.lockJob(id)
	defer unlock()

	s.mu.RLock()
	current, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.LookupFailure(fmt.Sprintf("job %s", id), ErrNotFound)
	}

	working := current.Clone()
	commit, fnErr := fn(working)
	if !commit {
		return current.Clone(), fnErr
	}

	s.mu.Lock()
	if _, ok := s.jobs[id]; !ok {
		s.mu.Unlock()
		return nil, domain.LookupFailure(fmt.Sprintf("job %s was purged", id), ErrNotFound)
	}
	s.jobs[id] = working
	s.mu.Unlock()

	if err := s.Save(ctx); err != nil {
		s.mu.Lock()
		s.jobs[id] = current
		s.mu.Unlock()
		return current.Clone(), err
	}
	return working.Clone(), fnErr
}

// Mutate is Update for functions that either fully succeed or change nothing.
func (s *JobStore) Mutate(ctx context.Context, id string, fn func(j *job.Job) error) (*job.Job, error) {
	return s.Update(ctx, id, func(j *job.Job) (bool, error) {
		if err := fn(j); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Purge removes every job and persists the empty store.
func (s *JobStore) Purge(ctx context.Context) (int, error) {
	s.mu.Lock()
	prevJobs, prevOrder := s.jobs, s.order
	n := len(s.order)
	s.jobs = make(map[string]*job.Job)
	s.order = nil
	s.mu.Unlock()

	if err := s.Save(ctx); err != nil {
		s.mu.Lock()
		s.jobs, s.order = prevJobs, prevOrder
		s.mu.Unlock()
		return 0, err
	}
	return n, nil
}

// Close releases the snapshot backend.
func (s *JobStore) Close() error {
	return s.backend.Close()
}

func (s *JobStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *JobStore) lockJob(id string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}
