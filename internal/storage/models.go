// Package storage persists the job store as whole snapshots over file, SQL
// and Redis backends.
package storage

import (
	"errors"
	"time"

	"github.com/recapturedocs/recapturedocs/internal/domain"
	"github.com/recapturedocs/recapturedocs/internal/job"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflict")

	// ErrSnapshotNotFound is returned by backends when no snapshot is stored.
	ErrSnapshotNotFound = domain.ErrSnapshotNotFound
)

// SnapshotVersion is the current snapshot document format.
const SnapshotVersion = 1

// Snapshot is the persisted form of the whole job store.
type Snapshot struct {
	Version int        `json:"version"`
	SavedAt time.Time  `json:"saved_at"`
	Jobs    []*job.Job `json:"jobs"`
}
