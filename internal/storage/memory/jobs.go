package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/libcirc/patronblocks/internal/storage"
	"github.com/libcirc/patronblocks/internal/synchronization"
)

// JobStore keeps synchronization jobs in memory, preserving creation
// order so the oldest OPEN job can be picked.
type JobStore struct {
	mu    sync.Mutex
	jobs  map[uuid.UUID]synchronization.Job
	order []uuid.UUID
}

// NewJobStore creates an empty job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[uuid.UUID]synchronization.Job)}
}

// CreateJob stores a new job.
func (s *JobStore) CreateJob(_ context.Context, job synchronization.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = copyJob(job)
	s.order = append(s.order, job.ID)

	return nil
}

// GetJob returns one job by id.
func (s *JobStore) GetJob(_ context.Context, id uuid.UUID) (synchronization.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return synchronization.Job{}, storage.ErrNotFound
	}

	return copyJob(job), nil
}

// UpdateJob replaces a stored job.
func (s *JobStore) UpdateJob(_ context.Context, job synchronization.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; !exists {
		return storage.ErrNotFound
	}

	s.jobs[job.ID] = copyJob(job)

	return nil
}

// OldestOpenJob returns the OPEN job that was created first.
func (s *JobStore) OldestOpenJob(_ context.Context) (synchronization.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		if job := s.jobs[id]; job.Status == synchronization.StatusOpen {
			return copyJob(job), nil
		}
	}

	return synchronization.Job{}, storage.ErrNotFound
}

// ClaimJob transitions a job from OPEN to IN_PROGRESS, rejecting the
// claim when another runner already took it.
func (s *JobStore) ClaimJob(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return storage.ErrNotFound
	}

	if job.Status != synchronization.StatusOpen {
		return storage.ErrVersionConflict
	}

	job.Status = synchronization.StatusInProgress
	s.jobs[id] = job

	return nil
}

// InProgressJobExists reports whether any job is currently running.
func (s *JobStore) InProgressJobExists(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		if job.Status == synchronization.StatusInProgress {
			return true, nil
		}
	}

	return false, nil
}

func copyJob(job synchronization.Job) synchronization.Job {
	errs := make([]string, len(job.Errors))
	copy(errs, job.Errors)
	job.Errors = errs

	return job
}
