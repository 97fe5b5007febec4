package jobs

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-process job store for tests and local runs.
type MemoryRepository struct {
	mu       sync.Mutex
	jobs     map[string]Job
	statuses map[string]string
}

// NewMemoryRepository creates an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{jobs: map[string]Job{}, statuses: map[string]string{}}
}

func (r *MemoryRepository) Create(_ context.Context, job Job) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.jobs {
		if existing.FileID == job.FileID {
			return Job{}, ErrFileSubmitted(job.FileID)
		}
	}
	job.CreatedAt = time.Now().UTC()
	r.jobs[job.ID] = job
	return job, nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrNotFound(id)
	}
	return job, nil
}

func (r *MemoryRepository) MarkCompleted(_ context.Context, id, matterID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrNotFound(id)
	}
	job.MatterID = matterID
	job.CompletedAt = &at
	r.jobs[id] = job
	return nil
}

func (r *MemoryRepository) MarkMatterPopulated(_ context.Context, _, matterID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[matterID] = MatterStatusPopulated
	return nil
}

// MatterStatus returns the recorded status flag for matterID.
func (r *MemoryRepository) MatterStatus(matterID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[matterID]
}
