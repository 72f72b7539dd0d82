// Package registry keeps the in-memory job table. It is the single source of
// truth for job state; every mutation goes through a method that enforces the
// queued → running → terminal lifecycle.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/qdispatch/api/internal/model"
)

var (
	ErrNotFound = errors.New("job not found")
	// ErrTerminal is returned when a mutation targets a job whose status can
	// no longer change.
	ErrTerminal = errors.New("job already in terminal status")
	// ErrNotCancellable is returned when cancellation targets a job that has
	// already started.
	ErrNotCancellable = errors.New("job is not cancellable")
)

// Registry is a concurrency-safe in-memory job table.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

func New() *Registry {
	return &Registry{jobs: make(map[string]*model.Job)}
}

// Create registers a new job in queued status.
func (r *Registry) Create(job *model.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job.Status = model.JobStatusQueued
	job.CreatedAt = time.Now().UTC()
	r.jobs[job.ID] = job
}

// Get returns a copy of the job so callers never observe a partially applied
// mutation.
func (r *Registry) Get(id string) (*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *job
	return &copied, nil
}

// MarkRunning transitions a queued job to running.
func (r *Registry) MarkRunning(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status.Terminal() {
		return ErrTerminal
	}
	now := time.Now().UTC()
	job.Status = model.JobStatusRunning
	job.StartedAt = &now
	return nil
}

// SetProviderJob records the remote provider's tracking id. The id is
// write-once: a second call with a different value is ignored.
func (r *Registry) SetProviderJob(id, providerJobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.ProviderJobID == "" {
		job.ProviderJobID = providerJobID
	}
	return nil
}

// SetProviderStatus records the provider's own lifecycle label verbatim.
func (r *Registry) SetProviderStatus(id, providerStatus string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	job.ProviderStatus = providerStatus
	return nil
}

// Complete transitions a job to completed and attaches the persisted result
// bytes. Completing a terminal job is rejected so a late poller cannot
// overwrite a cancellation.
func (r *Registry) Complete(id string, result []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status.Terminal() {
		return ErrTerminal
	}
	now := time.Now().UTC()
	job.Status = model.JobStatusCompleted
	job.Result = result
	job.CompletedAt = &now
	return nil
}

// Fail transitions a job to failed with the given error message.
func (r *Registry) Fail(id, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status.Terminal() {
		return ErrTerminal
	}
	now := time.Now().UTC()
	job.Status = model.JobStatusFailed
	job.Error = &message
	job.CompletedAt = &now
	return nil
}

// Cancel transitions a job to cancelled. Only queued jobs are cancellable:
// once the runner has picked a job up it runs to its own terminal state.
func (r *Registry) Cancel(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status.Terminal() {
		return ErrTerminal
	}
	if job.Status != model.JobStatusQueued {
		return ErrNotCancellable
	}
	now := time.Now().UTC()
	job.Status = model.JobStatusCancelled
	job.CompletedAt = &now
	return nil
}

// Len reports the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
