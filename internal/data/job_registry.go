package data

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/target/mmk-agent-api/internal/domain/model"
)

// maxIDAttempts bounds identifier regeneration on collision.
const maxIDAttempts = 8

// JobRegistryOptions configures an in-memory JobRegistry.
type JobRegistryOptions struct {
	TimeProvider TimeProvider
	// NewID overrides identifier generation (tests).
	NewID func() (string, error)
}

// JobRegistry is the in-memory, lock-protected store of Job Records.
// Every read returns a deep copy; no operation performs I/O.
type JobRegistry struct {
	mu    sync.RWMutex
	jobs  map[string]*model.Job
	order []string
	clock TimeProvider
	newID func() (string, error)
}

// NewJobRegistry constructs an empty JobRegistry.
func NewJobRegistry(opts JobRegistryOptions) *JobRegistry {
	clock := opts.TimeProvider
	if clock == nil {
		clock = &RealTimeProvider{}
	}
	newID := opts.NewID
	if newID == nil {
		newID = newUUID
	}
	return &JobRegistry{
		jobs:  make(map[string]*model.Job),
		clock: clock,
		newID: newID,
	}
}

func newUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Create inserts a pending job for input under a fresh identifier.
func (r *JobRegistry) Create(input string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for range maxIDAttempts {
		id, err := r.newID()
		if err != nil {
			return nil, fmt.Errorf("generate job id: %w", err)
		}
		if _, taken := r.jobs[id]; taken || id == "" {
			continue
		}
		job := model.NewJob(id, input, r.clock.Now())
		r.jobs[id] = job
		r.order = append(r.order, id)
		return job.Clone(), nil
	}
	return nil, fmt.Errorf("generate job id: no unique id after %d attempts", maxIDAttempts)
}

// Update applies u to the job atomically.
// It returns false when id is unknown; the error reports a rejected update.
func (r *JobRegistry) Update(id string, u model.JobUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return false, nil
	}
	if err := job.Apply(u); err != nil {
		return true, fmt.Errorf("update job %s: %w", id, err)
	}
	return true, nil
}

// Get returns a snapshot of the job.
func (r *JobRegistry) Get(id string) (*model.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// List returns a snapshot of every job in creation order.
func (r *JobRegistry) List() []*model.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Job, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.jobs[id].Clone())
	}
	return out
}

// Len returns the number of jobs held.
func (r *JobRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
