package core

import (
	"context"

	"github.com/target/mmk-agent-api/internal/domain/model"
)

// This file contains the ports of the job orchestration core.
// Service implementations depend on these interfaces, not on concrete adapters.

// JobRegistry is the thread-safe store of Job Records.
// Implementations must not perform I/O and must hand out copies.
type JobRegistry interface {
	// Create inserts a new pending job for input and returns its snapshot.
	Create(input string) (*model.Job, error)
	// Update applies u atomically. It returns false if id is unknown.
	// A non-nil error means the update violated the job state machine and nothing changed.
	Update(id string, u model.JobUpdate) (bool, error)
	// Get returns a snapshot of the job, or false if id is unknown.
	Get(id string) (*model.Job, bool)
	// List returns a consistent snapshot of every job, oldest first.
	List() []*model.Job
}

// Dispatcher hands a job to the execution domain without waiting for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, id, input string) error
}

// Executor runs one agent task. It may block for an unbounded duration.
// Failures are reported through Outcome.Err, never by panicking.
type Executor interface {
	Execute(ctx context.Context, input string, params model.AgentParams) model.Outcome
}

// ArtifactStore persists and serves artifact bytes.
type ArtifactStore interface {
	// Persist writes data for the job and returns the locator callers use to fetch it.
	Persist(ctx context.Context, kind model.ArtifactKind, jobID string, data []byte) (string, error)
	// Open returns the bytes stored under name, or a not_found AppError.
	Open(ctx context.Context, kind model.ArtifactKind, name string) ([]byte, error)
}

// AgentParamsSource supplies executor parameters at job start.
type AgentParamsSource interface {
	AgentParams(ctx context.Context) (model.AgentParams, error)
}

// JobArchive keeps a durable copy of terminal jobs.
type JobArchive interface {
	Save(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
}
