package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/target/mmk-agent-api/internal/core"
	"github.com/target/mmk-agent-api/internal/domain/model"
	apperrors "github.com/target/mmk-agent-api/internal/errors"
)

// Messages surfaced to API callers.
const (
	MsgMissingTask  = "Missing 'task' parameter"
	MsgTaskNotFound = "Task not found"
	MsgFileNotFound = "File not found"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Registry   core.JobRegistry   // Required: live job records
	Dispatcher core.Dispatcher    // Required: hand-off to the execution bridge
	Artifacts  core.ArtifactStore // Required: artifact retrieval
	Archive    core.JobArchive    // Optional: durable copy consulted for ids the registry no longer holds
	Logger     *slog.Logger       // Optional: structured logger
}

// JobService is the boundary between request handling and the job core.
type JobService struct {
	registry   core.JobRegistry
	dispatcher core.Dispatcher
	artifacts  core.ArtifactStore
	archive    core.JobArchive
	logger     *slog.Logger
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Registry == nil {
		return nil, errors.New("JobRegistry is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("Dispatcher is required")
	}
	if opts.Artifacts == nil {
		return nil, errors.New("ArtifactStore is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &JobService{
		registry:   opts.Registry,
		dispatcher: opts.Dispatcher,
		artifacts:  opts.Artifacts,
		archive:    opts.Archive,
		logger:     logger.With("component", "job_service"),
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Submit records a pending job for input and hands it to the execution bridge.
// It returns as soon as the job is dispatched; progress is observed with GetStatus.
func (s *JobService) Submit(ctx context.Context, input string) (*model.Job, error) {
	if strings.TrimSpace(input) == "" {
		return nil, apperrors.ValidationField("task", MsgMissingTask)
	}

	job, err := s.registry.Create(input)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "create job")
	}

	if err := s.dispatcher.Dispatch(ctx, job.ID, input); err != nil {
		s.rejectDispatch(ctx, job.ID, err)
		if apperrors.GetCode(err) != "" {
			return nil, err
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "dispatch job")
	}

	s.logger.DebugContext(ctx, "job submitted", "job_id", job.ID)
	return job, nil
}

// rejectDispatch fails a job the bridge refused so it does not sit in pending forever.
func (s *JobService) rejectDispatch(ctx context.Context, id string, cause error) {
	msg := "dispatch rejected: " + cause.Error()
	s.logger.WarnContext(ctx, "job dispatch rejected", "job_id", id, "error", cause)

	if _, err := s.registry.Update(id, model.JobUpdate{
		Status: model.JobStatusFailed,
		Note:   model.FailedNote(msg),
		Error:  msg,
	}); err != nil {
		s.logger.ErrorContext(ctx, "fail rejected job", "job_id", id, "error", err)
	}
}

// GetStatus returns a snapshot of the job with the given id.
func (s *JobService) GetStatus(ctx context.Context, id string) (*model.Job, error) {
	if job, ok := s.registry.Get(id); ok {
		return job, nil
	}
	if s.archive != nil && id != "" {
		job, err := s.archive.Get(ctx, id)
		switch {
		case err == nil:
			return job, nil
		case !apperrors.IsNotFound(err):
			s.logger.WarnContext(ctx, "archive lookup failed", "job_id", id, "error", err)
		}
	}
	return nil, apperrors.NotFound(MsgTaskNotFound)
}

// List returns snapshots of every live job in creation order.
func (s *JobService) List(_ context.Context) []*model.Job {
	return s.registry.List()
}

// OpenArtifact reads a persisted artifact by locator.
func (s *JobService) OpenArtifact(ctx context.Context, kind model.ArtifactKind, name string) ([]byte, error) {
	if !kind.Valid() || !model.ValidArtifactName(name) {
		return nil, apperrors.NotFound(MsgFileNotFound)
	}
	data, err := s.artifacts.Open(ctx, kind, name)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NotFound(MsgFileNotFound)
		}
		return nil, fmt.Errorf("open %s artifact: %w", kind, err)
	}
	return data, nil
}
