// Package jobrunner is the execution bridge: it takes dispatched jobs off the
// request path and drives them through the executor on worker goroutines.
package jobrunner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/mmk-agent-api/internal/core"
	"github.com/target/mmk-agent-api/internal/domain/model"
	apperrors "github.com/target/mmk-agent-api/internal/errors"
	obserrors "github.com/target/mmk-agent-api/internal/observability/errors"
	"github.com/target/mmk-agent-api/internal/observability/metrics"
	"github.com/target/mmk-agent-api/internal/observability/notify"
	"github.com/target/mmk-agent-api/internal/observability/statsd"
	"github.com/target/mmk-agent-api/internal/service/failurenotifier"
)

const (
	defaultQueueSize = 256
	archiveTimeout   = 10 * time.Second
	componentLabel   = "agent_runner"
)

// ErrQueueFull is returned by Dispatch when the hand-off buffer is full.
var ErrQueueFull = apperrors.Unavailable("execution queue full")

// ErrStopped is returned by Dispatch after Shutdown began.
var ErrStopped = apperrors.Unavailable("execution runner stopped")

var errInvalidResult = errors.New("result is not valid JSON")

// RunnerOptions configures the execution bridge.
type RunnerOptions struct {
	Registry  core.JobRegistry
	Executor  core.Executor
	Artifacts core.ArtifactStore
	Params    core.AgentParamsSource

	// Optional collaborators.
	Archive         core.JobArchive
	Logger          *slog.Logger
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service

	// Concurrency caps simultaneously executing jobs; 0 means unbounded.
	Concurrency int
	// QueueSize is the hand-off buffer between Dispatch and the execution loop.
	QueueSize int
	// JobTimeout bounds each executor call; 0 disables the bound.
	JobTimeout time.Duration
}

type dispatchMsg struct {
	id    string
	input string
}

// Stats is a point-in-time view of the runner.
type Stats struct {
	Queued  int   `json:"queued"`
	Running int64 `json:"running"`
}

// Runner executes dispatched jobs independently of the submitting goroutine.
type Runner struct {
	registry  core.JobRegistry
	executor  core.Executor
	artifacts core.ArtifactStore
	params    core.AgentParamsSource
	archive   core.JobArchive
	logger    *slog.Logger
	metrics   statsd.Sink
	notifier  *failurenotifier.Service

	concurrency int
	timeout     time.Duration

	queue chan dispatchMsg

	mu      sync.RWMutex // guards closed against sends on queue
	closed  bool
	started atomic.Bool
	running atomic.Int64

	jobCtx    context.Context
	cancelJob context.CancelFunc
	done      chan struct{}
}

var _ core.Dispatcher = (*Runner)(nil)

// NewRunner validates options and constructs a Runner. Call Start before Dispatch.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	switch {
	case opts.Registry == nil:
		return nil, errors.New("jobrunner: Registry is required")
	case opts.Executor == nil:
		return nil, errors.New("jobrunner: Executor is required")
	case opts.Artifacts == nil:
		return nil, errors.New("jobrunner: Artifacts is required")
	case opts.Params == nil:
		return nil, errors.New("jobrunner: Params is required")
	case opts.Concurrency < 0:
		return nil, errors.New("jobrunner: Concurrency must be >= 0")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &Runner{
		registry:    opts.Registry,
		executor:    opts.Executor,
		artifacts:   opts.Artifacts,
		params:      opts.Params,
		archive:     opts.Archive,
		logger:      logger.With("component", componentLabel),
		metrics:     opts.Metrics,
		notifier:    opts.FailureNotifier,
		concurrency: opts.Concurrency,
		timeout:     max(opts.JobTimeout, 0),
		queue:       make(chan dispatchMsg, queueSize),
		done:        make(chan struct{}),
	}, nil
}

// MustNewRunner is like NewRunner but panics on invalid options.
func MustNewRunner(opts RunnerOptions) *Runner {
	r, err := NewRunner(opts)
	if err != nil {
		panic(err)
	}
	return r
}

// Start launches the execution loop. Jobs run on contexts detached from ctx's
// cancellation; they are cancelled only when Shutdown's deadline passes.
func (r *Runner) Start(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	r.jobCtx, r.cancelJob = context.WithCancel(context.WithoutCancel(ctx))
	r.logger.InfoContext(ctx, "starting job runner",
		"concurrency", r.concurrency,
		"queue_size", cap(r.queue),
		"job_timeout", r.timeout,
	)
	go r.loop()
}

func (r *Runner) loop() {
	defer close(r.done)

	var g errgroup.Group
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for msg := range r.queue {
		// Go blocks while the concurrency limit is reached; the queue absorbs the burst.
		g.Go(func() error {
			r.running.Add(1)
			defer r.running.Add(-1)
			r.processJob(r.jobCtx, msg)
			return nil
		})
	}
	_ = g.Wait()
}

// Dispatch hands the job to the execution loop without waiting for it to run.
// Without a concurrency cap the loop never stalls, so the send only waits for the
// loop to take the message. With a cap, a full buffer fails with ErrQueueFull.
func (r *Runner) Dispatch(ctx context.Context, id, input string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed || !r.started.Load() {
		return ErrStopped
	}
	msg := dispatchMsg{id: id, input: input}
	if r.concurrency == 0 {
		select {
		case r.queue <- msg:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case r.queue <- msg:
		return nil
	default:
		metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
			Transition: "dispatch",
			Result:     metrics.ResultRejected,
			Err:        ErrQueueFull,
		})
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits for queued and running jobs.
// When ctx expires first, running jobs are cancelled and ctx's error is returned
// once they have been recorded as failed.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	if !r.started.Load() {
		return nil
	}

	select {
	case <-r.done:
		r.cancelJob()
		r.logger.InfoContext(ctx, "job runner stopped")
		return nil
	case <-ctx.Done():
	}

	r.logger.WarnContext(ctx, "shutdown deadline reached; cancelling running jobs", "running", r.running.Load())
	r.cancelJob()
	<-r.done
	return ctx.Err()
}

// Stats reports queue depth and running job count.
func (r *Runner) Stats() Stats {
	return Stats{Queued: len(r.queue), Running: r.running.Load()}
}

func (r *Runner) processJob(ctx context.Context, msg dispatchMsg) {
	start := time.Now()
	log := r.logger.With("job_id", msg.id)

	if !r.update(ctx, log, msg.id, model.JobUpdate{Status: model.JobStatusRunning, Note: model.NoteStarted}) {
		return
	}
	metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{Transition: "started", Result: metrics.ResultSuccess})

	update, err := r.run(ctx, msg)
	if err != nil {
		r.finishFailed(ctx, log, msg, err, time.Since(start))
		return
	}
	if !r.update(ctx, log, msg.id, update) {
		return
	}
	log.InfoContext(ctx, "job completed", "duration", time.Since(start))
	metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
		Transition: string(model.JobStatusCompleted),
		Result:     metrics.ResultSuccess,
		Duration:   time.Since(start),
	})
	r.archiveJob(ctx, log, msg.id)
}

// run executes the job and persists its artifacts, returning the completing update.
func (r *Runner) run(ctx context.Context, msg dispatchMsg) (model.JobUpdate, error) {
	params, err := r.params.AgentParams(ctx)
	if err != nil {
		return model.JobUpdate{}, fmt.Errorf("load agent params: %w", err)
	}

	outcome := r.execute(ctx, msg.input, params)
	if outcome.Failed() {
		return model.JobUpdate{}, outcome.Err
	}

	result := outcome.Result
	if len(result) == 0 {
		result = json.RawMessage(`{}`)
	}
	if !json.Valid(result) {
		return model.JobUpdate{}, apperrors.Execution(errInvalidResult, "executor returned an unusable result")
	}

	var artifacts model.Artifacts
	for _, raw := range outcome.Artifacts {
		if len(raw.Data) == 0 {
			continue
		}
		loc, perr := r.artifacts.Persist(ctx, raw.Kind, msg.id, raw.Data)
		if perr != nil {
			return model.JobUpdate{}, perr
		}
		artifacts.Set(raw.Kind, loc)
	}

	return model.JobUpdate{
		Status:    model.JobStatusCompleted,
		Note:      model.NoteCompleted,
		Result:    result,
		Artifacts: artifacts,
	}, nil
}

// execute calls the executor on its own goroutine so that a timeout or shutdown
// fails the job even when the executor ignores its context. Panics become failures.
func (r *Runner) execute(ctx context.Context, input string, params model.AgentParams) model.Outcome {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	ch := make(chan model.Outcome, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				r.logger.ErrorContext(ctx, "executor panic", "panic", v, "stack", string(debug.Stack()))
				ch <- model.Failure(apperrors.Internalf("executor panic: %v", v))
			}
		}()
		ch <- r.executor.Execute(ctx, input, params)
	}()

	select {
	case out := <-ch:
		if out.Failed() && ctx.Err() != nil {
			return model.Failure(r.contextFailure(ctx))
		}
		return out
	case <-ctx.Done():
		return model.Failure(r.contextFailure(ctx))
	}
}

func (r *Runner) contextFailure(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.Wrapf(ctx.Err(), apperrors.ErrCodeTimeout, "execution timed out after %s", r.timeout)
	}
	return apperrors.Wrap(ctx.Err(), apperrors.ErrCodeCanceled, "execution canceled")
}

func (r *Runner) finishFailed(ctx context.Context, log *slog.Logger, msg dispatchMsg, cause error, elapsed time.Duration) {
	errMsg := cause.Error()
	class := obserrors.Classify(cause)
	log.ErrorContext(ctx, "job failed", "error", errMsg, "error_class", class)

	if !r.update(ctx, log, msg.id, model.JobUpdate{
		Status: model.JobStatusFailed,
		Note:   model.FailedNote(errMsg),
		Error:  errMsg,
	}) {
		return
	}
	metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
		Transition: string(model.JobStatusFailed),
		Result:     metrics.ResultError,
		Duration:   elapsed,
		Err:        cause,
	})
	r.archiveJob(ctx, log, msg.id)

	if r.notifier.Enabled() {
		r.notifier.NotifyJobFailure(context.WithoutCancel(ctx), notify.JobFailurePayload{
			JobID:      msg.id,
			Task:       msg.input,
			Error:      errMsg,
			ErrorClass: class,
			Metadata:   map[string]string{"component": componentLabel},
		})
	}
}

// update applies u and reports whether processing should continue.
func (r *Runner) update(ctx context.Context, log *slog.Logger, id string, u model.JobUpdate) bool {
	ok, err := r.registry.Update(id, u)
	switch {
	case err != nil:
		log.ErrorContext(ctx, "job update rejected", "status", u.Status, "error", err)
		return false
	case !ok:
		log.WarnContext(ctx, "stale or unknown job", "status", u.Status)
		return false
	}
	return true
}

func (r *Runner) archiveJob(ctx context.Context, log *slog.Logger, id string) {
	if r.archive == nil {
		return
	}
	job, ok := r.registry.Get(id)
	if !ok {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()
	if err := r.archive.Save(actx, job); err != nil {
		log.ErrorContext(ctx, "archive job", "error", err)
	}
}
