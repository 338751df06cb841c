package jobrunner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/mmk-agent-api/internal/data"
	"github.com/target/mmk-agent-api/internal/domain/model"
	apperrors "github.com/target/mmk-agent-api/internal/errors"
	"github.com/target/mmk-agent-api/internal/mocks"
	"github.com/target/mmk-agent-api/internal/observability/metrics"
	"github.com/target/mmk-agent-api/internal/observability/notify"
	"github.com/target/mmk-agent-api/internal/observability/statsd"
	"github.com/target/mmk-agent-api/internal/service/failurenotifier"
)

var testParams = model.AgentParams{
	APIBase:        "http://agent.local",
	Model:          "test-model",
	ViewportWidth:  1280,
	ViewportHeight: 1920,
	Headless:       true,
	Homepage:       "https://www.google.com",
}

type staticParams struct {
	params model.AgentParams
	err    error
}

func (s staticParams) AgentParams(context.Context) (model.AgentParams, error) {
	return s.params, s.err
}

type executorFunc func(ctx context.Context, input string, params model.AgentParams) model.Outcome

func (f executorFunc) Execute(ctx context.Context, input string, params model.AgentParams) model.Outcome {
	return f(ctx, input, params)
}

type memStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memStore) Persist(_ context.Context, kind model.ArtifactKind, jobID string, b []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = map[string][]byte{}
	}
	name := kind.Filename(jobID)
	m.files[string(kind)+"/"+name] = b
	return name, nil
}

func (m *memStore) Open(_ context.Context, kind model.ArtifactKind, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[string(kind)+"/"+name]
	if !ok {
		return nil, apperrors.NotFound("File not found")
	}
	return b, nil
}

type harness struct {
	reg    *data.JobRegistry
	runner *Runner
	rec    *statsd.Recorder
}

func newHarness(t *testing.T, opts RunnerOptions) *harness {
	t.Helper()
	h := &harness{reg: data.NewJobRegistry(data.JobRegistryOptions{}), rec: &statsd.Recorder{}}
	opts.Registry = h.reg
	if opts.Params == nil {
		opts.Params = staticParams{params: testParams}
	}
	if opts.Artifacts == nil {
		opts.Artifacts = &memStore{}
	}
	opts.Metrics = h.rec
	h.runner = MustNewRunner(opts)
	h.runner.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.runner.Shutdown(ctx)
	})
	return h
}

func (h *harness) submit(t *testing.T, input string) string {
	t.Helper()
	job, err := h.reg.Create(input)
	require.NoError(t, err)
	require.NoError(t, h.runner.Dispatch(context.Background(), job.ID, input))
	return job.ID
}

func (h *harness) waitTerminal(t *testing.T, id string) *model.Job {
	t.Helper()
	var job *model.Job
	require.Eventually(t, func() bool {
		var ok bool
		job, ok = h.reg.Get(id)
		return ok && job.Status.Terminal()
	}, 5*time.Second, 5*time.Millisecond)
	return job
}

func TestNewRunner_Validation(t *testing.T) {
	reg := data.NewJobRegistry(data.JobRegistryOptions{})
	exec := executorFunc(func(context.Context, string, model.AgentParams) model.Outcome { return model.Success(nil) })
	valid := RunnerOptions{Registry: reg, Executor: exec, Artifacts: &memStore{}, Params: staticParams{}}

	_, err := NewRunner(valid)
	require.NoError(t, err)

	for name, mutate := range map[string]func(*RunnerOptions){
		"registry":    func(o *RunnerOptions) { o.Registry = nil },
		"executor":    func(o *RunnerOptions) { o.Executor = nil },
		"artifacts":   func(o *RunnerOptions) { o.Artifacts = nil },
		"params":      func(o *RunnerOptions) { o.Params = nil },
		"concurrency": func(o *RunnerOptions) { o.Concurrency = -1 },
	} {
		t.Run(name, func(t *testing.T) {
			opts := valid
			mutate(&opts)
			_, err := NewRunner(opts)
			require.Error(t, err)
		})
	}
	assert.Panics(t, func() { MustNewRunner(RunnerOptions{}) })
}

func TestRunner_SuccessPersistsArtifacts(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)
	store := mocks.NewMockArtifactStore(ctrl)
	archive := mocks.NewMockJobArchive(ctrl)

	exec.EXPECT().
		Execute(gomock.Any(), "go to example.com and get page title", testParams).
		Return(model.Success(
			json.RawMessage(`{"title":"Example"}`),
			model.RawArtifact{Kind: model.ArtifactScreenshot, Data: []byte("png")},
			model.RawArtifact{Kind: model.ArtifactAnimation, Data: []byte("gif")},
		))
	store.EXPECT().Persist(gomock.Any(), model.ArtifactScreenshot, gomock.Any(), []byte("png")).
		DoAndReturn(func(_ context.Context, k model.ArtifactKind, id string, _ []byte) (string, error) {
			return k.Filename(id), nil
		})
	store.EXPECT().Persist(gomock.Any(), model.ArtifactAnimation, gomock.Any(), []byte("gif")).
		DoAndReturn(func(_ context.Context, k model.ArtifactKind, id string, _ []byte) (string, error) {
			return k.Filename(id), nil
		})
	archived := make(chan *model.Job, 1)
	archive.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, j *model.Job) error {
		archived <- j
		return nil
	})

	h := newHarness(t, RunnerOptions{Executor: exec, Artifacts: store, Archive: archive})
	id := h.submit(t, "go to example.com and get page title")
	job := h.waitTerminal(t, id)

	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.JSONEq(t, `{"title":"Example"}`, string(job.Result))
	require.NotNil(t, job.Screenshot)
	require.NotNil(t, job.Animation)
	assert.Equal(t, id+".png", *job.Screenshot)
	assert.Equal(t, id+".gif", *job.Animation)
	assert.Nil(t, job.Error)
	assert.Equal(t, []string{model.NoteStarted, model.NoteCompleted}, job.Updates)

	select {
	case saved := <-archived:
		assert.Equal(t, model.JobStatusCompleted, saved.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("job was not archived")
	}

	require.Eventually(t, func() bool {
		for _, m := range h.rec.Named(metrics.JobTransition) {
			if m.Tags["transition"] == "completed" && m.Tags["result"] == metrics.ResultSuccess {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestRunner_EmptyResultBecomesObject(t *testing.T) {
	exec := executorFunc(func(context.Context, string, model.AgentParams) model.Outcome {
		return model.Success(nil)
	})
	h := newHarness(t, RunnerOptions{Executor: exec})
	job := h.waitTerminal(t, h.submit(t, "task"))

	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.JSONEq(t, `{}`, string(job.Result))
	assert.True(t, job.Artifacts.Empty())
}

func TestRunner_FailureOutcome(t *testing.T) {
	var (
		mu       sync.Mutex
		payloads []notify.JobFailurePayload
	)
	notifier := failurenotifier.NewService(failurenotifier.Options{Sinks: []failurenotifier.SinkRegistration{{
		Name: "test",
		Sink: notify.SinkFunc(func(_ context.Context, p notify.JobFailurePayload) error {
			mu.Lock()
			defer mu.Unlock()
			payloads = append(payloads, p)
			return nil
		}),
	}}})

	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)
	exec.EXPECT().Execute(gomock.Any(), "task", gomock.Any()).
		Return(model.Failure(errors.New("agent crashed")))

	h := newHarness(t, RunnerOptions{Executor: exec, FailureNotifier: notifier})
	id := h.submit(t, "task")
	job := h.waitTerminal(t, id)

	assert.Equal(t, model.JobStatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, "agent crashed", *job.Error)
	assert.Nil(t, job.Result)
	assert.True(t, job.Artifacts.Empty())
	assert.Equal(t, []string{model.NoteStarted, "Task failed: agent crashed"}, job.Updates)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(payloads) == 1
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, id, payloads[0].JobID)
	assert.Equal(t, "task", payloads[0].Task)
	mu.Unlock()
}

func TestRunner_ArtifactStorageFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)
	store := mocks.NewMockArtifactStore(ctrl)

	exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return(model.Success(
		json.RawMessage(`{}`),
		model.RawArtifact{Kind: model.ArtifactScreenshot, Data: []byte("png")},
	))
	store.EXPECT().Persist(gomock.Any(), model.ArtifactScreenshot, gomock.Any(), gomock.Any()).
		Return("", apperrors.Storage(errors.New("disk full"), "store %s artifact", model.ArtifactScreenshot))

	h := newHarness(t, RunnerOptions{Executor: exec, Artifacts: store})
	job := h.waitTerminal(t, h.submit(t, "task"))

	assert.Equal(t, model.JobStatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, "store screenshot artifact: disk full", *job.Error)
	assert.Nil(t, job.Result)
	assert.True(t, job.Artifacts.Empty())
}

func TestRunner_InvalidResult(t *testing.T) {
	exec := executorFunc(func(context.Context, string, model.AgentParams) model.Outcome {
		return model.Success(json.RawMessage(`{not json`))
	})
	h := newHarness(t, RunnerOptions{Executor: exec})
	job := h.waitTerminal(t, h.submit(t, "task"))

	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Contains(t, *job.Error, "unusable result")
}

func TestRunner_ParamsFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)

	h := newHarness(t, RunnerOptions{
		Executor: exec,
		Params:   staticParams{err: errors.New("config unreadable")},
	})
	job := h.waitTerminal(t, h.submit(t, "task"))

	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Equal(t, "load agent params: config unreadable", *job.Error)
}

func TestRunner_PanicIsContained(t *testing.T) {
	exec := executorFunc(func(_ context.Context, input string, _ model.AgentParams) model.Outcome {
		if input == "explode" {
			panic("nil map write")
		}
		return model.Success(json.RawMessage(`{"ok":true}`))
	})
	h := newHarness(t, RunnerOptions{Executor: exec, Concurrency: 1})

	bad := h.waitTerminal(t, h.submit(t, "explode"))
	assert.Equal(t, model.JobStatusFailed, bad.Status)
	assert.Contains(t, *bad.Error, "executor panic: nil map write")

	good := h.waitTerminal(t, h.submit(t, "fine"))
	assert.Equal(t, model.JobStatusCompleted, good.Status)
}

func TestRunner_Timeout(t *testing.T) {
	exec := executorFunc(func(context.Context, string, model.AgentParams) model.Outcome {
		// Ignores its context on purpose.
		time.Sleep(500 * time.Millisecond)
		return model.Success(nil)
	})
	h := newHarness(t, RunnerOptions{Executor: exec, JobTimeout: 20 * time.Millisecond})
	job := h.waitTerminal(t, h.submit(t, "slow"))

	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Contains(t, *job.Error, "execution timed out after 20ms")
	assert.Nil(t, job.Result)
}

func TestRunner_UnknownJobIsSkipped(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl) // no calls expected

	h := newHarness(t, RunnerOptions{Executor: exec})
	require.NoError(t, h.runner.Dispatch(context.Background(), "ghost", "task"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.runner.Shutdown(ctx))
	_, ok := h.reg.Get("ghost")
	assert.False(t, ok)
}

func TestRunner_BackpressureRejectsWhenQueueFull(t *testing.T) {
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	exec := executorFunc(func(context.Context, string, model.AgentParams) model.Outcome {
		started <- struct{}{}
		<-release
		return model.Success(nil)
	})
	h := newHarness(t, RunnerOptions{Executor: exec, Concurrency: 1, QueueSize: 1})

	first := h.submit(t, "first")
	<-started

	// The loop takes the second job off the queue and blocks on the concurrency limit.
	second := h.submit(t, "second")
	require.Eventually(t, func() bool { return h.runner.Stats().Queued == 0 }, time.Second, time.Millisecond)

	third := h.submit(t, "third")
	assert.Equal(t, 1, h.runner.Stats().Queued)
	assert.Equal(t, int64(1), h.runner.Stats().Running)

	job, err := h.reg.Create("fourth")
	require.NoError(t, err)
	err = h.runner.Dispatch(context.Background(), job.ID, "fourth")
	require.ErrorIs(t, err, ErrQueueFull)
	assert.True(t, apperrors.IsUnavailable(err))

	close(release)
	for _, id := range []string{first, second, third} {
		assert.Equal(t, model.JobStatusCompleted, h.waitTerminal(t, id).Status)
	}

	rejected := 0
	for _, m := range h.rec.Named(metrics.JobTransition) {
		if m.Tags["result"] == metrics.ResultRejected {
			rejected++
		}
	}
	assert.Equal(t, 1, rejected)
}

func TestRunner_UnboundedBurstIsNeverRejected(t *testing.T) {
	exec := executorFunc(func(context.Context, string, model.AgentParams) model.Outcome {
		time.Sleep(5 * time.Millisecond)
		return model.Success(nil)
	})
	// A one-slot buffer makes every burst outrun the loop.
	h := newHarness(t, RunnerOptions{Executor: exec, QueueSize: 1})

	const n = 1000
	ids := make([]string, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			job, err := h.reg.Create(fmt.Sprintf("burst %d", i))
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			ids[i] = job.ID
			if err := h.runner.Dispatch(context.Background(), job.ID, job.Input); err != nil {
				t.Errorf("dispatch %d: %v", i, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	for _, id := range ids {
		if id == "" {
			continue
		}
		assert.Equal(t, model.JobStatusCompleted, h.waitTerminal(t, id).Status)
	}
	for _, m := range h.rec.Named(metrics.JobTransition) {
		assert.NotEqual(t, metrics.ResultRejected, m.Tags["result"])
	}
}

func TestRunner_DispatchLifecycle(t *testing.T) {
	reg := data.NewJobRegistry(data.JobRegistryOptions{})
	exec := executorFunc(func(context.Context, string, model.AgentParams) model.Outcome { return model.Success(nil) })
	r := MustNewRunner(RunnerOptions{Registry: reg, Executor: exec, Artifacts: &memStore{}, Params: staticParams{}})

	require.ErrorIs(t, r.Dispatch(context.Background(), "id", "task"), ErrStopped)

	r.Start(context.Background())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, r.Dispatch(ctx, "id", "task"), context.Canceled)

	require.NoError(t, r.Shutdown(context.Background()))
	require.NoError(t, r.Shutdown(context.Background()))
	require.ErrorIs(t, r.Dispatch(context.Background(), "id", "task"), ErrStopped)
}

func TestRunner_ShutdownDeadlineCancelsRunningJobs(t *testing.T) {
	exec := executorFunc(func(ctx context.Context, _ string, _ model.AgentParams) model.Outcome {
		<-ctx.Done()
		return model.Failure(ctx.Err())
	})
	reg := data.NewJobRegistry(data.JobRegistryOptions{})
	r := MustNewRunner(RunnerOptions{Registry: reg, Executor: exec, Artifacts: &memStore{}, Params: staticParams{}})
	r.Start(context.Background())

	job, err := reg.Create("stuck")
	require.NoError(t, err)
	require.NoError(t, r.Dispatch(context.Background(), job.ID, "stuck"))
	require.Eventually(t, func() bool { return r.Stats().Running == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, r.Shutdown(ctx), context.DeadlineExceeded)

	got, _ := reg.Get(job.ID)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Contains(t, *got.Error, "execution canceled")
}

func TestRunner_ShutdownDrainsQueuedJobs(t *testing.T) {
	exec := executorFunc(func(context.Context, string, model.AgentParams) model.Outcome {
		time.Sleep(5 * time.Millisecond)
		return model.Success(nil)
	})
	reg := data.NewJobRegistry(data.JobRegistryOptions{})
	r := MustNewRunner(RunnerOptions{
		Registry: reg, Executor: exec, Artifacts: &memStore{}, Params: staticParams{}, Concurrency: 2,
	})
	r.Start(context.Background())

	for i := range 10 {
		job, err := reg.Create(fmt.Sprintf("task %d", i))
		require.NoError(t, err)
		require.NoError(t, r.Dispatch(context.Background(), job.ID, job.Input))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))

	for _, job := range reg.List() {
		assert.Equal(t, model.JobStatusCompleted, job.Status, job.ID)
	}
}

func TestRunner_FiftyConcurrentJobs(t *testing.T) {
	exec := executorFunc(func(_ context.Context, input string, _ model.AgentParams) model.Outcome {
		var n int
		_, _ = fmt.Sscanf(input, "job %d", &n)
		time.Sleep(time.Duration(n%7) * 10 * time.Millisecond)
		if n%5 == 0 {
			return model.Failure(fmt.Errorf("job %d refused", n))
		}
		return model.Success(json.RawMessage(fmt.Sprintf(`{"n":%d}`, n)))
	})
	h := newHarness(t, RunnerOptions{Executor: exec})

	const n = 50
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := h.reg.Create(fmt.Sprintf("job %d", i))
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			ids[i] = job.ID
			if err := h.runner.Dispatch(context.Background(), job.ID, job.Input); err != nil {
				t.Errorf("dispatch: %v", err)
			}
		}()
	}

	// Poll one job while everything runs; status must never regress.
	wg.Wait()
	watch := ids[7]
	prev := model.JobStatusPending
	require.Eventually(t, func() bool {
		job, _ := h.reg.Get(watch)
		if job.Status.Precedes(prev) {
			t.Errorf("status regressed from %s to %s", prev, job.Status)
		}
		prev = job.Status
		return job.Status.Terminal()
	}, 5*time.Second, time.Millisecond)

	for i, id := range ids {
		job := h.waitTerminal(t, id)
		if i%5 == 0 {
			assert.Equal(t, model.JobStatusFailed, job.Status)
			assert.Equal(t, []string{model.NoteStarted, model.FailedNote(fmt.Sprintf("job %d refused", i))}, job.Updates)
			assert.Nil(t, job.Result)
			continue
		}
		assert.Equal(t, model.JobStatusCompleted, job.Status)
		assert.Equal(t, []string{model.NoteStarted, model.NoteCompleted}, job.Updates)
		assert.JSONEq(t, fmt.Sprintf(`{"n":%d}`, i), string(job.Result))
		assert.Nil(t, job.Error)
	}
}
