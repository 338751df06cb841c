package failurenotifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-agent-api/internal/observability/notify"
)

func TestService_FansOutToAllSinks(t *testing.T) {
	var mu sync.Mutex
	got := map[string]notify.JobFailurePayload{}
	record := func(name string) notify.Sink {
		return notify.SinkFunc(func(_ context.Context, p notify.JobFailurePayload) error {
			mu.Lock()
			defer mu.Unlock()
			got[name] = p
			return nil
		})
	}

	svc := NewService(Options{Sinks: []SinkRegistration{
		{Name: "a", Sink: record("a")},
		{Name: "b", Sink: record("b")},
		{Name: "nil"},
	}})
	require.True(t, svc.Enabled())

	svc.NotifyJobFailure(context.Background(), notify.JobFailurePayload{JobID: "job-1", Error: "boom"})

	require.Len(t, got, 2)
	for _, p := range got {
		assert.Equal(t, "job-1", p.JobID)
		assert.Equal(t, notify.SeverityCritical, p.Severity)
		assert.False(t, p.OccurredAt.IsZero())
	}
}

func TestService_SinkErrorsAreContained(t *testing.T) {
	calls := 0
	var mu sync.Mutex
	svc := NewService(Options{Sinks: []SinkRegistration{
		{Sink: notify.SinkFunc(func(context.Context, notify.JobFailurePayload) error {
			return errors.New("webhook down")
		})},
		{Sink: notify.SinkFunc(func(context.Context, notify.JobFailurePayload) error {
			mu.Lock()
			calls++
			mu.Unlock()
			return nil
		})},
	}})

	assert.NotPanics(t, func() {
		svc.NotifyJobFailure(context.Background(), notify.JobFailurePayload{JobID: "job-1"})
	})
	assert.Equal(t, 1, calls)
}

func TestService_Timeout(t *testing.T) {
	svc := NewService(Options{
		Timeout: 20 * time.Millisecond,
		Sinks: []SinkRegistration{{Sink: notify.SinkFunc(func(ctx context.Context, _ notify.JobFailurePayload) error {
			<-ctx.Done()
			return ctx.Err()
		})}},
	})

	start := time.Now()
	svc.NotifyJobFailure(context.Background(), notify.JobFailurePayload{JobID: "job-1"})
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestService_NoSinks(t *testing.T) {
	var nilSvc *Service
	assert.False(t, nilSvc.Enabled())
	nilSvc.NotifyJobFailure(context.Background(), notify.JobFailurePayload{})

	svc := NewService(Options{})
	assert.False(t, svc.Enabled())
}
