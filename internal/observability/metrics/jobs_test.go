package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/target/mmk-agent-api/internal/errors"
	"github.com/target/mmk-agent-api/internal/observability/statsd"
)

func TestEmitJobLifecycle_Success(t *testing.T) {
	var rec statsd.Recorder
	EmitJobLifecycle(&rec, JobMetric{Transition: "completed", Result: ResultSuccess, Duration: 2 * time.Second})

	counts := rec.Named(JobTransition)
	require.Len(t, counts, 1)
	assert.Equal(t, map[string]string{"transition": "completed", "result": "success"}, counts[0].Tags)

	timings := rec.Named(JobDuration)
	require.Len(t, timings, 1)
	assert.InDelta(t, 2000, timings[0].Value, 0.001)
}

func TestEmitJobLifecycle_ErrorClass(t *testing.T) {
	var rec statsd.Recorder
	EmitJobLifecycle(&rec, JobMetric{
		Transition: "failed",
		Result:     ResultError,
		Err:        apperrors.Execution(errors.New("agent 500"), "agent call"),
	})

	counts := rec.Named(JobTransition)
	require.Len(t, counts, 1)
	assert.Equal(t, "execution", counts[0].Tags["error_class"])
	assert.Empty(t, rec.Named(JobDuration))
}

func TestEmitJobLifecycle_NilSink(t *testing.T) {
	assert.NotPanics(t, func() {
		EmitJobLifecycle(nil, JobMetric{Transition: "failed"})
	})
}
