// Package metrics emits the job lifecycle metrics of the execution bridge.
package metrics

import (
	"time"

	obserrors "github.com/target/mmk-agent-api/internal/observability/errors"
	"github.com/target/mmk-agent-api/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultRejected = "rejected"
)

// Metric names.
const (
	JobTransition = "job.transition"
	JobDuration   = "job.duration"
)

// JobMetric captures details about a job lifecycle event for metric emission.
type JobMetric struct {
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle emits standardised job lifecycle metrics.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Err != nil && in.Result != ResultSuccess {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count(JobTransition, 1, tags)

	if in.Duration > 0 {
		sink.Timing(JobDuration, in.Duration, cloneTags(tags))
	}
}

func cloneTags(src map[string]string) map[string]string {
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
