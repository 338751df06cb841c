package config

import "time"

const (
	defaultRunnerQueueSize       = 256
	defaultRunnerShutdownTimeout = 15 * time.Second
)

// RunnerConfig controls the execution bridge.
type RunnerConfig struct {
	// Concurrency caps simultaneously executing jobs. 0 means unbounded.
	Concurrency int `env:"RUNNER_CONCURRENCY" envDefault:"0"`
	// QueueSize is the dispatch hand-off buffer. With RUNNER_CONCURRENCY>0, Submit fails with 503 once it is full.
	QueueSize int `env:"RUNNER_QUEUE_SIZE" envDefault:"256"`
	// JobTimeout bounds each executor call. 0 disables the bound.
	JobTimeout time.Duration `env:"RUNNER_JOB_TIMEOUT" envDefault:"0s"`
	// ShutdownTimeout is how long shutdown waits for in-flight jobs before cancelling them.
	ShutdownTimeout time.Duration `env:"RUNNER_SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// Sanitize applies guardrails to runner configuration values.
func (c *RunnerConfig) Sanitize() {
	if c.Concurrency < 0 {
		c.Concurrency = 0
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultRunnerQueueSize
	}
	if c.JobTimeout < 0 {
		c.JobTimeout = 0
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultRunnerShutdownTimeout
	}
}
