// Package model defines the core data types shared by the agent job service.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the current status of a job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobStatus string

const (
	// JobStatusPending indicates a job has been accepted but not started.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the executor is working on the job.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job finished with an error.
	JobStatusFailed JobStatus = "failed"
)

// Update notes appended by the execution bridge.
const (
	NoteStarted   = "Task started"
	NoteCompleted = "Task completed successfully"
	noteFailedFmt = "Task failed: %s"
)

// FailedNote formats the update note recorded when a job fails.
func FailedNote(errMsg string) string {
	return fmt.Sprintf(noteFailedFmt, errMsg)
}

var (
	// ErrJobTerminal is returned when an update targets a job that already finished.
	ErrJobTerminal = errors.New("job is in a terminal state")
	// ErrInvalidTransition is returned for status changes that move backwards.
	ErrInvalidTransition = errors.New("invalid job status transition")
	// ErrInvalidUpdate is returned when result, artifacts or error accompany the wrong status.
	ErrInvalidUpdate = errors.New("invalid job update")
)

// UnmarshalText implements encoding.TextUnmarshaler for JobStatus.
func (s *JobStatus) UnmarshalText(text []byte) error {
	v := JobStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid JobStatus: %q", v)
	}
	*s = v
	return nil
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusRunning || s == JobStatusCompleted ||
		s == JobStatusFailed
}

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// rank orders statuses: pending < running < {completed, failed}.
func (s JobStatus) rank() int {
	switch s {
	case JobStatusPending:
		return 0
	case JobStatusRunning:
		return 1
	case JobStatusCompleted, JobStatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether a job in status s may move to next.
// Re-asserting the current non-terminal status is allowed and changes nothing.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if !next.Valid() || s.Terminal() {
		return false
	}
	return next.rank() >= s.rank()
}

// Precedes reports whether s is strictly earlier than next in the lifecycle.
func (s JobStatus) Precedes(next JobStatus) bool {
	return s.rank() < next.rank()
}

// Artifacts holds locators for files produced while a job ran.
// Field names keep the JSON keys the HTTP API has always exposed.
type Artifacts struct {
	Screenshot *string `json:"screenshot_path"`
	Animation  *string `json:"gif_path"`
}

// Empty reports whether no artifact has been recorded.
func (a Artifacts) Empty() bool {
	return a.Screenshot == nil && a.Animation == nil
}

// Set records locator for the given kind.
func (a *Artifacts) Set(kind ArtifactKind, locator string) {
	loc := locator
	switch kind {
	case ArtifactScreenshot:
		a.Screenshot = &loc
	case ArtifactAnimation:
		a.Animation = &loc
	}
}

func (a Artifacts) clone() Artifacts {
	return Artifacts{
		Screenshot: cloneString(a.Screenshot),
		Animation:  cloneString(a.Animation),
	}
}

// Job is the record for one submitted agent task.
type Job struct {
	ID        string          `json:"id"`
	Status    JobStatus       `json:"status"`
	Input     string          `json:"task"`
	CreatedAt time.Time       `json:"created_at"`
	Updates   []string        `json:"updates"`
	Result    json.RawMessage `json:"result"`
	Artifacts
	Error *string `json:"error"`
}

// NewJob builds a pending job with no progress.
func NewJob(id, input string, createdAt time.Time) *Job {
	return &Job{
		ID:        id,
		Status:    JobStatusPending,
		Input:     input,
		CreatedAt: createdAt,
		Updates:   []string{},
	}
}

// Clone returns a deep copy safe to hand to callers outside the registry lock.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	out.Updates = append(make([]string, 0, len(j.Updates)), j.Updates...)
	if j.Result != nil {
		out.Result = append(json.RawMessage(nil), j.Result...)
	}
	out.Artifacts = j.Artifacts.clone()
	out.Error = cloneString(j.Error)
	return &out
}

// JobUpdate is a partial update applied atomically to a Job.
// Zero-valued fields are left untouched.
type JobUpdate struct {
	Status    JobStatus
	Note      string
	Result    json.RawMessage
	Artifacts Artifacts
	Error     string
}

// Validate checks u against the current state of j without mutating it.
func (j *Job) Validate(u JobUpdate) error {
	if j.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrJobTerminal, j.Status)
	}
	if u.Status != "" && !j.Status.CanTransition(u.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, u.Status)
	}
	if (len(u.Result) > 0 || !u.Artifacts.Empty()) && u.Status != JobStatusCompleted {
		return fmt.Errorf("%w: result and artifacts require status %s", ErrInvalidUpdate, JobStatusCompleted)
	}
	if u.Error != "" && u.Status != JobStatusFailed {
		return fmt.Errorf("%w: error requires status %s", ErrInvalidUpdate, JobStatusFailed)
	}
	if u.Status == JobStatusFailed && u.Error == "" {
		return fmt.Errorf("%w: failed status requires an error", ErrInvalidUpdate)
	}
	return nil
}

// Apply validates and applies u to j. Either every field is applied or none is.
func (j *Job) Apply(u JobUpdate) error {
	if err := j.Validate(u); err != nil {
		return err
	}
	if u.Status != "" {
		j.Status = u.Status
	}
	if u.Note != "" {
		j.Updates = append(j.Updates, u.Note)
	}
	if len(u.Result) > 0 {
		j.Result = append(json.RawMessage(nil), u.Result...)
	}
	if !u.Artifacts.Empty() {
		j.Artifacts = u.Artifacts.clone()
	}
	if u.Error != "" {
		msg := u.Error
		j.Error = &msg
	}
	return nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
