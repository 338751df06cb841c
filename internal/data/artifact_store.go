package data

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	retry "github.com/sethvargo/go-retry"
	"github.com/target/mmk-agent-api/internal/domain/model"
	apperrors "github.com/target/mmk-agent-api/internal/errors"
)

const (
	defaultWriteRetries = 3
	defaultWriteBackoff = 200 * time.Millisecond
)

// WriteRetryConfig controls how artifact writes are retried.
type WriteRetryConfig struct {
	// MaxRetries is the number of retries after the first attempt. Negative disables retries.
	MaxRetries int
	// Backoff is the base of the Fibonacci backoff.
	Backoff time.Duration
}

func (c WriteRetryConfig) withDefaults() WriteRetryConfig {
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultWriteRetries
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.Backoff <= 0 {
		c.Backoff = defaultWriteBackoff
	}
	return c
}

// retryWrite runs write with Fibonacci backoff, retrying only transient failures.
func retryWrite(ctx context.Context, cfg WriteRetryConfig, write func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()
	b := retry.WithMaxRetries(uint64(cfg.MaxRetries), retry.NewFibonacci(cfg.Backoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := write(ctx)
		if shouldRetry(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// shouldRetry reports whether err is transient.
func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, os.ErrExist) {
		return false
	}
	switch {
	case errors.Is(err, syscall.EROFS),
		errors.Is(err, syscall.ENOSPC),
		errors.Is(err, syscall.EDQUOT),
		errors.Is(err, syscall.EACCES),
		errors.Is(err, syscall.EPERM),
		errors.Is(err, syscall.ENAMETOOLONG),
		errors.Is(err, syscall.ENOTDIR),
		errors.Is(err, syscall.EISDIR),
		errors.Is(err, syscall.EINVAL):
		return false
	}
	return true
}

// checkPersist validates Persist arguments shared by every store.
func checkPersist(kind model.ArtifactKind, jobID string, data []byte) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidArtifactKind, kind)
	}
	if jobID == "" {
		return ErrJobIDRequired
	}
	if len(data) == 0 {
		return ErrEmptyArtifact
	}
	return nil
}

// checkOpen validates Open arguments and maps bad names to not_found.
func checkOpen(kind model.ArtifactKind, name string) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidArtifactKind, kind)
	}
	if !model.ValidArtifactName(name) {
		return apperrors.NotFound("File not found")
	}
	return nil
}

func storageErr(err error, kind model.ArtifactKind) error {
	return apperrors.Storage(err, "store %s artifact", kind)
}
