package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// Job archive sentinels.
	ErrArchiveNotConfigured = errors.New("job archive repository not configured")
	ErrJobIDRequired        = errors.New("job_id is required")

	// Artifact store sentinels.
	ErrInvalidArtifactKind = errors.New("invalid artifact kind")
	ErrEmptyArtifact       = errors.New("artifact data is empty")
)
