package data

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/target/mmk-agent-api/internal/domain/model"
	apperrors "github.com/target/mmk-agent-api/internal/errors"
)

const (
	artifactDirPerm  os.FileMode = 0o755
	artifactFilePerm os.FileMode = 0o644

	// stagingDir holds partial writes outside every served kind directory.
	stagingDir = ".staging"
)

// FSArtifactStoreOptions configures a filesystem artifact store.
type FSArtifactStoreOptions struct {
	Root  string
	Retry WriteRetryConfig
}

// FSArtifactStore keeps artifacts under Root/<kind>/<jobID>.<ext>.
// Writes are staged in Root/.staging and renamed into place.
type FSArtifactStore struct {
	root  string
	retry WriteRetryConfig
}

// NewFSArtifactStore creates the per-kind directories under opts.Root.
func NewFSArtifactStore(opts FSArtifactStoreOptions) (*FSArtifactStore, error) {
	if opts.Root == "" {
		return nil, errors.New("artifact root directory is required")
	}
	dirs := []string{stagingDir}
	for _, kind := range model.ArtifactKinds() {
		dirs = append(dirs, string(kind))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(filepath.Join(opts.Root, dir), artifactDirPerm); err != nil {
			return nil, fmt.Errorf("create artifact dir: %w", err)
		}
	}
	return &FSArtifactStore{root: opts.Root, retry: opts.Retry}, nil
}

func (s *FSArtifactStore) path(kind model.ArtifactKind, name string) string {
	return filepath.Join(s.root, string(kind), name)
}

// Persist writes data atomically (temp file then rename) and returns the file name.
func (s *FSArtifactStore) Persist(
	ctx context.Context,
	kind model.ArtifactKind,
	jobID string,
	data []byte,
) (string, error) {
	if err := checkPersist(kind, jobID, data); err != nil {
		return "", storageErr(err, kind)
	}
	name := kind.Filename(jobID)
	target := s.path(kind, name)

	err := retryWrite(ctx, s.retry, func(context.Context) error {
		return writeFileAtomic(filepath.Join(s.root, stagingDir), target, data)
	})
	if err != nil {
		return "", storageErr(err, kind)
	}
	return name, nil
}

func writeFileAtomic(staging, target string, data []byte) error {
	for _, dir := range []string{staging, filepath.Dir(target)} {
		if err := os.MkdirAll(dir, artifactDirPerm); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(staging, "artifact-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err = os.Chmod(tmpName, artifactFilePerm); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err = os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// Open reads the artifact stored under name.
func (s *FSArtifactStore) Open(_ context.Context, kind model.ArtifactKind, name string) ([]byte, error) {
	if err := checkOpen(kind, name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(kind, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NotFound("File not found")
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeStorage, "read %s artifact", kind)
	}
	return data, nil
}
