package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-agent-api/config"
	"github.com/target/mmk-agent-api/internal/core"
	"github.com/target/mmk-agent-api/internal/data"
)

// ArtifactStoreDeps groups inputs for BuildArtifactStore.
type ArtifactStoreDeps struct {
	Config config.ArtifactsConfig
	// Redis is required when Config.Backend is redis.
	Redis  redis.UniversalClient
	Logger *slog.Logger
}

// BuildArtifactStore returns the artifact store selected by ARTIFACT_BACKEND.
//
//nolint:ireturn // callers depend on the port, not the backend.
func BuildArtifactStore(ctx context.Context, deps ArtifactStoreDeps) (core.ArtifactStore, error) {
	cfg := deps.Config
	retry := data.WriteRetryConfig{MaxRetries: cfg.WriteRetries}
	if cfg.WriteRetries == 0 {
		retry.MaxRetries = -1
	}

	var (
		store core.ArtifactStore
		err   error
		attrs []any
	)
	switch cfg.Backend {
	case config.ArtifactBackendS3:
		store, err = data.NewS3ArtifactStore(data.S3ArtifactStoreOptions{
			Client: data.NewS3Client(data.S3ConnectConfig{
				Endpoint:  cfg.S3.Endpoint,
				Region:    cfg.S3.Region,
				AccessKey: cfg.S3.AccessKey,
				SecretKey: cfg.S3.SecretKey,
			}),
			Bucket: cfg.S3.Bucket,
			Prefix: cfg.S3.Prefix,
			Retry:  retry,
		})
		attrs = []any{"bucket", cfg.S3.Bucket, "prefix", cfg.S3.Prefix}
	case config.ArtifactBackendRedis:
		if deps.Redis == nil {
			return nil, errors.New("redis artifact backend requires a redis connection")
		}
		store, err = data.NewRedisArtifactStore(data.RedisArtifactStoreOptions{
			Client: deps.Redis,
			TTL:    cfg.RedisTTL,
			Retry:  retry,
		})
		attrs = []any{"ttl", cfg.RedisTTL}
	default:
		store, err = data.NewFSArtifactStore(data.FSArtifactStoreOptions{Root: cfg.Dir, Retry: retry})
		attrs = []any{"dir", cfg.Dir}
	}
	if err != nil {
		return nil, fmt.Errorf("build %s artifact store: %w", cfg.Backend, err)
	}

	if deps.Logger != nil {
		deps.Logger.InfoContext(ctx, "artifact store ready", append([]any{"backend", cfg.Backend}, attrs...)...)
	}
	return store, nil
}
