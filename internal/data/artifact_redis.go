package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/mmk-agent-api/internal/domain/model"
	apperrors "github.com/target/mmk-agent-api/internal/errors"
)

const (
	defaultArtifactKeyPrefix = "agent:artifact"
	defaultArtifactTTL       = 24 * time.Hour
)

// RedisArtifactStoreOptions configures a Redis-backed artifact store.
type RedisArtifactStoreOptions struct {
	Client redis.UniversalClient
	// KeyPrefix namespaces keys; defaults to "agent:artifact".
	KeyPrefix string
	// TTL bounds how long artifacts are kept. Zero uses 24h; negative keeps them forever.
	TTL   time.Duration
	Retry WriteRetryConfig
}

// RedisArtifactStore keeps artifacts as plain string values with a TTL.
type RedisArtifactStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  WriteRetryConfig
}

// NewRedisArtifactStore constructs a RedisArtifactStore.
func NewRedisArtifactStore(opts RedisArtifactStoreOptions) (*RedisArtifactStore, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = defaultArtifactKeyPrefix
	}
	ttl := opts.TTL
	switch {
	case ttl == 0:
		ttl = defaultArtifactTTL
	case ttl < 0:
		ttl = 0
	}
	return &RedisArtifactStore{client: opts.Client, prefix: prefix, ttl: ttl, retry: opts.Retry}, nil
}

func (r *RedisArtifactStore) key(kind model.ArtifactKind, name string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, kind, name)
}

// Persist stores data under the artifact key and returns the artifact name.
func (r *RedisArtifactStore) Persist(
	ctx context.Context,
	kind model.ArtifactKind,
	jobID string,
	data []byte,
) (string, error) {
	if err := checkPersist(kind, jobID, data); err != nil {
		return "", storageErr(err, kind)
	}
	name := kind.Filename(jobID)
	key := r.key(kind, name)

	err := retryWrite(ctx, r.retry, func(ctx context.Context) error {
		return r.client.Set(ctx, key, data, r.ttl).Err()
	})
	if err != nil {
		return "", storageErr(fmt.Errorf("redis set: %w", err), kind)
	}
	return name, nil
}

// Open returns the artifact stored under name.
func (r *RedisArtifactStore) Open(ctx context.Context, kind model.ArtifactKind, name string) ([]byte, error) {
	if err := checkOpen(kind, name); err != nil {
		return nil, err
	}
	result, err := r.client.Get(ctx, r.key(kind, name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("File not found")
		}
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeStorage, "redis get %s artifact", kind)
	}
	return result, nil
}

// Health checks the health of the Redis connection.
func (r *RedisArtifactStore) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
