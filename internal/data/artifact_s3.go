package data

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/target/mmk-agent-api/internal/domain/model"
	apperrors "github.com/target/mmk-agent-api/internal/errors"
)

// S3API is the subset of the S3 client used by S3ArtifactStore.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3ConnectConfig describes how to reach an S3-compatible endpoint.
type S3ConnectConfig struct {
	// Endpoint overrides the AWS endpoint, e.g. "http://127.0.0.1:9000" for MinIO.
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3Client builds an S3 client from static settings.
func NewS3Client(cfg S3ConnectConfig) *s3.Client {
	return s3.NewFromConfig(aws.Config{Region: cfg.Region}, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.AccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		}
	})
}

// S3ArtifactStoreOptions configures an S3 artifact store.
type S3ArtifactStoreOptions struct {
	Client S3API
	Bucket string
	Prefix string
	Retry  WriteRetryConfig
}

// S3ArtifactStore keeps artifacts under <prefix>/<kind>/<jobID>.<ext> in one bucket.
type S3ArtifactStore struct {
	client S3API
	bucket string
	prefix string
	retry  WriteRetryConfig
}

// NewS3ArtifactStore constructs an S3ArtifactStore.
func NewS3ArtifactStore(opts S3ArtifactStoreOptions) (*S3ArtifactStore, error) {
	if opts.Client == nil {
		return nil, errors.New("s3 client is required")
	}
	if opts.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	return &S3ArtifactStore{
		client: opts.Client,
		bucket: opts.Bucket,
		prefix: opts.Prefix,
		retry:  opts.Retry,
	}, nil
}

func (s *S3ArtifactStore) key(kind model.ArtifactKind, name string) string {
	return path.Join(s.prefix, string(kind), name)
}

// Persist uploads data and returns the object name.
func (s *S3ArtifactStore) Persist(
	ctx context.Context,
	kind model.ArtifactKind,
	jobID string,
	data []byte,
) (string, error) {
	if err := checkPersist(kind, jobID, data); err != nil {
		return "", storageErr(err, kind)
	}
	name := kind.Filename(jobID)
	key := s.key(kind, name)

	err := retryWrite(ctx, s.retry, func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(kind.ContentType()),
		})
		return err
	})
	if err != nil {
		return "", storageErr(fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err), kind)
	}
	return name, nil
}

// Open downloads the object stored under name.
func (s *S3ArtifactStore) Open(ctx context.Context, kind model.ArtifactKind, name string) ([]byte, error) {
	if err := checkOpen(kind, name); err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(kind, name)),
	})
	if isS3NotFound(err) {
		return nil, apperrors.NotFound("File not found")
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeStorage, "read %s artifact", kind)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeStorage, "read %s artifact", kind)
	}
	return data, nil
}

func isS3NotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
