package config

import (
	"strings"
	"time"
)

// ArtifactBackend selects where screenshots and animations are stored.
type ArtifactBackend string

const (
	ArtifactBackendFS    ArtifactBackend = "fs"
	ArtifactBackendS3    ArtifactBackend = "s3"
	ArtifactBackendRedis ArtifactBackend = "redis"
)

// ArtifactsConfig contains artifact storage configuration.
type ArtifactsConfig struct {
	Backend ArtifactBackend `env:"ARTIFACT_BACKEND" envDefault:"fs"`

	// Dir is the root directory for the fs backend.
	Dir string `env:"ARTIFACT_DIR" envDefault:"./artifacts"`

	S3 S3ArtifactConfig `envPrefix:"ARTIFACT_S3_"`

	// RedisTTL expires artifacts stored in Redis. Negative disables expiry.
	RedisTTL time.Duration `env:"ARTIFACT_REDIS_TTL" envDefault:"24h"`

	// WriteRetries is how many times a failed write is retried.
	WriteRetries int `env:"ARTIFACT_WRITE_RETRIES" envDefault:"3"`
}

// S3ArtifactConfig configures the s3 backend.
type S3ArtifactConfig struct {
	Bucket    string `env:"BUCKET"`
	Prefix    string `env:"PREFIX"`
	Region    string `env:"REGION"     envDefault:"us-east-1"`
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
}

// Sanitize applies guardrails to artifact configuration values.
func (c *ArtifactsConfig) Sanitize() {
	c.Backend = ArtifactBackend(strings.ToLower(strings.TrimSpace(string(c.Backend))))
	switch c.Backend {
	case ArtifactBackendFS, ArtifactBackendS3, ArtifactBackendRedis:
	default:
		c.Backend = ArtifactBackendFS
	}
	if c.Dir = strings.TrimSpace(c.Dir); c.Dir == "" {
		c.Dir = "./artifacts"
	}
	if c.WriteRetries < 0 {
		c.WriteRetries = 0
	}
	c.S3.Bucket = strings.TrimSpace(c.S3.Bucket)
	c.S3.Prefix = strings.Trim(strings.TrimSpace(c.S3.Prefix), "/")
	c.S3.Endpoint = strings.TrimSpace(c.S3.Endpoint)
	if c.S3.Region = strings.TrimSpace(c.S3.Region); c.S3.Region == "" {
		c.S3.Region = "us-east-1"
	}
}
