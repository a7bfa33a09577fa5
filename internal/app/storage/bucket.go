/*
Package storage keeps the portal's media (gallery photos and news covers) in an
S3-compatible bucket.

Bucket is the raw object API. Media sits on top of it and knows the key layout,
the accepted image types and how public URLs are formed.
*/
package storage

import (
	"context"
	"io"
	"time"
)

// BucketConfig locates an S3-compatible bucket.
type BucketConfig struct {
	Name            string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Object is one listed bucket object.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Bucket is the object API Media needs.
type Bucket interface {
	// PresignUpload returns a URL a browser can PUT exactly size bytes of mimeType to.
	PresignUpload(ctx context.Context, key, mimeType string, size int64, ttl time.Duration) (string, error)

	// PresignDownload returns a temporary GET URL for key.
	PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error)

	Upload(ctx context.Context, key, mimeType string, body io.Reader) error

	// List returns up to limit objects under prefix, newest first.
	List(ctx context.Context, prefix string, limit int) ([]Object, error)

	Delete(ctx context.Context, key string) error
}

// OpenBucket returns the S3 implementation of Bucket for cfg.
func OpenBucket(cfg BucketConfig) (Bucket, error) {
	return newS3Bucket(cfg)
}
