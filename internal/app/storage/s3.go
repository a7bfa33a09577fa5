package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"sims/internal/pkg/logx"
)

// listPageSize is the page size of bucket listings.
const listPageSize = 1000

type s3Bucket struct {
	name     *string
	api      *s3.Client
	presign  *s3.PresignClient
	uploader *manager.Uploader
	log      zerolog.Logger
}

// newS3Bucket builds a path-style client, which R2, MinIO and AWS all accept.
func newS3Bucket(cfg BucketConfig) (*s3Bucket, error) {
	log := logx.Component("storage")

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	sdkCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithCredentialsProvider(creds),
		config.WithRegion("auto"),
	)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load AWS SDK config")
		return nil, fmt.Errorf("storage config: %w", err)
	}

	api := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	log.Info().Str("bucket", cfg.Name).Str("endpoint", cfg.Endpoint).Msg("Media bucket configured")
	return &s3Bucket{
		name:     aws.String(cfg.Name),
		api:      api,
		presign:  s3.NewPresignClient(api),
		uploader: manager.NewUploader(api),
		log:      log,
	}, nil
}

// fail logs err against key and wraps it for the caller.
func (b *s3Bucket) fail(op, key string, err error) error {
	b.log.Error().Err(err).Str("op", op).Str("key", key).Msg("Bucket operation failed")
	return fmt.Errorf("storage %s %s: %w", op, key, err)
}

func (b *s3Bucket) PresignUpload(ctx context.Context, key, mimeType string, size int64, ttl time.Duration) (string, error) {
	req, err := b.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        b.name,
		Key:           aws.String(key),
		ContentType:   aws.String(mimeType),
		ContentLength: aws.Int64(size),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", b.fail("presign_put", key, err)
	}
	return req.URL, nil
}

func (b *s3Bucket) PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := b.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: b.name,
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", b.fail("presign_get", key, err)
	}
	return req.URL, nil
}

// Upload goes through the multipart manager so large photos are streamed in parts.
func (b *s3Bucket) Upload(ctx context.Context, key, mimeType string, body io.Reader) error {
	if _, err := b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      b.name,
		Key:         aws.String(key),
		ContentType: aws.String(mimeType),
		Body:        body,
	}); err != nil {
		return b.fail("upload", key, err)
	}
	return nil
}

func (b *s3Bucket) List(ctx context.Context, prefix string, limit int) ([]Object, error) {
	objects := []Object{}

	pages := s3.NewListObjectsV2Paginator(b.api, &s3.ListObjectsV2Input{
		Bucket:  b.name,
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(listPageSize),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, b.fail("list", prefix, err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, Object{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	if limit > 0 && len(objects) > limit {
		objects = objects[:limit]
	}
	return objects, nil
}

func (b *s3Bucket) Delete(ctx context.Context, key string) error {
	if _, err := b.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: b.name,
		Key:    aws.String(key),
	}); err != nil {
		return b.fail("delete", key, err)
	}
	return nil
}
