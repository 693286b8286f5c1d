package s3store

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	conf "github.com/trunov/imagecache/internal/config"
	"github.com/trunov/imagecache/internal/entities"
)

// S3 reads originals from an S3-compatible bucket. It never writes.
type S3 struct {
	Bucket   string
	S3Client *s3.Client
}

func NewStorage(ctx context.Context, cfg *conf.StorageConfig) (*S3, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	}
	if cfg.MaxAttempts > 0 {
		opts = append(opts, config.WithRetryMaxAttempts(cfg.MaxAttempts))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	log.Info().Str("bucket", cfg.BucketName).Str("endpoint", cfg.Endpoint).Msg("object store client initialized")

	return &S3{Bucket: cfg.BucketName, S3Client: client}, nil
}

// List returns the first page of objects under prefix, in the store's own
// listing order.
func (s *S3) List(ctx context.Context, prefix string) ([]entities.StoredObject, error) {
	out, err := s.S3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list %q: %w", entities.ErrStorage, prefix, err)
	}

	objects := make([]entities.StoredObject, 0, len(out.Contents))
	for _, obj := range out.Contents {
		objects = append(objects, entities.StoredObject{
			Key:  aws.ToString(obj.Key),
			Size: aws.ToInt64(obj.Size),
		})
	}

	return objects, nil
}

func (s *S3) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := s.S3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to download %q: %w", entities.ErrStorage, key, err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("%w: failed to read body for %q: %w", entities.ErrStorage, key, err)
	}

	return buf.Bytes(), nil
}

// Ping checks that the bucket is reachable, for readiness probes.
func (s *S3) Ping(ctx context.Context) error {
	_, err := s.S3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.Bucket)})
	if err != nil {
		return fmt.Errorf("%w: head bucket %q: %w", entities.ErrStorage, s.Bucket, err)
	}
	return nil
}
