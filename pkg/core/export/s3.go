package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the part of the S3 client the storage uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Storage writes reports to a bucket, optionally under a key prefix.
type S3Storage struct {
	client S3API
	bucket string
	prefix string
}

func NewS3Storage(ctx context.Context, cfg Config) (*S3Storage, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("LEGALSIM_S3_BUCKET not set")
	}

	var awsCfg aws.Config
	var err error
	if cfg.AWSAccessKey != "" && cfg.AWSSecretKey != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.S3Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AWSAccessKey,
				cfg.AWSSecretKey,
				"",
			)),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(cfg.S3Region))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewS3StorageWithClient(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix), nil
}

func NewS3StorageWithClient(client S3API, bucket, prefix string) *S3Storage {
	return &S3Storage{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Storage) Put(ctx context.Context, key, contentType string, data io.Reader) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if s.prefix != "" {
		k = path.Join(s.prefix, k)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(k),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return k, nil
}

func (s *S3Storage) Get(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storagePath),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, storagePath)
		}
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	return result.Body, nil
}
