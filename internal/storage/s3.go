package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"ms-sorteos/internal/logger"
)

type S3Options struct {
	Bucket string
	Region string
	Prefix string
	KeyID  string
	Secret string
	// Endpoint targets S3 compatible services such as MinIO or R2.
	Endpoint  string
	PathStyle bool
}

type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	logger *logger.Logger
}

func NewS3Store(ctx context.Context, opts S3Options, log *logger.Logger) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("S3_BUCKET is not set")
	}
	if log == nil {
		log = logger.Discard()
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.KeyID != "" && opts.Secret != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.KeyID, opts.Secret, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return &S3Store{client: client, bucket: opts.Bucket, prefix: opts.Prefix, logger: log}, nil
}

func (s *S3Store) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte) (string, error) {
	objectKey := s.key(key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType(key)),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload %s: %w", objectKey, err)
	}
	s.logger.Debug("STORAGE", fmt.Sprintf("Uploaded s3://%s/%s (%d bytes)", s.bucket, objectKey, len(data)))
	return fmt.Sprintf("s3://%s/%s", s.bucket, objectKey), nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("s3 download %s: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
