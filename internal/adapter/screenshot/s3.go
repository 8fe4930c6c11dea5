package screenshot

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store uploads screenshots to a bucket under a key prefix.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store builds a path-style S3 client from cfg.
func NewS3Store(cfg aws.Config, bucket, prefix string, optFns ...func(*s3.Options)) *S3Store {
	optFns = append([]func(*s3.Options){func(o *s3.Options) {
		o.UsePathStyle = true
	}}, optFns...)
	return &S3Store{
		client: s3.NewFromConfig(cfg, optFns...),
		bucket: bucket,
		prefix: prefix,
	}
}

// Save uploads png and returns its s3:// location.
func (s *S3Store) Save(ctx context.Context, name string, png []byte) (string, error) {
	key := path.Join(s.prefix, name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(png),
		ContentType: aws.String("image/png"),
	})
	if err != nil {
		return "", fmt.Errorf("upload screenshot: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
