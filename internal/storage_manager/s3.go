package storage_manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Client is the subset of S3 operations S3FileProvider needs.
type S3Client interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	PutObject(ctx context.Context, bucket, key string, data []byte) error
	DeleteObject(ctx context.Context, bucket, key string) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]string, error)
}

// S3FileProvider stores objects in an S3 bucket under an optional key prefix.
type S3FileProvider struct {
	bucket string
	prefix string
	client S3Client
}

// NewS3FileProvider creates an S3-backed provider.
func NewS3FileProvider(bucket, prefix string, client S3Client) *S3FileProvider {
	return &S3FileProvider{bucket: bucket, prefix: prefix, client: client}
}

func (p *S3FileProvider) key(path string) string {
	if p.prefix == "" {
		return path
	}
	return p.prefix + "/" + path
}

func (p *S3FileProvider) Read(ctx context.Context, path string) ([]byte, error) {
	return p.client.GetObject(ctx, p.bucket, p.key(path))
}

func (p *S3FileProvider) Write(ctx context.Context, path string, data []byte) error {
	return p.client.PutObject(ctx, p.bucket, p.key(path), data)
}

func (p *S3FileProvider) Delete(ctx context.Context, path string) error {
	return p.client.DeleteObject(ctx, p.bucket, p.key(path))
}

// List returns keys relative to the provider prefix.
func (p *S3FileProvider) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := p.client.ListObjects(ctx, p.bucket, p.key(prefix))
	if err != nil {
		return nil, err
	}
	strip := len(p.key(""))
	result := make([]string, 0, len(keys))
	for _, k := range keys {
		if len(k) > strip {
			result = append(result, k[strip:])
		}
	}
	return result, nil
}

// AWSS3Client implements S3Client with the AWS SDK v2.
type AWSS3Client struct {
	s3Client *s3.Client
}

// NewAWSS3Client wraps an SDK client.
func NewAWSS3Client(s3Client *s3.Client) *AWSS3Client {
	return &AWSS3Client{s3Client: s3Client}
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

// GetObject downloads an object. Missing keys map to ErrNotFound.
func (c *AWSS3Client) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get object %s from bucket %s: %w", key, bucket, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return data, nil
}

// PutObject uploads an object.
func (c *AWSS3Client) PutObject(ctx context.Context, bucket, key string, data []byte) error {
	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s to bucket %s: %w", key, bucket, err)
	}
	return nil
}

// DeleteObject removes an object. S3 treats missing keys as success.
func (c *AWSS3Client) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s from bucket %s: %w", key, bucket, err)
	}
	return nil
}

// ListObjects pages through every key below prefix.
func (c *AWSS3Client) ListObjects(ctx context.Context, bucket, prefix string) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(c.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			var noSuchBucket *types.NoSuchBucket
			if errors.As(err, &noSuchBucket) {
				return nil, fmt.Errorf("bucket %s does not exist: %w", bucket, err)
			}
			return nil, fmt.Errorf("failed to list objects with prefix %s in bucket %s: %w", prefix, bucket, err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}
	return keys, nil
}

// Ping checks that the bucket is reachable.
func (c *AWSS3Client) Ping(ctx context.Context, bucket string) error {
	_, err := c.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		return fmt.Errorf("failed to reach bucket %s: %w", bucket, err)
	}
	return nil
}
