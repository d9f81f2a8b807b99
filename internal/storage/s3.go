package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Options configures an S3-compatible backend (AWS S3 or MinIO).
type S3Options struct {
	Bucket        string
	Region        string
	Endpoint      string // optional; custom endpoint such as MinIO
	PathStyle     bool
	Prefix        string // optional key prefix inside the bucket
	PublicBaseURL string // optional; overrides the bucket URL in public links

	// HTTPClient replaces the SDK transport (tests).
	HTTPClient aws.HTTPClient
	// Credentials overrides the default credential chain.
	Credentials aws.CredentialsProvider
}

// S3Storage stores files as objects in a single bucket.
type S3Storage struct {
	client  *s3.Client
	bucket  string
	prefix  string
	baseURL string
}

func NewS3Storage(ctx context.Context, opts S3Options) (*S3Storage, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if opts.Credentials != nil {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(opts.Credentials))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = opts.PathStyle
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		if opts.HTTPClient != nil {
			o.HTTPClient = opts.HTTPClient
		}
		// S3-compatible servers often reject trailing checksums.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	baseURL := opts.PublicBaseURL
	if baseURL == "" {
		switch {
		case opts.Endpoint != "":
			baseURL = strings.TrimSuffix(opts.Endpoint, "/") + "/" + opts.Bucket
		default:
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, region)
		}
	}

	return &S3Storage{
		client:  client,
		bucket:  opts.Bucket,
		prefix:  strings.Trim(opts.Prefix, "/"),
		baseURL: baseURL,
	}, nil
}

func (s *S3Storage) objectKey(key string) (string, error) {
	k, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	if s.prefix == "" {
		return k, nil
	}
	return s.prefix + "/" + k, nil
}

func (s *S3Storage) Save(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	objKey, err := s.objectKey(key)
	if err != nil {
		return "", err
	}
	// Buffer so the SDK can sign a seekable body; uploads are size-capped upstream.
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object %s: %w", objKey, err)
	}
	return s.PublicURL(key), nil
}

func (s *S3Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	objKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(objKey)})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get object %s: %w", objKey, err)
	}
	return out.Body, nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	objKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(objKey)}); err != nil {
		return fmt.Errorf("delete object %s: %w", objKey, err)
	}
	return nil
}

func (s *S3Storage) PublicURL(key string) string {
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}
	return joinURL(s.baseURL, key)
}
