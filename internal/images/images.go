// Package images resolves the opaque image and logo keys stored on
// organizations into URLs clients can fetch.
package images

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MacJediWizard/orgwarden/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultURLTTL is how long a presigned URL stays valid when unset.
const DefaultURLTTL = 15 * time.Minute

// Resolver turns a stored key into a URL. An empty key resolves to "".
type Resolver interface {
	URL(ctx context.Context, key string) (string, error)
}

// PassThrough returns keys unchanged. It is used when no object store is
// configured and keys already are URLs.
type PassThrough struct{}

// URL implements Resolver.
func (PassThrough) URL(_ context.Context, key string) (string, error) {
	return key, nil
}

// S3Resolver presigns GET requests for keys in one bucket. Keys that already
// are absolute URLs are returned unchanged.
type S3Resolver struct {
	bucket  string
	ttl     time.Duration
	presign *s3.PresignClient
}

var (
	_ Resolver = PassThrough{}
	_ Resolver = (*S3Resolver)(nil)
)

// NewS3Resolver creates a resolver for cfg. Static credentials are used when
// given, the default AWS credential chain otherwise. A custom endpoint
// selects path-style addressing for S3-compatible stores.
func NewS3Resolver(ctx context.Context, cfg config.S3Config) (*S3Resolver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if !strings.Contains(endpoint, "://") {
			endpoint = "https://" + endpoint
		}
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}
	return &S3Resolver{
		bucket:  cfg.Bucket,
		ttl:     ttl,
		presign: s3.NewPresignClient(s3.NewFromConfig(awsCfg, clientOpts...)),
	}, nil
}

// URL implements Resolver.
func (r *S3Resolver) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	if u, err := url.Parse(key); err == nil && u.IsAbs() {
		return key, nil
	}

	req, err := r.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(strings.TrimPrefix(key, "/")),
	}, s3.WithPresignExpires(r.ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

// New returns an S3Resolver when a bucket is configured, PassThrough
// otherwise.
func New(ctx context.Context, cfg config.S3Config) (Resolver, error) {
	if !cfg.Enabled() {
		return PassThrough{}, nil
	}
	return NewS3Resolver(ctx, cfg)
}
