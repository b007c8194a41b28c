// Package photos deletes photo blobs that logs no longer reference.
package photos

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrForeignURL is returned for photo URLs outside the configured bucket.
var ErrForeignURL = errors.New("photo url does not belong to bucket")

// Config describes the S3-compatible bucket holding photos.
type Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

type objectDeleter interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store deletes photos from an S3-compatible bucket.
type S3Store struct {
	client objectDeleter
	bucket string
}

// NewS3Store builds an S3 client from cfg. Static credentials are used when
// both keys are set; otherwise the default AWS credential chain applies.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("photo bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// Delete removes the object referenced by photoURL. Deleting a missing
// object succeeds.
func (s *S3Store) Delete(ctx context.Context, photoURL string) error {
	key, err := ObjectKey(photoURL, s.bucket)
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete s3://%s/%s: %w", s.bucket, key, err)
	}
	log.Printf("photos: deleted s3://%s/%s", s.bucket, key)
	return nil
}

// ObjectKey extracts the object key from the URL forms photos are stored
// under: s3://bucket/key, virtual-hosted and path-style HTTPS URLs, and
// Firebase Storage download URLs.
func ObjectKey(photoURL, bucket string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(photoURL))
	if err != nil {
		return "", fmt.Errorf("parse photo url: %w", err)
	}

	var key string
	switch {
	case u.Scheme == "s3":
		if u.Host != bucket {
			return "", ErrForeignURL
		}
		key = strings.TrimPrefix(u.Path, "/")
	case strings.HasPrefix(u.Path, "/v0/b/"):
		// Firebase Storage: /v0/b/<bucket>/o/<escaped key>
		rest := strings.TrimPrefix(u.EscapedPath(), "/v0/b/")
		owner, escaped, found := strings.Cut(rest, "/o/")
		if !found || owner != bucket {
			return "", ErrForeignURL
		}
		key, err = url.PathUnescape(escaped)
		if err != nil {
			return "", fmt.Errorf("parse photo url: %w", err)
		}
	case u.Scheme == "http" || u.Scheme == "https":
		path := strings.TrimPrefix(u.Path, "/")
		switch {
		case strings.HasPrefix(u.Host, bucket+"."):
			key = path
		case strings.HasPrefix(path, bucket+"/"):
			key = strings.TrimPrefix(path, bucket+"/")
		default:
			return "", ErrForeignURL
		}
	default:
		return "", ErrForeignURL
	}

	if key == "" {
		return "", fmt.Errorf("photo url %q has no object key", photoURL)
	}
	return key, nil
}
