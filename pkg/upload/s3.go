package upload

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config holds the connection settings for an S3 compatible endpoint.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// NewS3Client builds an S3 client with static credentials.
// Endpoint may be empty to use AWS; set it for MinIO and similar services.
func NewS3Client(cfg S3Config) *s3.Client {
	creds := aws.Credentials{
		AccessKeyID:     cfg.AccessKey,
		SecretAccessKey: cfg.SecretKey,
		Source:          "portal",
	}
	opts := s3.Options{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return creds, nil
		})),
		UsePathStyle: cfg.PathStyle,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// S3Store stores uploads in an S3 bucket under a key prefix.
//
// Example usage:
//
//	client := upload.NewS3Client(upload.S3Config{Region: "us-east-1"})
//	store := upload.NewS3Store(client, "media", "uploads", "https://cdn.example.org")
type S3Store struct {
	client    S3API
	bucket    string
	prefix    string
	publicURL string
}

// NewS3Store creates a new S3 upload store.
//
// Parameters:
//   - client: S3 client from aws-sdk-go-v2
//   - bucket: S3 bucket name
//   - prefix: Key prefix acting as the storage root (e.g. "uploads")
//   - publicURL: Base URL objects are served from
func NewS3Store(client S3API, bucket, prefix, publicURL string) *S3Store {
	return &S3Store{
		client:    client,
		bucket:    bucket,
		prefix:    strings.Trim(prefix, "/"),
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

// Put uploads obj to <prefix>/<subdir>/<name>.
func (s *S3Store) Put(ctx context.Context, obj Object) error {
	key, err := s.resolveKey(obj.Subdir, obj.Name)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(obj.Data),
		ContentLength: aws.Int64(int64(len(obj.Data))),
		ContentType:   aws.String(obj.ContentType),
		Metadata: map[string]string{
			"upload-time": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("s3 upload failed: %w", err)
	}
	return nil
}

// URL returns the public URL of a stored object.
func (s *S3Store) URL(subdir, name string) string {
	return s.publicURL + "/" + path.Join(s.prefix, subdir, name)
}

// resolveKey applies the same containment rule as ResolveDir to object keys.
func (s *S3Store) resolveKey(subdir, name string) (string, error) {
	if !validName(name) || strings.Contains(subdir, `\`) {
		return "", ErrInvalidUploadType
	}
	dir := path.Clean(path.Join(s.prefix, subdir))
	switch {
	case s.prefix == "":
		if dir == ".." || strings.HasPrefix(dir, "../") || strings.HasPrefix(dir, "/") {
			return "", ErrInvalidUploadType
		}
	case dir != s.prefix && !strings.HasPrefix(dir, s.prefix+"/"):
		return "", ErrInvalidUploadType
	}
	if dir == "." {
		return name, nil
	}
	return path.Join(dir, name), nil
}
