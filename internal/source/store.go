package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// StoreScheme is the scheme of object store handles: s3://bucket/key.
const StoreScheme = "s3"

// StoreOptions configures the connection to an S3 compatible object store.
type StoreOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Secure    bool
}

// NewMinioClient connects to the store and checks that the bucket exists.
func NewMinioClient(ctx context.Context, opts StoreOptions) (*minio.Client, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init S3 client: %w", err)
	}

	if opts.Bucket == "" {
		return client, nil
	}
	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", opts.Bucket)
	}
	return client, nil
}

// ObjectGetter reads a single object.
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// MinioGetter adapts a minio client to ObjectGetter.
type MinioGetter struct {
	Client *minio.Client
}

func (g MinioGetter) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := g.Client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; Stat surfaces missing keys before the first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, bucket, key)
		}
		return nil, err
	}
	return obj, nil
}

// Store opens s3://bucket/key handles.
type Store struct {
	Getter ObjectGetter
	Logger *slog.Logger
}

func (s *Store) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	bucket, key, err := ParseObjectRef(ref)
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Debug("Fetching image from object store", "bucket", bucket, "key", key)
	}

	rc, err := s.Getter.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", ref, err)
	}
	return rc, nil
}

// ParseObjectRef splits s3://bucket/key into its parts.
func ParseObjectRef(ref string) (bucket, key string, err error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", "", fmt.Errorf("invalid object handle %s: %w", ref, err)
	}
	if !strings.EqualFold(u.Scheme, StoreScheme) {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownScheme, u.Scheme)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("object handle %s needs a bucket and a key", ref)
	}
	return bucket, key, nil
}
