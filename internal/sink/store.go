package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/minio/minio-go/v7"

	"images_to_pdf/internal/converter"
)

// ContentTypePDF is the media type stored with every document.
const ContentTypePDF = "application/pdf"

// ObjectPutter uploads one object. *minio.Client satisfies it.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Store uploads documents to an object store bucket, the server-side
// equivalent of a managed media collection. Callers get an opaque status
// and the s3:// handle of the object, never a filesystem path.
type Store struct {
	Client ObjectPutter
	Bucket string
	Prefix string
	Logger *slog.Logger
}

// Key returns the object key a document named name is stored under.
func (s Store) Key(name string) string {
	if s.Prefix == "" {
		return name
	}
	return path.Join(s.Prefix, name)
}

func (s Store) Write(ctx context.Context, name string, data []byte) (converter.Result, error) {
	key := s.Key(name)
	info, err := s.Client.PutObject(ctx, s.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: ContentTypePDF,
		UserMetadata: map[string]string{
			"display-name": name,
			"uploaded-at":  time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return converter.Result{}, fmt.Errorf("upload failed: %w", err)
	}

	if s.Logger != nil {
		s.Logger.Info("Uploaded PDF", "bucket", s.Bucket, "key", key, "etag", info.ETag,
			"size", humanize.Bytes(uint64(len(data))))
	}
	return converter.Result{
		Location: "s3://" + path.Join(s.Bucket, key),
		Status:   converter.StatusSuccess,
	}, nil
}
