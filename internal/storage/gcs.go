package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// credentialsEnv may hold base64-encoded service account JSON.
const credentialsEnv = "GCP_SERVICE_ACCOUNT_CREDENTIALS"

// GCSBlob stores objects in a Google Cloud Storage bucket under an optional prefix.
type GCSBlob struct {
	client *gcs.Client
	bucket string
	prefix string
}

// NewGCSBlob builds a client from a credentials file, from GCP_SERVICE_ACCOUNT_CREDENTIALS,
// or from application default credentials, in that order.
func NewGCSBlob(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSBlob, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	var opts []option.ClientOption
	switch {
	case credentialsFile != "":
		raw, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read gcs credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(raw))
	case os.Getenv(credentialsEnv) != "":
		decoded, err := base64.StdEncoding.DecodeString(os.Getenv(credentialsEnv))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", credentialsEnv, err)
		}
		opts = append(opts, option.WithCredentialsJSON(decoded))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCSBlob{client: client, bucket: bucket, prefix: prefix}, nil
}

func (b *GCSBlob) object(name string) *gcs.ObjectHandle {
	return b.client.Bucket(b.bucket).Object(path.Join(b.prefix, name))
}

func (b *GCSBlob) Put(ctx context.Context, name, contentType string, data []byte) error {
	w := b.object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", name, err)
	}
	return nil
}

func (b *GCSBlob) Open(ctx context.Context, name string) (io.ReadCloser, ObjectInfo, error) {
	r, err := b.object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, ObjectInfo{}, ErrObjectNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("open %s: %w", name, err)
	}
	return r, ObjectInfo{
		Name:        name,
		Size:        r.Attrs.Size,
		ContentType: r.Attrs.ContentType,
		ModTime:     r.Attrs.LastModified,
	}, nil
}

func (b *GCSBlob) Delete(ctx context.Context, name string) error {
	err := b.object(name).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

func (b *GCSBlob) Close() error {
	return b.client.Close()
}
