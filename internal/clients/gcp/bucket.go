package gcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"cloud.google.com/go/storage"
)

// ImageBucket stores answer photos in a GCS bucket and hands back their public URL.
type ImageBucket struct {
	logger    *slog.Logger
	client    *storage.Client
	bucket    string
	cdnDomain string
}

func NewImageBucket(ctx context.Context, bucket, cdnDomain string, logger *slog.Logger) (*ImageBucket, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("gcs bucket name is required")
	}
	client, err := storage.NewClient(ctx, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &ImageBucket{
		logger:    logger.With("client", "gcp.Storage"),
		client:    client,
		bucket:    bucket,
		cdnDomain: strings.TrimSuffix(strings.TrimSpace(cdnDomain), "/"),
	}, nil
}

func (b *ImageBucket) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}

func (b *ImageBucket) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	key = strings.TrimPrefix(key, "/")
	w := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=86400"

	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs close %s: %w", key, err)
	}

	url := PublicURL(b.bucket, b.cdnDomain, key)
	b.logger.Debug("Uploaded answer image", "key", key, "url", url)
	return url, nil
}

func PublicURL(bucket, cdnDomain, key string) string {
	key = strings.TrimPrefix(key, "/")
	if cdnDomain != "" {
		return "https://" + cdnDomain + "/" + key
	}
	return "https://storage.googleapis.com/" + bucket + "/" + key
}
