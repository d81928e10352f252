package gcs

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"personal-connect/internal/logger"
	"personal-connect/internal/models/config"
	"personal-connect/internal/repository"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type blobStore struct {
	log        *logger.Logger
	client     *storage.Client
	bucketName string
	publicBase string
}

func New(ctx context.Context, cfg config.FirebaseConfig, log *logger.Logger) (repository.BlobStore, error) {
	client, err := storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return NewWithClient(client, cfg.StorageBucket, cfg.StoragePublicBaseURL, log), nil
}

func NewWithClient(client *storage.Client, bucket, publicBase string, log *logger.Logger) repository.BlobStore {
	return &blobStore{
		log:        log.With("service", "BlobStore"),
		client:     client,
		bucketName: bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

func (b *blobStore) Upload(ctx context.Context, path string, r io.Reader, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := b.client.Bucket(b.bucketName).Object(path).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}
	b.log.Debug("uploaded blob", "path", path, "content_type", contentType)
	return b.PublicURL(path), nil
}

// PublicURL follows the Firebase download URL format unless a CDN base is set.
func (b *blobStore) PublicURL(path string) string {
	if b.publicBase != "" {
		return b.publicBase + "/" + path
	}
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media", b.bucketName, url.PathEscape(path))
}
