package memory

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"

	"personal-connect/internal/repository"
)

type blob struct {
	data        []byte
	contentType string
}

// BlobStore keeps uploads in memory and hands out URLs under baseURL.
type BlobStore struct {
	baseURL string

	mu    sync.RWMutex
	blobs map[string]blob
}

func NewBlobStore(baseURL string) *BlobStore {
	if baseURL == "" {
		baseURL = "memory://blobs"
	}
	return &BlobStore{baseURL: baseURL, blobs: make(map[string]blob)}
}

var _ repository.BlobStore = (*BlobStore)(nil)

func (b *BlobStore) Upload(ctx context.Context, path string, r io.Reader, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload %s: %w", path, err)
	}
	b.mu.Lock()
	b.blobs[path] = blob{data: data, contentType: contentType}
	b.mu.Unlock()
	return b.baseURL + "/" + url.PathEscape(path), nil
}

func (b *BlobStore) Object(path string) ([]byte, string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.blobs[path]
	return obj.data, obj.contentType, ok
}
