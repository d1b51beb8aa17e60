package supabase

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"ar-asset-backend/internal/storage"

	storage_go "github.com/supabase-community/storage-go"
)

// StorageClient is a storage.ObjectStore over a Supabase Storage bucket.
type StorageClient struct {
	client  *storage_go.Client
	bucket  string
	baseURL string

	// storage-go keeps per-upload options on its shared transport headers.
	mu sync.Mutex
}

func NewStorageClient(supabaseURL, apiKey, bucket string) *StorageClient {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	return &StorageClient{
		client:  storage_go.NewClient(baseURL+"/storage/v1", apiKey, map[string]string{"apikey": apiKey}),
		bucket:  bucket,
		baseURL: baseURL,
	}
}

// Put uploads data, replacing any existing object at path.
func (s *StorageClient) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	if path == "" {
		return "", &storage.Error{Op: storage.OpPut, Path: path, Err: storage.ErrEmptyPath}
	}
	if err := ctx.Err(); err != nil {
		return "", &storage.Error{Op: storage.OpPut, Path: path, Err: err}
	}

	upsert := true
	cacheControl := "3600"
	s.mu.Lock()
	_, err := s.client.UploadFile(s.bucket, path, bytes.NewReader(data), storage_go.FileOptions{
		ContentType:  &contentType,
		CacheControl: &cacheControl,
		Upsert:       &upsert,
	})
	s.mu.Unlock()
	if err != nil {
		return "", &storage.Error{Op: storage.OpPut, Path: path, Err: err}
	}

	return s.PublicURL(path), nil
}

// Delete removes path. Supabase reports success for missing objects.
func (s *StorageClient) Delete(ctx context.Context, path string) error {
	if path == "" {
		return &storage.Error{Op: storage.OpDelete, Path: path, Err: storage.ErrEmptyPath}
	}
	if err := ctx.Err(); err != nil {
		return &storage.Error{Op: storage.OpDelete, Path: path, Err: err}
	}

	s.mu.Lock()
	_, err := s.client.RemoveFile(s.bucket, []string{path})
	s.mu.Unlock()
	if err != nil {
		return &storage.Error{Op: storage.OpDelete, Path: path, Err: err}
	}
	return nil
}

func (s *StorageClient) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, path)
}
