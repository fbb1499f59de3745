package supabase

import (
	"bytes"
	"context"
	"fmt"

	storage "github.com/supabase-community/storage-go"
)

const videoContentType = "video/mp4"

// ArtifactStoreError wraps a failed upload of a generated video.
type ArtifactStoreError struct {
	Path string
	Err  error
}

func (e *ArtifactStoreError) Error() string {
	return fmt.Sprintf("failed to store artifact %s: %v", e.Path, e.Err)
}

func (e *ArtifactStoreError) Unwrap() error { return e.Err }

type StorageClient struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewStorageClient(supabaseURL, serviceRoleKey, bucket string) *StorageClient {
	baseURL := trimSlash(supabaseURL)
	return &StorageClient{
		client:  storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil),
		bucket:  bucket,
		baseURL: baseURL,
	}
}

// Store uploads a video and returns its public URL. Uploads upsert, so
// storing the same path twice replaces the object.
func (s *StorageClient) Store(_ context.Context, storagePath string, data []byte) (string, error) {
	contentType := videoContentType
	upsert := true
	_, err := s.client.UploadFile(s.bucket, storagePath, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", &ArtifactStoreError{Path: storagePath, Err: err}
	}
	return s.GetPublicURL(storagePath), nil
}

func (s *StorageClient) GetPublicURL(storagePath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s",
		s.baseURL, s.bucket, storagePath)
}
