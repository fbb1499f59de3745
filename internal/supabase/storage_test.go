package supabase_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CRMWizAI/sora2api/internal/supabase"
)

func TestStorageClient_GetPublicURL(t *testing.T) {
	s := supabase.NewStorageClient("https://proj.supabase.co/", "key", "generated-videos")

	assert.Equal(t,
		"https://proj.supabase.co/storage/v1/object/public/generated-videos/users/u1/generations/g1.mp4",
		s.GetPublicURL("users/u1/generations/g1.mp4"))
}

func TestStorageClient_StoreUploadsVideo(t *testing.T) {
	var (
		gotPath        string
		gotContentType string
		gotUpsert      string
		gotBody        []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotUpsert = r.Header.Get("x-upsert")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Key":"generated-videos/users/u1/generations/g1.mp4"}`))
	}))
	defer srv.Close()

	s := supabase.NewStorageClient(srv.URL, "key", "generated-videos")
	url, err := s.Store(context.Background(), "users/u1/generations/g1.mp4", []byte("mp4-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "/storage/v1/object/generated-videos/users/u1/generations/g1.mp4", gotPath)
	assert.True(t, strings.HasPrefix(gotContentType, "video/mp4"))
	assert.Equal(t, "true", gotUpsert)
	assert.Equal(t, "mp4-bytes", string(gotBody))
	assert.Equal(t, srv.URL+"/storage/v1/object/public/generated-videos/users/u1/generations/g1.mp4", url)
}

func TestArtifactStoreError(t *testing.T) {
	cause := errors.New("bucket not found")
	err := error(&supabase.ArtifactStoreError{Path: "users/u1/generations/g1.mp4", Err: cause})

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "users/u1/generations/g1.mp4")

	var storeErr *supabase.ArtifactStoreError
	assert.True(t, errors.As(err, &storeErr))
}
