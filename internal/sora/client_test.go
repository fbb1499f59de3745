package sora_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CRMWizAI/sora2api/internal/sora"
)

func newTestClient(url string) *sora.Client {
	return sora.NewClient(url, "test-key", "", 5*time.Second, 5*time.Second)
}

func TestClient_Submit_WithoutReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/videos", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "a cat", r.FormValue("prompt"))
		assert.Equal(t, "sora-2", r.FormValue("model"))
		assert.Equal(t, "4", r.FormValue("seconds"))
		assert.Equal(t, "1280x720", r.FormValue("size"))
		assert.Empty(t, r.MultipartForm.File["input_reference"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"video_123","status":"queued","progress":0}`))
	}))
	defer srv.Close()

	job, err := newTestClient(srv.URL).Submit(context.Background(), sora.SubmitRequest{
		Prompt: "a cat",
		Size:   sora.SizeLandscape,
	})

	require.NoError(t, err)
	assert.Equal(t, "video_123", job.ID)
	assert.Equal(t, sora.JobQueued, job.Status)
}

func TestClient_Submit_WithReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "8", r.FormValue("seconds"))

		files := r.MultipartForm.File["input_reference"]
		require.Len(t, files, 1)
		assert.Equal(t, "reference.png", files[0].Filename)
		assert.Equal(t, "image/png", files[0].Header.Get("Content-Type"))

		f, err := files[0].Open()
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, []byte("png-bytes"), data)

		_, _ = w.Write([]byte(`{"id":"video_456","status":"in_progress"}`))
	}))
	defer srv.Close()

	job, err := newTestClient(srv.URL).Submit(context.Background(), sora.SubmitRequest{
		Prompt:    "a dog",
		Size:      sora.SizePortrait,
		Seconds:   8,
		Reference: &sora.ReferenceImage{Data: []byte("png-bytes"), ContentType: "image/png"},
	})

	require.NoError(t, err)
	assert.Equal(t, "video_456", job.ID)
	assert.Equal(t, sora.JobProcessing, job.Status)
}

func TestClient_Submit_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad prompt"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Submit(context.Background(), sora.SubmitRequest{
		Prompt: "x",
		Size:   sora.SizePortrait,
	})

	var submitErr *sora.UpstreamSubmitError
	require.True(t, errors.As(err, &submitErr))
	assert.Equal(t, http.StatusBadRequest, submitErr.StatusCode)
	assert.Contains(t, submitErr.Body, "bad prompt")
}

func TestClient_Submit_EmptyJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"queued"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Submit(context.Background(), sora.SubmitRequest{
		Prompt: "x",
		Size:   sora.SizePortrait,
	})

	var submitErr *sora.UpstreamSubmitError
	assert.True(t, errors.As(err, &submitErr))
}

func TestClient_Submit_ValidatesBeforeCalling(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Submit(context.Background(), sora.SubmitRequest{Prompt: "  ", Size: sora.SizePortrait})
	assert.Error(t, err)
	_, err = c.Submit(context.Background(), sora.SubmitRequest{Prompt: "x", Size: "640x480"})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestClient_FetchStatus(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		state    sora.JobState
		progress *int
		message  string
	}{
		{"queued", `{"id":"v","status":"queued"}`, sora.JobQueued, nil, ""},
		{"in progress", `{"id":"v","status":"in_progress","progress":42}`, sora.JobProcessing, intPtr(42), ""},
		{"completed", `{"id":"v","status":"completed","progress":100}`, sora.JobCompleted, intPtr(100), ""},
		{"failed", `{"id":"v","status":"failed","error":{"message":"quota exceeded"}}`, sora.JobFailed, nil, "quota exceeded"},
		{"unknown state", `{"id":"v","status":"rendering"}`, sora.JobProcessing, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/videos/v", r.URL.Path)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			status, err := newTestClient(srv.URL).FetchStatus(context.Background(), "v")
			require.NoError(t, err)
			assert.Equal(t, tt.state, status.State)
			assert.Equal(t, tt.progress, status.Progress)
			assert.Equal(t, tt.message, status.ErrorMessage)
		})
	}
}

func TestClient_FetchStatus_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchStatus(context.Background(), "v")
	var statusErr *sora.UpstreamStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)

	srv.Close()
	_, err = newTestClient(srv.URL).FetchStatus(context.Background(), "v")
	assert.True(t, errors.As(err, &statusErr))
}

func TestClient_FetchArtifact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/videos/ok/content":
			w.Header().Set("Content-Type", "video/mp4")
			_, _ = w.Write([]byte("mp4-bytes"))
		case "/videos/empty/content":
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	data, err := c.FetchArtifact(context.Background(), "ok")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp4-bytes"), data)

	var dlErr *sora.UpstreamDownloadError
	_, err = c.FetchArtifact(context.Background(), "empty")
	assert.True(t, errors.As(err, &dlErr))

	_, err = c.FetchArtifact(context.Background(), "missing")
	require.True(t, errors.As(err, &dlErr))
	assert.Equal(t, http.StatusNotFound, dlErr.StatusCode)
}

func TestReferenceExtension(t *testing.T) {
	assert.Equal(t, "png", sora.ReferenceExtension("image/png"))
	assert.Equal(t, "webp", sora.ReferenceExtension("image/webp"))
	assert.Equal(t, "jpg", sora.ReferenceExtension("image/jpeg"))
	assert.Equal(t, "jpg", sora.ReferenceExtension("application/octet-stream"))
}

func intPtr(i int) *int { return &i }
