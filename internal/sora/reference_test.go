package sora_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CRMWizAI/sora2api/internal/sora"
)

func TestImageFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cat.webp":
			w.Header().Set("Content-Type", "image/webp")
			_, _ = w.Write([]byte("webp"))
		case "/big.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := sora.NewImageFetcher(5*time.Second, 32, sora.WithPrivateNetworks())

	img, err := f.Fetch(context.Background(), srv.URL+"/cat.webp")
	require.NoError(t, err)
	assert.Equal(t, "image/webp", img.ContentType)
	assert.Equal(t, []byte("webp"), img.Data)

	var fetchErr *sora.ReferenceImageFetchError

	_, err = f.Fetch(context.Background(), srv.URL+"/missing.jpg")
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)

	_, err = f.Fetch(context.Background(), srv.URL+"/big.png")
	assert.True(t, errors.As(err, &fetchErr))

	_, err = f.Fetch(context.Background(), "ftp://example.com/x.png")
	assert.True(t, errors.As(err, &fetchErr))
}

func TestImageFetcher_RefusesNonPublicDestinations(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png"))
	}))
	defer srv.Close()

	f := sora.NewImageFetcher(2*time.Second, 1024)

	for _, u := range []string{
		srv.URL + "/cat.png",
		"http://169.254.169.254/latest/meta-data/",
		"http://10.0.0.1/x.png",
		"http://[::1]:9/x.png",
		"http://0.0.0.0:9/x.png",
	} {
		_, err := f.Fetch(context.Background(), u)
		var fetchErr *sora.ReferenceImageFetchError
		require.True(t, errors.As(err, &fetchErr), u)
		assert.ErrorIs(t, err, sora.ErrBlockedAddress, u)
	}
	assert.Zero(t, hits, "loopback server must never be reached")
}
