package camera

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 251)
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestFetcherDecodesFrame(t *testing.T) {
	payload := encodeJPEG(t, 320, 240)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(payload)
	}))
	defer server.Close()

	fetcher := NewFetcher(server.URL, 2*time.Second)
	frame, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 320, 240), frame.Bounds())
	assert.WithinDuration(t, time.Now(), frame.CapturedAt, time.Second)
}

func TestFetcherRejectsNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	fetcher := NewFetcher(server.URL, 2*time.Second)
	_, err := fetcher.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestFetcherRejectsGarbageBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("definitely not a jpeg"))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.URL, 2*time.Second)
	_, err := fetcher.Fetch(context.Background())
	require.Error(t, err)
}

func TestFetcherUnreachableCamera(t *testing.T) {
	fetcher := NewFetcher("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := fetcher.Fetch(context.Background())
	require.Error(t, err)
}

func TestLoadReference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reference_empty.jpg")
	require.NoError(t, os.WriteFile(path, encodeJPEG(t, 160, 120), 0o644))

	frame, err := LoadReference(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 160, 120), frame.Bounds())
}

func TestLoadReferenceMissingFile(t *testing.T) {
	_, err := LoadReference(filepath.Join(t.TempDir(), "nope.jpg"))
	require.Error(t, err)
}
