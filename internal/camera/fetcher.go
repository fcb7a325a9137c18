package camera

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // ESP32-CAM /capture serves JPEG
	"net/http"
	"os"
	"time"

	"parking-backend/internal/models"
)

// Fetcher pulls the current scene from the camera's capture endpoint.
// Failures are returned to the caller, which skips the cycle.
type Fetcher struct {
	url    string
	client *http.Client
}

// NewFetcher creates a frame fetcher for the given capture URL.
func NewFetcher(url string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads and decodes one frame.
func (f *Fetcher) Fetch(ctx context.Context) (*models.FrameSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build capture request: %w", err)
	}
	req.Header.Set("User-Agent", "SmartParking/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch frame from %s: %w", f.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("camera returned status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	return &models.FrameSnapshot{Image: img, CapturedAt: time.Now()}, nil
}

// LoadReference reads the empty-lot baseline image from disk.
// A missing file is not fatal: detection falls back to edge contours.
func LoadReference(path string) (*models.FrameSnapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference image %s: %w", path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode reference image %s: %w", path, err)
	}

	return &models.FrameSnapshot{Image: img, CapturedAt: time.Now()}, nil
}
