package services

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-backend/internal/detector"
	"parking-backend/internal/models"
)

// fakeSource returns canned frames or errors, in order; the last entry
// repeats forever.
type fakeSource struct {
	frames  []*models.FrameSnapshot
	errs    []error
	calls   atomic.Int32
	blockCh chan struct{} // when set, Fetch blocks until closed
}

func (f *fakeSource) Fetch(ctx context.Context) (*models.FrameSnapshot, error) {
	n := int(f.calls.Add(1)) - 1
	if f.blockCh != nil {
		<-f.blockCh
	}
	if n >= len(f.frames) {
		n = len(f.frames) - 1
	}
	return f.frames[n], f.errs[n]
}

func grayFrame(w, h int, value uint8) *models.FrameSnapshot {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = value
	}
	return &models.FrameSnapshot{Image: img, CapturedAt: time.Now()}
}

func fillZone(frame *models.FrameSnapshot, zone models.Zone, value uint8) {
	img := frame.Image.(*image.Gray)
	for y := zone.Y; y < zone.Y+zone.Height; y++ {
		for x := zone.X; x < zone.X+zone.Width; x++ {
			img.SetGray(x, y, color.Gray{Y: value})
		}
	}
}

func testZones(n int) []models.Zone {
	zones := make([]models.Zone, n)
	for i := range zones {
		zones[i] = models.Zone{
			Name: string(rune('A' + i)),
			X:    10 + i*60, Y: 10, Width: 50, Height: 50,
		}
	}
	return zones
}

func newParkingService(source FrameSource, zones []models.Zone, ref *models.FrameSnapshot, cooldown time.Duration) (*ParkingService, chan *models.FullNotification) {
	fullChan := make(chan *models.FullNotification, 10)
	notifier := NewFullNotifier(cooldown, fullChan)
	svc := NewParkingService(source, zones, ref, detector.DefaultConfig(), notifier, DefaultParkingServiceConfig())
	return svc, fullChan
}

func TestParkingServiceInitialStateAllFree(t *testing.T) {
	zones := testZones(4)
	svc, _ := newParkingService(&fakeSource{}, zones, nil, 30*time.Second)

	state := svc.Snapshot()
	assert.Equal(t, 4, state.Total)
	assert.Equal(t, 4, state.Available)
	assert.Equal(t, 0, state.Occupied)
}

func TestParkingServiceAggregatesCycle(t *testing.T) {
	zones := testZones(4)
	ref := grayFrame(300, 80, 100)
	cur := grayFrame(300, 80, 100)
	fillZone(cur, zones[1], 220)
	fillZone(cur, zones[3], 220)

	source := &fakeSource{frames: []*models.FrameSnapshot{cur}, errs: []error{nil}}
	svc, _ := newParkingService(source, zones, ref, 30*time.Second)

	svc.RunCycle(context.Background())

	state := svc.Snapshot()
	assert.Equal(t, 4, state.Total)
	assert.Equal(t, 2, state.Available)
	assert.Equal(t, 2, state.Occupied)
	assert.Equal(t, state.Total, state.Available+state.Occupied)

	require.Len(t, state.Zones, 4)
	assert.False(t, state.Zones["A"].Occupied)
	assert.True(t, state.Zones["B"].Occupied)
	assert.False(t, state.Zones["C"].Occupied)
	assert.True(t, state.Zones["D"].Occupied)

	require.Len(t, svc.StatusChan, 1)
	msg := <-svc.StatusChan
	assert.Equal(t, 2, msg.Available)
	assert.Equal(t, 4, msg.Total)
	require.Len(t, msg.Places, 4)
	assert.False(t, msg.Places["A"], "places map is zone -> occupied")
	assert.True(t, msg.Places["B"])
}

func TestParkingServiceRetainsStateOnFetchFailure(t *testing.T) {
	zones := testZones(3)
	ref := grayFrame(300, 80, 100)
	cur := grayFrame(300, 80, 100)
	fillZone(cur, zones[0], 220)

	source := &fakeSource{
		frames: []*models.FrameSnapshot{cur, nil},
		errs:   []error{nil, errors.New("camera timeout")},
	}
	svc, _ := newParkingService(source, zones, ref, 30*time.Second)

	svc.RunCycle(context.Background())
	first := svc.Snapshot()
	assert.Equal(t, 2, first.Available)

	svc.RunCycle(context.Background())
	second := svc.Snapshot()
	assert.Equal(t, first.Available, second.Available)
	assert.Equal(t, first.Timestamp, second.Timestamp, "failed cycle must not touch the snapshot")

	// Only the successful cycle published a status message.
	assert.Len(t, svc.StatusChan, 1)
}

func TestParkingServiceFullEdgeFiresOnce(t *testing.T) {
	zones := testZones(2)
	ref := grayFrame(300, 80, 100)
	full := grayFrame(300, 80, 100)
	fillZone(full, zones[0], 220)
	fillZone(full, zones[1], 220)
	empty := grayFrame(300, 80, 100)

	// free -> full -> full -> full -> free -> full
	source := &fakeSource{
		frames: []*models.FrameSnapshot{empty, full, full, full, empty, full},
		errs:   []error{nil, nil, nil, nil, nil, nil},
	}
	// Cooldown zero so the channel counts edges, not windows.
	svc, fullChan := newParkingService(source, zones, ref, 0)

	for i := 0; i < 6; i++ {
		svc.RunCycle(context.Background())
	}

	assert.Len(t, fullChan, 2, "one notification per free-to-full transition")
}

func TestParkingServiceSkipsOverlappingCycle(t *testing.T) {
	zones := testZones(2)
	gate := make(chan struct{})
	source := &fakeSource{
		frames:  []*models.FrameSnapshot{grayFrame(300, 80, 100)},
		errs:    []error{nil},
		blockCh: gate,
	}
	svc, _ := newParkingService(source, zones, nil, 30*time.Second)

	done := make(chan struct{})
	go func() {
		svc.RunCycle(context.Background())
		close(done)
	}()

	// Wait for the first cycle to be inside Fetch.
	require.Eventually(t, func() bool { return source.calls.Load() == 1 },
		time.Second, 5*time.Millisecond)

	// A tick that fires mid-cycle must return without fetching.
	svc.RunCycle(context.Background())
	assert.Equal(t, int32(1), source.calls.Load())

	close(gate)
	<-done
	assert.Equal(t, int32(1), source.calls.Load())
}
