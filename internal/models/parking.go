package models

import (
	"image"
	"time"
)

// Zone is one parking slot's fixed rectangle in frame pixel coordinates.
// Zones are produced by the calibration tool and never change after load.
type Zone struct {
	Name   string `json:"name"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Rect returns the zone as an image.Rectangle.
func (z Zone) Rect() image.Rectangle {
	return image.Rect(z.X, z.Y, z.X+z.Width, z.Y+z.Height)
}

// Area returns the zone area in pixels.
func (z Zone) Area() int {
	return z.Width * z.Height
}

// FrameSnapshot is a decoded camera frame. Never mutated after creation.
type FrameSnapshot struct {
	Image      image.Image
	CapturedAt time.Time
}

// Bounds returns the pixel bounds of the underlying frame.
func (f *FrameSnapshot) Bounds() image.Rectangle {
	return f.Image.Bounds()
}

// Detection methods reported in OccupancyResult.
const (
	MethodReferenceDiff = "reference_diff"
	MethodEdgeContour   = "edge_contour"
)

// OccupancyResult is the per-zone verdict of one detection pass.
// It is derived data, recomputed every cycle and never persisted.
type OccupancyResult struct {
	Zone         string  `json:"zone"`
	Occupied     bool    `json:"occupied"`
	DiffPercent  float64 `json:"diff_percent"`
	ContourCount int     `json:"contour_count"`
	Method       string  `json:"method"`
}

// ParkingState is the capacity snapshot rebuilt by each aggregation cycle.
// Invariant: Available + Occupied == Total.
type ParkingState struct {
	Timestamp time.Time                  `json:"timestamp"`
	Total     int                        `json:"total"`
	Available int                        `json:"available"`
	Occupied  int                        `json:"occupied"`
	Zones     map[string]OccupancyResult `json:"zones"`
}

// StatusMessage is the payload published on the status topic each cycle.
type StatusMessage struct {
	Timestamp string          `json:"timestamp"`
	Total     int             `json:"total"`
	Available int             `json:"available"`
	Occupied  int             `json:"occupied"`
	Places    map[string]bool `json:"places"`
}

// NewStatusMessage flattens a ParkingState into the wire shape the
// barrier controller and dashboard expect (zone name -> occupied).
func NewStatusMessage(state ParkingState) *StatusMessage {
	places := make(map[string]bool, len(state.Zones))
	for name, res := range state.Zones {
		places[name] = res.Occupied
	}
	return &StatusMessage{
		Timestamp: state.Timestamp.Format("2006-01-02 15:04:05"),
		Total:     state.Total,
		Available: state.Available,
		Occupied:  state.Occupied,
		Places:    places,
	}
}

// FullNotification is broadcast when the lot just became (or still is) full.
type FullNotification struct {
	Status    string `json:"status"` // always "full"
	Available int    `json:"available"`
	Total     int    `json:"total"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}
