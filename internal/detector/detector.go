package detector

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"parking-backend/internal/models"
)

// ErrInvalidZone means a zone rectangle falls outside the frame bounds.
// This is a configuration error surfaced once at load time, not per cycle.
var ErrInvalidZone = errors.New("zone outside frame bounds")

// Config holds the detection tuning constants.
type Config struct {
	DiffThreshold      uint8   // intensity delta for binarizing the reference diff
	OccupancyThreshold float64 // percent of changed pixels above which a zone is occupied
	MinContourArea     int     // px², contours below this are noise
	KernelRadius       int     // morphology kernel radius (radius 2 = 5x5 kernel)
	EdgeThreshold      int     // gradient magnitude cutoff for the fallback path
	FallbackAreaRatio  float64 // contour-area fraction of the zone for the fallback verdict
}

// DefaultConfig returns the detection constants tuned for the lot camera.
func DefaultConfig() Config {
	return Config{
		DiffThreshold:      30,
		OccupancyThreshold: 25.0,
		MinContourArea:     800,
		KernelRadius:       2,
		EdgeThreshold:      100,
		FallbackAreaRatio:  0.20,
	}
}

// Evaluate computes the occupancy verdict for one zone. Pure given its
// inputs: identical frames always yield identical results. reference may
// be nil, in which case the edge-contour fallback is used.
func Evaluate(zone models.Zone, current, reference *models.FrameSnapshot, cfg Config) (models.OccupancyResult, error) {
	rect := zone.Rect()
	if !rect.In(current.Bounds()) {
		return models.OccupancyResult{}, fmt.Errorf("zone %q %v vs frame %v: %w",
			zone.Name, rect, current.Bounds(), ErrInvalidZone)
	}

	if reference != nil {
		if !rect.In(reference.Bounds()) {
			return models.OccupancyResult{}, fmt.Errorf("zone %q %v vs reference %v: %w",
				zone.Name, rect, reference.Bounds(), ErrInvalidZone)
		}
		return evaluateWithReference(zone, current, reference, cfg), nil
	}
	return evaluateFallback(zone, current, cfg), nil
}

// evaluateWithReference compares the zone crop against the empty-lot baseline.
func evaluateWithReference(zone models.Zone, current, reference *models.FrameSnapshot, cfg Config) models.OccupancyResult {
	rect := zone.Rect()
	curGray := grayCrop(current.Image, rect)
	refGray := grayCrop(reference.Image, rect)

	// Absolute pixel difference, binarized at the intensity delta.
	mask := make([]bool, len(curGray.pix))
	for i := range curGray.pix {
		d := int(curGray.pix[i]) - int(refGray.pix[i])
		if d < 0 {
			d = -d
		}
		mask[i] = d > int(cfg.DiffThreshold)
	}

	// One closing then one opening pass to suppress speckle noise.
	mask = closeMask(mask, curGray.w, curGray.h, cfg.KernelRadius)
	mask = openMask(mask, curGray.w, curGray.h, cfg.KernelRadius)

	changed := 0
	for _, on := range mask {
		if on {
			changed++
		}
	}
	diffPercent := float64(changed) / float64(zone.Area()) * 100.0

	contours := 0
	for _, area := range componentAreas(mask, curGray.w, curGray.h) {
		if area > cfg.MinContourArea {
			contours++
		}
	}

	return models.OccupancyResult{
		Zone:         zone.Name,
		Occupied:     diffPercent > cfg.OccupancyThreshold,
		DiffPercent:  diffPercent,
		ContourCount: contours,
		Method:       models.MethodReferenceDiff,
	}
}

// evaluateFallback detects occupancy from edge density when no baseline
// image exists: blur, edge-detect, then sum qualifying contour areas.
func evaluateFallback(zone models.Zone, current *models.FrameSnapshot, cfg Config) models.OccupancyResult {
	rect := zone.Rect()
	gray := grayCrop(current.Image, rect)

	blurred := boxBlur(gray)
	mask := sobelMask(blurred, cfg.EdgeThreshold)

	contours := 0
	totalArea := 0
	for _, area := range componentAreas(mask, gray.w, gray.h) {
		if area > cfg.MinContourArea {
			contours++
			totalArea += area
		}
	}

	zoneArea := float64(zone.Area())
	return models.OccupancyResult{
		Zone:         zone.Name,
		Occupied:     float64(totalArea) > cfg.FallbackAreaRatio*zoneArea,
		DiffPercent:  float64(totalArea) / zoneArea * 100.0,
		ContourCount: contours,
		Method:       models.MethodEdgeContour,
	}
}

// grayImage is a tight single-channel crop.
type grayImage struct {
	pix  []uint8
	w, h int
}

// grayCrop extracts the rectangle from img as a single-channel intensity grid.
func grayCrop(img image.Image, rect image.Rectangle) grayImage {
	w, h := rect.Dx(), rect.Dy()
	out := grayImage{pix: make([]uint8, w*h), w: w, h: h}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.GrayModel.Convert(img.At(rect.Min.X+x, rect.Min.Y+y)).(color.Gray)
			out.pix[y*w+x] = c.Y
		}
	}
	return out
}

// boxBlur applies a 3x3 mean filter, clamping at the crop edges.
func boxBlur(g grayImage) grayImage {
	out := grayImage{pix: make([]uint8, len(g.pix)), w: g.w, h: g.h}
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			sum, n := 0, 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= g.w || ny >= g.h {
						continue
					}
					sum += int(g.pix[ny*g.w+nx])
					n++
				}
			}
			out.pix[y*g.w+x] = uint8(sum / n)
		}
	}
	return out
}

// sobelMask marks pixels whose gradient magnitude exceeds the threshold.
// Border pixels are left unmarked.
func sobelMask(g grayImage, threshold int) []bool {
	mask := make([]bool, len(g.pix))
	at := func(x, y int) int { return int(g.pix[y*g.w+x]) }
	for y := 1; y < g.h-1; y++ {
		for x := 1; x < g.w-1; x++ {
			gx := -at(x-1, y-1) + at(x+1, y-1) +
				-2*at(x-1, y) + 2*at(x+1, y) +
				-at(x-1, y+1) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			if gx < 0 {
				gx = -gx
			}
			if gy < 0 {
				gy = -gy
			}
			if gx+gy > threshold {
				mask[y*g.w+x] = true
			}
		}
	}
	return mask
}
