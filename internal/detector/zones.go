package detector

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"sort"

	"parking-backend/internal/models"
)

// LoadZones reads the calibration tool's zone file, a JSON map of
// zone name to [x, y, width, height]. Zones are returned sorted by
// name so every evaluation pass walks them in a stable order.
func LoadZones(path string) ([]models.Zone, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read zone config %s: %w", path, err)
	}

	var raw map[string][4]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse zone config %s: %w", path, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("zone config %s contains no zones", path)
	}

	zones := make([]models.Zone, 0, len(raw))
	for name, coords := range raw {
		z := models.Zone{
			Name:   name,
			X:      coords[0],
			Y:      coords[1],
			Width:  coords[2],
			Height: coords[3],
		}
		if z.Width <= 0 || z.Height <= 0 {
			return nil, fmt.Errorf("zone %q has non-positive size %dx%d", name, z.Width, z.Height)
		}
		zones = append(zones, z)
	}

	sort.Slice(zones, func(i, j int) bool { return zones[i].Name < zones[j].Name })
	return zones, nil
}

// ValidateZones checks every zone against the frame bounds once at
// startup. A violation is a fatal configuration error.
func ValidateZones(zones []models.Zone, frame image.Rectangle) error {
	for _, z := range zones {
		if !z.Rect().In(frame) {
			return fmt.Errorf("zone %q %v vs frame %v: %w", z.Name, z.Rect(), frame, ErrInvalidZone)
		}
	}
	return nil
}
