package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"parking-backend/internal/detector"
	"parking-backend/internal/models"
)

// FrameSource supplies the current scene. Implemented by camera.Fetcher.
type FrameSource interface {
	Fetch(ctx context.Context) (*models.FrameSnapshot, error)
}

// ParkingService runs the occupancy cycle: one frame per tick, every
// zone evaluated in name order, the capacity snapshot rebuilt atomically.
// It owns ParkingState exclusively; everyone else reads via Snapshot.
type ParkingService struct {
	source    FrameSource
	zones     []models.Zone // sorted by name at load
	reference *models.FrameSnapshot
	detectCfg detector.Config
	interval  time.Duration
	notifier  *FullNotifier

	// Output channel for per-cycle status snapshots
	StatusChan chan *models.StatusMessage

	// cycleMu enforces single-flight: a tick that fires while a cycle is
	// still running is skipped entirely.
	cycleMu sync.Mutex

	mu    sync.RWMutex
	state models.ParkingState
}

// ParkingServiceConfig holds configuration for the aggregation cycle
type ParkingServiceConfig struct {
	AnalysisInterval time.Duration
	ChannelSize      int
}

// DefaultParkingServiceConfig returns default configuration
func DefaultParkingServiceConfig() ParkingServiceConfig {
	return ParkingServiceConfig{
		AnalysisInterval: 2 * time.Second,
		ChannelSize:      10,
	}
}

// NewParkingService creates the aggregator. zones must already be sorted
// and validated; reference may be nil (edge-contour fallback).
func NewParkingService(
	source FrameSource,
	zones []models.Zone,
	reference *models.FrameSnapshot,
	detectCfg detector.Config,
	notifier *FullNotifier,
	config ParkingServiceConfig,
) *ParkingService {
	s := &ParkingService{
		source:     source,
		zones:      zones,
		reference:  reference,
		detectCfg:  detectCfg,
		interval:   config.AnalysisInterval,
		notifier:   notifier,
		StatusChan: make(chan *models.StatusMessage, config.ChannelSize),
	}

	// Before the first successful cycle every zone counts as free, as
	// the calibration tool observed an empty lot.
	s.state = models.ParkingState{
		Timestamp: time.Now(),
		Total:     len(zones),
		Available: len(zones),
		Occupied:  0,
		Zones:     make(map[string]models.OccupancyResult),
	}
	return s
}

// Start begins the periodic analysis loop
// Runs until context is cancelled
func (s *ParkingService) Start(ctx context.Context) {
	log.Printf("ParkingService: Starting analysis loop (interval=%v, zones=%d)", s.interval, len(s.zones))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("ParkingService: Shutting down...")
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle performs one occupancy analysis pass. If a previous cycle is
// still in flight the call returns immediately: no overlapping camera
// fetch, no concurrent state rebuild.
func (s *ParkingService) RunCycle(ctx context.Context) {
	if !s.cycleMu.TryLock() {
		log.Println("ParkingService: Previous cycle still running, skipping tick")
		return
	}
	defer s.cycleMu.Unlock()

	frame, err := s.source.Fetch(ctx)
	if err != nil {
		// Stale-but-valid: keep the previous state untouched.
		log.Printf("ParkingService: Frame capture failed, retaining previous state: %v", err)
		return
	}

	results := make(map[string]models.OccupancyResult, len(s.zones))
	available := 0
	for _, zone := range s.zones {
		res, err := detector.Evaluate(zone, frame, s.reference, s.detectCfg)
		if err != nil {
			if errors.Is(err, detector.ErrInvalidZone) {
				// Zones are validated at startup; reaching this means the
				// camera changed resolution mid-run. Count the zone free
				// and keep going.
				log.Printf("ParkingService: %v", err)
				res = models.OccupancyResult{Zone: zone.Name}
			} else {
				log.Printf("ParkingService: Zone %s evaluation failed: %v", zone.Name, err)
				res = models.OccupancyResult{Zone: zone.Name}
			}
		}
		results[zone.Name] = res
		if !res.Occupied {
			available++
		}
	}

	newState := models.ParkingState{
		Timestamp: frame.CapturedAt,
		Total:     len(s.zones),
		Available: available,
		Occupied:  len(s.zones) - available,
		Zones:     results,
	}

	s.mu.Lock()
	prevAvailable := s.state.Available
	s.state = newState
	s.mu.Unlock()

	// Lot-full edge: fires exactly once per transition, not while the lot
	// stays full.
	if prevAvailable > 0 && available == 0 {
		log.Printf("ParkingService: Lot just became full (0/%d)", newState.Total)
		s.notifier.Notify(newState.Total)
	}

	log.Printf("ParkingService: Cycle complete: %d/%d available", available, newState.Total)

	select {
	case s.StatusChan <- models.NewStatusMessage(newState):
		// Successfully sent
	case <-time.After(1 * time.Second):
		log.Println("Warning: Status channel full, dropping snapshot")
	}
}

// Snapshot returns a copy of the current capacity state.
func (s *ParkingService) Snapshot() models.ParkingState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := s.state
	zones := make(map[string]models.OccupancyResult, len(state.Zones))
	for name, res := range state.Zones {
		zones[name] = res
	}
	state.Zones = zones
	return state
}
