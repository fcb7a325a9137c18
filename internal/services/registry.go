package services

import (
	"sync"
	"time"

	"parking-backend/internal/models"
)

// PendingRegistry tracks QR codes awaiting payment. It is the only
// mutation path for pending-code state: every transition goes through
// Transition, which refuses to leave a terminal status. Payment monitors
// and entry scans both race through here, so the guard is the ordering
// contract.
type PendingRegistry struct {
	mu    sync.Mutex
	codes map[string]*models.PendingCode
}

// NewPendingRegistry creates an empty registry
func NewPendingRegistry() *PendingRegistry {
	return &PendingRegistry{
		codes: make(map[string]*models.PendingCode),
	}
}

// Register adds a new active code. Returns false if the code is already
// pending.
func (r *PendingRegistry) Register(code string, placesAtGeneration int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.codes[code]; exists {
		return false
	}
	r.codes[code] = &models.PendingCode{
		Code:               code,
		Status:             models.CodeActive,
		CreatedAt:          time.Now(),
		PlacesAtGeneration: placesAtGeneration,
	}
	return true
}

// Get returns a copy of the pending entry for a code.
func (r *PendingRegistry) Get(code string) (models.PendingCode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.codes[code]
	if !ok {
		return models.PendingCode{}, false
	}
	return *entry, true
}

// Transition moves a code to a new status. It returns false when the
// code is unknown or already in a terminal state; terminal states are
// never overwritten, regardless of who asks.
func (r *PendingRegistry) Transition(code string, to models.CodeStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.codes[code]
	if !ok {
		return false
	}
	if entry.Status.Terminal() {
		return false
	}
	entry.Status = to
	return true
}

// Remove drops a code from the registry. Monitors call this after any
// terminal outcome so finished codes never leak.
func (r *PendingRegistry) Remove(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codes, code)
}

// Count returns the number of codes still pending.
func (r *PendingRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.codes)
}

// Codes returns the pending code strings, for the periodic status dump.
func (r *PendingRegistry) Codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.codes))
	for code := range r.codes {
		out = append(out, code)
	}
	return out
}
