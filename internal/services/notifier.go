package services

import (
	"log"
	"sync"
	"time"

	"parking-backend/internal/models"
)

// FullNotifier rate-limits the "lot full" broadcast. Both the capacity
// edge in the aggregation cycle and capacity denials in the admission
// path funnel through Notify; at most one notification leaves per
// cooldown window.
type FullNotifier struct {
	cooldown time.Duration
	fullChan chan *models.FullNotification

	mu       sync.Mutex
	lastEmit time.Time
	now      func() time.Time
}

// NewFullNotifier creates a debounced notifier writing to fullChan.
func NewFullNotifier(cooldown time.Duration, fullChan chan *models.FullNotification) *FullNotifier {
	return &FullNotifier{
		cooldown: cooldown,
		fullChan: fullChan,
		now:      time.Now,
	}
}

// Notify emits a full-lot notification unless one already left within
// the cooldown window. Returns whether the notification was emitted.
func (n *FullNotifier) Notify(total int) bool {
	if !n.shouldEmit() {
		return false
	}

	notif := &models.FullNotification{
		Status:    "full",
		Available: 0,
		Total:     total,
		Message:   "PARKING FULL - please come back later",
		Timestamp: n.now().Format(time.RFC3339),
	}

	select {
	case n.fullChan <- notif:
		log.Printf("FullNotifier: Lot-full notification emitted (total=%d)", total)
	case <-time.After(1 * time.Second):
		log.Println("Warning: Full-notification channel full, dropping notification")
	}
	return true
}

// shouldEmit checks and advances the cooldown window atomically.
func (n *FullNotifier) shouldEmit() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	if !n.lastEmit.IsZero() && now.Sub(n.lastEmit) < n.cooldown {
		return false
	}
	n.lastEmit = now
	return true
}
