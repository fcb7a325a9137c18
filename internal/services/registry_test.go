package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-backend/internal/models"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewPendingRegistry()

	require.True(t, r.Register("482913", 3))
	assert.False(t, r.Register("482913", 3), "duplicate registration must be refused")

	entry, ok := r.Get("482913")
	require.True(t, ok)
	assert.Equal(t, models.CodeActive, entry.Status)
	assert.Equal(t, 3, entry.PlacesAtGeneration)
	assert.Equal(t, 1, r.Count())

	_, ok = r.Get("000000")
	assert.False(t, ok)
}

func TestRegistryTransitionLifecycle(t *testing.T) {
	r := NewPendingRegistry()
	r.Register("482913", 2)

	require.True(t, r.Transition("482913", models.CodePaid))
	entry, _ := r.Get("482913")
	assert.Equal(t, models.CodePaid, entry.Status)

	require.True(t, r.Transition("482913", models.CodeUsed))
	entry, _ = r.Get("482913")
	assert.Equal(t, models.CodeUsed, entry.Status)
}

func TestRegistryTerminalStatesAreImmutable(t *testing.T) {
	r := NewPendingRegistry()

	r.Register("111111", 1)
	require.True(t, r.Transition("111111", models.CodeUsed))
	assert.False(t, r.Transition("111111", models.CodePaid), "used is terminal")
	assert.False(t, r.Transition("111111", models.CodeExpired), "used is terminal")
	entry, _ := r.Get("111111")
	assert.Equal(t, models.CodeUsed, entry.Status)

	r.Register("222222", 1)
	require.True(t, r.Transition("222222", models.CodeExpired))
	assert.False(t, r.Transition("222222", models.CodePaid), "expired is terminal")
	entry, _ = r.Get("222222")
	assert.Equal(t, models.CodeExpired, entry.Status)
}

func TestRegistryTransitionUnknownCode(t *testing.T) {
	r := NewPendingRegistry()
	assert.False(t, r.Transition("404404", models.CodePaid))
}

func TestRegistryRemove(t *testing.T) {
	r := NewPendingRegistry()
	r.Register("482913", 1)
	r.Remove("482913")

	_, ok := r.Get("482913")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())

	// Removing twice is harmless.
	r.Remove("482913")
}

// Racing monitors and scans may interleave freely; exactly one terminal
// transition must win and stick.
func TestRegistryConcurrentTerminalRace(t *testing.T) {
	r := NewPendingRegistry()
	r.Register("482913", 1)

	var wg sync.WaitGroup
	wins := make(chan models.CodeStatus, 2)
	for _, status := range []models.CodeStatus{models.CodeUsed, models.CodeExpired} {
		wg.Add(1)
		go func(to models.CodeStatus) {
			defer wg.Done()
			if r.Transition("482913", to) {
				wins <- to
			}
		}(status)
	}
	wg.Wait()
	close(wins)

	var winners []models.CodeStatus
	for w := range wins {
		winners = append(winners, w)
	}
	require.Len(t, winners, 1)

	entry, _ := r.Get("482913")
	assert.Equal(t, winners[0], entry.Status)
}
