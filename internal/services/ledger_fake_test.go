package services

import (
	"context"
	"errors"
	"sync"

	"parking-backend/internal/models"
)

// fakeLedger is an in-memory Ledger for admission and monitor tests.
type fakeLedger struct {
	mu    sync.Mutex
	cards map[string]*models.RFIDCard
	codes map[string]*models.AccessCode
	txs   map[string]*models.Transaction
	logs  []*models.AccessLog

	// txVisibleAfter delays transaction visibility until N lookups have
	// happened for the code, to simulate a payment arriving mid-poll.
	txVisibleAfter map[string]int
	txLookups      map[string]int

	unreachable bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		cards:          make(map[string]*models.RFIDCard),
		codes:          make(map[string]*models.AccessCode),
		txs:            make(map[string]*models.Transaction),
		txVisibleAfter: make(map[string]int),
		txLookups:      make(map[string]int),
	}
}

var errLedgerDown = errors.New("ledger unreachable")

func (f *fakeLedger) FindCardByUID(ctx context.Context, cardUID string) (*models.RFIDCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unreachable {
		return nil, errLedgerDown
	}
	return f.cards[cardUID], nil
}

func (f *fakeLedger) InsertAccessCode(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unreachable {
		return errLedgerDown
	}
	f.codes[code] = &models.AccessCode{Code: code, Status: models.CodeActive}
	return nil
}

func (f *fakeLedger) FindAccessCode(ctx context.Context, code string) (*models.AccessCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unreachable {
		return nil, errLedgerDown
	}
	ac, ok := f.codes[code]
	if !ok {
		return nil, nil
	}
	cp := *ac
	return &cp, nil
}

func (f *fakeLedger) UpdateAccessCodeStatus(ctx context.Context, code string, status models.CodeStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unreachable {
		return errLedgerDown
	}
	if ac, ok := f.codes[code]; ok {
		ac.Status = status
	} else {
		f.codes[code] = &models.AccessCode{Code: code, Status: status}
	}
	return nil
}

func (f *fakeLedger) FindCompletedTransaction(ctx context.Context, code string) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unreachable {
		return nil, errLedgerDown
	}
	f.txLookups[code]++
	if after, ok := f.txVisibleAfter[code]; ok && f.txLookups[code] < after {
		return nil, nil
	}
	return f.txs[code], nil
}

func (f *fakeLedger) InsertAccessLog(ctx context.Context, entry *models.AccessLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unreachable {
		return errLedgerDown
	}
	f.logs = append(f.logs, entry)
	return nil
}

func (f *fakeLedger) codeStatus(code string) (models.CodeStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ac, ok := f.codes[code]
	if !ok {
		return "", false
	}
	return ac.Status, true
}

func (f *fakeLedger) setUnreachable(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unreachable = down
}

// fixedCapacity is a CapacityProvider pinned to one snapshot.
type fixedCapacity struct {
	mu    sync.Mutex
	state models.ParkingState
}

func (c *fixedCapacity) Snapshot() models.ParkingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fixedCapacity) set(state models.ParkingState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

func capacityOf(available, total int) *fixedCapacity {
	return &fixedCapacity{state: models.ParkingState{
		Total:     total,
		Available: available,
		Occupied:  total - available,
	}}
}
