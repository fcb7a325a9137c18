package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"parking-backend/internal/models"
)

// Ledger is the external credential/payment store consumed by the
// admission path. Find operations return (nil, nil) when no row matches;
// any error is treated as fail-closed by callers.
type Ledger interface {
	FindCardByUID(ctx context.Context, cardUID string) (*models.RFIDCard, error)
	InsertAccessCode(ctx context.Context, code string) error
	FindAccessCode(ctx context.Context, code string) (*models.AccessCode, error)
	UpdateAccessCodeStatus(ctx context.Context, code string, status models.CodeStatus) error
	FindCompletedTransaction(ctx context.Context, code string) (*models.Transaction, error)
	InsertAccessLog(ctx context.Context, entry *models.AccessLog) error
}

// CapacityProvider exposes the current parking snapshot. Implemented by
// ParkingService.
type CapacityProvider interface {
	Snapshot() models.ParkingState
}

// AdmissionService decides whether the barrier opens. It consumes tagged
// access requests from the subscriber's channel, consults the ledger and
// the live capacity snapshot, and emits barrier commands and responses.
// It never blocks on a payment outcome: QR payment progress belongs to
// the per-code monitors.
type AdmissionService struct {
	ledger   Ledger
	registry *PendingRegistry
	capacity CapacityProvider
	notifier *FullNotifier

	paymentInterval time.Duration
	paymentTimeout  time.Duration

	// Input channel from the MQTT subscriber
	RequestChan chan *models.AccessRequest

	// Output channels to the MQTT publisher
	BarrierChan  chan *models.BarrierCommand
	ResponseChan chan *models.AccessResponse
}

// AdmissionServiceConfig holds configuration for the admission service
type AdmissionServiceConfig struct {
	PaymentCheckInterval time.Duration
	PaymentTimeout       time.Duration
	ChannelSize          int
}

// DefaultAdmissionServiceConfig returns default configuration
func DefaultAdmissionServiceConfig() AdmissionServiceConfig {
	return AdmissionServiceConfig{
		PaymentCheckInterval: 3 * time.Second,
		PaymentTimeout:       300 * time.Second,
		ChannelSize:          50,
	}
}

// NewAdmissionService creates a new admission service
func NewAdmissionService(
	ledger Ledger,
	registry *PendingRegistry,
	capacity CapacityProvider,
	notifier *FullNotifier,
	config AdmissionServiceConfig,
) *AdmissionService {
	return &AdmissionService{
		ledger:          ledger,
		registry:        registry,
		capacity:        capacity,
		notifier:        notifier,
		paymentInterval: config.PaymentCheckInterval,
		paymentTimeout:  config.PaymentTimeout,
		RequestChan:     make(chan *models.AccessRequest, config.ChannelSize),
		BarrierChan:     make(chan *models.BarrierCommand, config.ChannelSize),
		ResponseChan:    make(chan *models.AccessResponse, config.ChannelSize),
	}
}

// Start begins processing access requests from the channel
// Runs until context is cancelled
func (s *AdmissionService) Start(ctx context.Context) {
	log.Println("AdmissionService: Starting...")

	for {
		select {
		case <-ctx.Done():
			log.Println("AdmissionService: Shutting down...")
			return
		case req, ok := <-s.RequestChan:
			if !ok {
				log.Println("AdmissionService: Request channel closed, shutting down...")
				return
			}
			s.HandleRequest(ctx, req)
		}
	}
}

// HandleRequest dispatches one tagged access request.
func (s *AdmissionService) HandleRequest(ctx context.Context, req *models.AccessRequest) {
	switch req.Kind {
	case models.KindRFID:
		s.handleRFID(ctx, req.Identifier)
	case models.KindQRGenerate:
		s.handleQRGenerate(ctx, req.Identifier)
	case models.KindQRScan:
		s.handleQRScan(ctx, req.Identifier)
	default:
		log.Printf("AdmissionService: Unknown request kind %q for %s", req.Kind, req.Identifier)
	}
}

// handleRFID validates a badge against the ledger, then applies the
// capacity gate.
func (s *AdmissionService) handleRFID(ctx context.Context, cardUID string) {
	card, err := s.ledger.FindCardByUID(ctx, cardUID)
	if err != nil {
		// Fail closed: an unreachable ledger denies, never crashes.
		log.Printf("AdmissionService: Ledger error for card %s: %v", cardUID, err)
		s.respond(&models.AccessResponse{
			Kind: models.KindRFID, Status: "denied", Reason: models.ReasonLedgerError, CardUID: cardUID,
		})
		s.refuse("RFID", models.ReasonLedgerError)
		return
	}

	if card == nil {
		log.Printf("AdmissionService: Unknown card %s", cardUID)
		s.logAccess(ctx, cardUID, "rfid", "denied_unknown", "")
		s.respond(&models.AccessResponse{
			Kind: models.KindRFID, Status: "denied", Reason: models.ReasonNotFound, CardUID: cardUID,
		})
		s.refuse("RFID", models.ReasonNotFound)
		return
	}

	if !card.IsActive {
		log.Printf("AdmissionService: Inactive card %s (%s)", cardUID, card.OwnerName)
		s.logAccess(ctx, cardUID, "rfid", "denied_inactive", card.OwnerName)
		s.respond(&models.AccessResponse{
			Kind: models.KindRFID, Status: "denied", Reason: models.ReasonInactive, CardUID: cardUID,
		})
		s.refuse("RFID", models.ReasonInactive)
		return
	}

	s.logAccess(ctx, cardUID, "rfid", "granted", card.OwnerName)
	s.respond(&models.AccessResponse{
		Kind: models.KindRFID, Status: "granted", Valid: true, CardUID: cardUID, Owner: card.OwnerName,
	})
	s.finalGate("RFID", card.OwnerName)
}

// handleQRGenerate registers a freshly minted payable code and starts its
// payment monitor, unless the lot is already full.
func (s *AdmissionService) handleQRGenerate(ctx context.Context, code string) {
	state := s.capacity.Snapshot()

	if state.Available <= 0 {
		log.Printf("AdmissionService: QR generation refused for %s: lot full (0/%d)", code, state.Total)
		s.respond(&models.AccessResponse{
			Kind:    models.KindQRGenerate,
			Status:  "rejected",
			Code:    code,
			Reason:  models.ReasonParkingFull,
			Total:   state.Total,
			Message: "PARKING FULL - code generation refused",
		})
		s.notifier.Notify(state.Total)
		// No code registered, no monitor started.
		return
	}

	if err := s.ledger.InsertAccessCode(ctx, code); err != nil {
		log.Printf("AdmissionService: Failed to insert code %s: %v", code, err)
		s.respond(&models.AccessResponse{
			Kind: models.KindQRGenerate, Status: "rejected", Code: code, Reason: models.ReasonLedgerError,
		})
		return
	}

	if !s.registry.Register(code, state.Available) {
		log.Printf("AdmissionService: Code %s already pending, monitor not restarted", code)
		s.respond(&models.AccessResponse{
			Kind: models.KindQRGenerate, Status: "rejected", Code: code, Reason: models.ReasonInvalid,
		})
		return
	}

	monitor := NewPaymentMonitor(s.ledger, s.registry, code, s.paymentInterval, s.paymentTimeout, s.ResponseChan)
	go monitor.Run(ctx)

	log.Printf("AdmissionService: Code %s generated, %d/%d available, payment monitor started",
		code, state.Available, state.Total)
	s.respond(&models.AccessResponse{
		Kind:      models.KindQRGenerate,
		Status:    "received",
		Code:      code,
		Available: state.Available,
		Total:     state.Total,
		Message:   fmt.Sprintf("QR %s generated - %d places available", code, state.Available),
	})
}

// handleQRScan verifies a previously issued code presented at the barrier.
func (s *AdmissionService) handleQRScan(ctx context.Context, code string) {
	ac, err := s.ledger.FindAccessCode(ctx, code)
	if err != nil {
		log.Printf("AdmissionService: Ledger error for code %s: %v", code, err)
		s.denyQR(ctx, code, models.ReasonLedgerError)
		return
	}
	if ac == nil {
		s.logAccess(ctx, code, "qr", "denied_invalid", "")
		s.denyQR(ctx, code, models.ReasonInvalid)
		return
	}

	switch ac.Status {
	case models.CodeUsed:
		s.logAccess(ctx, code, "qr", "denied_already_used", "")
		s.denyQR(ctx, code, models.ReasonAlreadyUsed)
		return
	case models.CodeExpired:
		s.logAccess(ctx, code, "qr", "denied_expired", "")
		s.denyQR(ctx, code, models.ReasonExpired)
		return
	}

	// active or paid: the completed transaction decides.
	tx, err := s.ledger.FindCompletedTransaction(ctx, code)
	if err != nil {
		log.Printf("AdmissionService: Ledger error checking payment for %s: %v", code, err)
		s.denyQR(ctx, code, models.ReasonLedgerError)
		return
	}
	if tx == nil {
		s.logAccess(ctx, code, "qr", "denied_unpaid", "")
		s.denyQR(ctx, code, models.ReasonUnpaid)
		return
	}

	// Paid: the scan consumes the code. used is terminal; the registry
	// guard keeps a racing monitor from regressing it.
	s.registry.Transition(code, models.CodeUsed)
	if err := s.ledger.UpdateAccessCodeStatus(ctx, code, models.CodeUsed); err != nil {
		log.Printf("AdmissionService: Failed to mark code %s used: %v", code, err)
	}
	s.registry.Remove(code)

	s.logAccess(ctx, code, "qr", "granted_paid", tx.UserID)
	s.respond(&models.AccessResponse{
		Kind:          models.KindQRScan,
		Status:        "granted",
		Valid:         true,
		Code:          code,
		TransactionID: tx.ID,
		UserID:        tx.UserID,
	})
	s.finalGate("QR", tx.UserID)
}

// finalGate re-checks capacity at decision time. A credential that was
// valid a moment ago still stays out if the lot filled up meanwhile.
func (s *AdmissionService) finalGate(method, user string) {
	state := s.capacity.Snapshot()
	if state.Available <= 0 {
		log.Printf("AdmissionService: %s access for %s blocked at gate: lot full", method, user)
		s.refuse(method, models.ReasonParkingFull)
		s.notifier.Notify(state.Total)
		return
	}

	log.Printf("AdmissionService: Barrier open (%s, %s, %d available)", method, user, state.Available)
	s.emitBarrier(&models.BarrierCommand{
		Action:    models.ActionOpen,
		Method:    method,
		User:      user,
		Available: state.Available,
		Message:   fmt.Sprintf("WELCOME %s", user),
	})
}

// denyQR publishes a denied QR response and the matching barrier refusal.
func (s *AdmissionService) denyQR(ctx context.Context, code, reason string) {
	s.respond(&models.AccessResponse{
		Kind: models.KindQRScan, Status: "denied", Code: code, Reason: reason,
	})
	s.refuse("QR", reason)
}

// refuse keeps the barrier closed with a specific reason.
func (s *AdmissionService) refuse(method, reason string) {
	log.Printf("AdmissionService: Access refused (%s): %s", method, reason)
	s.emitBarrier(&models.BarrierCommand{
		Action:  models.ActionStayClosed,
		Method:  method,
		Reason:  reason,
		Message: reason,
	})
}

// emitBarrier writes to the barrier channel (non-blocking with timeout)
func (s *AdmissionService) emitBarrier(cmd *models.BarrierCommand) {
	select {
	case s.BarrierChan <- cmd:
		// Successfully sent
	case <-time.After(1 * time.Second):
		log.Printf("Warning: Barrier channel full, dropping %s command", cmd.Action)
	}
}

// respond writes to the response channel (non-blocking with timeout)
func (s *AdmissionService) respond(resp *models.AccessResponse) {
	select {
	case s.ResponseChan <- resp:
		// Successfully sent
	case <-time.After(1 * time.Second):
		log.Printf("Warning: Response channel full, dropping %s response", resp.Status)
	}
}

// logAccess records an attempt in the audit table. Best effort: a ledger
// hiccup never fails the request path.
func (s *AdmissionService) logAccess(ctx context.Context, identifier, accessType, status, owner string) {
	entry := &models.AccessLog{
		Identifier: identifier,
		AccessType: accessType,
		Status:     status,
		OwnerName:  owner,
		Timestamp:  time.Now(),
	}
	if err := s.ledger.InsertAccessLog(ctx, entry); err != nil {
		log.Printf("AdmissionService: Failed to log access attempt: %v", err)
	}
}
