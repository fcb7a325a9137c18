package services

import (
	"context"
	"log"
	"time"

	"parking-backend/internal/models"
)

// PaymentMonitor watches one pending QR code, polling the ledger for a
// completed transaction until the code is paid or the timeout elapses.
// One monitor runs per generated code; it self-terminates on any terminal
// outcome and removes the code from the registry, so no external
// cancellation path is needed beyond ctx.
type PaymentMonitor struct {
	ledger   Ledger
	registry *PendingRegistry
	code     string
	interval time.Duration
	timeout  time.Duration

	// Output channel for the "paid" notification (qr response topic)
	responseChan chan *models.AccessResponse
}

// NewPaymentMonitor creates a monitor for one code
func NewPaymentMonitor(
	ledger Ledger,
	registry *PendingRegistry,
	code string,
	interval, timeout time.Duration,
	responseChan chan *models.AccessResponse,
) *PaymentMonitor {
	return &PaymentMonitor{
		ledger:       ledger,
		registry:     registry,
		code:         code,
		interval:     interval,
		timeout:      timeout,
		responseChan: responseChan,
	}
}

// Run polls until the code reaches a terminal or paid state. Blocking;
// callers start it in its own goroutine.
func (m *PaymentMonitor) Run(ctx context.Context) {
	log.Printf("PaymentMonitor[%s]: Started (interval=%v, timeout=%v)", m.code, m.interval, m.timeout)

	deadline := time.Now().Add(m.timeout)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("PaymentMonitor[%s]: Context cancelled, exiting", m.code)
			return
		case <-ticker.C:
		}

		// An entry scan may have consumed the code between polls. Never
		// overwrite a terminal or advanced state, just exit.
		entry, ok := m.registry.Get(m.code)
		if !ok || entry.Status != models.CodeActive {
			log.Printf("PaymentMonitor[%s]: Code no longer active, exiting", m.code)
			return
		}

		if time.Now().After(deadline) {
			m.expire(ctx)
			return
		}

		tx, err := m.ledger.FindCompletedTransaction(ctx, m.code)
		if err != nil {
			// Transient ledger failure: log and poll again next tick.
			log.Printf("PaymentMonitor[%s]: Ledger error: %v", m.code, err)
			continue
		}
		if tx != nil {
			m.markPaid(ctx, tx)
			return
		}
	}
}

// markPaid transitions active -> paid, persists it, and announces the
// payment on the qr response topic.
func (m *PaymentMonitor) markPaid(ctx context.Context, tx *models.Transaction) {
	if !m.registry.Transition(m.code, models.CodePaid) {
		log.Printf("PaymentMonitor[%s]: Lost race to a terminal state, exiting", m.code)
		m.registry.Remove(m.code)
		return
	}

	if err := m.ledger.UpdateAccessCodeStatus(ctx, m.code, models.CodePaid); err != nil {
		log.Printf("PaymentMonitor[%s]: Failed to persist paid status: %v", m.code, err)
	}

	entry := &models.AccessLog{
		Identifier: m.code,
		AccessType: "qr",
		Status:     "paid_waiting_scan",
		OwnerName:  tx.UserID,
		Timestamp:  time.Now(),
	}
	if err := m.ledger.InsertAccessLog(ctx, entry); err != nil {
		log.Printf("PaymentMonitor[%s]: Failed to log payment: %v", m.code, err)
	}

	log.Printf("PaymentMonitor[%s]: Payment received (tx=%s, user=%s, amount=%.2f)",
		m.code, tx.ID, tx.UserID, tx.Amount)

	select {
	case m.responseChan <- &models.AccessResponse{
		Kind:          models.KindQRScan,
		Status:        "paid",
		Code:          m.code,
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Message:       "Payment received! Scan the QR code to enter.",
	}:
		// Successfully sent
	case <-time.After(1 * time.Second):
		log.Printf("Warning: Response channel full, dropping paid notification for %s", m.code)
	}

	m.registry.Remove(m.code)
}

// expire transitions active -> expired after the payment window closes.
// A timeout is an expected terminal outcome, not an error.
func (m *PaymentMonitor) expire(ctx context.Context) {
	if !m.registry.Transition(m.code, models.CodeExpired) {
		log.Printf("PaymentMonitor[%s]: Already terminal at timeout, exiting", m.code)
		m.registry.Remove(m.code)
		return
	}

	if err := m.ledger.UpdateAccessCodeStatus(ctx, m.code, models.CodeExpired); err != nil {
		log.Printf("PaymentMonitor[%s]: Failed to persist expired status: %v", m.code, err)
	}

	log.Printf("PaymentMonitor[%s]: No payment within %v, code expired", m.code, m.timeout)
	m.registry.Remove(m.code)
}
