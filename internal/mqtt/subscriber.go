package mqtt

import (
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"parking-backend/internal/models"
)

// generatedCodeLength is the fixed length of the numeric codes the entry
// terminal mints when it asks for a new payable QR code. Any other QR
// payload is a previously issued code presented for entry.
const generatedCodeLength = 6

// Subscriber handles MQTT subscriptions and writes tagged access requests
// to a channel. Classification happens here, at the boundary, so the
// admission service never sniffs payload shapes, and a slow ledger
// lookup never stalls paho's delivery goroutine.
type Subscriber struct {
	client mqtt.Client

	// Output channel (written by subscriber, read by the admission service)
	RequestChan chan *models.AccessRequest

	// Output channel for parse rejections (read by the publisher)
	ResponseChan chan *models.AccessResponse

	rfidTopic string
	qrTopic   string
}

// SubscriberConfig holds configuration for MQTT subscriber
type SubscriberConfig struct {
	RFIDTopic string // e.g., "parking/rfid_card"
	QRTopic   string // e.g., "parking/access_code"
}

// NewSubscriber creates a new MQTT subscriber with channels
func NewSubscriber(
	client mqtt.Client,
	config SubscriberConfig,
	requestChan chan *models.AccessRequest,
	responseChan chan *models.AccessResponse,
) *Subscriber {
	return &Subscriber{
		client:       client,
		RequestChan:  requestChan,
		ResponseChan: responseChan,
		rfidTopic:    config.RFIDTopic,
		qrTopic:      config.QRTopic,
	}
}

// SubscribeAll subscribes to the RFID and QR inbound topics
func (s *Subscriber) SubscribeAll() error {
	if err := s.subscribeToTopic(s.rfidTopic, s.handleRFID); err != nil {
		return fmt.Errorf("failed to subscribe to rfid topic: %w", err)
	}
	log.Printf("Subscribed to rfid topic: %s", s.rfidTopic)

	if err := s.subscribeToTopic(s.qrTopic, s.handleQR); err != nil {
		return fmt.Errorf("failed to subscribe to qr topic: %w", err)
	}
	log.Printf("Subscribed to qr topic: %s", s.qrTopic)

	return nil
}

// subscribeToTopic is a helper function to subscribe to a topic with a handler
func (s *Subscriber) subscribeToTopic(topic string, handler mqtt.MessageHandler) error {
	token := s.client.Subscribe(topic, 1, handler)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// handleRFID tags a badge scan and hands it to the admission service
func (s *Subscriber) handleRFID(client mqtt.Client, msg mqtt.Message) {
	identifier, err := parsePayload(msg.Payload())
	if err != nil {
		log.Printf("Error parsing rfid payload: %v", err)
		s.rejectParse(models.KindRFID)
		return
	}

	log.Printf("Received rfid card: %s", identifier)
	s.enqueue(&models.AccessRequest{
		Kind:       models.KindRFID,
		Identifier: identifier,
		ReceivedAt: time.Now(),
	})
}

// handleQR tags a QR payload as either a code-generation request or an
// entry scan of a previously issued code
func (s *Subscriber) handleQR(client mqtt.Client, msg mqtt.Message) {
	identifier, err := parsePayload(msg.Payload())
	if err != nil {
		log.Printf("Error parsing qr payload: %v", err)
		s.rejectParse(models.KindQRScan)
		return
	}

	kind := ClassifyQR(identifier)
	log.Printf("Received qr payload: %s (%s)", identifier, kind)
	s.enqueue(&models.AccessRequest{
		Kind:       kind,
		Identifier: identifier,
		ReceivedAt: time.Now(),
	})
}

// rejectParse answers a malformed payload on the matching response topic.
// A garbled scan gets told it was rejected instead of hearing nothing.
func (s *Subscriber) rejectParse(kind models.RequestKind) {
	resp := &models.AccessResponse{
		Kind:   kind,
		Status: "rejected",
		Reason: models.ReasonParseError,
	}
	select {
	case s.ResponseChan <- resp:
		// Successfully sent
	case <-time.After(1 * time.Second):
		log.Printf("Warning: Response channel full, dropping parse rejection")
	}
}

// enqueue writes to the request channel (non-blocking with timeout)
func (s *Subscriber) enqueue(req *models.AccessRequest) {
	select {
	case s.RequestChan <- req:
		// Successfully sent
	case <-time.After(1 * time.Second):
		log.Printf("Warning: Request channel full, dropping %s request %s", req.Kind, req.Identifier)
	}
}

// parsePayload validates and trims an inbound identifier. Empty or
// whitespace-only payloads are a ParseError, never silently ignored.
func parsePayload(payload []byte) (string, error) {
	identifier := strings.TrimSpace(string(payload))
	if identifier == "" {
		return "", fmt.Errorf("empty identifier payload")
	}
	return identifier, nil
}

// ClassifyQR decides whether a QR payload is a request to mint a new
// payable code (fixed-length numeric) or an entry scan of an issued code.
func ClassifyQR(identifier string) models.RequestKind {
	if len(identifier) == generatedCodeLength && isDigits(identifier) {
		return models.KindQRGenerate
	}
	return models.KindQRScan
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
