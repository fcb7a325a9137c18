package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"parking-backend/internal/models"
)

// Publisher drains the outbound channels and publishes JSON payloads to
// their topics. Everything the system says to the outside world (barrier
// commands, access responses, status snapshots, full-lot notifications)
// flows through here.
type Publisher struct {
	client mqtt.Client

	// Input channels (read by publisher, written by services)
	BarrierChan  chan *models.BarrierCommand
	ResponseChan chan *models.AccessResponse
	StatusChan   chan *models.StatusMessage
	FullChan     chan *models.FullNotification

	barrierTopic      string
	rfidResponseTopic string
	qrResponseTopic   string
	statusTopic       string
	fullTopic         string
}

// PublisherConfig holds configuration for MQTT publisher
type PublisherConfig struct {
	BarrierTopic      string // e.g., "parking/barrier/command"
	RFIDResponseTopic string // e.g., "parking/rfid_response"
	QRResponseTopic   string // e.g., "parking/qr_response"
	StatusTopic       string // e.g., "parking/status"
	FullTopic         string // e.g., "parking/full_notification"
}

// NewPublisher creates a new MQTT publisher with channels
func NewPublisher(
	client mqtt.Client,
	config PublisherConfig,
	barrierChan chan *models.BarrierCommand,
	responseChan chan *models.AccessResponse,
	statusChan chan *models.StatusMessage,
	fullChan chan *models.FullNotification,
) *Publisher {
	return &Publisher{
		client:            client,
		BarrierChan:       barrierChan,
		ResponseChan:      responseChan,
		StatusChan:        statusChan,
		FullChan:          fullChan,
		barrierTopic:      config.BarrierTopic,
		rfidResponseTopic: config.RFIDResponseTopic,
		qrResponseTopic:   config.QRResponseTopic,
		statusTopic:       config.StatusTopic,
		fullTopic:         config.FullTopic,
	}
}

// Start begins publishing from the outbound channels
// Runs until context is cancelled
func (p *Publisher) Start(ctx context.Context) {
	log.Println("MQTT Publisher: Starting...")

	for {
		select {
		case <-ctx.Done():
			log.Println("MQTT Publisher: Context cancelled, shutting down...")
			return

		case cmd, ok := <-p.BarrierChan:
			if !ok {
				log.Println("MQTT Publisher: Barrier channel closed, shutting down...")
				return
			}
			if err := p.publishJSON(p.barrierTopic, cmd); err != nil {
				log.Printf("Error publishing barrier command: %v", err)
			}

		case resp, ok := <-p.ResponseChan:
			if !ok {
				log.Println("MQTT Publisher: Response channel closed, shutting down...")
				return
			}
			if err := p.publishJSON(p.responseTopic(resp.Kind), resp); err != nil {
				log.Printf("Error publishing access response: %v", err)
			}

		case status, ok := <-p.StatusChan:
			if !ok {
				log.Println("MQTT Publisher: Status channel closed, shutting down...")
				return
			}
			if err := p.publishJSON(p.statusTopic, status); err != nil {
				log.Printf("Error publishing parking status: %v", err)
			}

		case notif, ok := <-p.FullChan:
			if !ok {
				log.Println("MQTT Publisher: Full-notification channel closed, shutting down...")
				return
			}
			if err := p.publishJSON(p.fullTopic, notif); err != nil {
				log.Printf("Error publishing full notification: %v", err)
			}
		}
	}
}

// responseTopic selects the reply topic for a request kind.
func (p *Publisher) responseTopic(kind models.RequestKind) string {
	if kind == models.KindRFID {
		return p.rfidResponseTopic
	}
	return p.qrResponseTopic
}

// publishJSON marshals and publishes one payload
func (p *Publisher) publishJSON(topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	token := p.client.Publish(topic, 1, false, data)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}

	log.Printf("Published to topic: %s", topic)
	return nil
}
