package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parking-backend/internal/camera"
	"parking-backend/internal/database"
	"parking-backend/internal/detector"
	"parking-backend/internal/models"
	"parking-backend/internal/mqtt"
	"parking-backend/internal/services"
	"parking-backend/internal/web"
	"parking-backend/pkg/config"
)

func main() {
	log.Println("Starting Smart Parking Backend...")

	// Load configuration
	cfg := config.Load()

	// === Load zone calibration ===
	zones, err := detector.LoadZones(cfg.ZonesPath)
	if err != nil {
		log.Fatalf("Failed to load zone config: %v (run the calibration tool first)", err)
	}
	log.Printf("Loaded %d parking zones from %s", len(zones), cfg.ZonesPath)

	// === Load reference frame (optional) ===
	reference, err := camera.LoadReference(cfg.ReferencePath)
	if err != nil {
		log.Printf("No reference image (%v), falling back to edge-contour detection", err)
		reference = nil
	} else {
		// Zone rectangles outside the frame are a fatal configuration
		// error, caught here once rather than every cycle.
		if err := detector.ValidateZones(zones, reference.Bounds()); err != nil {
			log.Fatalf("Invalid zone configuration: %v", err)
		}
		log.Println("Reference frame loaded, zones validated")
	}

	// === Initialize ClickHouse ledger ===
	db, err := database.NewClickHouseDB(
		cfg.ClickHouseAddr,
		cfg.ClickHouseDB,
		cfg.ClickHouseUser,
		cfg.ClickHousePass,
	)
	if err != nil {
		log.Fatalf("Failed to initialize ClickHouse: %v", err)
	}
	defer db.Close()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === Channel Creation ===
	// These channels connect the MQTT layer with the services layer
	log.Println("Creating communication channels...")

	requestChan := make(chan *models.AccessRequest, 50)
	barrierChan := make(chan *models.BarrierCommand, 50)
	responseChan := make(chan *models.AccessResponse, 50)
	statusChan := make(chan *models.StatusMessage, 10)
	fullChan := make(chan *models.FullNotification, 10)

	// === Initialize MQTT Client ===
	log.Println("Connecting to MQTT broker...")
	mqttClient, err := mqtt.NewClient(mqtt.ClientConfig{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientID,
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
	})
	if err != nil {
		log.Fatalf("Failed to initialize MQTT client: %v", err)
	}
	defer mqttClient.Close()

	// === Initialize MQTT Subscriber ===
	subscriber := mqtt.NewSubscriber(
		mqttClient.GetNativeClient(),
		mqtt.SubscriberConfig{
			RFIDTopic: cfg.MQTTTopicRFID,
			QRTopic:   cfg.MQTTTopicQR,
		},
		requestChan,
		responseChan,
	)
	if err := subscriber.SubscribeAll(); err != nil {
		log.Fatalf("Failed to subscribe to MQTT topics: %v", err)
	}

	// === Initialize MQTT Publisher ===
	publisher := mqtt.NewPublisher(
		mqttClient.GetNativeClient(),
		mqtt.PublisherConfig{
			BarrierTopic:      cfg.MQTTTopicBarrier,
			RFIDResponseTopic: cfg.MQTTTopicRFIDResponse,
			QRResponseTopic:   cfg.MQTTTopicQRResponse,
			StatusTopic:       cfg.MQTTTopicStatus,
			FullTopic:         cfg.MQTTTopicFull,
		},
		barrierChan,
		responseChan,
		statusChan,
		fullChan,
	)
	go publisher.Start(ctx)

	// === Initialize Full-lot Notifier ===
	notifier := services.NewFullNotifier(cfg.FullNotificationCooldown, fullChan)

	// === Initialize Parking Service ===
	log.Println("Initializing parking state aggregator...")
	detectCfg := detector.DefaultConfig()
	detectCfg.OccupancyThreshold = cfg.OccupancyThreshold
	detectCfg.DiffThreshold = uint8(cfg.DiffThreshold)
	detectCfg.MinContourArea = cfg.MinContourArea

	parkingCfg := services.DefaultParkingServiceConfig()
	parkingCfg.AnalysisInterval = cfg.AnalysisInterval

	fetcher := camera.NewFetcher(cfg.CameraURL, cfg.CameraTimeout)
	parkingService := services.NewParkingService(fetcher, zones, reference, detectCfg, notifier, parkingCfg)
	parkingService.StatusChan = statusChan
	go parkingService.Start(ctx)

	// === Initialize Admission Service ===
	log.Println("Initializing admission controller...")
	admissionCfg := services.DefaultAdmissionServiceConfig()
	admissionCfg.PaymentCheckInterval = cfg.PaymentCheckInterval
	admissionCfg.PaymentTimeout = cfg.PaymentTimeout

	registry := services.NewPendingRegistry()
	admissionService := services.NewAdmissionService(db, registry, parkingService, notifier, admissionCfg)
	admissionService.RequestChan = requestChan
	admissionService.BarrierChan = barrierChan
	admissionService.ResponseChan = responseChan
	go admissionService.Start(ctx)

	// === Initialize Web Status Endpoint ===
	webServer := web.NewServer(cfg.WebAddr, parkingService)
	go webServer.Start()

	// === Periodic pending-code report ===
	go pendingReportLoop(ctx, registry)

	// === Log startup info ===
	log.Println("=== Smart Parking Backend is running ===")
	log.Printf("Zones: %d, analysis interval: %v", len(zones), cfg.AnalysisInterval)
	log.Printf("Payment timeout: %v, check interval: %v", cfg.PaymentTimeout, cfg.PaymentCheckInterval)
	log.Printf("Full-lot notification cooldown: %v", cfg.FullNotificationCooldown)
	log.Printf("MQTT Topics:")
	log.Printf("  - RFID in:      %s", cfg.MQTTTopicRFID)
	log.Printf("  - QR in:        %s", cfg.MQTTTopicQR)
	log.Printf("  - Barrier out:  %s", cfg.MQTTTopicBarrier)
	log.Printf("  - Status out:   %s", cfg.MQTTTopicStatus)
	log.Printf("  - Full out:     %s", cfg.MQTTTopicFull)
	log.Println("Press Ctrl+C to exit...")

	// === Wait for interrupt signal ===
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// === Graceful shutdown ===
	log.Println("Shutdown signal received, stopping services...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Web server shutdown: %v", err)
	}

	// Give services time to finish processing
	time.Sleep(2 * time.Second)

	log.Println("Shutdown complete. Goodbye!")
}

// pendingReportLoop logs the codes still waiting for payment every 30s.
func pendingReportLoop(ctx context.Context, registry *services.PendingRegistry) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := registry.Count(); n > 0 {
				log.Printf("Pending payment codes: %d %v", n, registry.Codes())
			}
		}
	}
}
