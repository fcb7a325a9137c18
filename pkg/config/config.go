package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// MQTT Configuration
	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	// Inbound topics
	MQTTTopicRFID string
	MQTTTopicQR   string

	// Outbound topics
	MQTTTopicBarrier      string
	MQTTTopicRFIDResponse string
	MQTTTopicQRResponse   string
	MQTTTopicStatus       string
	MQTTTopicFull         string

	// Camera / zone configuration
	CameraURL     string
	CameraTimeout time.Duration
	ZonesPath     string
	ReferencePath string

	// Detection tuning
	OccupancyThreshold float64
	DiffThreshold      int
	MinContourArea     int
	AnalysisInterval   time.Duration

	// Payment monitoring
	PaymentTimeout       time.Duration
	PaymentCheckInterval time.Duration

	// Full-lot notification debounce
	FullNotificationCooldown time.Duration

	// Web status endpoint
	WebAddr string

	// ClickHouse Configuration
	ClickHouseAddr string
	ClickHouseDB   string
	ClickHouseUser string
	ClickHousePass string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		// MQTT Configuration
		MQTTBroker:   getEnv("MQTT_BROKER", "tcp://broker.hivemq.com:1883"),
		MQTTClientID: getEnv("MQTT_CLIENT_ID", "parking-backend"),
		MQTTUsername: getEnv("MQTT_USERNAME", ""),
		MQTTPassword: getEnv("MQTT_PASSWORD", ""),

		// Inbound topics
		MQTTTopicRFID: getEnv("MQTT_TOPIC_RFID", "parking/rfid_card"),
		MQTTTopicQR:   getEnv("MQTT_TOPIC_QR", "parking/access_code"),

		// Outbound topics
		MQTTTopicBarrier:      getEnv("MQTT_TOPIC_BARRIER", "parking/barrier/command"),
		MQTTTopicRFIDResponse: getEnv("MQTT_TOPIC_RFID_RESPONSE", "parking/rfid_response"),
		MQTTTopicQRResponse:   getEnv("MQTT_TOPIC_QR_RESPONSE", "parking/qr_response"),
		MQTTTopicStatus:       getEnv("MQTT_TOPIC_STATUS", "parking/status"),
		MQTTTopicFull:         getEnv("MQTT_TOPIC_FULL", "parking/full_notification"),

		// Camera / zone configuration
		CameraURL:     getEnv("CAMERA_URL", "http://192.168.7.20:81/capture"),
		CameraTimeout: getEnvDuration("CAMERA_TIMEOUT", 5*time.Second),
		ZonesPath:     getEnv("ZONES_PATH", "zones_parking.json"),
		ReferencePath: getEnv("REFERENCE_PATH", "reference_empty.jpg"),

		// Detection tuning
		OccupancyThreshold: getEnvFloat("OCCUPANCY_THRESHOLD", 25.0),
		DiffThreshold:      getEnvInt("DIFF_THRESHOLD", 30),
		MinContourArea:     getEnvInt("MIN_CONTOUR_AREA", 800),
		AnalysisInterval:   getEnvDuration("ANALYSIS_INTERVAL", 2*time.Second),

		// Payment monitoring
		PaymentTimeout:       getEnvDuration("PAYMENT_TIMEOUT", 300*time.Second),
		PaymentCheckInterval: getEnvDuration("PAYMENT_CHECK_INTERVAL", 3*time.Second),

		// Full-lot notification debounce
		FullNotificationCooldown: getEnvDuration("FULL_NOTIFICATION_COOLDOWN", 30*time.Second),

		// Web status endpoint
		WebAddr: getEnv("WEB_ADDR", ":8888"),

		// ClickHouse Configuration
		ClickHouseAddr: getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDB:   getEnv("CLICKHOUSE_DB", "parking"),
		ClickHouseUser: getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePass: getEnv("CLICKHOUSE_PASS", ""),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Warning: failed to parse %s as float, using default: %v", key, err)
		return defaultValue
	}
	return floatValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as int, using default: %v", key, err)
		return defaultValue
	}
	return intValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	durationValue, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as duration, using default: %v", key, err)
		return defaultValue
	}
	return durationValue
}
