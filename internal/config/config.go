package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	ServicePort int
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Anomaly     AnomalyConfig
	FleetReport FleetReportConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// RabbitMQConfig holds RabbitMQ connection and queue settings
type RabbitMQConfig struct {
	URL                       string
	IngestExchange            string
	IngestQueue               string
	IngestRoutingKey          string
	EventsExchange            string
	ReadingAcceptedRoutingKey string
	FleetStatsRoutingKey      string
	DLQQueue                  string
	PrefetchCount             int
}

// AnomalyConfig holds counter anomaly detection settings
type AnomalyConfig struct {
	CounterJumpThreshold float64
}

// FleetReportConfig holds periodic fleet stats reporting settings
type FleetReportConfig struct {
	IntervalSeconds int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "energy-ingestion-engine"),
		ServicePort: getEnvAsInt("SERVICE_PORT", 8081),
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		RabbitMQ: RabbitMQConfig{
			URL:                       getEnv("RABBITMQ_URL", ""),
			IngestExchange:            getEnv("RABBITMQ_INGEST_EXCHANGE", "charging.telemetry.ingest.exchange"),
			IngestQueue:               getEnv("RABBITMQ_INGEST_QUEUE", "charging.telemetry.ingest.queue"),
			IngestRoutingKey:          getEnv("RABBITMQ_INGEST_ROUTING_KEY", "telemetry.readings.batch"),
			EventsExchange:            getEnv("RABBITMQ_EVENTS_EXCHANGE", "charging.telemetry.events.exchange"),
			ReadingAcceptedRoutingKey: getEnv("RABBITMQ_READING_ACCEPTED_ROUTING_KEY", "telemetry.reading.accepted"),
			FleetStatsRoutingKey:      getEnv("RABBITMQ_FLEET_STATS_ROUTING_KEY", "telemetry.fleet.stats"),
			DLQQueue:                  getEnv("RABBITMQ_DLQ_QUEUE", "charging.telemetry.ingest.dlq"),
			PrefetchCount:             getEnvAsInt("RABBITMQ_PREFETCH", 10),
		},
		Anomaly: AnomalyConfig{
			CounterJumpThreshold: getEnvAsFloat("ANOMALY_COUNTER_JUMP_THRESHOLD", 10.0),
		},
		FleetReport: FleetReportConfig{
			IntervalSeconds: getEnvAsInt("FLEET_REPORT_INTERVAL_SECONDS", 60),
		},
	}

	// Validate required fields
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required but not set in environment variables")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
