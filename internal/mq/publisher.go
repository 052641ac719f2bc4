package mq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher handles event publishing to RabbitMQ
type Publisher struct {
	conn     *Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewPublisher creates a new RabbitMQ publisher
func NewPublisher(conn *Connection, exchange string, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	// Declare exchange
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// ReadingAcceptedEvent is published once per reading after its ingestion
// unit has committed
type ReadingAcceptedEvent struct {
	DeviceID   string `json:"device_id"`
	DeviceKind string `json:"device_kind"`
	ReadingID  string `json:"reading_id"`
	ObservedAt string `json:"observed_at"`
}

// FleetStatsEvent is published by the periodic fleet reporter
type FleetStatsEvent struct {
	TotalVehicles       int64   `json:"total_vehicles"`
	TotalMeters         int64   `json:"total_meters"`
	ActiveVehicles      int     `json:"active_vehicles"`
	ActiveMeters        int     `json:"active_meters"`
	AvgFleetSoc         float64 `json:"avg_fleet_soc"`
	AvgFleetBatteryTemp float64 `json:"avg_fleet_battery_temp"`
	ReportedAt          string  `json:"reported_at"`
}

// PublishReadingAccepted publishes an accepted-reading event
func (p *Publisher) PublishReadingAccepted(ctx context.Context, event ReadingAcceptedEvent, routingKey string) error {
	if err := p.publish(ctx, event, routingKey); err != nil {
		return err
	}

	p.logger.Debug("published reading accepted event",
		zap.String("routing_key", routingKey),
		zap.String("device_id", event.DeviceID),
		zap.String("reading_id", event.ReadingID),
	)
	return nil
}

// PublishFleetStats publishes a fleet stats snapshot event
func (p *Publisher) PublishFleetStats(ctx context.Context, event FleetStatsEvent, routingKey string) error {
	if err := p.publish(ctx, event, routingKey); err != nil {
		return err
	}

	p.logger.Debug("published fleet stats event",
		zap.String("routing_key", routingKey),
		zap.Int64("total_vehicles", event.TotalVehicles),
	)
	return nil
}

func (p *Publisher) publish(ctx context.Context, event any, routingKey string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
