package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Aloksam11/energy-ingestion-engine/internal/db"
	"github.com/Aloksam11/energy-ingestion-engine/internal/logging"
	"github.com/Aloksam11/energy-ingestion-engine/internal/validator"
)

// BatchEnvelope is the JSON message consumed from the ingest queue. Exactly
// one of the reading slices is populated, matching Kind.
type BatchEnvelope struct {
	BatchID         string                          `json:"batch_id"`
	Kind            string                          `json:"kind"`
	ReceivedAt      time.Time                       `json:"received_at"`
	MeterReadings   []validator.MeterReadingInput   `json:"meter_readings,omitempty"`
	VehicleReadings []validator.VehicleReadingInput `json:"vehicle_readings,omitempty"`
}

// Processor dispatches queued batch messages to the ingestion coordinator
type Processor struct {
	ingestor *Ingestor
	logger   *zap.Logger
}

// NewProcessor creates a new batch message processor
func NewProcessor(ingestor *Ingestor, logger *zap.Logger) *Processor {
	return &Processor{ingestor: ingestor, logger: logger}
}

// ProcessMessage processes one queued batch. Any returned error sends the
// message to the DLQ.
func (p *Processor) ProcessMessage(ctx context.Context, body []byte) error {
	var env BatchEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to unmarshal batch envelope: %w", err)
	}

	batchLogger := logging.WithBatchID(p.logger, env.BatchID)

	var result *BatchResult
	var err error
	switch env.Kind {
	case db.KindMeter:
		result, err = p.ingestor.IngestMeterBatch(ctx, env.MeterReadings)
	case db.KindVehicle:
		result, err = p.ingestor.IngestVehicleBatch(ctx, env.VehicleReadings)
	default:
		return fmt.Errorf("unknown batch kind %q", env.Kind)
	}
	if err != nil {
		batchLogger.Error("failed to ingest batch",
			zap.Error(err),
			zap.String("kind", env.Kind),
		)
		return fmt.Errorf("failed to ingest %s batch: %w", env.Kind, err)
	}

	batchLogger.Info("batch ingested",
		zap.String("kind", env.Kind),
		zap.Int("readings", result.Count),
		zap.Int("devices", len(result.DeviceIDs)),
	)
	return nil
}
