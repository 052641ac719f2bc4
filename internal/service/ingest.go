package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Aloksam11/energy-ingestion-engine/internal/anomaly"
	"github.com/Aloksam11/energy-ingestion-engine/internal/config"
	"github.com/Aloksam11/energy-ingestion-engine/internal/db"
	"github.com/Aloksam11/energy-ingestion-engine/internal/mq"
	"github.com/Aloksam11/energy-ingestion-engine/internal/repository"
	"github.com/Aloksam11/energy-ingestion-engine/internal/validator"
)

// IngestStore is the storage surface the ingestion coordinator depends on
type IngestStore interface {
	WithinTx(ctx context.Context, fn func(uow repository.UnitOfWork) error) error
	GetMeterState(ctx context.Context, meterID string) (*db.MeterState, error)
	GetVehicleState(ctx context.Context, vehicleID string) (*db.VehicleState, error)
}

// EventPublisher publishes events after an ingestion unit has committed
type EventPublisher interface {
	PublishReadingAccepted(ctx context.Context, event mq.ReadingAcceptedEvent, routingKey string) error
}

// IngestResult acknowledges a single accepted reading
type IngestResult struct {
	DeviceID  string
	ReadingID uuid.UUID
}

// BatchResult acknowledges an accepted batch
type BatchResult struct {
	Count     int
	DeviceIDs []string
}

// Ingestor coordinates the dual-path write model: every accepted reading is
// appended to the ledger and projected into the per-device state row inside
// one transaction, so the two paths never diverge.
type Ingestor struct {
	store     IngestStore
	publisher EventPublisher
	detector  *anomaly.Detector
	cfg       *config.Config
	logger    *zap.Logger
	now       func() time.Time
}

// NewIngestor creates a new ingestion coordinator
func NewIngestor(
	store IngestStore,
	publisher EventPublisher,
	detector *anomaly.Detector,
	cfg *config.Config,
	logger *zap.Logger,
) *Ingestor {
	return &Ingestor{
		store:     store,
		publisher: publisher,
		detector:  detector,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// IngestMeterReading validates and stores one grid meter reading.
// The state row is replaced unconditionally: the hot path holds the latest
// observed reading by arrival order, not by observation timestamp.
func (i *Ingestor) IngestMeterReading(ctx context.Context, in validator.MeterReadingInput) (*IngestResult, error) {
	row, verr := validator.MeterReading(in, i.now().UTC())
	if verr != nil {
		return nil, verr
	}

	i.checkMeterCounter(ctx, row)

	err := i.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		if err := uow.EnsureDevice(ctx, row.MeterID, db.KindMeter); err != nil {
			return err
		}
		if err := uow.InsertMeterReading(ctx, row); err != nil {
			return err
		}
		return uow.UpsertMeterState(ctx, meterStateFrom(row))
	})
	if err != nil {
		return nil, err
	}

	i.publishAccepted(ctx, db.KindMeter, row.MeterID, row.ID, row.ObservedAt)

	return &IngestResult{DeviceID: row.MeterID, ReadingID: row.ID}, nil
}

// IngestVehicleReading validates and stores one vehicle charging reading
func (i *Ingestor) IngestVehicleReading(ctx context.Context, in validator.VehicleReadingInput) (*IngestResult, error) {
	row, verr := validator.VehicleReading(in, i.now().UTC())
	if verr != nil {
		return nil, verr
	}

	i.checkVehicleCounter(ctx, row)

	err := i.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		if err := uow.EnsureDevice(ctx, row.VehicleID, db.KindVehicle); err != nil {
			return err
		}
		if err := uow.InsertVehicleReading(ctx, row); err != nil {
			return err
		}
		return uow.UpsertVehicleState(ctx, vehicleStateFrom(row))
	})
	if err != nil {
		return nil, err
	}

	i.publishAccepted(ctx, db.KindVehicle, row.VehicleID, row.ID, row.ObservedAt)

	return &IngestResult{DeviceID: row.VehicleID, ReadingID: row.ID}, nil
}

// IngestMeterBatch stores a batch of meter readings as one transaction.
// Every reading lands in the ledger, but the batch is reduced to a single
// state write per distinct meter: the reading with the maximum observation
// timestamp wins, ties broken by the later position in the batch.
func (i *Ingestor) IngestMeterBatch(ctx context.Context, inputs []validator.MeterReadingInput) (*BatchResult, error) {
	if len(inputs) == 0 {
		return nil, &validator.Error{Field: "readings", Reason: "empty batch"}
	}

	receivedAt := i.now().UTC()
	rows := make([]*db.MeterReading, 0, len(inputs))
	for _, in := range inputs {
		// One invalid reading fails the whole batch before any storage access
		row, verr := validator.MeterReading(in, receivedAt)
		if verr != nil {
			return nil, verr
		}
		rows = append(rows, row)
	}

	deviceIDs := make([]string, 0, len(rows))
	winners := make(map[string]*db.MeterReading, len(rows))
	for _, row := range rows {
		best, seen := winners[row.MeterID]
		if !seen {
			deviceIDs = append(deviceIDs, row.MeterID)
		}
		if !seen || !row.ObservedAt.Before(best.ObservedAt) {
			winners[row.MeterID] = row
		}
	}

	err := i.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		for _, id := range deviceIDs {
			if err := uow.EnsureDevice(ctx, id, db.KindMeter); err != nil {
				return err
			}
		}
		for _, row := range rows {
			if err := uow.InsertMeterReading(ctx, row); err != nil {
				return err
			}
		}
		for _, id := range deviceIDs {
			if err := uow.UpsertMeterState(ctx, meterStateFrom(winners[id])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		i.publishAccepted(ctx, db.KindMeter, row.MeterID, row.ID, row.ObservedAt)
	}

	i.logger.Debug("meter batch ingested",
		zap.Int("readings", len(rows)),
		zap.Int("devices", len(deviceIDs)),
	)

	return &BatchResult{Count: len(rows), DeviceIDs: deviceIDs}, nil
}

// IngestVehicleBatch stores a batch of vehicle readings as one transaction,
// reduced to a single state write per distinct vehicle.
func (i *Ingestor) IngestVehicleBatch(ctx context.Context, inputs []validator.VehicleReadingInput) (*BatchResult, error) {
	if len(inputs) == 0 {
		return nil, &validator.Error{Field: "readings", Reason: "empty batch"}
	}

	receivedAt := i.now().UTC()
	rows := make([]*db.VehicleReading, 0, len(inputs))
	for _, in := range inputs {
		row, verr := validator.VehicleReading(in, receivedAt)
		if verr != nil {
			return nil, verr
		}
		rows = append(rows, row)
	}

	deviceIDs := make([]string, 0, len(rows))
	winners := make(map[string]*db.VehicleReading, len(rows))
	for _, row := range rows {
		best, seen := winners[row.VehicleID]
		if !seen {
			deviceIDs = append(deviceIDs, row.VehicleID)
		}
		if !seen || !row.ObservedAt.Before(best.ObservedAt) {
			winners[row.VehicleID] = row
		}
	}

	err := i.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		for _, id := range deviceIDs {
			if err := uow.EnsureDevice(ctx, id, db.KindVehicle); err != nil {
				return err
			}
		}
		for _, row := range rows {
			if err := uow.InsertVehicleReading(ctx, row); err != nil {
				return err
			}
		}
		for _, id := range deviceIDs {
			if err := uow.UpsertVehicleState(ctx, vehicleStateFrom(winners[id])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		i.publishAccepted(ctx, db.KindVehicle, row.VehicleID, row.ID, row.ObservedAt)
	}

	i.logger.Debug("vehicle batch ingested",
		zap.Int("readings", len(rows)),
		zap.Int("devices", len(deviceIDs)),
	)

	return &BatchResult{Count: len(rows), DeviceIDs: deviceIDs}, nil
}

// checkMeterCounter logs advisory counter anomalies against the previous
// hot state. Findings never reject a reading.
func (i *Ingestor) checkMeterCounter(ctx context.Context, row *db.MeterReading) {
	if i.detector == nil {
		return
	}

	prev, err := i.store.GetMeterState(ctx, row.MeterID)
	if err != nil {
		var nf *repository.NotFoundError
		if !errors.As(err, &nf) {
			i.logger.Debug("skipping counter check", zap.Error(err))
		}
		return
	}

	if flagged, reason := i.detector.DetectCounterAnomaly(prev.KwhConsumedAc, row.KwhConsumedAc); flagged {
		i.logger.Warn("meter counter anomaly",
			zap.String("meter_id", row.MeterID),
			zap.String("reason", reason),
		)
	}
}

func (i *Ingestor) checkVehicleCounter(ctx context.Context, row *db.VehicleReading) {
	if i.detector == nil {
		return
	}

	prev, err := i.store.GetVehicleState(ctx, row.VehicleID)
	if err != nil {
		var nf *repository.NotFoundError
		if !errors.As(err, &nf) {
			i.logger.Debug("skipping counter check", zap.Error(err))
		}
		return
	}

	if flagged, reason := i.detector.DetectCounterAnomaly(prev.KwhDeliveredDc, row.KwhDeliveredDc); flagged {
		i.logger.Warn("vehicle counter anomaly",
			zap.String("vehicle_id", row.VehicleID),
			zap.String("reason", reason),
		)
	}
}

// publishAccepted emits a post-commit event. The transaction has already
// committed, so publish failures are logged and never surfaced.
func (i *Ingestor) publishAccepted(ctx context.Context, kind, deviceID string, readingID uuid.UUID, observedAt time.Time) {
	if i.publisher == nil {
		return
	}

	event := mq.ReadingAcceptedEvent{
		DeviceID:   deviceID,
		DeviceKind: kind,
		ReadingID:  readingID.String(),
		ObservedAt: observedAt.Format(time.RFC3339),
	}
	if err := i.publisher.PublishReadingAccepted(ctx, event, i.cfg.RabbitMQ.ReadingAcceptedRoutingKey); err != nil {
		i.logger.Error("failed to publish reading accepted event",
			zap.Error(err),
			zap.String("device_id", deviceID),
		)
	}
}

func meterStateFrom(r *db.MeterReading) *db.MeterState {
	return &db.MeterState{
		MeterID:        r.MeterID,
		KwhConsumedAc:  r.KwhConsumedAc,
		Voltage:        r.Voltage,
		LastObservedAt: r.ObservedAt,
	}
}

func vehicleStateFrom(r *db.VehicleReading) *db.VehicleState {
	return &db.VehicleState{
		VehicleID:      r.VehicleID,
		Soc:            r.Soc,
		KwhDeliveredDc: r.KwhDeliveredDc,
		BatteryTemp:    r.BatteryTemp,
		LastObservedAt: r.ObservedAt,
	}
}
