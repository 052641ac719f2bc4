package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/Aloksam11/energy-ingestion-engine/internal/db"
	"github.com/Aloksam11/energy-ingestion-engine/internal/repository"
)

// AssociationStore is the storage surface the association registry depends on
type AssociationStore interface {
	GetDevice(ctx context.Context, id string) (*db.Device, error)
	SetVehicleMeter(ctx context.Context, vehicleID, meterID string) error
}

// AssociationService maintains the directed vehicle-to-meter link used for
// efficiency correlation
type AssociationService struct {
	store  AssociationStore
	logger *zap.Logger
}

// NewAssociationService creates a new association service
func NewAssociationService(store AssociationStore, logger *zap.Logger) *AssociationService {
	return &AssociationService{store: store, logger: logger}
}

// Associate sets or replaces the vehicle's meter reference. The vehicle must
// exist; the meter id is deliberately not verified, so a dangling reference
// reads as "no meter data" in analytics.
func (s *AssociationService) Associate(ctx context.Context, vehicleID, meterID string) error {
	dev, err := s.store.GetDevice(ctx, vehicleID)
	if err != nil {
		return err
	}
	if dev.Kind != db.KindVehicle {
		return &repository.NotFoundError{Kind: "vehicle", ID: vehicleID}
	}

	if err := s.store.SetVehicleMeter(ctx, vehicleID, meterID); err != nil {
		return err
	}

	s.logger.Info("vehicle associated with meter",
		zap.String("vehicle_id", vehicleID),
		zap.String("meter_id", meterID),
	)
	return nil
}
