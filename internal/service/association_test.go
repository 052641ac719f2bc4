package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Aloksam11/energy-ingestion-engine/internal/db"
	"github.com/Aloksam11/energy-ingestion-engine/internal/repository"
	"github.com/Aloksam11/energy-ingestion-engine/internal/service"
)

func TestAssociate_SetsMeterReference(t *testing.T) {
	store := newFakeStore()
	store.devices["VEH-001"] = db.Device{ID: "VEH-001", Kind: db.KindVehicle}
	store.devices["METER-001"] = db.Device{ID: "METER-001", Kind: db.KindMeter}

	assoc := service.NewAssociationService(store, zap.NewNop())
	if err := assoc.Associate(context.Background(), "VEH-001", "METER-001"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dev := store.devices["VEH-001"]
	if dev.MeterID == nil || *dev.MeterID != "METER-001" {
		t.Errorf("expected meter reference METER-001, got %v", dev.MeterID)
	}
}

func TestAssociate_ReplacesExistingReference(t *testing.T) {
	store := newFakeStore()
	old := "METER-OLD"
	store.devices["VEH-001"] = db.Device{ID: "VEH-001", Kind: db.KindVehicle, MeterID: &old}

	assoc := service.NewAssociationService(store, zap.NewNop())
	if err := assoc.Associate(context.Background(), "VEH-001", "METER-NEW"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := store.devices["VEH-001"].MeterID; got == nil || *got != "METER-NEW" {
		t.Errorf("expected replaced reference METER-NEW, got %v", got)
	}
}

func TestAssociate_UnknownVehicle(t *testing.T) {
	assoc := service.NewAssociationService(newFakeStore(), zap.NewNop())

	err := assoc.Associate(context.Background(), "GHOST", "METER-001")
	var nf *repository.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestAssociate_MeterAsVehicleRejected(t *testing.T) {
	store := newFakeStore()
	store.devices["METER-001"] = db.Device{ID: "METER-001", Kind: db.KindMeter}

	assoc := service.NewAssociationService(store, zap.NewNop())
	err := assoc.Associate(context.Background(), "METER-001", "METER-002")
	var nf *repository.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected not found error for non-vehicle id, got %v", err)
	}
}

func TestAssociate_DanglingMeterReferenceAllowed(t *testing.T) {
	store := newFakeStore()
	store.devices["VEH-001"] = db.Device{ID: "VEH-001", Kind: db.KindVehicle}
	addVehicleReading(store, "VEH-001", 800, 30, t0)
	addVehicleReading(store, "VEH-001", 804, 30, t0.Add(time.Hour))

	assoc := service.NewAssociationService(store, zap.NewNop())
	if err := assoc.Associate(context.Background(), "VEH-001", "NO-SUCH-METER"); err != nil {
		t.Fatalf("the meter id is deliberately unverified, got %v", err)
	}

	// The dangling reference reads as "no meter data available".
	summary, err := newTestAnalytics(store).PerformanceSummary(context.Background(), "VEH-001", t0.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TotalAcConsumedKwh != 0 || summary.MeterReadingCount != 0 {
		t.Errorf("expected no meter contribution for dangling reference, got %+v", summary)
	}
	if summary.Status != service.StatusHealthy {
		t.Errorf("expected default HEALTHY, got %s", summary.Status)
	}
}
