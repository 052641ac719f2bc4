package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Aloksam11/energy-ingestion-engine/internal/db"
	"github.com/Aloksam11/energy-ingestion-engine/internal/service"
	"github.com/Aloksam11/energy-ingestion-engine/internal/validator"
)

func newTestProcessor(store *fakeStore) *service.Processor {
	return service.NewProcessor(newTestIngestor(store, &fakePublisher{}), zap.NewNop())
}

func TestProcessMessage_MeterBatch(t *testing.T) {
	store := newFakeStore()
	proc := newTestProcessor(store)

	body, _ := json.Marshal(service.BatchEnvelope{
		BatchID:    "batch-1",
		Kind:       db.KindMeter,
		ReceivedAt: t0,
		MeterReadings: []validator.MeterReadingInput{
			meterInput("M-1", 100, 230, t0),
			meterInput("M-1", 101, 231, t0.Add(time.Minute)),
		},
	})

	if err := proc.ProcessMessage(context.Background(), body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.meterReadings) != 2 {
		t.Errorf("expected 2 ledger rows, got %d", len(store.meterReadings))
	}
	if store.meterStateWrites != 1 {
		t.Errorf("expected 1 state write, got %d", store.meterStateWrites)
	}
}

func TestProcessMessage_VehicleBatch(t *testing.T) {
	store := newFakeStore()
	proc := newTestProcessor(store)

	body, _ := json.Marshal(service.BatchEnvelope{
		BatchID:    "batch-2",
		Kind:       db.KindVehicle,
		ReceivedAt: t0,
		VehicleReadings: []validator.VehicleReadingInput{
			vehicleInput("V-1", 50, 800, 30, t0),
		},
	})

	if err := proc.ProcessMessage(context.Background(), body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.vehicleReadings) != 1 {
		t.Errorf("expected 1 ledger row, got %d", len(store.vehicleReadings))
	}
}

func TestProcessMessage_MalformedBody(t *testing.T) {
	proc := newTestProcessor(newFakeStore())

	if err := proc.ProcessMessage(context.Background(), []byte("{not json")); err == nil {
		t.Error("expected error for malformed body")
	}
}

func TestProcessMessage_UnknownKind(t *testing.T) {
	proc := newTestProcessor(newFakeStore())

	body, _ := json.Marshal(service.BatchEnvelope{BatchID: "batch-3", Kind: "toaster"})
	if err := proc.ProcessMessage(context.Background(), body); err == nil {
		t.Error("expected error for unknown batch kind")
	}
}

func TestProcessMessage_InvalidReadingFailsBatch(t *testing.T) {
	store := newFakeStore()
	proc := newTestProcessor(store)

	body, _ := json.Marshal(service.BatchEnvelope{
		BatchID: "batch-4",
		Kind:    db.KindMeter,
		MeterReadings: []validator.MeterReadingInput{
			meterInput("M-1", 100, 230, t0),
			meterInput("M-2", 100, 700, t0), // voltage out of range
		},
	})

	if err := proc.ProcessMessage(context.Background(), body); err == nil {
		t.Fatal("expected error for invalid reading in batch")
	}
	if len(store.meterReadings) != 0 {
		t.Errorf("failed batch must leave no ledger rows, got %d", len(store.meterReadings))
	}
}
