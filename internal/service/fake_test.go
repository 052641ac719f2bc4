package service_test

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Aloksam11/energy-ingestion-engine/internal/anomaly"
	"github.com/Aloksam11/energy-ingestion-engine/internal/config"
	"github.com/Aloksam11/energy-ingestion-engine/internal/db"
	"github.com/Aloksam11/energy-ingestion-engine/internal/mq"
	"github.com/Aloksam11/energy-ingestion-engine/internal/repository"
	"github.com/Aloksam11/energy-ingestion-engine/internal/service"
	"github.com/Aloksam11/energy-ingestion-engine/internal/validator"
)

// fakeStore is an in-memory stand-in for the Postgres repository. WithinTx
// snapshots the store up front and restores it when the unit of work fails,
// mirroring transactional rollback.
type fakeStore struct {
	devices         map[string]db.Device
	meterReadings   []db.MeterReading
	vehicleReadings []db.VehicleReading
	meterStates     map[string]db.MeterState
	vehicleStates   map[string]db.VehicleState

	meterStateWrites   int
	vehicleStateWrites int
	failInserts        bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		devices:       make(map[string]db.Device),
		meterStates:   make(map[string]db.MeterState),
		vehicleStates: make(map[string]db.VehicleState),
	}
}

type fakeSnapshot struct {
	devices            map[string]db.Device
	meterReadings      []db.MeterReading
	vehicleReadings    []db.VehicleReading
	meterStates        map[string]db.MeterState
	vehicleStates      map[string]db.VehicleState
	meterStateWrites   int
	vehicleStateWrites int
}

func (s *fakeStore) snapshot() fakeSnapshot {
	snap := fakeSnapshot{
		devices:            make(map[string]db.Device, len(s.devices)),
		meterReadings:      append([]db.MeterReading(nil), s.meterReadings...),
		vehicleReadings:    append([]db.VehicleReading(nil), s.vehicleReadings...),
		meterStates:        make(map[string]db.MeterState, len(s.meterStates)),
		vehicleStates:      make(map[string]db.VehicleState, len(s.vehicleStates)),
		meterStateWrites:   s.meterStateWrites,
		vehicleStateWrites: s.vehicleStateWrites,
	}
	for k, v := range s.devices {
		snap.devices[k] = v
	}
	for k, v := range s.meterStates {
		snap.meterStates[k] = v
	}
	for k, v := range s.vehicleStates {
		snap.vehicleStates[k] = v
	}
	return snap
}

func (s *fakeStore) restore(snap fakeSnapshot) {
	s.devices = snap.devices
	s.meterReadings = snap.meterReadings
	s.vehicleReadings = snap.vehicleReadings
	s.meterStates = snap.meterStates
	s.vehicleStates = snap.vehicleStates
	s.meterStateWrites = snap.meterStateWrites
	s.vehicleStateWrites = snap.vehicleStateWrites
}

func (s *fakeStore) WithinTx(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	snap := s.snapshot()
	if err := fn(&fakeUow{store: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type fakeUow struct {
	store *fakeStore
}

func (u *fakeUow) EnsureDevice(ctx context.Context, id, kind string) error {
	if _, ok := u.store.devices[id]; ok {
		return nil
	}
	u.store.devices[id] = db.Device{ID: id, Kind: kind, DisplayName: id, CreatedAt: time.Now().UTC()}
	return nil
}

func (u *fakeUow) InsertMeterReading(ctx context.Context, r *db.MeterReading) error {
	if u.store.failInserts {
		return &repository.StorageError{Op: "insert meter reading", Err: context.DeadlineExceeded}
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	u.store.meterReadings = append(u.store.meterReadings, *r)
	return nil
}

func (u *fakeUow) InsertVehicleReading(ctx context.Context, r *db.VehicleReading) error {
	if u.store.failInserts {
		return &repository.StorageError{Op: "insert vehicle reading", Err: context.DeadlineExceeded}
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	u.store.vehicleReadings = append(u.store.vehicleReadings, *r)
	return nil
}

func (u *fakeUow) UpsertMeterState(ctx context.Context, st *db.MeterState) error {
	u.store.meterStateWrites++
	u.store.meterStates[st.MeterID] = *st
	return nil
}

func (u *fakeUow) UpsertVehicleState(ctx context.Context, st *db.VehicleState) error {
	u.store.vehicleStateWrites++
	u.store.vehicleStates[st.VehicleID] = *st
	return nil
}

func (s *fakeStore) GetDevice(ctx context.Context, id string) (*db.Device, error) {
	d, ok := s.devices[id]
	if !ok {
		return nil, &repository.NotFoundError{Kind: "device", ID: id}
	}
	return &d, nil
}

func (s *fakeStore) SetVehicleMeter(ctx context.Context, vehicleID, meterID string) error {
	d, ok := s.devices[vehicleID]
	if !ok || d.Kind != db.KindVehicle {
		return &repository.NotFoundError{Kind: "vehicle", ID: vehicleID}
	}
	ref := meterID
	d.MeterID = &ref
	s.devices[vehicleID] = d
	return nil
}

func (s *fakeStore) GetMeterState(ctx context.Context, meterID string) (*db.MeterState, error) {
	st, ok := s.meterStates[meterID]
	if !ok {
		return nil, &repository.NotFoundError{Kind: "meter state", ID: meterID}
	}
	return &st, nil
}

func (s *fakeStore) GetVehicleState(ctx context.Context, vehicleID string) (*db.VehicleState, error) {
	st, ok := s.vehicleStates[vehicleID]
	if !ok {
		return nil, &repository.NotFoundError{Kind: "vehicle state", ID: vehicleID}
	}
	return &st, nil
}

func (s *fakeStore) MeterReadingsBetween(ctx context.Context, meterID string, from, to time.Time) ([]db.MeterReading, error) {
	var out []db.MeterReading
	for _, r := range s.meterReadings {
		if r.MeterID == meterID && !r.ObservedAt.Before(from) && !r.ObservedAt.After(to) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ObservedAt.Before(out[b].ObservedAt) })
	return out, nil
}

func (s *fakeStore) VehicleReadingsBetween(ctx context.Context, vehicleID string, from, to time.Time) ([]db.VehicleReading, error) {
	var out []db.VehicleReading
	for _, r := range s.vehicleReadings {
		if r.VehicleID == vehicleID && !r.ObservedAt.Before(from) && !r.ObservedAt.After(to) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ObservedAt.Before(out[b].ObservedAt) })
	return out, nil
}

func (s *fakeStore) CountDevices(ctx context.Context, kind string) (int64, error) {
	var count int64
	for _, d := range s.devices {
		if d.Kind == kind {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) ListMeterStates(ctx context.Context) ([]db.MeterState, error) {
	var out []db.MeterState
	for _, st := range s.meterStates {
		out = append(out, st)
	}
	return out, nil
}

func (s *fakeStore) ListVehicleStates(ctx context.Context) ([]db.VehicleState, error) {
	var out []db.VehicleState
	for _, st := range s.vehicleStates {
		out = append(out, st)
	}
	return out, nil
}

// fakePublisher records accepted-reading events instead of talking to RabbitMQ.
type fakePublisher struct {
	events []mq.ReadingAcceptedEvent
}

func (p *fakePublisher) PublishReadingAccepted(ctx context.Context, event mq.ReadingAcceptedEvent, routingKey string) error {
	p.events = append(p.events, event)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		RabbitMQ: config.RabbitMQConfig{
			ReadingAcceptedRoutingKey: "telemetry.reading.accepted",
		},
		Anomaly: config.AnomalyConfig{CounterJumpThreshold: 10},
	}
}

func newTestIngestor(store *fakeStore, pub *fakePublisher) *service.Ingestor {
	return service.NewIngestor(store, pub, anomaly.NewDetector(10), testConfig(), zap.NewNop())
}

func newTestAnalytics(store *fakeStore) *service.Analytics {
	return service.NewAnalytics(store, zap.NewNop())
}

func meterInput(meterID string, kwh, voltage float64, at time.Time) validator.MeterReadingInput {
	return validator.MeterReadingInput{
		MeterID:       meterID,
		KwhConsumedAc: kwh,
		Voltage:       voltage,
		Timestamp:     at.Format(time.RFC3339),
	}
}

func vehicleInput(vehicleID string, soc, kwh, temp float64, at time.Time) validator.VehicleReadingInput {
	return validator.VehicleReadingInput{
		VehicleID:      vehicleID,
		Soc:            soc,
		KwhDeliveredDc: kwh,
		BatteryTemp:    temp,
		Timestamp:      at.Format(time.RFC3339),
	}
}
