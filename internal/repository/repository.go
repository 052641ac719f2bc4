// Package repository implements the Postgres storage layer.
//
// Expected tables:
//
//	devices          (id text primary key, kind text, display_name text,
//	                  location text, capacity_kwh double precision,
//	                  meter_id text, created_at timestamptz)
//	meter_readings   (id uuid primary key, meter_id text, kwh_consumed_ac
//	                  double precision, voltage double precision,
//	                  observed_at timestamptz, received_at timestamptz)
//	                  index on (meter_id, observed_at)
//	vehicle_readings (id uuid primary key, vehicle_id text, soc double
//	                  precision, kwh_delivered_dc double precision,
//	                  battery_temp double precision, observed_at timestamptz,
//	                  received_at timestamptz)
//	                  index on (vehicle_id, observed_at)
//	meter_state      (meter_id text primary key, kwh_consumed_ac double
//	                  precision, voltage double precision, last_observed_at
//	                  timestamptz, updated_at timestamptz)
//	vehicle_state    (vehicle_id text primary key, soc double precision,
//	                  kwh_delivered_dc double precision, battery_temp double
//	                  precision, last_observed_at timestamptz, updated_at
//	                  timestamptz)
//
// The reading ledgers are append-only; the state tables hold exactly one
// row per device and are replaced through unique-key upserts.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Aloksam11/energy-ingestion-engine/internal/db"
)

// UnitOfWork is the transactional write surface of the store. All methods
// apply within one transaction; either every write commits or none does.
type UnitOfWork interface {
	EnsureDevice(ctx context.Context, id, kind string) error
	InsertMeterReading(ctx context.Context, r *db.MeterReading) error
	InsertVehicleReading(ctx context.Context, r *db.VehicleReading) error
	UpsertMeterState(ctx context.Context, s *db.MeterState) error
	UpsertVehicleState(ctx context.Context, s *db.VehicleState) error
}

// Repository handles database operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithinTx runs fn inside a single transaction. Any error from fn or from
// commit leaves the database untouched.
func (r *Repository) WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return &StorageError{Op: "begin", Err: err}
	}
	defer tx.Rollback(ctx)

	if err := fn(&txUnit{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return &StorageError{Op: "commit", Err: err}
	}
	return nil
}

// txUnit implements UnitOfWork on top of a pgx transaction.
type txUnit struct {
	tx pgx.Tx
}

// EnsureDevice registers a device id if absent. An existing row is success,
// not an error, so concurrent ingest calls for the same id never conflict.
func (u *txUnit) EnsureDevice(ctx context.Context, id, kind string) error {
	query := `
		INSERT INTO devices (id, kind, display_name, created_at)
		VALUES ($1, $2, $1, $3)
		ON CONFLICT (id) DO NOTHING
	`

	if _, err := u.tx.Exec(ctx, query, id, kind, time.Now().UTC()); err != nil {
		return &StorageError{Op: "ensure device", Err: err}
	}
	return nil
}

// InsertMeterReading appends a meter reading to the ledger, assigning its id.
func (u *txUnit) InsertMeterReading(ctx context.Context, r *db.MeterReading) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}

	query := `
		INSERT INTO meter_readings (id, meter_id, kwh_consumed_ac, voltage, observed_at, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := u.tx.Exec(ctx, query,
		r.ID,
		r.MeterID,
		r.KwhConsumedAc,
		r.Voltage,
		r.ObservedAt,
		r.ReceivedAt,
	)
	if err != nil {
		return &StorageError{Op: "insert meter reading", Err: err}
	}
	return nil
}

// InsertVehicleReading appends a vehicle reading to the ledger, assigning its id.
func (u *txUnit) InsertVehicleReading(ctx context.Context, r *db.VehicleReading) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}

	query := `
		INSERT INTO vehicle_readings (id, vehicle_id, soc, kwh_delivered_dc, battery_temp, observed_at, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := u.tx.Exec(ctx, query,
		r.ID,
		r.VehicleID,
		r.Soc,
		r.KwhDeliveredDc,
		r.BatteryTemp,
		r.ObservedAt,
		r.ReceivedAt,
	)
	if err != nil {
		return &StorageError{Op: "insert vehicle reading", Err: err}
	}
	return nil
}

// UpsertMeterState replaces the meter's latest-state projection row.
func (u *txUnit) UpsertMeterState(ctx context.Context, s *db.MeterState) error {
	query := `
		INSERT INTO meter_state (meter_id, kwh_consumed_ac, voltage, last_observed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (meter_id) DO UPDATE SET
			kwh_consumed_ac = EXCLUDED.kwh_consumed_ac,
			voltage = EXCLUDED.voltage,
			last_observed_at = EXCLUDED.last_observed_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := u.tx.Exec(ctx, query,
		s.MeterID,
		s.KwhConsumedAc,
		s.Voltage,
		s.LastObservedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return &StorageError{Op: "upsert meter state", Err: err}
	}
	return nil
}

// UpsertVehicleState replaces the vehicle's latest-state projection row.
func (u *txUnit) UpsertVehicleState(ctx context.Context, s *db.VehicleState) error {
	query := `
		INSERT INTO vehicle_state (vehicle_id, soc, kwh_delivered_dc, battery_temp, last_observed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (vehicle_id) DO UPDATE SET
			soc = EXCLUDED.soc,
			kwh_delivered_dc = EXCLUDED.kwh_delivered_dc,
			battery_temp = EXCLUDED.battery_temp,
			last_observed_at = EXCLUDED.last_observed_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := u.tx.Exec(ctx, query,
		s.VehicleID,
		s.Soc,
		s.KwhDeliveredDc,
		s.BatteryTemp,
		s.LastObservedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return &StorageError{Op: "upsert vehicle state", Err: err}
	}
	return nil
}

// GetDevice loads a device record by id
func (r *Repository) GetDevice(ctx context.Context, id string) (*db.Device, error) {
	query := `
		SELECT id, kind, display_name, location, capacity_kwh, meter_id, created_at
		FROM devices
		WHERE id = $1
	`

	var d db.Device
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&d.ID,
		&d.Kind,
		&d.DisplayName,
		&d.Location,
		&d.CapacityKwh,
		&d.MeterID,
		&d.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Kind: "device", ID: id}
	}
	if err != nil {
		return nil, &StorageError{Op: "get device", Err: err}
	}
	return &d, nil
}

// SetVehicleMeter sets or replaces the vehicle's associated meter reference.
// The meter id is not checked for existence; a dangling reference simply
// yields no meter data downstream.
func (r *Repository) SetVehicleMeter(ctx context.Context, vehicleID, meterID string) error {
	query := `
		UPDATE devices
		SET meter_id = $2
		WHERE id = $1 AND kind = $3
	`

	tag, err := r.pool.Exec(ctx, query, vehicleID, meterID, db.KindVehicle)
	if err != nil {
		return &StorageError{Op: "set vehicle meter", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Kind: "vehicle", ID: vehicleID}
	}
	return nil
}

// GetMeterState loads the latest-state projection row for a meter.
// Single unique-key lookup; never touches the reading ledger.
func (r *Repository) GetMeterState(ctx context.Context, meterID string) (*db.MeterState, error) {
	query := `
		SELECT meter_id, kwh_consumed_ac, voltage, last_observed_at, updated_at
		FROM meter_state
		WHERE meter_id = $1
	`

	var s db.MeterState
	err := r.pool.QueryRow(ctx, query, meterID).Scan(
		&s.MeterID,
		&s.KwhConsumedAc,
		&s.Voltage,
		&s.LastObservedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Kind: "meter state", ID: meterID}
	}
	if err != nil {
		return nil, &StorageError{Op: "get meter state", Err: err}
	}
	return &s, nil
}

// GetVehicleState loads the latest-state projection row for a vehicle.
func (r *Repository) GetVehicleState(ctx context.Context, vehicleID string) (*db.VehicleState, error) {
	query := `
		SELECT vehicle_id, soc, kwh_delivered_dc, battery_temp, last_observed_at, updated_at
		FROM vehicle_state
		WHERE vehicle_id = $1
	`

	var s db.VehicleState
	err := r.pool.QueryRow(ctx, query, vehicleID).Scan(
		&s.VehicleID,
		&s.Soc,
		&s.KwhDeliveredDc,
		&s.BatteryTemp,
		&s.LastObservedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Kind: "vehicle state", ID: vehicleID}
	}
	if err != nil {
		return nil, &StorageError{Op: "get vehicle state", Err: err}
	}
	return &s, nil
}
