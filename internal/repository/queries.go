package repository

import (
	"context"
	"time"

	"github.com/Aloksam11/energy-ingestion-engine/internal/db"
)

// MeterReadingsBetween loads meter readings in [from, to], both bounds
// inclusive, ascending by observation timestamp. Served by the
// (meter_id, observed_at) index, never a full ledger scan.
func (r *Repository) MeterReadingsBetween(ctx context.Context, meterID string, from, to time.Time) ([]db.MeterReading, error) {
	query := `
		SELECT id, meter_id, kwh_consumed_ac, voltage, observed_at, received_at
		FROM meter_readings
		WHERE meter_id = $1 AND observed_at >= $2 AND observed_at <= $3
		ORDER BY observed_at ASC
	`

	rows, err := r.pool.Query(ctx, query, meterID, from, to)
	if err != nil {
		return nil, &StorageError{Op: "query meter readings", Err: err}
	}
	defer rows.Close()

	var readings []db.MeterReading
	for rows.Next() {
		var m db.MeterReading
		if err := rows.Scan(&m.ID, &m.MeterID, &m.KwhConsumedAc, &m.Voltage, &m.ObservedAt, &m.ReceivedAt); err != nil {
			return nil, &StorageError{Op: "scan meter reading", Err: err}
		}
		readings = append(readings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate meter readings", Err: err}
	}

	return readings, nil
}

// VehicleReadingsBetween loads vehicle readings in [from, to], both bounds
// inclusive, ascending by observation timestamp.
func (r *Repository) VehicleReadingsBetween(ctx context.Context, vehicleID string, from, to time.Time) ([]db.VehicleReading, error) {
	query := `
		SELECT id, vehicle_id, soc, kwh_delivered_dc, battery_temp, observed_at, received_at
		FROM vehicle_readings
		WHERE vehicle_id = $1 AND observed_at >= $2 AND observed_at <= $3
		ORDER BY observed_at ASC
	`

	rows, err := r.pool.Query(ctx, query, vehicleID, from, to)
	if err != nil {
		return nil, &StorageError{Op: "query vehicle readings", Err: err}
	}
	defer rows.Close()

	var readings []db.VehicleReading
	for rows.Next() {
		var v db.VehicleReading
		if err := rows.Scan(&v.ID, &v.VehicleID, &v.Soc, &v.KwhDeliveredDc, &v.BatteryTemp, &v.ObservedAt, &v.ReceivedAt); err != nil {
			return nil, &StorageError{Op: "scan vehicle reading", Err: err}
		}
		readings = append(readings, v)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate vehicle readings", Err: err}
	}

	return readings, nil
}

// CountDevices counts registered devices of one kind
func (r *Repository) CountDevices(ctx context.Context, kind string) (int64, error) {
	query := `SELECT count(*) FROM devices WHERE kind = $1`

	var count int64
	if err := r.pool.QueryRow(ctx, query, kind).Scan(&count); err != nil {
		return 0, &StorageError{Op: "count devices", Err: err}
	}
	return count, nil
}

// ListMeterStates loads every meter projection row. Bounded by live device
// count, not reading volume.
func (r *Repository) ListMeterStates(ctx context.Context) ([]db.MeterState, error) {
	query := `
		SELECT meter_id, kwh_consumed_ac, voltage, last_observed_at, updated_at
		FROM meter_state
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, &StorageError{Op: "list meter states", Err: err}
	}
	defer rows.Close()

	var states []db.MeterState
	for rows.Next() {
		var s db.MeterState
		if err := rows.Scan(&s.MeterID, &s.KwhConsumedAc, &s.Voltage, &s.LastObservedAt, &s.UpdatedAt); err != nil {
			return nil, &StorageError{Op: "scan meter state", Err: err}
		}
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate meter states", Err: err}
	}

	return states, nil
}

// ListVehicleStates loads every vehicle projection row.
func (r *Repository) ListVehicleStates(ctx context.Context) ([]db.VehicleState, error) {
	query := `
		SELECT vehicle_id, soc, kwh_delivered_dc, battery_temp, last_observed_at, updated_at
		FROM vehicle_state
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, &StorageError{Op: "list vehicle states", Err: err}
	}
	defer rows.Close()

	var states []db.VehicleState
	for rows.Next() {
		var s db.VehicleState
		if err := rows.Scan(&s.VehicleID, &s.Soc, &s.KwhDeliveredDc, &s.BatteryTemp, &s.LastObservedAt, &s.UpdatedAt); err != nil {
			return nil, &StorageError{Op: "scan vehicle state", Err: err}
		}
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate vehicle states", Err: err}
	}

	return states, nil
}
