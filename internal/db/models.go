package db

import (
	"time"

	"github.com/google/uuid"
)

// Device kinds stored in the devices table.
const (
	KindMeter   = "meter"
	KindVehicle = "vehicle"
)

// Device represents a registered grid meter or charging vehicle
type Device struct {
	ID          string
	Kind        string
	DisplayName string
	Location    *string
	CapacityKwh *float64
	MeterID     *string // vehicles only: associated grid meter, nullable
	CreatedAt   time.Time
}

// MeterReading is one append-only row in the meter_readings ledger
type MeterReading struct {
	ID            uuid.UUID
	MeterID       string
	KwhConsumedAc float64
	Voltage       float64
	ObservedAt    time.Time
	ReceivedAt    time.Time
}

// VehicleReading is one append-only row in the vehicle_readings ledger
type VehicleReading struct {
	ID             uuid.UUID
	VehicleID      string
	Soc            float64
	KwhDeliveredDc float64
	BatteryTemp    float64
	ObservedAt     time.Time
	ReceivedAt     time.Time
}

// MeterState is the single latest-state projection row for a meter
type MeterState struct {
	MeterID        string
	KwhConsumedAc  float64
	Voltage        float64
	LastObservedAt time.Time
	UpdatedAt      time.Time
}

// VehicleState is the single latest-state projection row for a vehicle
type VehicleState struct {
	VehicleID      string
	Soc            float64
	KwhDeliveredDc float64
	BatteryTemp    float64
	LastObservedAt time.Time
	UpdatedAt      time.Time
}
