package validator

import (
	"fmt"
	"time"

	"github.com/Aloksam11/energy-ingestion-engine/internal/db"
	"github.com/Aloksam11/energy-ingestion-engine/internal/timeparser"
)

// Domain bounds for reading measurements.
const (
	VoltageMin     = 0.0
	VoltageMax     = 500.0
	SocMin         = 0.0
	SocMax         = 100.0
	BatteryTempMin = -50.0
	BatteryTempMax = 100.0
)

// Error describes a reading rejected before any storage access
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// MeterReadingInput is the boundary shape of a single grid meter reading
type MeterReadingInput struct {
	MeterID       string  `json:"meter_id"`
	KwhConsumedAc float64 `json:"kwh_consumed_ac"`
	Voltage       float64 `json:"voltage"`
	Timestamp     string  `json:"timestamp"`
}

// VehicleReadingInput is the boundary shape of a single vehicle charging reading
type VehicleReadingInput struct {
	VehicleID      string  `json:"vehicle_id"`
	Soc            float64 `json:"soc"`
	KwhDeliveredDc float64 `json:"kwh_delivered_dc"`
	BatteryTemp    float64 `json:"battery_temp"`
	Timestamp      string  `json:"timestamp"`
}

// MeterReading validates a single meter reading and maps it to a ledger row.
// It never touches storage; a non-nil *Error means the reading must be
// rejected as a whole.
func MeterReading(in MeterReadingInput, receivedAt time.Time) (*db.MeterReading, *Error) {
	if in.MeterID == "" {
		return nil, &Error{Field: "meter_id", Reason: "empty device id"}
	}
	if in.KwhConsumedAc < 0 {
		return nil, &Error{Field: "kwh_consumed_ac", Reason: fmt.Sprintf("negative energy counter: %v", in.KwhConsumedAc)}
	}
	if in.Voltage < VoltageMin || in.Voltage > VoltageMax {
		return nil, &Error{Field: "voltage", Reason: fmt.Sprintf("%v outside [%v, %v]", in.Voltage, VoltageMin, VoltageMax)}
	}

	observedAt, err := timeparser.ParseObservedAt(in.Timestamp)
	if err != nil {
		return nil, &Error{Field: "timestamp", Reason: err.Error()}
	}

	return &db.MeterReading{
		MeterID:       in.MeterID,
		KwhConsumedAc: in.KwhConsumedAc,
		Voltage:       in.Voltage,
		ObservedAt:    observedAt,
		ReceivedAt:    receivedAt,
	}, nil
}

// VehicleReading validates a single vehicle reading and maps it to a ledger row.
func VehicleReading(in VehicleReadingInput, receivedAt time.Time) (*db.VehicleReading, *Error) {
	if in.VehicleID == "" {
		return nil, &Error{Field: "vehicle_id", Reason: "empty device id"}
	}
	if in.Soc < SocMin || in.Soc > SocMax {
		return nil, &Error{Field: "soc", Reason: fmt.Sprintf("%v outside [%v, %v]", in.Soc, SocMin, SocMax)}
	}
	if in.KwhDeliveredDc < 0 {
		return nil, &Error{Field: "kwh_delivered_dc", Reason: fmt.Sprintf("negative energy counter: %v", in.KwhDeliveredDc)}
	}
	if in.BatteryTemp < BatteryTempMin || in.BatteryTemp > BatteryTempMax {
		return nil, &Error{Field: "battery_temp", Reason: fmt.Sprintf("%v outside [%v, %v]", in.BatteryTemp, BatteryTempMin, BatteryTempMax)}
	}

	observedAt, err := timeparser.ParseObservedAt(in.Timestamp)
	if err != nil {
		return nil, &Error{Field: "timestamp", Reason: err.Error()}
	}

	return &db.VehicleReading{
		VehicleID:      in.VehicleID,
		Soc:            in.Soc,
		KwhDeliveredDc: in.KwhDeliveredDc,
		BatteryTemp:    in.BatteryTemp,
		ObservedAt:     observedAt,
		ReceivedAt:     receivedAt,
	}, nil
}
