package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/Aloksam11/energy-ingestion-engine/internal/db"
	"github.com/Aloksam11/energy-ingestion-engine/internal/repository"
)

// Efficiency status bands, derived from the DC-delivered / AC-consumed ratio.
const (
	StatusHealthy  = "HEALTHY"
	StatusWarning  = "WARNING"
	StatusCritical = "CRITICAL"
)

const (
	summaryWindow = 24 * time.Hour
	activeWindow  = 5 * time.Minute

	healthyRatioMin = 85.0
	warningRatioMin = 75.0
)

// AnalyticsStore is the read-only storage surface the analytics engine
// depends on
type AnalyticsStore interface {
	GetDevice(ctx context.Context, id string) (*db.Device, error)
	MeterReadingsBetween(ctx context.Context, meterID string, from, to time.Time) ([]db.MeterReading, error)
	VehicleReadingsBetween(ctx context.Context, vehicleID string, from, to time.Time) ([]db.VehicleReading, error)
	GetVehicleState(ctx context.Context, vehicleID string) (*db.VehicleState, error)
	CountDevices(ctx context.Context, kind string) (int64, error)
	ListMeterStates(ctx context.Context) ([]db.MeterState, error)
	ListVehicleStates(ctx context.Context) ([]db.VehicleState, error)
}

// PerformanceSummary correlates a vehicle's charging telemetry with its
// associated grid meter over one window
type PerformanceSummary struct {
	VehicleID           string
	MeterID             *string
	WindowStart         time.Time
	WindowEnd           time.Time
	TotalDcDeliveredKwh float64
	TotalAcConsumedKwh  float64
	EfficiencyRatio     float64
	Status              string
	AvgBatteryTemp      float64
	VehicleReadingCount int
	MeterReadingCount   int
}

// FleetStats aggregates liveness over the hot-state projections
type FleetStats struct {
	TotalVehicles       int64
	TotalMeters         int64
	ActiveVehicles      int
	ActiveMeters        int
	AvgFleetSoc         float64
	AvgFleetBatteryTemp float64
}

// Analytics answers efficiency and liveness questions. It only ever reads
// committed state and never writes.
type Analytics struct {
	store  AnalyticsStore
	logger *zap.Logger
}

// NewAnalytics creates a new analytics engine
func NewAnalytics(store AnalyticsStore, logger *zap.Logger) *Analytics {
	return &Analytics{store: store, logger: logger}
}

// PerformanceSummary computes the charging efficiency of one vehicle over
// the 24 hours ending at now, both window bounds inclusive.
func (a *Analytics) PerformanceSummary(ctx context.Context, vehicleID string, now time.Time) (*PerformanceSummary, error) {
	dev, err := a.store.GetDevice(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if dev.Kind != db.KindVehicle {
		return nil, &repository.NotFoundError{Kind: "vehicle", ID: vehicleID}
	}

	from := now.Add(-summaryWindow)

	vehicleReadings, err := a.store.VehicleReadingsBetween(ctx, vehicleID, from, now)
	if err != nil {
		return nil, err
	}

	var meterReadings []db.MeterReading
	if dev.MeterID != nil {
		meterReadings, err = a.store.MeterReadingsBetween(ctx, *dev.MeterID, from, now)
		if err != nil {
			return nil, err
		}
	}

	dcSeries := make([]float64, len(vehicleReadings))
	tempSum := 0.0
	for n, r := range vehicleReadings {
		dcSeries[n] = r.KwhDeliveredDc
		tempSum += r.BatteryTemp
	}
	acSeries := make([]float64, len(meterReadings))
	for n, r := range meterReadings {
		acSeries[n] = r.KwhConsumedAc
	}

	totalDc := cumulativeDelta(dcSeries)
	totalAc := cumulativeDelta(acSeries)

	avgTemp := 0.0
	if len(vehicleReadings) > 0 {
		avgTemp = tempSum / float64(len(vehicleReadings))
	}

	ratio := 0.0
	if totalAc > 0 {
		ratio = totalDc / totalAc * 100
	}
	ratio = round2(ratio)

	return &PerformanceSummary{
		VehicleID:           vehicleID,
		MeterID:             dev.MeterID,
		WindowStart:         from,
		WindowEnd:           now,
		TotalDcDeliveredKwh: round2(totalDc),
		TotalAcConsumedKwh:  round2(totalAc),
		EfficiencyRatio:     ratio,
		Status:              classifyStatus(ratio),
		AvgBatteryTemp:      round2(avgTemp),
		VehicleReadingCount: len(vehicleReadings),
		MeterReadingCount:   len(meterReadings),
	}, nil
}

// CurrentState returns the vehicle's latest-state projection row. One
// unique-key lookup; the reading ledger is never scanned.
func (a *Analytics) CurrentState(ctx context.Context, vehicleID string) (*db.VehicleState, error) {
	return a.store.GetVehicleState(ctx, vehicleID)
}

// FleetStats counts devices per kind and aggregates state-of-charge and
// battery temperature over vehicles observed within the last five minutes.
func (a *Analytics) FleetStats(ctx context.Context, now time.Time) (*FleetStats, error) {
	totalVehicles, err := a.store.CountDevices(ctx, db.KindVehicle)
	if err != nil {
		return nil, err
	}
	totalMeters, err := a.store.CountDevices(ctx, db.KindMeter)
	if err != nil {
		return nil, err
	}

	vehicleStates, err := a.store.ListVehicleStates(ctx)
	if err != nil {
		return nil, err
	}
	meterStates, err := a.store.ListMeterStates(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := now.Add(-activeWindow)

	activeVehicles := 0
	socSum := 0.0
	tempSum := 0.0
	for _, s := range vehicleStates {
		if s.LastObservedAt.Before(cutoff) {
			continue
		}
		activeVehicles++
		socSum += s.Soc
		tempSum += s.BatteryTemp
	}

	activeMeters := 0
	for _, s := range meterStates {
		if !s.LastObservedAt.Before(cutoff) {
			activeMeters++
		}
	}

	avgSoc := 0.0
	avgTemp := 0.0
	if activeVehicles > 0 {
		avgSoc = socSum / float64(activeVehicles)
		avgTemp = tempSum / float64(activeVehicles)
	}

	return &FleetStats{
		TotalVehicles:       totalVehicles,
		TotalMeters:         totalMeters,
		ActiveVehicles:      activeVehicles,
		ActiveMeters:        activeMeters,
		AvgFleetSoc:         round2(avgSoc),
		AvgFleetBatteryTemp: round2(avgTemp),
	}, nil
}

// cumulativeDelta computes the growth of a monotonically increasing counter
// series within a window. A negative last-minus-first total means the
// counter reset mid-window (device reboot); in that case only the
// non-negative consecutive deltas are summed, discarding the backward jump.
func cumulativeDelta(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}

	total := series[len(series)-1] - series[0]
	if total >= 0 {
		return total
	}

	total = 0
	for n := 1; n < len(series); n++ {
		if d := series[n] - series[n-1]; d > 0 {
			total += d
		}
	}
	return total
}

// classifyStatus maps an efficiency ratio to its status band. A zero ratio
// means no consumption data in the window and is reported as healthy.
func classifyStatus(ratio float64) string {
	switch {
	case ratio >= healthyRatioMin:
		return StatusHealthy
	case ratio >= warningRatioMin:
		return StatusWarning
	case ratio > 0:
		return StatusCritical
	default:
		return StatusHealthy
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
