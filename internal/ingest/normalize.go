package ingest

import (
	"math"

	telemetry "canteen-cloud/internal/telemetry/domain"
)

// serviceRateMinutesPerPerson is the assumed fixed service rate used to turn a
// wait duration into a queue length estimate.
const serviceRateMinutesPerPerson = 2.0

// SecondsToMinutes converts a raw duration field from seconds to minutes.
// Missing and zero raw values stay nil: zero seconds means the device did not
// measure, not an instant wait.
func SecondsToMinutes(seconds *float64) *float64 {
	if seconds == nil || *seconds <= 0 {
		return nil
	}
	minutes := *seconds / 60.0
	return &minutes
}

// OccupancyPercentage derives occupancy relative to capacity, in percent.
// The result may exceed 100 when a location is oversubscribed.
func OccupancyPercentage(occupancy *int, capacity int) float64 {
	if occupancy == nil || capacity <= 0 {
		return 0
	}
	return float64(*occupancy) / float64(capacity) * 100.0
}

// EstimateQueueLength derives a queue length from the representative wait time
// at the fixed service rate, falling back to raw occupancy as a proxy when no
// wait field is usable.
func EstimateQueueLength(representativeWait *float64, occupancy *int) int {
	if representativeWait != nil && *representativeWait > 0 {
		return int(math.Ceil(*representativeWait / serviceRateMinutesPerPerson))
	}
	if occupancy != nil && *occupancy > 0 {
		return *occupancy
	}
	return 0
}

// ClassifyCongestion maps occupancy percentage to a congestion level.
func ClassifyCongestion(occupancyPct float64) telemetry.CongestionLevel {
	switch {
	case occupancyPct < 40:
		return telemetry.CongestionLow
	case occupancyPct < 75:
		return telemetry.CongestionMedium
	default:
		return telemetry.CongestionHigh
	}
}

// ClassifyCongestionFromQueue maps an observed queue count to a congestion
// level for records that carry no occupancy reading. The bands follow the
// service status thresholds: a queue under the ready band is LOW, past the
// medium-wait band HIGH.
func ClassifyCongestionFromQueue(queueCount int) telemetry.CongestionLevel {
	switch {
	case queueCount < 8:
		return telemetry.CongestionLow
	case queueCount < 25:
		return telemetry.CongestionMedium
	default:
		return telemetry.CongestionHigh
	}
}

// ClassifyServiceStatus maps a queue length estimate to a service status.
func ClassifyServiceStatus(queueLength int) telemetry.ServiceStatus {
	switch {
	case queueLength < 8:
		return telemetry.StatusReadyToServe
	case queueLength < 15:
		return telemetry.StatusShortWait
	case queueLength < 25:
		return telemetry.StatusMediumWait
	default:
		return telemetry.StatusLongWait
	}
}

// ClassifyServiceStatusCombined classifies from an observed queue count and a
// wait time together, used by the lightweight queue-status ingest path. The
// wait thresholds are the queue thresholds scaled by the service rate; the
// worse of the two classifications wins.
func ClassifyServiceStatusCombined(queueCount int, waitMinutes float64) telemetry.ServiceStatus {
	byQueue := ClassifyServiceStatus(queueCount)

	var byWait telemetry.ServiceStatus
	switch {
	case waitMinutes < 8*serviceRateMinutesPerPerson:
		byWait = telemetry.StatusReadyToServe
	case waitMinutes < 15*serviceRateMinutesPerPerson:
		byWait = telemetry.StatusShortWait
	case waitMinutes < 25*serviceRateMinutesPerPerson:
		byWait = telemetry.StatusMediumWait
	default:
		byWait = telemetry.StatusLongWait
	}

	if statusRank(byWait) > statusRank(byQueue) {
		return byWait
	}
	return byQueue
}

func statusRank(status telemetry.ServiceStatus) int {
	switch status {
	case telemetry.StatusReadyToServe:
		return 0
	case telemetry.StatusShortWait:
		return 1
	case telemetry.StatusMediumWait:
		return 2
	default:
		return 3
	}
}
