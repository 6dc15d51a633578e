// Package policy holds the fixed ingestion and health-classification rules.
// None of these values are runtime configurable.
package policy

import (
	"math"
	"time"
)

const (
	// MaxDurationMs is the longest event duration accepted (6 hours).
	MaxDurationMs = int64(6 * time.Hour / time.Millisecond)

	// FutureEventLimit is how far past "now" an eventTime may lie.
	FutureEventLimit = 15 * time.Minute

	// MaxDefectCount is the largest defect count the ledger column holds.
	MaxDefectCount = math.MaxInt32

	// UnknownDefectCount marks an event whose defect count was not reported.
	// Such events count as events but never contribute to defect sums.
	UnknownDefectCount = -1

	// WarningDefectRate is the defects-per-hour rate at which a machine
	// stops being Healthy.
	WarningDefectRate = 2.0

	StatusHealthy = "Healthy"
	StatusWarning = "Warning"
)

// Reason is a rejection code reported back to the caller for an invalid event.
type Reason string

const (
	ReasonMissingEventID     Reason = "MISSING_EVENT_ID"
	ReasonInvalidEventID     Reason = "INVALID_EVENT_ID"
	ReasonMissingMachineID   Reason = "MISSING_MACHINE_ID"
	ReasonInvalidMachineID   Reason = "INVALID_MACHINE_ID"
	ReasonMissingEventTime   Reason = "MISSING_EVENT_TIME"
	ReasonInvalidDuration    Reason = "INVALID_DURATION"
	ReasonEventTimeInFuture  Reason = "EVENT_TIME_IN_FUTURE"
	ReasonInvalidDefectCount Reason = "INVALID_DEFECT_COUNT"

	// ReasonRejectedByLedger covers values that pass validation but that the
	// ledger refuses to store.
	ReasonRejectedByLedger Reason = "REJECTED_BY_LEDGER"
)

// HealthStatus classifies a defects-per-hour rate.
func HealthStatus(avgDefectRate float64) string {
	if avgDefectRate < WarningDefectRate {
		return StatusHealthy
	}
	return StatusWarning
}
