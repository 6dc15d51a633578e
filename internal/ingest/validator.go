package ingest

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PratikDhanave/machine-events-service/internal/models"
	"github.com/PratikDhanave/machine-events-service/internal/policy"
)

// ValidationResult is the outcome of validating a single RawEvent.
type ValidationResult struct {
	OK     bool
	Reason policy.Reason
}

func ok() ValidationResult {
	return ValidationResult{OK: true}
}

func fail(reason policy.Reason) ValidationResult {
	return ValidationResult{Reason: reason}
}

// Validate checks ev against the ingestion policy relative to now.
// The first failing rule determines the reason.
func Validate(ev models.RawEvent, now time.Time) ValidationResult {
	if ev.EventID == "" {
		return fail(policy.ReasonMissingEventID)
	}
	if !storableText(ev.EventID) {
		return fail(policy.ReasonInvalidEventID)
	}
	if ev.MachineID == "" {
		return fail(policy.ReasonMissingMachineID)
	}
	if !storableText(ev.MachineID) {
		return fail(policy.ReasonInvalidMachineID)
	}
	if ev.EventTime.IsZero() {
		return fail(policy.ReasonMissingEventTime)
	}
	if ev.DurationMs < 0 || ev.DurationMs > policy.MaxDurationMs {
		return fail(policy.ReasonInvalidDuration)
	}
	if ev.EventTime.After(now.Add(policy.FutureEventLimit)) {
		return fail(policy.ReasonEventTimeInFuture)
	}
	if ev.DefectCount < policy.UnknownDefectCount || int64(ev.DefectCount) > policy.MaxDefectCount {
		return fail(policy.ReasonInvalidDefectCount)
	}
	return ok()
}

// storableText reports whether s fits a Postgres TEXT column: valid UTF-8
// without NUL bytes.
func storableText(s string) bool {
	return utf8.ValidString(s) && !strings.ContainsRune(s, 0)
}
