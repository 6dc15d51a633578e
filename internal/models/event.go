package models

import (
	"time"

	"github.com/PratikDhanave/machine-events-service/internal/policy"
)

// RawEvent is one element of the POST /events/batch payload.
// defectCount is -1 when the machine could not report defects.
type RawEvent struct {
	EventID     string    `json:"eventId"`
	EventTime   time.Time `json:"eventTime"`
	MachineID   string    `json:"machineId"`
	DurationMs  int64     `json:"durationMs"`
	DefectCount int       `json:"defectCount"`
}

// Rejection names an event that failed validation and why.
type Rejection struct {
	EventID string        `json:"eventId"`
	Reason  policy.Reason `json:"reason"`
}

// BatchTally is returned by POST /events/batch.
// Accepted+Deduped+Updated+Rejected always equals the batch size on success.
type BatchTally struct {
	BatchID    string      `json:"batchId"`
	Accepted   int         `json:"accepted"`
	Deduped    int         `json:"deduped"`
	Updated    int         `json:"updated"`
	Rejected   int         `json:"rejected"`
	Rejections []Rejection `json:"rejections"`
}

// Total is the number of events the tally accounts for.
func (t BatchTally) Total() int {
	return t.Accepted + t.Deduped + t.Updated + t.Rejected
}

// Reject records a validation failure for eventID.
func (t *BatchTally) Reject(eventID string, reason policy.Reason) {
	t.Rejected++
	t.Rejections = append(t.Rejections, Rejection{EventID: eventID, Reason: reason})
}
