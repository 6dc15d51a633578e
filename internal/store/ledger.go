package store

import (
	"context"
	"errors"
	"time"

	"github.com/PratikDhanave/machine-events-service/internal/policy"
)

var (
	// ErrAlreadyExists is returned by InsertIfAbsent when the event id is taken.
	ErrAlreadyExists = errors.New("event already exists")

	// ErrConflict is returned by CompareAndUpdate when the stored record no
	// longer matches the caller's expectation.
	ErrConflict = errors.New("event changed concurrently")

	// ErrUnavailable wraps failures to reach the backing store at all.
	ErrUnavailable = errors.New("ledger unavailable")

	// ErrInvalidEvent means the store refused the values of one event. It
	// says nothing about the health of the store.
	ErrInvalidEvent = errors.New("event refused by ledger")
)

// Event is the single ledger record kept per EventID.
type Event struct {
	EventID      string
	EventTime    time.Time
	ReceivedTime time.Time
	MachineID    string
	DurationMs   int64
	DefectCount  int
	PayloadHash  string
}

// DefectsKnown reports whether DefectCount is an observed value rather than
// the unknown sentinel.
func (e Event) DefectsKnown() bool {
	return e.DefectCount != policy.UnknownDefectCount
}

// Ledger is the keyed event store consumed by ingestion and stats.
//
// InsertIfAbsent and CompareAndUpdate are each atomic. CompareAndUpdate only
// succeeds while the stored record still has expectedHash and a ReceivedTime
// strictly before next.ReceivedTime.
//
// Window queries use the half-open interval [start,end) on EventTime.
type Ledger interface {
	Get(ctx context.Context, eventID string) (Event, bool, error)
	InsertIfAbsent(ctx context.Context, ev Event) error
	CompareAndUpdate(ctx context.Context, eventID, expectedHash string, next Event) error
	QueryWindow(ctx context.Context, machineID string, start, end time.Time) ([]Event, error)
	QueryWindowAll(ctx context.Context, start, end time.Time) ([]Event, error)
	Ping(ctx context.Context) error
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
