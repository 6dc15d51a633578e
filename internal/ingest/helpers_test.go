package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PratikDhanave/machine-events-service/internal/models"
	"github.com/PratikDhanave/machine-events-service/internal/store"
)

var base = time.Date(2026, 1, 15, 4, 30, 0, 0, time.UTC)

func rawEvent(id string, at time.Time, duration int64, defects int) models.RawEvent {
	return models.RawEvent{
		EventID:     id,
		EventTime:   at,
		MachineID:   "M-001",
		DurationMs:  duration,
		DefectCount: defects,
	}
}

// stepClock advances by step on every read so successive receivedTimes are
// strictly increasing.
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newStepClock(start time.Time) *stepClock {
	return &stepClock{t: start, step: time.Millisecond}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

func record(raw models.RawEvent, received time.Time) store.Event {
	return store.Event{
		EventID:      raw.EventID,
		EventTime:    raw.EventTime,
		ReceivedTime: received,
		MachineID:    raw.MachineID,
		DurationMs:   raw.DurationMs,
		DefectCount:  raw.DefectCount,
		PayloadHash:  Fingerprint(raw),
	}
}

// racingLedger lets a competing writer land just before the first
// conditional write of the caller.
type racingLedger struct {
	*store.MemoryLedger
	beforeInsert func()
	beforeUpdate func()
}

func (l *racingLedger) InsertIfAbsent(ctx context.Context, ev store.Event) error {
	if f := l.beforeInsert; f != nil {
		l.beforeInsert = nil
		f()
	}
	return l.MemoryLedger.InsertIfAbsent(ctx, ev)
}

func (l *racingLedger) CompareAndUpdate(ctx context.Context, id, expected string, next store.Event) error {
	if f := l.beforeUpdate; f != nil {
		l.beforeUpdate = nil
		f()
	}
	return l.MemoryLedger.CompareAndUpdate(ctx, id, expected, next)
}

// conflictLedger never lets an update through.
type conflictLedger struct {
	*store.MemoryLedger
	updates atomic.Int32
}

func (l *conflictLedger) CompareAndUpdate(context.Context, string, string, store.Event) error {
	l.updates.Add(1)
	return store.ErrConflict
}

// downLedger fails every read once down is set.
type downLedger struct {
	*store.MemoryLedger
	down  atomic.Bool
	reads atomic.Int32
}

func (l *downLedger) Get(ctx context.Context, id string) (store.Event, bool, error) {
	if l.down.Load() {
		l.reads.Add(1)
		return store.Event{}, false, fmt.Errorf("get event: %w: connection refused", store.ErrUnavailable)
	}
	return l.MemoryLedger.Get(ctx, id)
}

// refusingLedger refuses to store one event id, as Postgres does for a value
// its column types cannot hold.
type refusingLedger struct {
	*store.MemoryLedger
	refuse string
}

func (l *refusingLedger) InsertIfAbsent(ctx context.Context, ev store.Event) error {
	if ev.EventID == l.refuse {
		return fmt.Errorf("insert event: %w: value out of range", store.ErrInvalidEvent)
	}
	return l.MemoryLedger.InsertIfAbsent(ctx, ev)
}
