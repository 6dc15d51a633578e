package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryLedger keeps the ledger in process memory. It backs tests and
// single-node deployments without Postgres.
type MemoryLedger struct {
	mu     sync.RWMutex
	events map[string]Event
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{events: make(map[string]Event)}
}

func (m *MemoryLedger) Get(_ context.Context, eventID string) (Event, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ev, ok := m.events[eventID]
	return ev, ok, nil
}

func (m *MemoryLedger) InsertIfAbsent(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[ev.EventID]; ok {
		return ErrAlreadyExists
	}
	m.events[ev.EventID] = ev
	return nil
}

func (m *MemoryLedger) CompareAndUpdate(_ context.Context, eventID, expectedHash string, next Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.events[eventID]
	if !ok || cur.PayloadHash != expectedHash || !cur.ReceivedTime.Before(next.ReceivedTime) {
		return ErrConflict
	}
	next.EventID = eventID
	m.events[eventID] = next
	return nil
}

func (m *MemoryLedger) QueryWindow(_ context.Context, machineID string, start, end time.Time) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Event{}
	for _, ev := range m.events {
		if ev.MachineID == machineID && inWindow(ev.EventTime, start, end) {
			out = append(out, ev)
		}
	}
	sortByEventTime(out)
	return out, nil
}

func (m *MemoryLedger) QueryWindowAll(_ context.Context, start, end time.Time) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Event{}
	for _, ev := range m.events {
		if inWindow(ev.EventTime, start, end) {
			out = append(out, ev)
		}
	}
	sortByEventTime(out)
	return out, nil
}

func (m *MemoryLedger) Ping(context.Context) error { return nil }

// Len returns the number of stored records.
func (m *MemoryLedger) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// sortByEventTime matches the ORDER BY of the Postgres window queries.
func sortByEventTime(evs []Event) {
	sort.Slice(evs, func(i, j int) bool {
		if !evs[i].EventTime.Equal(evs[j].EventTime) {
			return evs[i].EventTime.Before(evs[j].EventTime)
		}
		return evs[i].EventID < evs[j].EventID
	})
}

var _ Ledger = (*MemoryLedger)(nil)
