package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/PratikDhanave/machine-events-service/internal/logging"
	"github.com/PratikDhanave/machine-events-service/internal/metrics"
	"github.com/PratikDhanave/machine-events-service/internal/models"
	"github.com/PratikDhanave/machine-events-service/internal/policy"
	"github.com/PratikDhanave/machine-events-service/internal/store"
)

// Service drives batches of raw events through validation, fingerprinting
// and reconciliation.
//
//	IngestBatch(events)
//	    │
//	    ├── Validate(ev, now)   ── invalid → Rejected + rejection entry
//	    │
//	    ├── Fingerprint(ev)
//	    │
//	    └── Reconciler.Reconcile ── accepted | deduped | updated
type Service struct {
	reconciler *Reconciler
	now        func() time.Time
	tracer     trace.Tracer

	stampMu   sync.Mutex
	lastStamp time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now for validation and receivedTime stamping.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(r *Reconciler, opts ...Option) *Service {
	s := &Service{
		reconciler: r,
		now:        time.Now,
		tracer:     otel.Tracer("github.com/PratikDhanave/machine-events-service/internal/ingest"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestBatch processes events in order and returns the tally.
//
// Invalid events never fail the batch. An error is returned only when the
// ledger itself fails; the tally then covers the events handled before the
// failure, whose writes remain committed.
func (s *Service) IngestBatch(ctx context.Context, events []models.RawEvent) (models.BatchTally, error) {
	started := time.Now()
	tally := models.BatchTally{
		BatchID:    uuid.NewString(),
		Rejections: []models.Rejection{},
	}

	ctx, span := s.tracer.Start(ctx, "ingest.batch", trace.WithAttributes(
		attribute.String("batch.id", tally.BatchID),
		attribute.Int("batch.size", len(events)),
	))
	defer span.End()

	now := s.now()
	for _, raw := range events {
		if res := Validate(raw, now); !res.OK {
			tally.Reject(raw.EventID, res.Reason)
			metrics.Rejections.WithLabelValues(string(res.Reason)).Inc()
			metrics.EventsIngested.WithLabelValues("rejected").Inc()
			continue
		}

		outcome, err := s.reconciler.Reconcile(ctx, s.toRecord(raw))
		if errors.Is(err, store.ErrInvalidEvent) {
			logging.Warnf("batch %s: ledger refused event %s: %v", tally.BatchID, raw.EventID, err)
			tally.Reject(raw.EventID, policy.ReasonRejectedByLedger)
			metrics.Rejections.WithLabelValues(string(policy.ReasonRejectedByLedger)).Inc()
			metrics.EventsIngested.WithLabelValues("rejected").Inc()
			continue
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "ledger failure")
			logging.Errorf("batch %s: stopped after %d of %d events: %v", tally.BatchID, tally.Total(), len(events), err)
			return tally, err
		}

		switch outcome {
		case OutcomeAccepted:
			tally.Accepted++
		case OutcomeDeduped:
			tally.Deduped++
		case OutcomeUpdated:
			tally.Updated++
		}
		metrics.EventsIngested.WithLabelValues(string(outcome)).Inc()
	}

	metrics.BatchDuration.Observe(time.Since(started).Seconds())
	span.SetAttributes(
		attribute.Int("batch.accepted", tally.Accepted),
		attribute.Int("batch.deduped", tally.Deduped),
		attribute.Int("batch.updated", tally.Updated),
		attribute.Int("batch.rejected", tally.Rejected),
	)
	logging.Infof("batch %s: size=%d accepted=%d deduped=%d updated=%d rejected=%d",
		tally.BatchID, len(events), tally.Accepted, tally.Deduped, tally.Updated, tally.Rejected)

	return tally, nil
}

func (s *Service) toRecord(raw models.RawEvent) store.Event {
	return store.Event{
		EventID:      raw.EventID,
		EventTime:    raw.EventTime.UTC(),
		ReceivedTime: s.stamp(),
		MachineID:    raw.MachineID,
		DurationMs:   raw.DurationMs,
		DefectCount:  raw.DefectCount,
		PayloadHash:  Fingerprint(raw),
	}
}

// stamp returns a receivedTime strictly later than every earlier stamp of s,
// so a later copy of an event in the same batch always counts as newer.
// Stamps keep microsecond precision to agree with what Postgres stores.
func (s *Service) stamp() time.Time {
	t := s.now().UTC().Truncate(time.Microsecond)

	s.stampMu.Lock()
	defer s.stampMu.Unlock()
	if !t.After(s.lastStamp) {
		t = s.lastStamp.Add(time.Microsecond)
	}
	s.lastStamp = t
	return t
}
