package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/PratikDhanave/machine-events-service/internal/metrics"
	"github.com/PratikDhanave/machine-events-service/internal/store"
)

// ErrReconcileExhausted means every retry lost a conditional write race.
var ErrReconcileExhausted = errors.New("reconcile retries exhausted")

// Outcome is what ingestion did with one valid event.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeDeduped  Outcome = "deduped"
	OutcomeUpdated  Outcome = "updated"
)

const (
	defaultMaxTries        = 10
	defaultInitialInterval = 5 * time.Millisecond
	defaultMaxInterval     = 250 * time.Millisecond
)

// Reconciler decides accept, dedupe or update for an event against the
// ledger. The read-decide-write for one event id is made atomic by the
// ledger's conditional writes: a lost race is retried from the read.
type Reconciler struct {
	ledger          store.Ledger
	maxTries        uint
	initialInterval time.Duration
	maxInterval     time.Duration
}

// ReconcilerOption tunes the retry policy.
type ReconcilerOption func(*Reconciler)

// WithRetry bounds conflict retries to maxTries attempts with exponential
// backoff between initial and ceiling.
func WithRetry(maxTries uint, initial, ceiling time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		r.maxTries = maxTries
		r.initialInterval = initial
		r.maxInterval = ceiling
	}
}

func NewReconciler(ledger store.Ledger, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		ledger:          ledger,
		maxTries:        defaultMaxTries,
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile applies incoming to the ledger and reports the outcome.
// Conflicts are retried internally; any other ledger error is returned as is.
func (r *Reconciler) Reconcile(ctx context.Context, incoming store.Event) (Outcome, error) {
	op := func() (Outcome, error) {
		outcome, err := r.attempt(ctx, incoming)
		if isConflict(err) {
			metrics.ReconcileConflicts.Inc()
			return "", err
		}
		if err != nil {
			return "", backoff.Permanent(err)
		}
		return outcome, nil
	}

	outcome, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(r.maxTries),
	)
	if err != nil {
		if isConflict(err) {
			return "", fmt.Errorf("event %s: %w", incoming.EventID, ErrReconcileExhausted)
		}
		return "", fmt.Errorf("reconcile event %s: %w", incoming.EventID, err)
	}
	return outcome, nil
}

func (r *Reconciler) attempt(ctx context.Context, incoming store.Event) (Outcome, error) {
	existing, found, err := r.ledger.Get(ctx, incoming.EventID)
	if err != nil {
		return "", err
	}

	if !found {
		if err := r.ledger.InsertIfAbsent(ctx, incoming); err != nil {
			return "", err
		}
		return OutcomeAccepted, nil
	}

	if existing.PayloadHash == incoming.PayloadHash {
		return OutcomeDeduped, nil
	}

	// Only a later observation may replace the stored version.
	if !incoming.ReceivedTime.After(existing.ReceivedTime) {
		return OutcomeDeduped, nil
	}

	if err := r.ledger.CompareAndUpdate(ctx, incoming.EventID, existing.PayloadHash, incoming); err != nil {
		return "", err
	}
	return OutcomeUpdated, nil
}

func (r *Reconciler) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval
	b.Reset()
	return b
}

func isConflict(err error) bool {
	return errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrAlreadyExists)
}
