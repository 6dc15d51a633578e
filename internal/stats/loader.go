package stats

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/PratikDhanave/machine-events-service/internal/logging"
	"github.com/PratikDhanave/machine-events-service/internal/metrics"
)

// loader runs report queries through the optional cache and collapses
// identical concurrent queries into one ledger scan.
type loader struct {
	cache  ReportCache
	group  singleflight.Group
	tracer trace.Tracer
}

// Option configures an Aggregator or Ranker.
type Option func(*loader)

// WithCache enables the report cache. A nil cache disables caching.
func WithCache(c ReportCache) Option {
	return func(l *loader) { l.cache = c }
}

func newLoader(opts []Option) *loader {
	l := &loader{tracer: otel.Tracer("github.com/PratikDhanave/machine-events-service/internal/stats")}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func load[T any](ctx context.Context, l *loader, query, key string, compute func(context.Context) (T, error)) (T, error) {
	started := time.Now()
	defer func() {
		metrics.QueryDuration.WithLabelValues(query).Observe(time.Since(started).Seconds())
	}()

	ctx, span := l.tracer.Start(ctx, "stats."+query, trace.WithAttributes(attribute.String("report.key", key)))
	defer span.End()

	var zero T
	if l.cache != nil {
		var cached T
		hit, err := l.cache.Get(ctx, key, &cached)
		switch {
		case err != nil:
			metrics.CacheLookups.WithLabelValues("error").Inc()
			logging.Warnf("report cache get %s: %v", key, err)
		case hit:
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return cached, nil
		default:
			metrics.CacheLookups.WithLabelValues("miss").Inc()
		}
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		// Shared by every caller waiting on key, so one caller going away
		// must not cancel it for the rest.
		shared := context.WithoutCancel(ctx)
		report, err := compute(shared)
		if err != nil {
			return nil, err
		}
		if l.cache != nil {
			if err := l.cache.Set(shared, key, report); err != nil {
				logging.Warnf("report cache set %s: %v", key, err)
			}
		}
		return report, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return zero, err
	}
	return v.(T), nil
}
