package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/PratikDhanave/machine-events-service/internal/models"
	"github.com/PratikDhanave/machine-events-service/internal/store"
)

// Aggregator computes per-machine health over a half-open window.
type Aggregator struct {
	ledger store.Ledger
	loader *loader
}

func NewAggregator(ledger store.Ledger, opts ...Option) *Aggregator {
	return &Aggregator{ledger: ledger, loader: newLoader(opts)}
}

// MachineStats reports event and defect counts for machineID in [start,end).
// It never writes to the ledger.
func (a *Aggregator) MachineStats(ctx context.Context, machineID string, start, end time.Time) (models.StatsReport, error) {
	start, end = start.UTC(), end.UTC()
	key := fmt.Sprintf("machine:%s:%d:%d", machineID, start.UnixNano(), end.UnixNano())

	return load(ctx, a.loader, "machine_stats", key, func(ctx context.Context) (models.StatsReport, error) {
		events, err := a.ledger.QueryWindow(ctx, machineID, start, end)
		if err != nil {
			return models.StatsReport{}, fmt.Errorf("machine stats %s: %w", machineID, err)
		}
		return ComputeMachineStats(machineID, start, end, events), nil
	})
}
