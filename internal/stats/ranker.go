package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/PratikDhanave/machine-events-service/internal/models"
	"github.com/PratikDhanave/machine-events-service/internal/store"
)

// Ranker lists the lines with the most defects in a half-open window.
type Ranker struct {
	ledger store.Ledger
	loader *loader
}

func NewRanker(ledger store.Ledger, opts ...Option) *Ranker {
	return &Ranker{ledger: ledger, loader: newLoader(opts)}
}

// TopDefectLines returns at most limit lines for [from,to), most defects first.
// Lines with equal totals are ordered by line id.
func (r *Ranker) TopDefectLines(ctx context.Context, from, to time.Time, limit int) ([]models.LineReport, error) {
	from, to = from.UTC(), to.UTC()
	key := fmt.Sprintf("top:%d:%d:%d", from.UnixNano(), to.UnixNano(), limit)

	return load(ctx, r.loader, "top_defect_lines", key, func(ctx context.Context) ([]models.LineReport, error) {
		events, err := r.ledger.QueryWindowAll(ctx, from, to)
		if err != nil {
			return nil, fmt.Errorf("top defect lines: %w", err)
		}
		return RankLines(events, limit), nil
	})
}
