// Package stats turns ledger windows into machine health and defect-line reports.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/PratikDhanave/machine-events-service/internal/models"
	"github.com/PratikDhanave/machine-events-service/internal/policy"
	"github.com/PratikDhanave/machine-events-service/internal/store"
)

// ComputeMachineStats summarizes events already restricted to one machine
// and to [start,end). Events with an unknown defect count are counted as
// events but add nothing to defects.
func ComputeMachineStats(machineID string, start, end time.Time, events []store.Event) models.StatsReport {
	var defects int64
	for _, ev := range events {
		if ev.DefectsKnown() {
			defects += int64(ev.DefectCount)
		}
	}

	windowHours := float64(end.Sub(start).Milliseconds()) / float64(time.Hour.Milliseconds())
	avg := 0.0
	if windowHours > 0 {
		avg = float64(defects) / windowHours
	}

	return models.StatsReport{
		MachineID:     machineID,
		Start:         start,
		End:           end,
		EventsCount:   int64(len(events)),
		DefectsCount:  defects,
		AvgDefectRate: avg,
		Status:        policy.HealthStatus(avg),
	}
}

// RankLines groups events by line (machine id), orders the groups by total
// defects descending then line id ascending, and keeps the first limit.
func RankLines(events []store.Event, limit int) []models.LineReport {
	if limit < 0 {
		limit = 0
	}

	byLine := map[string]*models.LineReport{}
	for _, ev := range events {
		line, ok := byLine[ev.MachineID]
		if !ok {
			line = &models.LineReport{LineID: ev.MachineID}
			byLine[ev.MachineID] = line
		}
		line.EventCount++
		if ev.DefectsKnown() {
			line.TotalDefects += int64(ev.DefectCount)
		}
	}

	lines := make([]models.LineReport, 0, len(byLine))
	for _, line := range byLine {
		line.DefectsPercent = defectsPercent(line.TotalDefects, line.EventCount)
		lines = append(lines, *line)
	}

	sort.Slice(lines, func(i, j int) bool {
		if lines[i].TotalDefects != lines[j].TotalDefects {
			return lines[i].TotalDefects > lines[j].TotalDefects
		}
		return lines[i].LineID < lines[j].LineID
	})

	if len(lines) > limit {
		lines = lines[:limit]
	}
	return lines
}

// defectsPercent is 100*defects/events rounded to two decimals.
func defectsPercent(defects, events int64) float64 {
	if events == 0 {
		return 0
	}
	p := float64(defects) * 100 / float64(events)
	return math.Round(p*100) / 100
}
