package models

import "time"

// StatsReport is returned by GET /events/stats for the window [Start,End).
type StatsReport struct {
	MachineID     string    `json:"machineId"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	EventsCount   int64     `json:"eventsCount"`
	DefectsCount  int64     `json:"defectsCount"`
	AvgDefectRate float64   `json:"avgDefectRate"`
	Status        string    `json:"status"`
}

// LineReport is one row of GET /events/stats/top-defect-lines.
type LineReport struct {
	LineID         string  `json:"lineId"`
	EventCount     int64   `json:"eventCount"`
	TotalDefects   int64   `json:"totalDefects"`
	DefectsPercent float64 `json:"defectsPercent"`
}
