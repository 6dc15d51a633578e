// Package export renders reports as downloadable spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/PratikDhanave/machine-events-service/internal/models"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	defectSheet     = "Top Defect Lines"
)

var defectHeader = []any{"Line", "Events", "Total defects", "Defects %"}

// WriteTopDefectLines writes lines as a single-sheet workbook to w. The window
// is recorded in the sheet's first row.
func WriteTopDefectLines(w io.Writer, from, to time.Time, lines []models.LineReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", defectSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	window := []any{"Window", from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339)}
	if err := f.SetSheetRow(defectSheet, "A1", &window); err != nil {
		return fmt.Errorf("failed to write window row: %w", err)
	}
	if err := f.SetSheetRow(defectSheet, "A2", &defectHeader); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return err
		}
		row := []any{line.LineID, line.EventCount, line.TotalDefects, line.DefectsPercent}
		if err := f.SetSheetRow(defectSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", line.LineID, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
