package httpserver

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"rate_sentinel/internal/app"
	"rate_sentinel/internal/risk"
)

const (
	riskSheet    = "Risk"
	summarySheet = "Summary"
)

var riskHeader = []any{"Hotel ID", "Hotel", "Forward Occupancy %", "Pacing Difficulty %", "Quadrant"}

// RiskWorkbook renders a risk overview as a two-sheet workbook. Invalid
// percentages are left as empty cells. The caller closes the file.
func RiskWorkbook(o app.RiskOverview) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), riskSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetSheetRow(riskSheet, "A1", &riskHeader); err != nil {
		f.Close()
		return nil, err
	}
	for i, p := range o.Points {
		row := []any{p.HotelID, p.HotelName, nil, nil, p.Label}
		if p.ForwardOccupancyPercent.Valid() {
			row[2] = p.ForwardOccupancyPercent.Float()
		}
		if p.PacingDifficultyPercent.Valid() {
			row[3] = p.PacingDifficultyPercent.Float()
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(riskSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("risk row %d: %w", i, err)
		}
	}
	if err := f.SetPanes(riskSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		f.Close()
		return nil, err
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		f.Close()
		return nil, err
	}
	rows := [][]any{{"Quadrant", "Hotels"}}
	for _, q := range risk.Quadrants {
		rows = append(rows, []any{q.Label(), o.Summary.Counts[q]})
	}
	rows = append(rows,
		[]any{risk.Invalid.Label(), o.Summary.Invalid},
		[]any{"Total", o.Summary.Total},
	)
	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &rows[i]); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}
