package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"
)

var workbookHeader = []any{"week", "minutes_outside_nominal", "cumulative_minutes"}

// WriteWorkbook saves one sheet per year, named after the year.
func WriteWorkbook(path string, years []YearSeries) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create workbook dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const defaultSheet = "Sheet1"
	for _, y := range years {
		sheet := strconv.Itoa(y.Year)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("add sheet %s: %w", sheet, err)
		}
		if err := f.SetSheetRow(sheet, "A1", &workbookHeader); err != nil {
			return fmt.Errorf("write sheet %s header: %w", sheet, err)
		}
		for r, week := range y.Weeks {
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			row := []any{week, y.Minutes[r], y.Cumulative[r]}
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return fmt.Errorf("write sheet %s row %d: %w", sheet, r+2, err)
			}
		}
	}
	if len(years) > 0 {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return fmt.Errorf("drop default sheet: %w", err)
		}
		idx, err := f.GetSheetIndex(strconv.Itoa(years[0].Year))
		if err != nil {
			return err
		}
		f.SetActiveSheet(idx)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
