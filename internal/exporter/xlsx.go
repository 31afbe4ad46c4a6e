package exporter

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kosonkh7/SOPO-Dashboard/internal/shipment"
)

// WriteXLSX writes each table to its own sheet of a new workbook. The first
// table becomes the active sheet.
func WriteXLSX(out io.Writer, tables ...Table) error {
	if len(tables) == 0 {
		return fmt.Errorf("no tables to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, t := range tables {
		sheet := t.Name
		if sheet == "" {
			sheet = fmt.Sprintf("Sheet%d", i+1)
		}

		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
				return fmt.Errorf("failed to name sheet %s: %w", sheet, err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", sheet, err)
		}

		if err := writeSheet(f, sheet, t, headerStyle); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, t Table, headerStyle int) error {
	header := make([]interface{}, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style header of %s: %w", sheet, err)
	}

	for i, row := range t.Rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = xlsxCell(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+1, sheet, err)
		}
	}
	return nil
}

// xlsxCell keeps numbers numeric and renders dates in the dataset layout.
func xlsxCell(v interface{}) interface{} {
	switch x := v.(type) {
	case time.Time:
		return x.Format(shipment.DayLayout)
	case float64, *float64:
		s := formatCell(x)
		if s == "" {
			return nil
		}
		if p, ok := x.(*float64); ok {
			return *p
		}
		return x
	default:
		return v
	}
}
