package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "Report"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// numFmtTwoDecimals is excelize's built-in "0.00" number format.
const numFmtTwoDecimals = 2

// XLSX renders t as a single-sheet workbook: header row, then data rows.
func XLSX(t Table) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	defaultSheet := f.GetSheetName(0)
	if err := f.SetSheetName(defaultSheet, SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(t.Columns))
	for i, col := range t.Columns {
		header[i] = col
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: numFmtTwoDecimals})
	if err != nil {
		return nil, fmt.Errorf("create money style: %w", err)
	}

	for r, row := range t.Rows {
		excelRow := r + 2
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, excelRow)
			if err != nil {
				return nil, err
			}
			if d, ok := isMoney(value); ok {
				if err := f.SetCellFloat(SheetName, cell, d.InexactFloat64(), 2, 64); err != nil {
					return nil, fmt.Errorf("write cell %s: %w", cell, err)
				}
				if err := f.SetCellStyle(SheetName, cell, cell, moneyStyle); err != nil {
					return nil, fmt.Errorf("style cell %s: %w", cell, err)
				}
				continue
			}
			if err := f.SetCellValue(SheetName, cell, value); err != nil {
				return nil, fmt.Errorf("write cell %s: %w", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
