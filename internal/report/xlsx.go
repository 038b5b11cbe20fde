package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/timedexam/internal/model"
)

// ContentTypeXLSX is the media type of the spreadsheet export.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const xlsxSheet = "Reporte"

// DetailedXLSX renders the audit columns as a single-sheet workbook.
func DetailedXLSX(items []model.Question, answers [][]string) ([]byte, error) {
	records, err := detailedRecords(items, answers)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := setRow(f, 1, DetailedHeader); err != nil {
		return nil, err
	}
	for i, rec := range records {
		if err := setRow(f, i+2, rec); err != nil {
			return nil, err
		}
	}
	if err := f.SetPanes(xlsxSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(xlsxSheet, cell, &cells); err != nil {
		return fmt.Errorf("set row %d: %w", row, err)
	}
	return nil
}
