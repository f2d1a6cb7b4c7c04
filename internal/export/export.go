// Package export writes the EC growth summary as an xlsx workbook.
package export

import (
	"bytes"
	"fmt"

	"github.com/KaramelBytes/hydrodash/internal/dataset"
	"github.com/xuri/excelize/v2"
)

const (
	// ContentType is the MIME type of the summary workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	// Sheet is the only sheet in the workbook.
	Sheet = "Sheet1"
)

// Header is the first row of the summary sheet.
var Header = []string{"학교", "EC", "생장률"}

// SummaryWorkbook returns an in-memory workbook with one row per summary row
// below a header row. No file is written.
func SummaryWorkbook(rows []dataset.SummaryRow) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(Sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := []any{r.School, r.EC, r.GrowthRate}
		if err := f.SetSheetRow(Sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(Sheet, "A", "C", 14); err != nil {
		return nil, err
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf, nil
}
