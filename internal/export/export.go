// Package export renders outbox contents as a spreadsheet for manual hand-over.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"meter-capture-agent/internal/model"
)

// SheetName is the name of the single worksheet written.
const SheetName = "Outbox"

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var header = []string{"#", "Stand", "Area", "Street", "Submitted", "Request ID"}

// WriteOutbox writes payloads as an XLSX workbook to w, one row per payload
// in queue order. Submission times are rendered in loc.
func WriteOutbox(w io.Writer, payloads []model.Payload, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("write header %s: %w", cell, err)
		}
	}

	for i, p := range payloads {
		row := i + 2
		submitted := "-"
		if !p.Meta.SubmittedAt.IsZero() {
			submitted = p.Meta.SubmittedAt.In(loc).Format("2006-01-02 15:04:05")
		}
		values := []any{i + 1, p.Record.Stand, p.Record.Area, p.Record.Street, submitted, p.RequestID}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return fmt.Errorf("write cell %s: %w", cell, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
