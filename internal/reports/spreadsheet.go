package reports

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Referral assessments"

var sheetHeader = []string{"CRN", "Name", "Status", "Created", "Arrival date"}

// WriteSpreadsheet exports one listing page as an xlsx workbook. Names pass
// through the same redaction rendering as the JSON listing.
func (s *Service) WriteSpreadsheet(ctx context.Context, w io.Writer, query Query) error {
	rows, _, err := s.ListSummaries(ctx, query)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create report sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	if err := f.SetSheetRow(sheetName, "A1", &sheetHeader); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	for i, row := range rows {
		arrival := ""
		if row.ArrivalDate != nil {
			arrival = row.ArrivalDate.Format(time.DateOnly)
		}
		cells := []any{
			row.CRN.String(),
			row.Name,
			string(row.Status),
			row.CreatedAt.Format(time.DateOnly),
			arrival,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("address report row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
			return fmt.Errorf("write report row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write report workbook: %w", err)
	}
	return nil
}
