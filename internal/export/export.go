// Package export renders dashboard reports as Excel workbooks.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ukydev/fleet-dispatch/internal/compliance"
	"github.com/ukydev/fleet-dispatch/internal/models"
)

// ContentType is the media type of the generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const timeLayout = "2006-01-02 15:04"

// ComplianceWorkbook lists the daily check of every evaluated driver
// followed by the totals of the day.
func ComplianceWorkbook(summary compliance.Summary, loc *time.Location) (*bytes.Buffer, error) {
	headers := []string{"Driver ID", "Driver", "Completed", "Completed At", "Vehicle Number", "Status"}

	rows := make([][]any, 0, len(summary.Drivers)+6)
	for _, d := range summary.Drivers {
		completedAt, vehicle, status := "", "", ""
		if d.LatestCheck != nil {
			completedAt = d.LatestCheck.CompletedAt.In(loc).Format(timeLayout)
			vehicle = deref(d.LatestCheck.VehicleNumber)
			status = deref(d.LatestCheck.Status)
		}
		rows = append(rows, []any{d.DriverID, d.DriverName, yesNo(d.HasCompletedTodaysCheck), completedAt, vehicle, status})
	}
	rows = append(rows,
		nil,
		[]any{"Date", summary.Date},
		[]any{"Completed", summary.Completed},
		[]any{"Pending", summary.Pending},
		[]any{"Completion Rate %", summary.CompletionRate},
	)
	if summary.Failed > 0 {
		rows = append(rows, []any{"Not Evaluated", summary.Failed})
	}

	return workbook("Compliance "+summary.Date, headers, rows)
}

// MissionsWorkbook lists missions in the order given.
func MissionsWorkbook(missions []models.Mission, loc *time.Location) (*bytes.Buffer, error) {
	headers := []string{
		"ID", "Reference", "Client", "Address", "Status", "Driver ID", "Car ID",
		"Expected", "Completed At", "Failure Reason", "Notes",
	}

	rows := make([][]any, 0, len(missions))
	for _, m := range missions {
		reason := ""
		if m.Metadata.Failure != nil {
			reason = m.Metadata.Failure.Reason
		}
		completedAt := ""
		if m.CompletedAt != nil {
			completedAt = m.CompletedAt.In(loc).Format(timeLayout)
		}
		rows = append(rows, []any{
			m.ID,
			m.Reference,
			m.ClientName,
			m.Address,
			string(m.Status),
			idCell(m.DriverID),
			idCell(m.CarID),
			m.DateExpected.In(loc).Format(timeLayout),
			completedAt,
			reason,
			m.Notes,
		})
	}

	return workbook("Missions", headers, rows)
}

func workbook(sheetName string, headers []string, rows [][]any) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	// excelize limits sheet names to 31 characters
	if len(sheetName) > 31 {
		sheetName = sheetName[:31]
	}
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("error naming sheet: %w", err)
	}

	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("error writing header: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6E6FA"}, Pattern: 1},
	})
	if err == nil {
		f.SetRowStyle(sheetName, 1, 1, headerStyle)
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("error writing row %d: %w", i+2, err)
		}
	}

	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return nil, err
	}
	f.SetColWidth(sheetName, "A", last, 18)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("error writing Excel file to buffer: %w", err)
	}
	return &buf, nil
}

func idCell(id *int64) any {
	if id == nil {
		return ""
	}
	return *id
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
