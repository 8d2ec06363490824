package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ukydev/fleet-dispatch/internal/compliance"
	"github.com/ukydev/fleet-dispatch/internal/models"
)

func TestComplianceWorkbook(t *testing.T) {
	vehicle, status := "12-345", "good"
	summary := compliance.Summary{
		Date: "2025-03-04",
		Drivers: []compliance.DriverResult{
			{
				DriverID:                1,
				DriverName:              "Dana",
				HasCompletedTodaysCheck: true,
				LatestCheck: &compliance.CheckSummary{
					ID:            10,
					CompletedAt:   time.Date(2025, 3, 4, 6, 15, 0, 0, time.UTC),
					VehicleNumber: &vehicle,
					Status:        &status,
				},
			},
			{DriverID: 2, DriverName: "Noa"},
		},
		Completed:      1,
		Pending:        1,
		Total:          2,
		CompletionRate: 50,
	}

	buf, err := ComplianceWorkbook(summary, time.FixedZone("IST", 2*60*60))
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	sheet := "Compliance 2025-03-04"
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)

	assert.Equal(t, []string{"Driver ID", "Driver", "Completed", "Completed At", "Vehicle Number", "Status"}, rows[0])
	assert.Equal(t, []string{"1", "Dana", "Yes", "2025-03-04 08:15", "12-345", "good"}, rows[1])
	assert.Equal(t, []string{"2", "Noa", "No"}, rows[2][:3])

	rate, err := f.GetCellValue(sheet, "B8")
	require.NoError(t, err)
	assert.Equal(t, "50", rate)
}

func TestMissionsWorkbook(t *testing.T) {
	driverID := int64(7)
	missions := []models.Mission{
		{
			ID:           1,
			Reference:    "REF-1",
			Address:      "1 Herzl St",
			Status:       models.MissionProblem,
			DriverID:     &driverID,
			DateExpected: time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC),
			Metadata: models.MissionMetadata{
				Failure: &models.FailureDetails{Reason: "gate closed"},
			},
		},
		{
			ID:           2,
			Reference:    "REF-2",
			Status:       models.MissionUnassigned,
			DateExpected: time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC),
		},
	}

	buf, err := MissionsWorkbook(missions, time.UTC)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Missions")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "REF-1", rows[1][1])
	assert.Equal(t, "problem", rows[1][4])
	assert.Equal(t, "7", rows[1][5])
	assert.Equal(t, "gate closed", rows[1][9])
	assert.Equal(t, "unassigned", rows[2][4])
	assert.Equal(t, "", rows[2][5])
}

func TestWorkbook_LongSheetName(t *testing.T) {
	buf, err := workbook("a sheet name well beyond the excel limit", []string{"A"}, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, f.GetSheetName(0), 31)
}
