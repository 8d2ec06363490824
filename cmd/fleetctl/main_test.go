package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/ukydev/fleet-dispatch/internal/db"
	"github.com/ukydev/fleet-dispatch/internal/models"
)

func setup(t *testing.T) string {
	t.Helper()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("STORAGE_DRIVER", "local")
	t.Setenv("LOG_LEVEL", "error")
	return filepath.Join(t.TempDir(), "fleet.db")
}

func execute(t *testing.T, dsn string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--sql-dsn", dsn}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func openStore(t *testing.T, dsn string) *db.Store {
	t.Helper()
	store, err := db.Open(context.Background(), "sqlite", "", "", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

func TestCreateUser(t *testing.T) {
	dsn := setup(t)

	out, err := execute(t, dsn, "create-user",
		"--username", "dispatch", "--email", "Dispatch@Example.com", "--password", "password123", "--role", "manager")
	require.NoError(t, err, out)
	assert.Contains(t, out, "created user")

	user, err := openStore(t, dsn).Users.FindUserByUsername(context.Background(), "dispatch")
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, user.Role)
	assert.Equal(t, "dispatch@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
}

func TestCreateUser_Rejected(t *testing.T) {
	dsn := setup(t)

	_, err := execute(t, dsn, "create-user", "--username", "dispatch", "--email", "d@example.com",
		"--password", "password123", "--role", "owner")
	assert.Error(t, err)

	_, err = execute(t, dsn, "create-user", "--username", "dispatch", "--email", "d@example.com", "--password", "short")
	assert.Error(t, err)

	_, err = execute(t, dsn, "create-user", "--username", "dispatch")
	assert.Error(t, err, "required flags are enforced")
}

func TestCreateDriver(t *testing.T) {
	dsn := setup(t)

	out, err := execute(t, dsn, "create-driver", "--name", "Noa", "--phone", "0501234567", "--password", "secret123")
	require.NoError(t, err, out)
	assert.Contains(t, out, "0501234567")

	_, err = execute(t, dsn, "create-driver", "--name", "Other", "--phone", "0501234567", "--password", "secret123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phone already registered")

	driver, err := openStore(t, dsn).Drivers.FindDriverByPhone(context.Background(), "0501234567")
	require.NoError(t, err)
	assert.Equal(t, "Noa", driver.Name)
	assert.True(t, driver.IsActive)
}

func TestCars(t *testing.T) {
	dsn := setup(t)

	out, err := execute(t, dsn, "create-car", "--plate", " 12-345-67 ", "--make", "Ford", "--model", "Transit", "--year", "2022")
	require.NoError(t, err, out)
	assert.Contains(t, out, "created car")

	_, err = execute(t, dsn, "create-car", "--plate", "99-999-99", "--year", "1900")
	assert.Error(t, err)

	out, err = execute(t, dsn, "list-cars")
	require.NoError(t, err)
	assert.Contains(t, out, "12-345-67")
	assert.Contains(t, out, "Transit")
	assert.NotContains(t, out, "99-999-99")
}

func TestCompliance(t *testing.T) {
	dsn := setup(t)
	ctx := context.Background()

	_, err := execute(t, dsn, "create-driver", "--name", "Noa", "--phone", "0501234567", "--password", "secret123")
	require.NoError(t, err)
	_, err = execute(t, dsn, "create-driver", "--name", "Avi", "--phone", "0507654321", "--password", "secret123")
	require.NoError(t, err)

	store := openStore(t, dsn)
	noa, err := store.Drivers.FindDriverByPhone(ctx, "0501234567")
	require.NoError(t, err)
	require.NoError(t, store.Inspections.InsertInspection(ctx, &models.VehicleInspection{
		DriverID:  noa.ID,
		CreatedAt: time.Date(2025, 3, 10, 7, 30, 0, 0, time.UTC),
		Metadata: models.InspectionMetadata{
			VehicleNumber: "12-345-67",
			Checks:        map[string]bool{"tires": true},
			Status:        models.InspectionGood,
		},
	}))
	require.NoError(t, store.Close(ctx))

	xlsxPath := filepath.Join(t.TempDir(), "compliance.xlsx")
	out, err := execute(t, dsn, "compliance", "--date", "2025-03-10", "--xlsx", xlsxPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "12-345-67")
	assert.Contains(t, out, "2025-03-10: 1/2 completed (50%)")
	assert.Contains(t, out, "wrote "+xlsxPath)

	_, err = os.Stat(xlsxPath)
	require.NoError(t, err)
	f, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "Compliance 2025-03-10", f.GetSheetName(0))
}

func TestCompliance_BadDate(t *testing.T) {
	dsn := setup(t)

	_, err := execute(t, dsn, "compliance", "--date", "10/03/2025")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")
}
