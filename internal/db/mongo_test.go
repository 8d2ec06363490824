package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/ukydev/fleet-dispatch/internal/models"
)

func TestConnectMongo_BadURI(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := ConnectMongo(ctx, "mongodb://bad:uri")
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestNilCollection(t *testing.T) {
	ctx := context.Background()

	_, err := (&MongoMissionCollection{}).FindMissionByID(ctx, 1)
	assert.Error(t, err)
	assert.Error(t, (&MongoMissionCollection{}).InsertMission(ctx, &models.Mission{}))
	_, err = (&MongoInspectionCollection{}).LatestInspection(ctx, 1, time.Now(), time.Now())
	assert.Error(t, err)
	assert.Error(t, (&MongoDriverCollection{}).UpdateDriverFCMToken(ctx, 1, "tok"))
}

func TestMissionQuery(t *testing.T) {
	driverID := int64(4)
	from := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	q := missionQuery(models.MissionFilter{
		Statuses: []models.MissionStatus{models.MissionWaiting, models.MissionProblem},
		DriverID: &driverID,
		From:     &from,
		To:       &to,
		Search:   "a.b",
	})

	assert.Equal(t, bson.M{"$in": []models.MissionStatus{models.MissionWaiting, models.MissionProblem}}, q["status"])
	assert.Equal(t, int64(4), q["driver_id"])
	assert.Equal(t, bson.M{"$gte": from, "$lt": to}, q["date_expected"])
	or := q["$or"].(bson.A)
	require.Len(t, or, 3)
	assert.Equal(t, bson.M{"reference": bson.M{"$regex": `a\.b`, "$options": "i"}}, or[0])
	assert.NotContains(t, q, "completed_at")

	q = missionQuery(models.MissionFilter{CompletedFrom: &from})
	assert.Equal(t, bson.M{"$gte": from}, q["completed_at"])
	assert.NotContains(t, q, "date_expected")

	assert.Empty(t, missionQuery(models.MissionFilter{}))
}

func TestNormalizePage(t *testing.T) {
	f := normalizePage(models.MissionFilter{Page: 0, Limit: 5000})
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, maxPageLimit, f.Limit)

	f = normalizePage(models.MissionFilter{Page: 3})
	assert.Equal(t, defaultPageLimit, f.Limit)
	assert.Equal(t, 2*defaultPageLimit, f.Offset())

	assert.Equal(t, "date_expected", sortField(models.MissionFilter{SortBy: "password"}))
	assert.Equal(t, "status", sortField(models.MissionFilter{SortBy: "status"}))
}

// mongoStore connects to MONGO_URI and returns a store on a scratch database,
// or skips the test when no server is reachable.
func mongoStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" || uri == "uri" {
		t.Skip("MONGO_URI not set or invalid, skipping integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := ConnectMongo(ctx, uri)
	if err != nil {
		t.Skipf("failed to connect: %v, skipping integration test", err)
	}
	database := client.Database("test_fleet_dispatch")
	require.NoError(t, database.Drop(ctx))

	store, err := NewMongoStore(ctx, client, "test_fleet_dispatch")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = database.Drop(context.Background())
		_ = store.Close(context.Background())
	})
	return store
}

func TestMongoMissionCollection_Integration(t *testing.T) {
	store := mongoStore(t)
	ctx := context.Background()
	driverID := int64(4)

	m := &models.Mission{
		Reference:    "ORD-1",
		Address:      "1 Herzl St",
		Status:       models.MissionWaiting,
		DriverID:     &driverID,
		DateExpected: time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC),
		Metadata:     models.MissionMetadata{Version: 1, Extra: map[string]any{"legacy": "x"}},
	}
	require.NoError(t, store.Missions.InsertMission(ctx, m))
	assert.Equal(t, int64(1), m.ID)

	m.Status = models.MissionProblem
	m.Metadata.Failure = &models.FailureDetails{Reason: "closed", Images: []string{}, DateFailed: time.Now().UTC().Truncate(time.Millisecond)}
	require.NoError(t, store.Missions.UpdateMission(ctx, m))

	got, err := store.Missions.FindMissionByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MissionProblem, got.Status)
	assert.Equal(t, "closed", got.Metadata.Failure.Reason)
	assert.Equal(t, "x", got.Metadata.Extra["legacy"])

	_, err = store.Missions.FindMissionByID(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	page, total, err := store.Missions.FindMissions(ctx, models.MissionFilter{DriverID: &driverID, Search: "herzl"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, page, 1)

	counts, err := store.Missions.CountMissionsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.MissionProblem])
}

func TestMongoInspectionCollection_LatestInspection(t *testing.T) {
	store := mongoStore(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)

	for _, at := range []time.Time{day.Add(7 * time.Hour), day.Add(15 * time.Hour), day.Add(26 * time.Hour)} {
		require.NoError(t, store.Inspections.InsertInspection(ctx, &models.VehicleInspection{DriverID: 1, CreatedAt: at}))
	}

	latest, err := store.Inspections.LatestInspection(ctx, 1, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.CreatedAt.Equal(day.Add(15*time.Hour)))

	none, err := store.Inspections.LatestInspection(ctx, 2, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Nil(t, none)
}
