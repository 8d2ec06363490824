package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI records every call and answers the driver mission listing.
type fakeAPI struct {
	mu       sync.Mutex
	calls    []string
	bodies   map[string]map[string]any
	auth     map[string]string
	missions []Mission
}

func newFakeAPI(t *testing.T, missions ...Mission) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{bodies: map[string]map[string]any{}, auth: map[string]string{}, missions: missions}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		var body map[string]any
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		api.mu.Lock()
		api.calls = append(api.calls, key)
		api.bodies[key] = body
		api.auth[key] = r.Header.Get("Authorization")
		api.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch key {
		case "POST /drivers":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"id": 7})
		case "POST /driver/login":
			if body["password"] == "wrong" {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"token": "driver-token"})
		case "POST /driver/inspections":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"metadata": map[string]any{"status": "good"}})
		case "GET /driver/missions":
			json.NewEncoder(w).Encode(map[string]any{"missions": api.missions})
		default:
			json.NewEncoder(w).Encode(map[string]any{})
		}
	}))
	t.Cleanup(srv.Close)
	return api, srv
}

func (a *fakeAPI) called(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range a.calls {
		if c == key {
			return true
		}
	}
	return false
}

func testDriver(baseURL string, failureRate float64) *simDriver {
	return &simDriver{
		ID:          7,
		api:         newAPIClient(baseURL, "driver-token"),
		failureRate: failureRate,
		rng:         rand.New(rand.NewSource(1)),
	}
}

func TestJitterLocation(t *testing.T) {
	base := cities[0]
	for range 50 {
		loc := jitterLocation(base, 2000)
		assert.InDelta(t, base.Lat, loc.Lat, 0.02)
		assert.InDelta(t, base.Lng, loc.Lng, 0.04)
	}
}

func TestAPIClient_Do(t *testing.T) {
	api, srv := newFakeAPI(t)
	client := newAPIClient(srv.URL, "dispatcher-token")

	var out struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, client.do(context.Background(), http.MethodPost, "/drivers", map[string]string{"name": "x"}, &out))
	assert.Equal(t, int64(7), out.ID)
	assert.Equal(t, "Bearer dispatcher-token", api.auth["POST /drivers"])
	assert.Equal(t, "x", api.bodies["POST /drivers"]["name"])
}

func TestAPIClient_DoReturnsAPIError(t *testing.T) {
	_, srv := newFakeAPI(t)

	_, err := loginDriver(context.Background(), srv.URL, "0501234567", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "invalid credentials")
}

func TestAPIClient_DoPlainTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := newAPIClient(srv.URL, "").do(context.Background(), http.MethodGet, "/x", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502: boom")
}

func TestCreateAndLoginDriver(t *testing.T) {
	api, srv := newFakeAPI(t)
	ctx := context.Background()

	id, phone, password, err := createDriver(ctx, newAPIClient(srv.URL, "dispatcher-token"), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.Len(t, phone, 10)
	assert.Equal(t, "Sim Driver 1", api.bodies["POST /drivers"]["name"])

	token, err := loginDriver(ctx, srv.URL, phone, password)
	require.NoError(t, err)
	assert.Equal(t, "driver-token", token)
	assert.Empty(t, api.auth["POST /driver/login"])
}

func TestDailyCheck(t *testing.T) {
	d := testDriver("", 0)
	check := d.dailyCheck()

	meta := check["metadata"].(map[string]any)
	assert.NotEmpty(t, meta["vehicleNumber"])
	assert.GreaterOrEqual(t, meta["mileage"], 10000)
	checks := meta["checks"].(map[string]bool)
	assert.Len(t, checks, len(checkItems))
}

func TestSubmitDailyCheck(t *testing.T) {
	api, srv := newFakeAPI(t)
	d := testDriver(srv.URL, 0)

	require.NoError(t, d.submitDailyCheck(context.Background()))
	assert.Equal(t, "Bearer driver-token", api.auth["POST /driver/inspections"])
	assert.Contains(t, api.bodies["POST /driver/inspections"], "metadata")
}

func TestStep_AdvancesMissions(t *testing.T) {
	car := int64(3)
	api, srv := newFakeAPI(t,
		Mission{ID: 1, Status: "waiting"},
		Mission{ID: 2, Status: "in_progress", CarID: &car},
		Mission{ID: 3, Status: "completed"},
	)
	d := testDriver(srv.URL, 0)

	require.NoError(t, d.step(context.Background()))
	assert.True(t, api.called("POST /driver/missions/1/start"))
	assert.True(t, api.called("POST /driver/missions/2/complete"))
	assert.False(t, api.called("POST /driver/missions/3/start"))

	body := api.bodies["POST /driver/missions/2/complete"]
	assert.Equal(t, float64(7), body["driver_id"])
	assert.Equal(t, float64(3), body["car_id"])
}

func TestStep_FailsMissions(t *testing.T) {
	api, srv := newFakeAPI(t, Mission{ID: 4, Status: "in_progress"})
	d := testDriver(srv.URL, 1)

	require.NoError(t, d.step(context.Background()))
	require.True(t, api.called("POST /driver/missions/4/fail"))

	body := api.bodies["POST /driver/missions/4/fail"]
	assert.Contains(t, failureReasons, body["reason"])
	assert.Equal(t, float64(1), body["car_id"])
	assert.Contains(t, body, "failure_location")
}

func TestDispatchMission(t *testing.T) {
	api, srv := newFakeAPI(t)

	require.NoError(t, dispatchMission(context.Background(), newAPIClient(srv.URL, "dispatcher-token"), 7, 1))
	body := api.bodies["POST /missions"]
	assert.Equal(t, float64(7), body["driver_id"])
	assert.NotEmpty(t, body["reference"])
	assert.NotEmpty(t, body["address"])

	_, err := time.Parse(time.RFC3339, body["date_expected"].(string))
	assert.NoError(t, err)
}

func TestSimulate_StopsOnCancel(t *testing.T) {
	api, srv := newFakeAPI(t)
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		simulate(ctx, newAPIClient(srv.URL, "dispatcher-token"), []*simDriver{testDriver(srv.URL, 0)}, 20*time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("simulate did not stop after cancel")
	}
	assert.True(t, api.called("POST /missions"))
	assert.True(t, api.called("GET /driver/missions"))
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("FLEET_SIZE", "12")
	t.Setenv("SIM_TICK_SECONDS", "-1")
	t.Setenv("SIM_FAILURE_RATE", "0.25")

	assert.Equal(t, 12, envInt("FLEET_SIZE", 5))
	assert.Equal(t, 5, envInt("SIM_TICK_SECONDS", 5))
	assert.Equal(t, 3, envInt("UNSET_VALUE", 3))
	assert.Equal(t, 0.25, envFloat("SIM_FAILURE_RATE", 0.1))

	t.Setenv("SIM_FAILURE_RATE", "2")
	assert.Equal(t, 0.1, envFloat("SIM_FAILURE_RATE", 0.1))
}
