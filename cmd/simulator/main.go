package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

// Location is a failure location as the API expects it.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Mission is the part of a mission the simulator reads.
type Mission struct {
	ID        int64  `json:"id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
	DriverID  *int64 `json:"driver_id"`
	CarID     *int64 `json:"car_id"`
}

// Cities for realistic failure locations
var cities = []Location{
	{Lat: 51.5074, Lng: -0.1278}, // London
	{Lat: 40.4168, Lng: -3.7038}, // Madrid
	{Lat: 35.1856, Lng: 33.3823}, // Nicosia
	{Lat: 48.8566, Lng: 2.3522},  // Paris
	{Lat: 41.0082, Lng: 28.9784}, // Istanbul
	{Lat: 52.5200, Lng: 13.4050}, // Berlin
	{Lat: 32.0853, Lng: 34.7818}, // Tel Aviv
	{Lat: 25.2048, Lng: 55.2708}, // Dubai
}

var checkItems = []string{"tires", "lights", "brakes", "mirrors", "wipers", "horn", "fluidLevels", "seatBelts"}

var failureReasons = []string{
	"Client not at the address",
	"Address not found",
	"Package damaged",
	"Vehicle breakdown",
}

func jitterLocation(base Location, meters float64) Location {
	latMetersPerDeg := 111320.0
	lngMetersPerDeg := 111320.0 * math.Cos(base.Lat*math.Pi/180)
	dLat := (rand.Float64()*2 - 1) * (meters / latMetersPerDeg)
	dLng := (rand.Float64()*2 - 1) * (meters / lngMetersPerDeg)
	return Location{Lat: base.Lat + dLat, Lng: base.Lng + dLng}
}

// apiClient calls the dispatch API with an optional bearer token.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{baseURL: baseURL, token: token, http: &http.Client{Timeout: 10 * time.Second}}
}

// do sends body as JSON and decodes the response into out when out is not nil.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &apiErr) != nil || apiErr.Error == "" {
			apiErr.Error = string(bytes.TrimSpace(data))
		}
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, apiErr.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// simDriver is one simulated driver working through its missions.
type simDriver struct {
	ID          int64
	Name        string
	api         *apiClient
	failureRate float64
	rng         *rand.Rand
}

func createDriver(ctx context.Context, dispatcher *apiClient, index int) (int64, string, string, error) {
	name := fmt.Sprintf("Sim Driver %d", index)
	phone := fmt.Sprintf("05%08d", rand.Intn(100000000))
	password := fmt.Sprintf("sim-pass-%d", rand.Intn(1000000))

	var created struct {
		ID int64 `json:"id"`
	}
	err := dispatcher.do(ctx, http.MethodPost, "/drivers", map[string]string{
		"name":     name,
		"phone":    phone,
		"password": password,
	}, &created)
	if err != nil {
		return 0, "", "", fmt.Errorf("failed to create driver: %w", err)
	}
	return created.ID, phone, password, nil
}

func loginDriver(ctx context.Context, baseURL, phone, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := newAPIClient(baseURL, "").do(ctx, http.MethodPost, "/driver/login", map[string]string{
		"phone":    phone,
		"password": password,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", errors.New("login returned no token")
	}
	return resp.Token, nil
}

// dailyCheck builds an inspection where each item fails with a small probability.
func (d *simDriver) dailyCheck() map[string]any {
	checks := make(map[string]bool, len(checkItems))
	for _, item := range checkItems {
		checks[item] = d.rng.Float64() > 0.03
	}
	return map[string]any{
		"metadata": map[string]any{
			"vehicleNumber": fmt.Sprintf("%02d-%03d-%02d", d.rng.Intn(100), d.rng.Intn(1000), d.rng.Intn(100)),
			"mileage":       10000 + d.rng.Intn(90000),
			"checks":        checks,
		},
	}
}

func (d *simDriver) submitDailyCheck(ctx context.Context) error {
	var created struct {
		Metadata struct {
			Status string `json:"status"`
		} `json:"metadata"`
	}
	if err := d.api.do(ctx, http.MethodPost, "/driver/inspections", d.dailyCheck(), &created); err != nil {
		return err
	}
	log.WithFields(log.Fields{"driver_id": d.ID, "status": created.Metadata.Status}).Info("Submitted daily check")
	return nil
}

// step moves every open mission of the driver one state forward.
func (d *simDriver) step(ctx context.Context) error {
	var list struct {
		Missions []Mission `json:"missions"`
	}
	if err := d.api.do(ctx, http.MethodGet, "/driver/missions", nil, &list); err != nil {
		return err
	}

	for _, m := range list.Missions {
		path := fmt.Sprintf("/driver/missions/%d", m.ID)
		var err error
		switch m.Status {
		case "waiting", "problem":
			err = d.api.do(ctx, http.MethodPost, path+"/start", nil, nil)
		case "in_progress":
			if d.rng.Float64() < d.failureRate {
				err = d.api.do(ctx, http.MethodPost, path+"/fail", d.failure(m), nil)
			} else {
				err = d.api.do(ctx, http.MethodPost, path+"/complete", d.completion(m), nil)
			}
		default:
			continue
		}
		if err != nil {
			log.WithError(err).WithFields(log.Fields{"driver_id": d.ID, "mission_id": m.ID}).Warn("Mission step failed")
			continue
		}
		log.WithFields(log.Fields{"driver_id": d.ID, "mission_id": m.ID, "from": m.Status}).Info("Mission advanced")
	}
	return nil
}

func (d *simDriver) completion(m Mission) map[string]any {
	req := map[string]any{
		"driver_id":          d.ID,
		"certificate_images": []string{fmt.Sprintf("missions/%d/certificate.jpg", m.ID)},
		"package_images":     []string{fmt.Sprintf("missions/%d/package.jpg", m.ID)},
	}
	if m.CarID != nil {
		req["car_id"] = *m.CarID
	}
	return req
}

func (d *simDriver) failure(m Mission) map[string]any {
	carID := int64(1)
	if m.CarID != nil {
		carID = *m.CarID
	}
	return map[string]any{
		"reason":           failureReasons[d.rng.Intn(len(failureReasons))],
		"car_id":           carID,
		"failure_location": jitterLocation(cities[d.rng.Intn(len(cities))], 2000),
		"reported":         d.rng.Intn(2) == 0,
	}
}

// dispatchMission assigns a new mission to one of the drivers.
func dispatchMission(ctx context.Context, dispatcher *apiClient, driverID int64, seq int) error {
	return dispatcher.do(ctx, http.MethodPost, "/missions", map[string]any{
		"reference":     fmt.Sprintf("SIM-%d-%04d", time.Now().Unix(), seq),
		"client_name":   "Simulated client",
		"address":       fmt.Sprintf("%d Simulation Street", 1+rand.Intn(200)),
		"driver_id":     driverID,
		"date_expected": time.Now().Add(2 * time.Hour).UTC().Format(time.RFC3339),
	}, nil)
}

func simulate(ctx context.Context, dispatcher *apiClient, drivers []*simDriver, interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()

	seq := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}

		seq++
		d := drivers[rand.Intn(len(drivers))]
		if err := dispatchMission(ctx, dispatcher, d.ID, seq); err != nil {
			log.WithError(err).Warn("Failed to dispatch mission")
		}
		for _, d := range drivers {
			if err := d.step(ctx); err != nil {
				log.WithError(err).WithField("driver_id", d.ID).Warn("Driver step failed")
			}
		}
	}
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			return f
		}
	}
	return def
}

func main() {
	// Dispatcher JWT used to create drivers and missions
	authToken := os.Getenv("SIM_AUTH_TOKEN")

	fleetSize := envInt("FLEET_SIZE", 5)
	interval := time.Duration(envInt("SIM_TICK_SECONDS", 5)) * time.Second
	failureRate := envFloat("SIM_FAILURE_RATE", 0.1)

	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}

	log.WithFields(log.Fields{
		"fleet_size":   fleetSize,
		"api_url":      apiURL,
		"interval":     interval,
		"failure_rate": failureRate,
	}).Info("Starting dispatch simulation")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := newAPIClient(apiURL, authToken)
	drivers := make([]*simDriver, 0, fleetSize)
	for i := 0; i < fleetSize; i++ {
		id, phone, password, err := createDriver(ctx, dispatcher, i+1)
		if err != nil {
			log.WithError(err).Error("Failed to create driver")
			continue
		}
		token, err := loginDriver(ctx, apiURL, phone, password)
		if err != nil {
			log.WithError(err).WithField("driver_id", id).Error("Failed to log in driver")
			continue
		}
		d := &simDriver{
			ID:          id,
			Name:        fmt.Sprintf("Sim Driver %d", i+1),
			api:         newAPIClient(apiURL, token),
			failureRate: failureRate,
			rng:         rand.New(rand.NewSource(time.Now().UnixNano() + int64(i))),
		}
		if err := d.submitDailyCheck(ctx); err != nil {
			log.WithError(err).WithField("driver_id", id).Warn("Failed to submit daily check")
		}
		drivers = append(drivers, d)
	}

	log.WithField("drivers", len(drivers)).Info("Driver setup completed")
	if len(drivers) == 0 {
		log.Error("No drivers created. Ensure SIM_AUTH_TOKEN is a manager or admin token and the API is reachable. Exiting.")
		return
	}

	simulate(ctx, dispatcher, drivers, interval)
	log.Info("Simulation stopped")
}
