package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/btgateway/internal/device"
	"github.com/nerrad567/btgateway/internal/gateway"
	"github.com/nerrad567/btgateway/internal/infrastructure/config"
	"github.com/nerrad567/btgateway/internal/infrastructure/database"
	"github.com/nerrad567/btgateway/internal/infrastructure/logging"
	_ "github.com/nerrad567/btgateway/migrations"
)

// fakeGateway implements Gateway for testing.
type fakeGateway struct {
	devices []gateway.ConfiguredDevice
	workers []gateway.WorkerStatus
	updates atomic.Int32
}

func (g *fakeGateway) Status() []gateway.WorkerStatus { return g.workers }

func (g *fakeGateway) Devices() []gateway.ConfiguredDevice { return g.devices }

func (g *fakeGateway) UpdateAll() { g.updates.Add(1) }

// fakeHealth implements HealthSource for testing.
type fakeHealth struct {
	msg gateway.HealthMessage
}

func (h *fakeHealth) Current() gateway.HealthMessage { return h.msg }

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		devices: []gateway.ConfiguredDevice{
			{Worker: "ruuvitag", Name: "kitchen", Address: "C4:7C:8D:6A:1B:2C"},
			{Worker: "ruuvitag", Name: "garage", Address: "D1:2E:3F:4A:5B:6C"},
		},
		workers: []gateway.WorkerStatus{
			{Name: "ruuvitag", IntervalSeconds: 60, Devices: 2},
		},
	}
}

// setupTestStore opens a migrated SQLite device store in a temp directory.
func setupTestStore(t *testing.T) *device.SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "api.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return device.NewSQLiteRepository(db.DB, 0)
}

// testServer creates a Server with fake gateway and health sources.
// A nil store leaves the server without device persistence.
func testServer(t *testing.T, gw *fakeGateway, health *fakeHealth, store device.Repository) *Server {
	t.Helper()

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		Logger:  log,
		Gateway: gw,
		Health:  health,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "btgateway_cycles_total 1\n") //nolint:errcheck // Test handler
		}),
		Store:   store,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func doRequest(t *testing.T, srv *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	log := logging.Default()
	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Gateway: newFakeGateway(), Health: &fakeHealth{}}},
		{"no gateway", Deps{Logger: log, Health: &fakeHealth{}}},
		{"no health", Deps{Logger: log, Gateway: newFakeGateway()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() should fail")
			}
		})
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		status gateway.HealthStatus
		want   int
	}{
		{gateway.HealthHealthy, http.StatusOK},
		{gateway.HealthDegraded, http.StatusOK},
		{gateway.HealthStopping, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			health := &fakeHealth{msg: gateway.HealthMessage{Gateway: "gw", Status: tt.status}}
			srv := testServer(t, newFakeGateway(), health, nil)

			rec := doRequest(t, srv, http.MethodGet, "/api/v1/health")
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}

			var msg gateway.HealthMessage
			decodeBody(t, rec, &msg)
			if msg.Status != tt.status {
				t.Errorf("health status = %q, want %q", msg.Status, tt.status)
			}
			if msg.Gateway != "gw" {
				t.Errorf("gateway = %q, want gw", msg.Gateway)
			}
		})
	}
}

func TestListWorkers(t *testing.T) {
	srv := testServer(t, newFakeGateway(), &fakeHealth{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/workers")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Workers []gateway.WorkerStatus `json:"workers"`
		Count   int                    `json:"count"`
	}
	decodeBody(t, rec, &body)
	if body.Count != 1 || body.Workers[0].Name != "ruuvitag" {
		t.Errorf("workers = %+v", body)
	}
	if body.Workers[0].IntervalSeconds != 60 {
		t.Errorf("interval = %v, want 60", body.Workers[0].IntervalSeconds)
	}
}

func TestUpdateAll(t *testing.T) {
	gw := newFakeGateway()
	srv := testServer(t, gw, &fakeHealth{}, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/update")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if gw.updates.Load() != 1 {
		t.Errorf("UpdateAll calls = %d, want 1", gw.updates.Load())
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/update")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}
}

func TestListDevices_NoStore(t *testing.T) {
	srv := testServer(t, newFakeGateway(), &fakeHealth{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/devices")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Devices []deviceView `json:"devices"`
		Count   int          `json:"count"`
	}
	decodeBody(t, rec, &body)
	if body.Count != 2 {
		t.Fatalf("count = %d, want 2", body.Count)
	}
	if body.Devices[0].Name != "kitchen" || body.Devices[1].Name != "garage" {
		t.Errorf("device order = %s, %s; want kitchen, garage", body.Devices[0].Name, body.Devices[1].Name)
	}
	if body.Devices[0].Status != nil {
		t.Error("status should be absent without a store")
	}
}

func TestListDevices_WithStatus(t *testing.T) {
	store := setupTestStore(t)
	polled := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.RecordPoll(context.Background(), device.Status{
		Worker:    "ruuvitag",
		Device:    "kitchen",
		Address:   "C4:7C:8D:6A:1B:2C",
		Reachable: true,
		CycleID:   "c1",
		LastPoll:  polled,
	}); err != nil {
		t.Fatalf("RecordPoll: %v", err)
	}

	srv := testServer(t, newFakeGateway(), &fakeHealth{}, store)
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/devices")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Devices []deviceView `json:"devices"`
	}
	decodeBody(t, rec, &body)
	if len(body.Devices) != 2 {
		t.Fatalf("devices = %d, want 2", len(body.Devices))
	}
	kitchen := body.Devices[0]
	if kitchen.Status == nil || !kitchen.Status.Reachable {
		t.Fatalf("kitchen status = %+v, want reachable", kitchen.Status)
	}
	if !kitchen.Status.LastPoll.Equal(polled) {
		t.Errorf("last_poll = %v, want %v", kitchen.Status.LastPoll, polled)
	}
	if body.Devices[1].Status != nil {
		t.Error("garage was never polled and should have no status")
	}
}

func TestListDevices_WorkerFilter(t *testing.T) {
	srv := testServer(t, newFakeGateway(), &fakeHealth{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/devices?worker=other")
	var body struct {
		Devices []deviceView `json:"devices"`
		Count   int          `json:"count"`
	}
	decodeBody(t, rec, &body)
	if body.Count != 0 || body.Devices == nil {
		t.Errorf("filtered devices = %+v, want empty list", body)
	}
}

func TestDeviceHistory(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range 3 {
		reading := map[string]any{"temperature": 20.0 + float64(i)}
		if err := store.RecordReading(ctx, "ruuvitag", "kitchen", fmt.Sprintf("c%d", i), reading, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("RecordReading: %v", err)
		}
	}

	srv := testServer(t, newFakeGateway(), &fakeHealth{}, store)

	t.Run("all", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/devices/kitchen/history")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var body struct {
			Device  string                `json:"device"`
			History []device.HistoryEntry `json:"history"`
			Count   int                   `json:"count"`
		}
		decodeBody(t, rec, &body)
		if body.Device != "kitchen" || body.Count != 3 {
			t.Fatalf("body = %+v", body)
		}
		if body.History[0].CycleID != "c2" {
			t.Errorf("newest entry = %s, want c2", body.History[0].CycleID)
		}
	})

	t.Run("limit", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/devices/kitchen/history?limit=1")
		var body struct {
			Count int `json:"count"`
		}
		decodeBody(t, rec, &body)
		if body.Count != 1 {
			t.Errorf("count = %d, want 1", body.Count)
		}
	})

	t.Run("since", func(t *testing.T) {
		since := base.Add(30 * time.Second).Format(time.RFC3339)
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/devices/kitchen/history?since="+since)
		var body struct {
			Count int `json:"count"`
		}
		decodeBody(t, rec, &body)
		if body.Count != 2 {
			t.Errorf("count = %d, want 2", body.Count)
		}
	})

	t.Run("configured but empty", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/devices/garage/history")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"history":[]`) {
			t.Errorf("body = %s, want empty history list", rec.Body.String())
		}
	})
}

func TestDeviceHistory_Errors(t *testing.T) {
	store := setupTestStore(t)
	srv := testServer(t, newFakeGateway(), &fakeHealth{}, store)
	noStore := testServer(t, newFakeGateway(), &fakeHealth{}, nil)

	tests := []struct {
		name   string
		srv    *Server
		target string
		want   int
	}{
		{"unknown device", srv, "/api/v1/devices/attic/history", http.StatusNotFound},
		{"wrong worker", srv, "/api/v1/devices/kitchen/history?worker=other", http.StatusNotFound},
		{"bad limit", srv, "/api/v1/devices/kitchen/history?limit=abc", http.StatusBadRequest},
		{"zero limit", srv, "/api/v1/devices/kitchen/history?limit=0", http.StatusBadRequest},
		{"limit too large", srv, "/api/v1/devices/kitchen/history?limit=501", http.StatusBadRequest},
		{"bad since", srv, "/api/v1/devices/kitchen/history?since=yesterday", http.StatusBadRequest},
		{"no store", noStore, "/api/v1/devices/kitchen/history", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, tt.srv, http.MethodGet, tt.target)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			var apiErr Error
			decodeBody(t, rec, &apiErr)
			if apiErr.Status != tt.want || apiErr.Code == "" {
				t.Errorf("error body = %+v", apiErr)
			}
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	srv := testServer(t, newFakeGateway(), &fakeHealth{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "btgateway_cycles_total") {
		t.Errorf("metrics body = %q", rec.Body.String())
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	srv := testServer(t, newFakeGateway(), &fakeHealth{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/health")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID should be generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv := testServer(t, newFakeGateway(), &fakeHealth{}, nil)
	handler := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestServerStartClose(t *testing.T) {
	srv := testServer(t, newFakeGateway(), &fakeHealth{msg: gateway.HealthMessage{Status: gateway.HealthHealthy}}, nil)

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Close() //nolint:errcheck // Test cleanup

	resp, err := http.Get("http://" + srv.Addr().String() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // Drain body

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestClose_NotStarted(t *testing.T) {
	srv := testServer(t, newFakeGateway(), &fakeHealth{}, nil)
	if err := srv.Close(); err != nil {
		t.Errorf("Close before Start: %v", err)
	}
}
