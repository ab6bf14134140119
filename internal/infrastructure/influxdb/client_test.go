package influxdb_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/btgateway/internal/infrastructure/config"
	"github.com/nerrad567/btgateway/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for the local dev InfluxDB.
// Override the URL with INFLUXDB_URL when the server is elsewhere.
func testConfig() config.InfluxDBConfig {
	url := os.Getenv("INFLUXDB_URL")
	if url == "" {
		url = "http://127.0.0.1:8086"
	}
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "btgateway-dev-token",
		Org:           "btgateway",
		Bucket:        "sensors",
		BatchSize:     100,
		FlushInterval: 1, // 1 second for faster test feedback
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running.
func skipIfNoInfluxDB(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		// Quick check: try to connect
		cfg := testConfig()
		client, err := influxdb.Connect(cfg)
		if err != nil {
			t.Skip("InfluxDB not available, skipping integration test")
		}
		client.Close()
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	skipIfNoInfluxDB(t)
	cfg := testConfig()

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if err == nil {
		t.Fatal("Connect() should return error when disabled")
	}
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999" // Non-existent port

	_, err := influxdb.Connect(cfg)
	if err == nil {
		t.Fatal("Connect() should return error for invalid URL")
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	skipIfNoInfluxDB(t)
	cfg := testConfig()
	cfg.BatchSize = 0     // Should use default
	cfg.FlushInterval = 0 // Should use default

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect() with default batch settings")
	}
}

func TestConnect_NegativeBatchSettings(t *testing.T) {
	skipIfNoInfluxDB(t)
	cfg := testConfig()
	cfg.BatchSize = -5     // Negative, should use default
	cfg.FlushInterval = -1 // Negative, should use default

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect() with negative batch settings")
	}
}

// =============================================================================
// Health Check Tests
// =============================================================================

func TestHealthCheck(t *testing.T) {
	skipIfNoInfluxDB(t)
	cfg := testConfig()

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestHealthCheck_Cancelled(t *testing.T) {
	skipIfNoInfluxDB(t)
	cfg := testConfig()

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	// Create already cancelled context
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = client.HealthCheck(ctx)
	if err == nil {
		t.Error("HealthCheck() should return error for cancelled context")
	}
}

// =============================================================================
// Write Tests
// =============================================================================

func TestWriteReading(t *testing.T) {
	skipIfNoInfluxDB(t)
	cfg := testConfig()

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	// Track errors with mutex for race safety
	var writeErr error
	var mu sync.Mutex
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})

	client.WriteReading("ruuvitag", "test-kitchen", "C4:7C:8D:6A:1B:2C", map[string]any{
		"temperature": 21.5,
		"humidity":    40.0,
		"mac":         "c47c8d6a1b2c",
	}, time.Now())

	// Close flushes the batch
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Give a moment for error callback
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if writeErr != nil {
		t.Errorf("Write error = %v", writeErr)
	}
}

// =============================================================================
// Close Tests
// =============================================================================

func TestClose(t *testing.T) {
	skipIfNoInfluxDB(t)
	cfg := testConfig()

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// Write something before close
	client.WriteReading("ruuvitag", "close-test", "", map[string]any{"temperature": 1.0}, time.Now())

	// Close should flush and disconnect
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	// Should be disconnected
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}

// =============================================================================
// Point Construction Tests
// =============================================================================

func TestReadingPoint(t *testing.T) {
	ts := time.Unix(1700000000, 0)

	point := influxdb.ReadingPoint("ruuvitag", "kitchen", "C4:7C:8D:6A:1B:2C", map[string]any{
		"temperature": 21.5,
		"humidity":    40,
		"mac":         "c47c8d6a1b2c",
	}, ts)
	if point == nil {
		t.Fatal("ReadingPoint() = nil, want point")
	}

	line := write.PointToLineProtocol(point, time.Second)
	want := "ruuvitag,device=kitchen,mac=C4:7C:8D:6A:1B:2C humidity=40,temperature=21.5 1700000000"
	if strings.TrimSpace(line) != want {
		t.Errorf("line protocol = %q, want %q", line, want)
	}
}

func TestReadingPoint_NoMAC(t *testing.T) {
	point := influxdb.ReadingPoint("ruuvitag", "kitchen", "", map[string]any{"temperature": 1.0}, time.Now())
	if point == nil {
		t.Fatal("ReadingPoint() = nil, want point")
	}
	for _, tag := range point.TagList() {
		if tag.Key == influxdb.TagMAC {
			t.Error("mac tag present for empty address")
		}
	}
}

func TestReadingPoint_NoNumericFields(t *testing.T) {
	point := influxdb.ReadingPoint("ruuvitag", "kitchen", "", map[string]any{
		"mac":        "c47c8d6a1b2c",
		"identifier": "A",
	}, time.Now())
	if point != nil {
		t.Errorf("ReadingPoint() = %v, want nil", point)
	}
}

func TestNumericFields(t *testing.T) {
	fields := influxdb.NumericFields(map[string]any{
		"f64":  1.5,
		"f32":  float32(2.5),
		"int":  3,
		"i16":  int16(-4),
		"u8":   uint8(5),
		"str":  "x",
		"bool": true,
		"nil":  nil,
	})

	want := map[string]float64{"f64": 1.5, "f32": 2.5, "int": 3, "i16": -4, "u8": 5}
	if len(fields) != len(want) {
		t.Fatalf("NumericFields() = %v, want %d fields", fields, len(want))
	}
	for k, v := range want {
		got, ok := fields[k].(float64)
		if !ok || got != v {
			t.Errorf("fields[%q] = %v, want %v", k, fields[k], v)
		}
	}
}
