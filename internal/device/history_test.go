package device

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/btgateway/internal/infrastructure/database"
	"github.com/nerrad567/btgateway/internal/workers"
	_ "github.com/nerrad567/btgateway/migrations"
)

// setupTestRepo opens a migrated SQLite database in a temp directory.
func setupTestRepo(t *testing.T, historyLimit int) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
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

	return NewSQLiteRepository(db.DB, historyLimit)
}

// TestRecordReading verifies history writes and retrieval.
func TestRecordReading(t *testing.T) {
	repo := setupTestRepo(t, 0)
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reading := map[string]any{"temperature": 21.5, "mac": "c47c8d6a1b2c"}
	if err := repo.RecordReading(ctx, "ruuvitag", "kitchen", "cycle-1", reading, at); err != nil {
		t.Fatalf("RecordReading() error = %v", err)
	}

	entries, err := repo.GetHistory(ctx, "ruuvitag", "kitchen", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries length = %d, want 1", len(entries))
	}

	entry := entries[0]
	if entry.Worker != "ruuvitag" || entry.Device != "kitchen" {
		t.Errorf("entry = %s/%s, want ruuvitag/kitchen", entry.Worker, entry.Device)
	}
	if entry.CycleID != "cycle-1" {
		t.Errorf("CycleID = %q, want cycle-1", entry.CycleID)
	}
	if !entry.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %s, want %s", entry.CreatedAt, at)
	}
	if temp, ok := entry.Reading["temperature"].(float64); !ok || temp != 21.5 {
		t.Errorf("Reading[\"temperature\"] = %v, want 21.5", entry.Reading["temperature"])
	}
	if mac, ok := entry.Reading["mac"].(string); !ok || mac != "c47c8d6a1b2c" {
		t.Errorf("Reading[\"mac\"] = %v, want c47c8d6a1b2c", entry.Reading["mac"])
	}
}

// TestRecordReading_Validation verifies names are required.
func TestRecordReading_Validation(t *testing.T) {
	repo := setupTestRepo(t, 0)
	ctx := context.Background()

	err := repo.RecordReading(ctx, "", "kitchen", "", nil, time.Now())
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("RecordReading(no worker) error = %v, want ErrInvalidStatus", err)
	}
	err = repo.RecordReading(ctx, "ruuvitag", "", "", nil, time.Now())
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("RecordReading(no device) error = %v, want ErrInvalidStatus", err)
	}
	if _, err := repo.GetHistory(ctx, "ruuvitag", "", 10); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("GetHistory(no device) error = %v, want ErrInvalidStatus", err)
	}
}

// TestGetHistory verifies ordering, limit enforcement and device filtering.
func TestGetHistory(t *testing.T) {
	repo := setupTestRepo(t, 0)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	for i, temp := range []float64{20, 21, 22} {
		at := now.Add(time.Duration(i) * time.Minute)
		if err := repo.RecordReading(ctx, "ruuvitag", "kitchen", "", map[string]any{"temperature": temp}, at); err != nil {
			t.Fatalf("RecordReading() error = %v", err)
		}
	}
	if err := repo.RecordReading(ctx, "ruuvitag", "garage", "", map[string]any{"temperature": 5.0}, now); err != nil {
		t.Fatalf("RecordReading() error = %v", err)
	}

	entries, err := repo.GetHistory(ctx, "ruuvitag", "kitchen", 2)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries length = %d, want 2", len(entries))
	}
	if entries[0].Reading["temperature"] != 22.0 {
		t.Errorf("entry[0] temperature = %v, want 22", entries[0].Reading["temperature"])
	}
	if entries[1].Reading["temperature"] != 21.0 {
		t.Errorf("entry[1] temperature = %v, want 21", entries[1].Reading["temperature"])
	}

	// Empty worker matches any worker.
	entries, err = repo.GetHistory(ctx, "", "garage", 0)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("garage entries length = %d, want 1", len(entries))
	}

	entries, err = repo.GetHistory(ctx, "other", "garage", 0)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries for other worker = %d, want 0", len(entries))
	}
}

// TestRecordReading_Prunes verifies history is bounded per device.
func TestRecordReading_Prunes(t *testing.T) {
	repo := setupTestRepo(t, 3)
	ctx := context.Background()

	for i := range 5 {
		reading := map[string]any{"measurement_sequence_number": float64(i)}
		if err := repo.RecordReading(ctx, "ruuvitag", "kitchen", "", reading, time.Now()); err != nil {
			t.Fatalf("RecordReading() error = %v", err)
		}
	}
	if err := repo.RecordReading(ctx, "ruuvitag", "garage", "", map[string]any{"temperature": 1.0}, time.Now()); err != nil {
		t.Fatalf("RecordReading() error = %v", err)
	}

	entries, err := repo.GetHistory(ctx, "ruuvitag", "kitchen", 100)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries length = %d, want 3", len(entries))
	}
	if entries[0].Reading["measurement_sequence_number"] != 4.0 {
		t.Errorf("newest sequence = %v, want 4", entries[0].Reading["measurement_sequence_number"])
	}
	if entries[2].Reading["measurement_sequence_number"] != 2.0 {
		t.Errorf("oldest sequence = %v, want 2", entries[2].Reading["measurement_sequence_number"])
	}

	garage, err := repo.GetHistory(ctx, "ruuvitag", "garage", 100)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(garage) != 1 {
		t.Errorf("garage entries = %d, want 1 (pruning is per device)", len(garage))
	}
}

// TestRecordPoll verifies status upserts keep LastSeen across faults.
func TestRecordPoll(t *testing.T) {
	repo := setupTestRepo(t, 0)
	ctx := context.Background()

	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := repo.RecordPoll(ctx, Status{
		Worker:    "ruuvitag",
		Device:    "kitchen",
		Address:   "C4:7C:8D:6A:1B:2C",
		Reachable: true,
		CycleID:   "cycle-1",
		LastPoll:  first,
	})
	if err != nil {
		t.Fatalf("RecordPoll() error = %v", err)
	}

	second := first.Add(time.Minute)
	err = repo.RecordPoll(ctx, Status{
		Worker:   "ruuvitag",
		Device:   "kitchen",
		Address:  "C4:7C:8D:6A:1B:2C",
		Fault:    workers.FaultTimeout,
		Error:    "context deadline exceeded",
		CycleID:  "cycle-2",
		LastPoll: second,
	})
	if err != nil {
		t.Fatalf("RecordPoll() error = %v", err)
	}

	status, err := repo.Get(ctx, "ruuvitag", "kitchen")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if status.Reachable {
		t.Error("Reachable = true, want false")
	}
	if status.Fault != workers.FaultTimeout {
		t.Errorf("Fault = %q, want %q", status.Fault, workers.FaultTimeout)
	}
	if status.CycleID != "cycle-2" {
		t.Errorf("CycleID = %q, want cycle-2", status.CycleID)
	}
	if !status.LastPoll.Equal(second) {
		t.Errorf("LastPoll = %s, want %s", status.LastPoll, second)
	}
	if status.LastSeen == nil || !status.LastSeen.Equal(first) {
		t.Errorf("LastSeen = %v, want %s", status.LastSeen, first)
	}
}

// TestRecordPoll_NeverSeen verifies LastSeen stays nil for a device that
// has never answered.
func TestRecordPoll_NeverSeen(t *testing.T) {
	repo := setupTestRepo(t, 0)
	ctx := context.Background()

	err := repo.RecordPoll(ctx, Status{Worker: "ruuvitag", Device: "attic", Fault: workers.FaultTimeout})
	if err != nil {
		t.Fatalf("RecordPoll() error = %v", err)
	}

	status, err := repo.Get(ctx, "ruuvitag", "attic")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if status.LastSeen != nil {
		t.Errorf("LastSeen = %v, want nil", status.LastSeen)
	}
	if status.LastPoll.IsZero() {
		t.Error("LastPoll is zero, want default to now")
	}
}

// TestRecordPoll_Validation verifies names are required.
func TestRecordPoll_Validation(t *testing.T) {
	repo := setupTestRepo(t, 0)

	err := repo.RecordPoll(context.Background(), Status{Device: "kitchen"})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("RecordPoll() error = %v, want ErrInvalidStatus", err)
	}
}

// TestGet_NotFound verifies the not-found sentinel.
func TestGet_NotFound(t *testing.T) {
	repo := setupTestRepo(t, 0)

	_, err := repo.Get(context.Background(), "ruuvitag", "missing")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Get() error = %v, want ErrDeviceNotFound", err)
	}
}

// TestList verifies ordering by worker then device.
func TestList(t *testing.T) {
	repo := setupTestRepo(t, 0)
	ctx := context.Background()

	empty, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("List() on empty table = %v, want empty non-nil slice", empty)
	}

	for _, name := range []string{"kitchen", "attic", "garage"} {
		if err := repo.RecordPoll(ctx, Status{Worker: "ruuvitag", Device: name, Reachable: true}); err != nil {
			t.Fatalf("RecordPoll(%s) error = %v", name, err)
		}
	}

	statuses, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"attic", "garage", "kitchen"}
	if len(statuses) != len(want) {
		t.Fatalf("List() length = %d, want %d", len(statuses), len(want))
	}
	for i, name := range want {
		if statuses[i].Device != name {
			t.Errorf("statuses[%d].Device = %q, want %q", i, statuses[i].Device, name)
		}
		if statuses[i].LastSeen == nil {
			t.Errorf("statuses[%d].LastSeen = nil, want set for reachable device", i)
		}
	}
}

// TestRecordCycle verifies a cycle is stored as statuses plus history.
func TestRecordCycle(t *testing.T) {
	repo := setupTestRepo(t, 0)
	ctx := context.Background()

	cycle := workers.Cycle{
		ID:      "cycle-1",
		Worker:  "ruuvitag",
		Started: time.Now(),
		Results: []workers.DeviceResult{
			{
				Device:  workers.Device{Name: "kitchen", Address: "C4:7C:8D:6A:1B:2C"},
				Reading: workers.Reading{"temperature": 21.5},
			},
			{
				Device: workers.Device{Name: "garage", Address: "D1:00:00:00:00:01"},
				Fault: &workers.Fault{
					Device: workers.Device{Name: "garage", Address: "D1:00:00:00:00:01"},
					Kind:   workers.FaultTimeout,
					Err:    context.DeadlineExceeded,
				},
			},
			{
				// Reachable but empty: status only.
				Device: workers.Device{Name: "attic", Address: "D1:00:00:00:00:02"},
			},
		},
	}

	if err := RecordCycle(ctx, repo, cycle); err != nil {
		t.Fatalf("RecordCycle() error = %v", err)
	}

	statuses, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(statuses) != 3 {
		t.Fatalf("List() length = %d, want 3", len(statuses))
	}

	garage, err := repo.Get(ctx, "ruuvitag", "garage")
	if err != nil {
		t.Fatalf("Get(garage) error = %v", err)
	}
	if garage.Reachable || garage.Fault != workers.FaultTimeout || garage.Error == "" {
		t.Errorf("garage status = %+v, want unreachable timeout", garage)
	}

	kitchen, err := repo.GetHistory(ctx, "ruuvitag", "kitchen", 10)
	if err != nil {
		t.Fatalf("GetHistory(kitchen) error = %v", err)
	}
	if len(kitchen) != 1 || kitchen[0].CycleID != "cycle-1" {
		t.Errorf("kitchen history = %+v, want one entry from cycle-1", kitchen)
	}

	for _, name := range []string{"garage", "attic"} {
		entries, err := repo.GetHistory(ctx, "ruuvitag", name, 10)
		if err != nil {
			t.Fatalf("GetHistory(%s) error = %v", name, err)
		}
		if len(entries) != 0 {
			t.Errorf("%s history length = %d, want 0", name, len(entries))
		}
	}
}
