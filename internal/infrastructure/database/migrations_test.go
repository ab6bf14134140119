package database

import (
	"context"
	"embed"
	"testing"
)

//go:embed testdata/*.sql
var testMigrationsFS embed.FS

const (
	firstTestVersion  = "20260101_000000"
	latestTestVersion = "20260102_000000"
)

// useTestMigrations points the package at the testdata migrations for the
// duration of the test.
func useTestMigrations(t *testing.T) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = origFS, origDir
	})
	MigrationsFS = testMigrationsFS
	MigrationsDir = "testdata"
}

// columnExists reports whether table has the named column.
func columnExists(t *testing.T, db *DB, table, column string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column,
	).Scan(&n)
	if err != nil {
		t.Fatalf("pragma_table_info(%s): %v", table, err)
	}
	return n == 1
}

func TestMigrate(t *testing.T) {
	useTestMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	if !columnExists(t, db, "tag_status", "last_seen") {
		t.Fatal("tag_status.last_seen missing after Migrate")
	}

	if _, err := db.ExecContext(ctx,
		"INSERT INTO tag_status (worker, device, address, reachable, last_poll) VALUES (?, ?, ?, ?, ?)",
		"ruuvitag", "kitchen", "C4:7C:8D:6A:1B:2C", 1, "2026-03-01T12:00:00Z",
	); err != nil {
		t.Fatalf("insert into migrated table: %v", err)
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied = %d, pending = %d; want 2, 0", len(applied), len(pending))
	}

	// Idempotent
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	useTestMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if columnExists(t, db, "tag_status", "last_seen") {
		t.Error("last_seen should be dropped by the latest down migration")
	}
	if !columnExists(t, db, "tag_status", "address") {
		t.Error("earlier migration should be left in place")
	}

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != firstTestVersion {
		t.Errorf("SchemaVersion() = %q, want %q", version, firstTestVersion)
	}

	// Re-applying brings the schema back to latest
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() after rollback error = %v", err)
	}
	if !columnExists(t, db, "tag_status", "last_seen") {
		t.Error("last_seen should be restored")
	}
}

func TestMigrateDown_Empty(t *testing.T) {
	useTestMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.createMigrationsTable(ctx); err != nil {
		t.Fatalf("createMigrationsTable() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Errorf("MigrateDown() on empty database error = %v", err)
	}
}

func TestMigrateNoMigrations(t *testing.T) {
	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = origFS, origDir
	})
	MigrationsFS = embed.FS{}
	MigrationsDir = "."

	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
}

func TestSchemaVersion(t *testing.T) {
	useTestMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.createMigrationsTable(ctx); err != nil {
		t.Fatalf("createMigrationsTable() error = %v", err)
	}

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != "" {
		t.Errorf("SchemaVersion() before Migrate = %q, want empty", version)
	}

	_, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("pending = %d, want 2", len(pending))
	}

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	version, err = db.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != latestTestVersion {
		t.Errorf("SchemaVersion() = %q, want %q", version, latestTestVersion)
	}
}

func TestLoadMigrations(t *testing.T) {
	useTestMigrations(t)

	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("migrations = %d, want 2", len(migrations))
	}

	want := []struct{ version, name string }{
		{firstTestVersion, "create_tag_status"},
		{latestTestVersion, "add_tag_seen"},
	}
	for i, w := range want {
		m := migrations[i]
		if m.Version != w.version || m.Name != w.name {
			t.Errorf("migrations[%d] = %s %s, want %s %s", i, m.Version, m.Name, w.version, w.name)
		}
		if m.UpSQL == "" || m.DownSQL == "" {
			t.Errorf("migrations[%d] should pair up and down SQL", i)
		}
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantIsUp    bool
		wantOk      bool
	}{
		{"20260301_120000_device_status.up.sql", "20260301_120000", true, true},
		{"20260301_120000_device_status.down.sql", "20260301_120000", false, true},
		{"embed.go", "", false, false},
		{"20260301_120000_device_status.sql", "", false, false},
		{"schema.up.sql", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if ok && (version != tt.wantVersion || isUp != tt.wantIsUp) {
				t.Errorf("got (%q, %v), want (%q, %v)", version, isUp, tt.wantVersion, tt.wantIsUp)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	tests := map[string]string{
		"20260301_120000_device_status.up.sql":   "device_status",
		"20260301_120000_device_status.down.sql": "device_status",
		"20260401_090000_add_rssi_column.up.sql": "add_rssi_column",
	}
	for filename, want := range tests {
		if got := extractMigrationName(filename); got != want {
			t.Errorf("extractMigrationName(%q) = %q, want %q", filename, got, want)
		}
	}
}
