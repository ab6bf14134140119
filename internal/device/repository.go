package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository stores device poll outcomes and reading history.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and lets the gateway run without a database.
type Repository interface {
	// RecordPoll upserts the status of one device.
	// LastSeen is kept from the previous row when the device is unreachable.
	RecordPoll(ctx context.Context, status Status) error

	// List returns the status of every device ever polled, ordered by
	// worker then device name.
	List(ctx context.Context) ([]Status, error)

	// Get returns the status of one device.
	// Returns ErrDeviceNotFound if the device has never been polled.
	Get(ctx context.Context, worker, device string) (*Status, error)

	// RecordReading appends a reading to the device's history.
	RecordReading(ctx context.Context, worker, device, cycleID string, reading map[string]any, at time.Time) error

	// GetHistory returns recent readings for a device, newest first.
	// An empty worker matches any worker.
	GetHistory(ctx context.Context, worker, device string, limit int) ([]HistoryEntry, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB

	// historyLimit is the number of readings kept per device. Zero keeps all.
	historyLimit int
}

// NewSQLiteRepository creates a new SQLite device repository.
//
// Parameters:
//   - db: Open SQLite connection with the device_status and
//     reading_history tables migrated
//   - historyLimit: Readings kept per device; 0 disables pruning
//
// Returns:
//   - *SQLiteRepository: Repository instance ready for use
func NewSQLiteRepository(db *sql.DB, historyLimit int) *SQLiteRepository {
	if historyLimit < 0 {
		historyLimit = 0
	}
	return &SQLiteRepository{db: db, historyLimit: historyLimit}
}

// RecordPoll upserts the status of one device.
func (r *SQLiteRepository) RecordPoll(ctx context.Context, status Status) error {
	if status.Worker == "" || status.Device == "" {
		return fmt.Errorf("%w: worker and device are required", ErrInvalidStatus)
	}
	if status.LastPoll.IsZero() {
		status.LastPoll = time.Now()
	}

	var lastSeen any
	switch {
	case status.LastSeen != nil:
		lastSeen = formatTimestamp(*status.LastSeen)
	case status.Reachable:
		lastSeen = formatTimestamp(status.LastPoll)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_status
			(worker, device, address, reachable, fault, error, cycle_id, last_poll, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(worker, device) DO UPDATE SET
			address   = excluded.address,
			reachable = excluded.reachable,
			fault     = excluded.fault,
			error     = excluded.error,
			cycle_id  = excluded.cycle_id,
			last_poll = excluded.last_poll,
			last_seen = COALESCE(excluded.last_seen, device_status.last_seen)`,
		status.Worker,
		status.Device,
		status.Address,
		status.Reachable,
		status.Fault,
		status.Error,
		status.CycleID,
		formatTimestamp(status.LastPoll),
		lastSeen,
	)
	if err != nil {
		return fmt.Errorf("upserting device status: %w", err)
	}

	return nil
}

const selectStatus = `
	SELECT worker, device, address, reachable, fault, error, cycle_id, last_poll, last_seen
	FROM device_status`

// List returns every recorded device status.
func (r *SQLiteRepository) List(ctx context.Context) ([]Status, error) {
	rows, err := r.db.QueryContext(ctx, selectStatus+" ORDER BY worker, device")
	if err != nil {
		return nil, fmt.Errorf("querying device status: %w", err)
	}
	defer rows.Close()

	statuses := make([]Status, 0)
	for rows.Next() {
		status, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, *status)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device status: %w", err)
	}

	return statuses, nil
}

// Get returns the status of one device.
func (r *SQLiteRepository) Get(ctx context.Context, worker, device string) (*Status, error) {
	row := r.db.QueryRowContext(ctx, selectStatus+" WHERE worker = ? AND device = ?", worker, device)

	status, err := scanStatus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, err
	}

	return status, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanStatus reads one device_status row.
func scanStatus(s scanner) (*Status, error) {
	var status Status
	var lastPoll string
	var lastSeen sql.NullString

	err := s.Scan(
		&status.Worker,
		&status.Device,
		&status.Address,
		&status.Reachable,
		&status.Fault,
		&status.Error,
		&status.CycleID,
		&lastPoll,
		&lastSeen,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning device status: %w", err)
	}

	status.LastPoll, err = parseTimestamp(lastPoll)
	if err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		seen, err := parseTimestamp(lastSeen.String)
		if err != nil {
			return nil, err
		}
		status.LastSeen = &seen
	}

	return &status, nil
}
