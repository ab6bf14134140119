package device

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// RecordReading inserts a reading for a device and prunes the device's
// history down to the repository's history limit.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - worker: Worker that produced the reading
//   - device: Configured device name
//   - cycleID: Poll cycle identifier (may be empty)
//   - reading: Decoded attribute values
//   - at: Time the reading was taken
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) RecordReading(ctx context.Context, worker, device, cycleID string, reading map[string]any, at time.Time) error {
	if worker == "" || device == "" {
		return fmt.Errorf("%w: worker and device are required", ErrInvalidStatus)
	}
	if reading == nil {
		reading = map[string]any{}
	}
	if at.IsZero() {
		at = time.Now()
	}

	readingJSON, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("marshalling reading: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	_, err = tx.ExecContext(ctx,
		"INSERT INTO reading_history (worker, device, cycle_id, reading, created_at) VALUES (?, ?, ?, ?, ?)",
		worker,
		device,
		cycleID,
		string(readingJSON),
		formatTimestamp(at),
	)
	if err != nil {
		return fmt.Errorf("inserting reading history: %w", err)
	}

	if r.historyLimit > 0 {
		// Deletes the (limit+1)th newest row and everything older.
		_, err = tx.ExecContext(ctx, `
			DELETE FROM reading_history
			WHERE worker = ? AND device = ? AND id <= (
				SELECT id FROM reading_history
				WHERE worker = ? AND device = ?
				ORDER BY id DESC
				LIMIT 1 OFFSET ?
			)`,
			worker, device, worker, device, r.historyLimit,
		)
		if err != nil {
			return fmt.Errorf("pruning reading history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reading history: %w", err)
	}

	return nil
}

// GetHistory returns recent readings for a device, ordered newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - worker: Worker name; empty matches any worker
//   - device: Configured device name
//   - limit: Maximum entries to return (default 50, max 500)
//
// Returns:
//   - []HistoryEntry: Entries ordered by insertion, newest first
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteRepository) GetHistory(ctx context.Context, worker, device string, limit int) ([]HistoryEntry, error) {
	if device == "" {
		return nil, fmt.Errorf("%w: device is required", ErrInvalidStatus)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, worker, device, cycle_id, reading, created_at
		 FROM reading_history
		 WHERE device = ? AND (? = '' OR worker = ?)
		 ORDER BY id DESC
		 LIMIT ?`,
		device,
		worker,
		worker,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying reading history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var entry HistoryEntry
		var readingJSON string
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.Worker, &entry.Device, &entry.CycleID, &readingJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning reading history: %w", err)
		}

		if err := json.Unmarshal([]byte(readingJSON), &entry.Reading); err != nil {
			return nil, fmt.Errorf("unmarshalling reading: %w", err)
		}

		timestamp, err := parseTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reading history: %w", err)
	}

	return entries, nil
}

// formatTimestamp renders a timestamp the way it is stored in SQLite.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp parses a timestamp stored in SQLite.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}

	timestamp, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp: %w", err)
	}

	return timestamp, nil
}
