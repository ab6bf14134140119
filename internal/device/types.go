package device

import "time"

// Status is the outcome of the most recent poll of one device.
type Status struct {
	// Worker is the worker that owns the device (e.g. "ruuvitag").
	Worker string `json:"worker"`

	// Device is the configured logical name.
	Device string `json:"device"`

	// Address is the physical address the name is bound to.
	Address string `json:"address"`

	// Reachable reports whether the last poll returned a reading.
	Reachable bool `json:"reachable"`

	// Fault is the fault kind of the last poll, empty when reachable.
	Fault string `json:"fault,omitempty"`

	// Error is the driver error text of the last poll, empty when reachable.
	Error string `json:"error,omitempty"`

	// CycleID identifies the poll cycle that produced this status.
	CycleID string `json:"cycle_id,omitempty"`

	// LastPoll is when the device was last polled (UTC).
	LastPoll time.Time `json:"last_poll"`

	// LastSeen is when the device last returned a reading (UTC).
	// Nil if it has never been reachable.
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// HistoryEntry is one stored reading.
type HistoryEntry struct {
	ID        int64          `json:"id"`
	Worker    string         `json:"worker"`
	Device    string         `json:"device"`
	CycleID   string         `json:"cycle_id,omitempty"`
	Reading   map[string]any `json:"reading"`
	CreatedAt time.Time      `json:"created_at"`
}
