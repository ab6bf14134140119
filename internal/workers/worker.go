package workers

import (
	"context"
	"time"
)

// Worker is a device worker: a set of configured devices of one kind,
// announced through discovery and polled on a cadence.
type Worker interface {
	// Name is the worker name used in topics and ids ("ruuvitag").
	Name() string

	// Devices returns the validated devices in configuration order.
	Devices() []Device

	// UpdateInterval is how often the worker wants to be polled.
	UpdateInterval() time.Duration

	// Config returns the discovery messages for every device. It depends
	// only on configuration, never on readings.
	Config() []Message

	// Poll runs one update cycle over every device.
	Poll(ctx context.Context) Cycle
}

// Lifecycle is implemented by workers that hold resources (a radio, a
// connection) between cycles.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop() error
}
