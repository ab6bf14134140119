package gateway

import "errors"

// Sentinel errors for the gateway manager.
var (
	// ErrNoBus is returned by New when no MQTT bus is configured.
	ErrNoBus = errors.New("gateway: bus is required")

	// ErrAlreadyStarted is returned by Start on a second call.
	ErrAlreadyStarted = errors.New("gateway: already started")
)
