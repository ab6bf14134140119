package ruuvi

import "errors"

// Domain errors for the ruuvi package.
var (
	// ErrInvalidAddress is returned when a MAC address cannot be parsed.
	ErrInvalidAddress = errors.New("ruuvi: invalid MAC address")

	// ErrUnsupportedFormat is returned for advertisements in a data format
	// the decoder does not know.
	ErrUnsupportedFormat = errors.New("ruuvi: unsupported data format")

	// ErrDecode is returned when an advertisement is truncated or malformed.
	ErrDecode = errors.New("ruuvi: decoding failed")

	// ErrTimeout is returned when no advertisement arrives from a tag before
	// the caller's deadline.
	ErrTimeout = errors.New("ruuvi: no advertisement received")

	// ErrAdapter is returned when the Bluetooth adapter cannot be enabled or
	// scanning fails.
	ErrAdapter = errors.New("ruuvi: bluetooth adapter error")

	// ErrNotScanning is returned by Tag.Update when the scanner was never
	// started or has stopped.
	ErrNotScanning = errors.New("ruuvi: scanner not running")
)
