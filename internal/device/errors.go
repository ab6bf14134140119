package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when no status has been recorded for a device.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidStatus is returned when a status lacks its worker or device name.
	ErrInvalidStatus = errors.New("device: invalid status")
)
