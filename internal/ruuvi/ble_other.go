//go:build !linux

package ruuvi

import "tinygo.org/x/bluetooth"

// adapterFor returns the default adapter; named adapters are Linux only.
func adapterFor(_ string) *bluetooth.Adapter {
	return bluetooth.DefaultAdapter
}
