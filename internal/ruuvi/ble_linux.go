//go:build linux

package ruuvi

import "tinygo.org/x/bluetooth"

// adapterFor returns the named HCI adapter, or the default one.
func adapterFor(id string) *bluetooth.Adapter {
	if id == "" {
		return bluetooth.DefaultAdapter
	}
	return bluetooth.NewAdapter(id)
}
