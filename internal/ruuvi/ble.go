package ruuvi

import "tinygo.org/x/bluetooth"

var eddystoneServiceUUID = bluetooth.New16BitUUID(EddystoneUUID)

// bleSource scans a real Bluetooth adapter.
type bleSource struct {
	adapter *bluetooth.Adapter
}

func newBLESource(id string) *bleSource {
	return &bleSource{adapter: adapterFor(id)}
}

func (b *bleSource) Enable() error {
	return b.adapter.Enable()
}

func (b *bleSource) StopScan() error {
	return b.adapter.StopScan()
}

// Scan forwards Ruuvi advertisements to handle until StopScan.
func (b *bleSource) Scan(handle func(Advertisement)) error {
	return b.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		adv := Advertisement{
			Address: result.Address.String(),
			RSSI:    result.RSSI,
		}
		for _, m := range result.ManufacturerData() {
			if m.CompanyID == ManufacturerID {
				adv.ManufacturerData = m.Data
				break
			}
		}
		if adv.ManufacturerData == nil {
			for _, sd := range result.ServiceData() {
				if sd.UUID == eddystoneServiceUUID {
					adv.Eddystone = sd.Data
					break
				}
			}
		}
		if adv.ManufacturerData == nil && adv.Eddystone == nil {
			return
		}
		handle(adv)
	})
}
