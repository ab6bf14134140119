// Package ruuvi is the RuuviTag device driver.
//
// RuuviTags do not accept connections; they broadcast their measurements in
// Bluetooth LE advertisements. The driver therefore has two halves:
//
//   - a decoder for the broadcast data formats (2, 3, 4 and 5)
//   - a Scanner that listens for advertisements and keeps the most recent
//     decoded reading per MAC address
//
// A Tag is the per-device handle the scanner resolves once at setup time.
// Tag.Update returns the cached reading when it is fresh and otherwise waits
// for the next advertisement from that tag until its context is done.
//
// # Data formats
//
//   - 2 and 4: Eddystone-URL "https://ruu.vi/#<base64>" (legacy firmware)
//   - 3: RAWv1 manufacturer data (company id 0x0499)
//   - 5: RAWv2 manufacturer data
//
// Fields a format does not carry, or that the tag marks invalid, are
// absent from the returned reading rather than zero.
//
// # Usage
//
//	scanner := ruuvi.NewScanner(ruuvi.ScannerOptions{Adapter: "hci0"})
//	if err := scanner.Start(ctx); err != nil {
//	    return err
//	}
//	defer scanner.Stop()
//
//	tag, err := scanner.Resolve("AA:BB:CC:DD:EE:FF")
//	data, err := tag.Update(ctx)
package ruuvi
