package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Tag keys attached to every reading point.
const (
	TagDevice = "device"
	TagMAC    = "mac"
)

// WriteReading writes one device reading as a point.
//
// The measurement is the worker name (e.g. "ruuvitag"). Only numeric
// reading values become fields; strings such as the MAC or the Eddystone
// identifier are dropped. A reading without numeric values writes nothing.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - worker: Worker name, used as the measurement
//   - device: Configured device name
//   - mac: Normalised device address
//   - reading: Decoded attribute values
//   - ts: Time the reading was taken
//
// Example:
//
//	client.WriteReading("ruuvitag", "kitchen", "C4:7C:8D:6A:1B:2C",
//	    map[string]any{"temperature": 21.5, "humidity": 40.0}, time.Now())
func (c *Client) WriteReading(worker, device, mac string, reading map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	point := ReadingPoint(worker, device, mac, reading, ts)
	if point == nil {
		return
	}
	c.writeAPI.WritePoint(point)
}

// ReadingPoint builds the point WriteReading sends. It returns nil when
// the reading has no numeric values.
func ReadingPoint(worker, device, mac string, reading map[string]any, ts time.Time) *write.Point {
	fields := NumericFields(reading)
	if len(fields) == 0 {
		return nil
	}

	tags := map[string]string{TagDevice: device}
	if mac != "" {
		tags[TagMAC] = mac
	}

	return write.NewPoint(worker, tags, fields, ts)
}

// NumericFields keeps the numeric values of a reading, converted to
// float64 so a field keeps one type across devices and firmware versions.
func NumericFields(reading map[string]any) map[string]any {
	fields := make(map[string]any, len(reading))
	for k, v := range reading {
		switch n := v.(type) {
		case float64:
			fields[k] = n
		case float32:
			fields[k] = float64(n)
		case int:
			fields[k] = float64(n)
		case int8:
			fields[k] = float64(n)
		case int16:
			fields[k] = float64(n)
		case int32:
			fields[k] = float64(n)
		case int64:
			fields[k] = float64(n)
		case uint8:
			fields[k] = float64(n)
		case uint16:
			fields[k] = float64(n)
		case uint32:
			fields[k] = float64(n)
		case uint64:
			fields[k] = float64(n)
		}
	}
	return fields
}
