package workers

// Reading is one point-in-time set of attribute values from a device.
//
// A missing key means the device's current data format does not carry
// that attribute. That is expected variance, not an error.
type Reading map[string]any

// Get returns the value for attr and whether it is present.
func (r Reading) Get(attr string) (any, bool) {
	v, ok := r[attr]
	return v, ok
}

// Numeric returns the numeric fields of the reading as float64.
// String values are dropped.
func (r Reading) Numeric() map[string]float64 {
	out := make(map[string]float64, len(r))
	for k, v := range r {
		if f, ok := toFloat(v); ok {
			out[k] = f
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
