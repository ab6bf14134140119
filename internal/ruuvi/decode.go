package ruuvi

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// ManufacturerID is Ruuvi Innovations' Bluetooth SIG company identifier.
const ManufacturerID uint16 = 0x0499

// EddystoneUUID is the 16-bit service UUID carrying Eddystone frames.
const EddystoneUUID uint16 = 0xFEAA

// Data format identifiers.
const (
	FormatURL   = 2
	FormatRAWv1 = 3
	FormatTag   = 4
	FormatRAWv2 = 5
)

// Payload sizes, excluding the manufacturer id.
const (
	rawv1Length = 14
	rawv2Length = 24

	// urlDataLength is the encoded length of a format 2 URL payload; format
	// 4 appends one identifier character.
	urlDataLength = 8

	// urlMarker precedes the encoded payload in a Ruuvi URL.
	urlMarker = "ruu.vi/#"
)

// RAWv2 "not available" markers.
const (
	invalidInt16   = 0x8000
	invalidUint16  = 0xFFFF
	invalidUint8   = 0xFF
	invalidBattery = 0x7FF
	invalidTx      = 0x1F
)

// Eddystone frame constants.
const (
	eddystoneURLFrame = 0x10
	eddystoneHTTPS    = 0x03
	eddystoneHeader   = 3
)

// Attribute keys produced by the decoder.
const (
	KeyDataFormat    = "data_format"
	KeyTemperature   = "temperature"
	KeyHumidity      = "humidity"
	KeyPressure      = "pressure"
	KeyAcceleration  = "acceleration"
	KeyAccelerationX = "acceleration_x"
	KeyAccelerationY = "acceleration_y"
	KeyAccelerationZ = "acceleration_z"
	KeyBattery       = "battery"
	KeyTxPower       = "tx_power"
	KeyMovement      = "movement_counter"
	KeySequence      = "measurement_sequence_number"
	KeyMAC           = "mac"
	KeyIdentifier    = "identifier"
)

// DecodeManufacturerData decodes a Ruuvi manufacturer-specific data block
// (the bytes following the company id).
//
// Returns:
//   - map[string]any: Attribute values; invalid fields are omitted
//   - error: ErrUnsupportedFormat or ErrDecode
func DecodeManufacturerData(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty manufacturer data", ErrDecode)
	}
	switch data[0] {
	case FormatRAWv1:
		return decodeRAWv1(data)
	case FormatRAWv2:
		return decodeRAWv2(data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedFormat, data[0])
	}
}

// DecodeEddystone decodes an Eddystone-URL service data frame broadcast by
// legacy firmware.
func DecodeEddystone(frame []byte) (map[string]any, error) {
	if len(frame) <= eddystoneHeader || frame[0] != eddystoneURLFrame {
		return nil, fmt.Errorf("%w: not an Eddystone-URL frame", ErrUnsupportedFormat)
	}
	if frame[2] != eddystoneHTTPS {
		return nil, fmt.Errorf("%w: unexpected URL scheme 0x%02x", ErrUnsupportedFormat, frame[2])
	}
	return DecodeURL("https://" + string(frame[eddystoneHeader:]))
}

// DecodeURL decodes a data format 2 or 4 URL ("https://ruu.vi/#BEAVAMFK").
func DecodeURL(url string) (map[string]any, error) {
	idx := strings.Index(url, urlMarker)
	if idx < 0 {
		return nil, fmt.Errorf("%w: not a Ruuvi URL", ErrUnsupportedFormat)
	}
	encoded := url[idx+len(urlMarker):]

	format := FormatURL
	identifier := ""
	if len(encoded) > urlDataLength {
		format = FormatTag
		identifier = encoded[urlDataLength:]
		encoded = encoded[:urlDataLength]
	}

	d, err := base64.URLEncoding.DecodeString(padBase64(encoded))
	if err != nil {
		d, err = base64.StdEncoding.DecodeString(padBase64(encoded))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(d) < 6 {
		return nil, fmt.Errorf("%w: URL payload too short (%d bytes)", ErrDecode, len(d))
	}

	out := map[string]any{
		KeyDataFormat:  format,
		KeyHumidity:    float64(d[1]) / 2,
		KeyTemperature: signedTemperature(d[2], d[3]),
		KeyPressure:    round2(float64(int(binary.BigEndian.Uint16(d[4:6]))+50000) / 100),
	}
	if format == FormatTag {
		out[KeyIdentifier] = identifier
	}
	return out, nil
}

// decodeRAWv1 decodes data format 3.
//
// Layout: format, humidity (0.5%), temperature (signed integer and
// hundredths), pressure (Pa - 50000), acceleration x/y/z (mG), battery (mV).
func decodeRAWv1(d []byte) (map[string]any, error) {
	if len(d) < rawv1Length {
		return nil, fmt.Errorf("%w: format 3 needs %d bytes, got %d", ErrDecode, rawv1Length, len(d))
	}

	ax := int16(binary.BigEndian.Uint16(d[6:8]))
	ay := int16(binary.BigEndian.Uint16(d[8:10]))
	az := int16(binary.BigEndian.Uint16(d[10:12]))

	return map[string]any{
		KeyDataFormat:    FormatRAWv1,
		KeyHumidity:      float64(d[1]) / 2,
		KeyTemperature:   signedTemperature(d[2], d[3]),
		KeyPressure:      round2(float64(int(binary.BigEndian.Uint16(d[4:6]))+50000) / 100),
		KeyAcceleration:  magnitude(ax, ay, az),
		KeyAccelerationX: int(ax),
		KeyAccelerationY: int(ay),
		KeyAccelerationZ: int(az),
		KeyBattery:       int(binary.BigEndian.Uint16(d[12:14])),
	}, nil
}

// decodeRAWv2 decodes data format 5.
//
// Layout: format, temperature (0.005 C), humidity (0.0025%), pressure
// (Pa - 50000), acceleration x/y/z (mG), power (11 bits battery above
// 1600 mV, 5 bits tx power in 2 dBm steps above -40), movement counter,
// sequence number, MAC.
func decodeRAWv2(d []byte) (map[string]any, error) {
	if len(d) < rawv2Length {
		return nil, fmt.Errorf("%w: format 5 needs %d bytes, got %d", ErrDecode, rawv2Length, len(d))
	}

	out := map[string]any{KeyDataFormat: FormatRAWv2}

	if raw := binary.BigEndian.Uint16(d[1:3]); raw != invalidInt16 {
		out[KeyTemperature] = round2(float64(int16(raw)) * 0.005)
	}
	if raw := binary.BigEndian.Uint16(d[3:5]); raw != invalidUint16 {
		out[KeyHumidity] = round2(float64(raw) * 0.0025)
	}
	if raw := binary.BigEndian.Uint16(d[5:7]); raw != invalidUint16 {
		out[KeyPressure] = round2(float64(int(raw)+50000) / 100)
	}

	rx := binary.BigEndian.Uint16(d[7:9])
	ry := binary.BigEndian.Uint16(d[9:11])
	rz := binary.BigEndian.Uint16(d[11:13])
	if rx != invalidInt16 && ry != invalidInt16 && rz != invalidInt16 {
		ax, ay, az := int16(rx), int16(ry), int16(rz)
		out[KeyAcceleration] = magnitude(ax, ay, az)
		out[KeyAccelerationX] = int(ax)
		out[KeyAccelerationY] = int(ay)
		out[KeyAccelerationZ] = int(az)
	}

	power := binary.BigEndian.Uint16(d[13:15])
	if battery := power >> 5; battery != invalidBattery {
		out[KeyBattery] = int(battery) + 1600
	}
	if tx := power & 0x1F; tx != invalidTx {
		out[KeyTxPower] = int(tx)*2 - 40
	}

	if d[15] != invalidUint8 {
		out[KeyMovement] = int(d[15])
	}
	if seq := binary.BigEndian.Uint16(d[16:18]); seq != invalidUint16 {
		out[KeySequence] = int(seq)
	}

	mac := d[18:24]
	if !allBytes(mac, 0xFF) {
		out[KeyMAC] = fmt.Sprintf("%x", mac)
	}

	return out, nil
}

// signedTemperature decodes the sign-magnitude temperature used by formats
// 2, 3 and 4: bit 7 of whole is the sign, fraction is hundredths.
func signedTemperature(whole, fraction byte) float64 {
	t := float64(whole&0x7F) + float64(fraction)/100
	if whole&0x80 != 0 {
		t = -t
	}
	return round2(t)
}

func magnitude(x, y, z int16) float64 {
	fx, fy, fz := float64(x), float64(y), float64(z)
	return math.Sqrt(fx*fx + fy*fy + fz*fz)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func padBase64(s string) string {
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	return s
}

func allBytes(b []byte, v byte) bool {
	for _, c := range b {
		if c != v {
			return false
		}
	}
	return true
}
