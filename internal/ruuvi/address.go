package ruuvi

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// macLength is the number of bytes in a Bluetooth MAC address.
const macLength = 6

// NormalizeAddress validates a MAC address and returns it in the canonical
// upper-case, colon separated form ("AA:BB:CC:DD:EE:FF").
//
// Accepts colon or dash separators, in either case.
//
// Returns:
//   - string: Canonical address
//   - error: ErrInvalidAddress if s is not a 6-byte MAC
func NormalizeAddress(s string) (string, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), "-", ":")
	parts := strings.Split(cleaned, ":")
	if len(parts) != macLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	for i, p := range parts {
		if len(p) != 2 {
			return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		if _, err := hex.DecodeString(p); err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		parts[i] = strings.ToUpper(p)
	}
	return strings.Join(parts, ":"), nil
}
