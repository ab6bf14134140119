package ruuvitag

import (
	"context"
	"errors"

	"github.com/nerrad567/btgateway/internal/ruuvi"
	"github.com/nerrad567/btgateway/internal/workers"
)

// Tag is a resolved device handle.
type Tag interface {
	Update(ctx context.Context) (map[string]any, error)
}

// Resolver binds a physical address to a Tag once, at setup.
type Resolver interface {
	Resolve(address string) (Tag, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(address string) (Tag, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(address string) (Tag, error) {
	return f(address)
}

// ScannerResolver resolves tags through a Bluetooth scanner.
func ScannerResolver(s *ruuvi.Scanner) Resolver {
	return ResolverFunc(func(address string) (Tag, error) {
		tag, err := s.Resolve(address)
		if err != nil {
			return nil, err
		}
		return tag, nil
	})
}

// Fault kinds specific to the RuuviTag driver.
const (
	FaultDecode  = "decode"
	FaultAdapter = "adapter"
)

// classifyFault maps driver errors to fault kinds.
func classifyFault(err error) string {
	switch {
	case errors.Is(err, ruuvi.ErrTimeout):
		return workers.FaultTimeout
	case errors.Is(err, ruuvi.ErrDecode), errors.Is(err, ruuvi.ErrUnsupportedFormat):
		return FaultDecode
	case errors.Is(err, ruuvi.ErrAdapter), errors.Is(err, ruuvi.ErrNotScanning):
		return FaultAdapter
	default:
		return ""
	}
}
