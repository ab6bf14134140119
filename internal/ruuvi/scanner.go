package ruuvi

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"
)

// DefaultMaxAge is how long a cached advertisement satisfies Tag.Update.
const DefaultMaxAge = 30 * time.Second

// Logger is the logging interface used by the scanner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Advertisement is the Ruuvi-relevant content of one BLE advertisement.
type Advertisement struct {
	Address string
	RSSI    int16

	// ManufacturerData is the Ruuvi manufacturer block without the
	// company id. Nil when the advertisement carries none.
	ManufacturerData []byte

	// Eddystone is the Eddystone service data frame. Nil when absent.
	Eddystone []byte
}

// source produces advertisements. Scan blocks until StopScan is called or
// scanning fails.
type source interface {
	Enable() error
	Scan(handle func(Advertisement)) error
	StopScan() error
}

// ScannerOptions configures a Scanner.
type ScannerOptions struct {
	// Adapter is the HCI adapter id on Linux ("hci0"). Empty selects the
	// default adapter.
	Adapter string

	// MaxAge bounds how old a cached reading may be before Tag.Update
	// waits for a new advertisement. Defaults to DefaultMaxAge.
	MaxAge time.Duration

	// Logger is optional.
	Logger Logger
}

type sample struct {
	data map[string]any
	at   time.Time
}

// Scanner listens for RuuviTag advertisements and caches the latest
// decoded reading per MAC address.
//
// Thread Safety: All methods are safe for concurrent use.
type Scanner struct {
	opts ScannerOptions
	src  source
	now  func() time.Time

	mu      sync.Mutex
	latest  map[string]sample
	waiters map[string][]chan sample
	running bool
	done    chan struct{}
}

// NewScanner creates a scanner bound to the configured Bluetooth adapter.
// No radio activity happens until Start.
func NewScanner(opts ScannerOptions) *Scanner {
	return newScanner(opts, newBLESource(opts.Adapter))
}

func newScanner(opts ScannerOptions, src source) *Scanner {
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	return &Scanner{
		opts:    opts,
		src:     src,
		now:     time.Now,
		latest:  make(map[string]sample),
		waiters: make(map[string][]chan sample),
	}
}

// Start enables the adapter and begins scanning in the background.
// Scanning stops when ctx is cancelled or Stop is called.
//
// Returns:
//   - error: ErrAdapter if the adapter cannot be enabled
func (s *Scanner) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.src.Enable(); err != nil {
		return fmt.Errorf("%w: enabling adapter %q: %v", ErrAdapter, s.opts.Adapter, err)
	}

	s.mu.Lock()
	s.running = true
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	go func() {
		if err := s.src.Scan(s.handle); err != nil {
			s.logError("bluetooth scan stopped", "error", err)
		}
		s.mu.Lock()
		s.stopLocked()
		s.mu.Unlock()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop() //nolint:errcheck // best effort on shutdown
		case <-done:
		}
	}()

	s.logInfo("bluetooth scan started", "adapter", s.opts.Adapter, "max_age", s.opts.MaxAge.String())
	return nil
}

// Stop halts scanning. Pending Tag.Update calls return ErrNotScanning.
// Safe to call more than once.
func (s *Scanner) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.stopLocked()
	s.mu.Unlock()

	if err := s.src.StopScan(); err != nil {
		return fmt.Errorf("%w: stopping scan: %v", ErrAdapter, err)
	}
	s.logInfo("bluetooth scan stopped")
	return nil
}

// stopLocked marks the scanner stopped. Caller must hold s.mu.
func (s *Scanner) stopLocked() {
	if !s.running {
		return
	}
	s.running = false
	close(s.done)
	s.waiters = make(map[string][]chan sample)
}

// Resolve returns the handle for the tag at address. The address is
// validated here, once, rather than on every update.
//
// Returns:
//   - *Tag: Handle bound to this scanner
//   - error: ErrInvalidAddress if address is not a MAC
func (s *Scanner) Resolve(address string) (*Tag, error) {
	mac, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return &Tag{scanner: s, mac: mac}, nil
}

// Seen returns the MAC addresses of every tag heard since Start.
func (s *Scanner) Seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.latest))
	for mac := range s.latest {
		out = append(out, mac)
	}
	return out
}

// handle decodes one advertisement and wakes any waiters for its tag.
func (s *Scanner) handle(adv Advertisement) {
	var (
		data map[string]any
		err  error
	)
	switch {
	case adv.ManufacturerData != nil:
		data, err = DecodeManufacturerData(adv.ManufacturerData)
	case adv.Eddystone != nil:
		data, err = DecodeEddystone(adv.Eddystone)
	default:
		return
	}
	if err != nil {
		s.logDebug("ignoring advertisement", "address", adv.Address, "error", err)
		return
	}

	mac, err := NormalizeAddress(adv.Address)
	if err != nil {
		s.logDebug("ignoring advertisement", "address", adv.Address, "error", err)
		return
	}

	smp := sample{data: data, at: s.now()}

	s.mu.Lock()
	s.latest[mac] = smp
	waiting := s.waiters[mac]
	delete(s.waiters, mac)
	s.mu.Unlock()

	for _, ch := range waiting {
		ch <- smp // buffered, one send per waiter
	}
}

// fresh returns the cached reading for mac if it is younger than MaxAge.
func (s *Scanner) fresh(mac string) (sample, bool) {
	smp, ok := s.latest[mac]
	if !ok || s.now().Sub(smp.at) > s.opts.MaxAge {
		return sample{}, false
	}
	return smp, true
}

func (s *Scanner) removeWaiter(mac string, ch chan sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.waiters[mac]
	for i, c := range list {
		if c == ch {
			s.waiters[mac] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(s.waiters[mac]) == 0 {
		delete(s.waiters, mac)
	}
}

func (s *Scanner) logInfo(msg string, args ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Info(msg, args...)
	}
}

func (s *Scanner) logDebug(msg string, args ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Debug(msg, args...)
	}
}

func (s *Scanner) logError(msg string, args ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Error(msg, args...)
	}
}

// Tag is a resolved RuuviTag.
type Tag struct {
	scanner *Scanner
	mac     string
}

// MAC returns the tag's canonical address.
func (t *Tag) MAC() string {
	return t.mac
}

// Update returns the tag's current reading.
//
// A cached reading younger than the scanner's MaxAge is returned at once.
// Otherwise Update blocks until the tag's next advertisement or until ctx
// is done.
//
// Returns:
//   - map[string]any: A copy of the decoded reading
//   - error: ErrTimeout if ctx ends first, ErrNotScanning if the scanner
//     is not running
func (t *Tag) Update(ctx context.Context) (map[string]any, error) {
	s := t.scanner

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil, ErrNotScanning
	}
	if smp, ok := s.fresh(t.mac); ok {
		s.mu.Unlock()
		return maps.Clone(smp.data), nil
	}
	ch := make(chan sample, 1)
	s.waiters[t.mac] = append(s.waiters[t.mac], ch)
	done := s.done
	s.mu.Unlock()

	select {
	case smp := <-ch:
		return maps.Clone(smp.data), nil
	case <-ctx.Done():
		s.removeWaiter(t.mac, ch)
		return nil, fmt.Errorf("%w from %s: %w", ErrTimeout, t.mac, ctx.Err())
	case <-done:
		return nil, ErrNotScanning
	}
}
