package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Fault kinds reported for unreachable devices.
const (
	FaultTimeout   = "timeout"
	FaultTransport = "transport"
	FaultPanic     = "panic"
)

// Logger is the logging interface used by workers.
// Satisfied by *logging.Logger and *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Device is one configured device: a logical name bound to a physical
// address. It is read-only during a cycle.
type Device struct {
	Name    string
	Address string
}

// Fault records why a device was unreachable in a cycle.
type Fault struct {
	Device Device
	Kind   string
	Err    error
}

// Error implements error.
func (f *Fault) Error() string {
	return fmt.Sprintf("device %q (%s): %s: %v", f.Device.Name, f.Device.Address, f.Kind, f.Err)
}

// Unwrap returns the driver error.
func (f *Fault) Unwrap() error {
	return f.Err
}

// DeviceResult is the outcome of polling one device: either messages (and
// the reading they came from) or a fault, never both.
type DeviceResult struct {
	Device   Device
	Reading  Reading
	Messages []Message
	Fault    *Fault
	Duration time.Duration
}

// Reachable reports whether the driver call succeeded.
func (r DeviceResult) Reachable() bool {
	return r.Fault == nil
}

// Cycle is the outcome of one poll over all devices of a worker.
type Cycle struct {
	ID       string
	Worker   string
	Started  time.Time
	Duration time.Duration
	Results  []DeviceResult
}

// Messages flattens the state messages of every reachable device, in
// device order and catalog order within a device.
func (c Cycle) Messages() []Message {
	n := 0
	for _, r := range c.Results {
		n += len(r.Messages)
	}
	out := make([]Message, 0, n)
	for _, r := range c.Results {
		if r.Fault != nil {
			continue
		}
		out = append(out, r.Messages...)
	}
	return out
}

// Faults returns the faults recorded in the cycle.
func (c Cycle) Faults() []*Fault {
	var out []*Fault
	for _, r := range c.Results {
		if r.Fault != nil {
			out = append(out, r.Fault)
		}
	}
	return out
}

// PollFunc obtains a reading for one device. It is the only fallible,
// blocking step of a cycle.
type PollFunc func(ctx context.Context, d Device) (Reading, error)

// BuildFunc converts a reading into state messages. It must be pure.
type BuildFunc func(d Device, r Reading) []Message

// CycleOptions configures RunCycle.
type CycleOptions struct {
	// Worker names the worker in logs and in the returned Cycle.
	Worker string

	// Timeout bounds each driver call. Zero means no bound beyond ctx.
	Timeout time.Duration

	// Concurrency is the number of devices polled at once. Values below 1
	// poll sequentially.
	Concurrency int

	// Classify maps a driver error to a fault kind. Optional; timeouts and
	// panics are classified before it is consulted.
	Classify func(error) string

	// Logger receives one warning per fault. Optional.
	Logger Logger
}

// RunCycle polls every device and builds its state messages.
//
// Results keep device order regardless of concurrency. Faults are logged
// and recorded in the result; nothing is returned as an error and one
// device's failure never cancels another device's poll.
func RunCycle(ctx context.Context, devices []Device, poll PollFunc, build BuildFunc, opts CycleOptions) Cycle {
	cycle := Cycle{
		ID:      uuid.NewString(),
		Worker:  opts.Worker,
		Started: time.Now(),
		Results: make([]DeviceResult, len(devices)),
	}

	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, d := range devices {
		g.Go(func() error {
			cycle.Results[i] = pollDevice(ctx, d, poll, build, opts)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // device goroutines never return errors

	cycle.Duration = time.Since(cycle.Started)

	if opts.Logger != nil {
		opts.Logger.Debug("cycle complete",
			"worker", opts.Worker,
			"cycle_id", cycle.ID,
			"devices", len(devices),
			"faults", len(cycle.Faults()),
			"messages", len(cycle.Messages()),
			"duration_ms", cycle.Duration.Milliseconds(),
		)
	}

	return cycle
}

// pollResult carries a driver call's outcome across the timeout select.
type pollResult struct {
	reading Reading
	err     error
}

// pollDevice runs one device's driver call and message build.
func pollDevice(ctx context.Context, d Device, poll PollFunc, build BuildFunc, opts CycleOptions) DeviceResult {
	start := time.Now()
	result := DeviceResult{Device: d}

	if opts.Logger != nil {
		opts.Logger.Debug("updating device", "worker", opts.Worker, "device", d.Name, "address", d.Address)
	}

	pollCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	// The driver runs in its own goroutine so a call that ignores its
	// context still cannot hold the cycle past the timeout.
	done := make(chan pollResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- pollResult{err: fmt.Errorf("%w: %v", ErrPollPanic, r)}
			}
		}()
		reading, err := poll(pollCtx, d)
		done <- pollResult{reading: reading, err: err}
	}()

	var res pollResult
	select {
	case res = <-done:
	case <-pollCtx.Done():
		res = pollResult{err: pollCtx.Err()}
	}

	result.Duration = time.Since(start)

	if res.err != nil {
		result.Fault = &Fault{Device: d, Kind: classify(res.err, opts.Classify), Err: res.err}
		if opts.Logger != nil {
			opts.Logger.Warn("error during update of device",
				"worker", opts.Worker,
				"device", d.Name,
				"address", d.Address,
				"fault", result.Fault.Kind,
				"error", res.err,
			)
		}
		return result
	}

	result.Reading = res.reading
	result.Messages = build(d, res.reading)
	return result
}

// classify maps a driver error to a fault kind.
func classify(err error, custom func(error) string) string {
	switch {
	case errors.Is(err, ErrPollPanic):
		return FaultPanic
	case errors.Is(err, context.DeadlineExceeded):
		return FaultTimeout
	}
	if custom != nil {
		if kind := custom(err); kind != "" {
			return kind
		}
	}
	return FaultTransport
}
