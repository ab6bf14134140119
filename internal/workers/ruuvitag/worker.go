package ruuvitag

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/btgateway/internal/ruuvi"
	"github.com/nerrad567/btgateway/internal/workers"
)

// Name is the worker name used in topics and discovery ids.
const Name = "ruuvitag"

// Device descriptor values shown in Home Assistant.
const (
	manufacturer = "Ruuvi"
	model        = "RuuviTag"
)

// DefaultUpdateInterval is used when Options.UpdateInterval is zero.
const DefaultUpdateInterval = 60 * time.Second

// Options configures a Worker.
type Options struct {
	// Devices in configuration order.
	Devices []workers.Device

	// Resolver binds each device address to a Tag. Required.
	Resolver Resolver

	// Driver is started and stopped with the worker. Optional.
	Driver workers.Lifecycle

	// Namespace prefixes discovery ids (the gateway id).
	Namespace string

	// TopicPrefix is the first state topic segment. Defaults to Name.
	TopicPrefix string

	// GlobalPrefix is prepended to state topics by the publisher; discovery
	// payloads embed it in state_topic.
	GlobalPrefix string

	// AvailabilityTopic is embedded in discovery payloads when set.
	AvailabilityTopic string

	UpdateInterval time.Duration
	PollTimeout    time.Duration
	Concurrency    int

	// Logger is optional.
	Logger workers.Logger
}

// boundDevice is a configured device with its resolved tag.
type boundDevice struct {
	workers.Device
	tag Tag
}

// Worker polls RuuviTags and announces them through discovery.
//
// Thread Safety: Config and Poll may be called concurrently; the device
// set is fixed at construction.
type Worker struct {
	opts    Options
	format  workers.Formatter
	devices []boundDevice
}

// New validates and resolves the configured devices.
//
// Devices with an empty name, a duplicate name or an address the resolver
// rejects are skipped with a warning; the worker starts with the rest.
//
// Returns:
//   - *Worker: Ready to poll
//   - error: only if no Resolver is configured
func New(opts Options) (*Worker, error) {
	if opts.Resolver == nil {
		return nil, ErrNoResolver
	}
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = DefaultUpdateInterval
	}

	w := &Worker{
		opts: opts,
		format: workers.Formatter{
			Namespace:    opts.Namespace,
			Worker:       Name,
			TopicPrefix:  opts.TopicPrefix,
			GlobalPrefix: opts.GlobalPrefix,
		},
	}

	w.logInfo("adding devices", "worker", Name, "count", len(opts.Devices))

	seen := make(map[string]bool, len(opts.Devices))
	for _, d := range opts.Devices {
		if err := w.bind(d, seen); err != nil {
			w.logWarn("skipping device", "worker", Name, "device", d.Name, "address", d.Address, "error", err)
		}
	}

	return w, nil
}

// bind resolves d and records it under its canonical address, so discovery
// ids do not depend on how the address was spelled in the config.
func (w *Worker) bind(d workers.Device, seen map[string]bool) error {
	if d.Name == "" || d.Address == "" {
		return workers.ErrInvalidDevice
	}
	if seen[d.Name] {
		return workers.ErrDuplicateDevice
	}

	mac, err := ruuvi.NormalizeAddress(d.Address)
	if err != nil {
		return fmt.Errorf("%w: %w", workers.ErrInvalidDevice, err)
	}
	d.Address = mac

	tag, err := w.opts.Resolver.Resolve(mac)
	if err != nil {
		return fmt.Errorf("%w: %w", workers.ErrInvalidDevice, err)
	}

	seen[d.Name] = true
	w.devices = append(w.devices, boundDevice{Device: d, tag: tag})
	w.logDebug("added device", "worker", Name, "device", d.Name, "address", d.Address)
	return nil
}

// Name implements workers.Worker.
func (w *Worker) Name() string {
	return Name
}

// UpdateInterval implements workers.Worker.
func (w *Worker) UpdateInterval() time.Duration {
	return w.opts.UpdateInterval
}

// Devices implements workers.Worker.
func (w *Worker) Devices() []workers.Device {
	out := make([]workers.Device, len(w.devices))
	for i, d := range w.devices {
		out[i] = d.Device
	}
	return out
}

// Start starts the driver, if any.
func (w *Worker) Start(ctx context.Context) error {
	if w.opts.Driver == nil {
		return nil
	}
	return w.opts.Driver.Start(ctx)
}

// Stop stops the driver, if any.
func (w *Worker) Stop() error {
	if w.opts.Driver == nil {
		return nil
	}
	return w.opts.Driver.Stop()
}

// deviceInfo groups every entity of one tag under a single HA device.
type deviceInfo struct {
	Identifiers  string `json:"identifiers"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Name         string `json:"name"`
}

// sensorConfig is the discovery payload for one attribute.
type sensorConfig struct {
	UniqueID          string     `json:"unique_id"`
	Name              string     `json:"name"`
	StateTopic        string     `json:"state_topic"`
	Device            deviceInfo `json:"device"`
	DeviceClass       string     `json:"device_class"`
	UnitOfMeasurement string     `json:"unit_of_measurement"`
	AvailabilityTopic string     `json:"availability_topic,omitempty"`
}

// Config returns the discovery messages of every device, in device order
// and catalog order within a device.
func (w *Worker) Config() []workers.Message {
	out := make([]workers.Message, 0, len(w.devices)*len(Catalog))
	for _, d := range w.devices {
		out = append(out, w.ConfigDevice(d.Name, d.Address)...)
	}
	return out
}

// ConfigDevice returns one discovery message per catalog attribute for a
// single device. The device block is identical across the messages.
func (w *Worker) ConfigDevice(name, address string) []workers.Message {
	device := deviceInfo{
		Identifiers:  w.format.DiscoveryID(address, name),
		Manufacturer: manufacturer,
		Model:        model,
		Name:         w.format.DiscoveryName(name),
	}

	out := make([]workers.Message, 0, len(Catalog))
	for _, entry := range Catalog {
		payload := sensorConfig{
			UniqueID:          w.format.DiscoveryID(address, name, entry.DeviceClass),
			Name:              w.format.DiscoveryName(name, entry.DeviceClass),
			StateTopic:        w.format.PrefixedTopic(name, entry.DeviceClass),
			Device:            device,
			DeviceClass:       entry.DeviceClass,
			UnitOfMeasurement: entry.Unit,
			AvailabilityTopic: w.opts.AvailabilityTopic,
		}
		out = append(out, workers.NewDiscoveryMessage(
			workers.ComponentSensor,
			w.format.DiscoveryTopic(address, name, entry.DeviceClass),
			payload,
		))
	}
	return out
}

// Poll implements workers.Worker.
func (w *Worker) Poll(ctx context.Context) workers.Cycle {
	w.logInfo("updating devices", "worker", Name, "count", len(w.devices))

	tags := make(map[string]Tag, len(w.devices))
	devices := make([]workers.Device, len(w.devices))
	for i, d := range w.devices {
		devices[i] = d.Device
		tags[d.Name] = d.tag
	}

	poll := func(ctx context.Context, d workers.Device) (workers.Reading, error) {
		values, err := tags[d.Name].Update(ctx)
		if err != nil {
			return nil, err
		}
		return workers.Reading(values), nil
	}

	return workers.RunCycle(ctx, devices, poll, w.updateDeviceState, workers.CycleOptions{
		Worker:      Name,
		Timeout:     w.opts.PollTimeout,
		Concurrency: w.opts.Concurrency,
		Classify:    classifyFault,
		Logger:      w.opts.Logger,
	})
}

// StatusUpdate polls every device and returns the state messages of the
// reachable ones. Faults are logged, never returned.
func (w *Worker) StatusUpdate(ctx context.Context) []workers.Message {
	return w.Poll(ctx).Messages()
}

// updateDeviceState emits one state message per catalog attribute present
// in the reading. Attributes outside the catalog are ignored.
func (w *Worker) updateDeviceState(d workers.Device, r workers.Reading) []workers.Message {
	var out []workers.Message
	for _, entry := range Catalog {
		v, ok := r.Get(entry.Attribute)
		if !ok {
			continue
		}
		out = append(out, workers.NewStateMessage(w.format.Topic(d.Name, entry.DeviceClass), v))
	}
	return out
}

func (w *Worker) logInfo(msg string, args ...any) {
	if w.opts.Logger != nil {
		w.opts.Logger.Info(msg, args...)
	}
}

func (w *Worker) logWarn(msg string, args ...any) {
	if w.opts.Logger != nil {
		w.opts.Logger.Warn(msg, args...)
	}
}

func (w *Worker) logDebug(msg string, args ...any) {
	if w.opts.Logger != nil {
		w.opts.Logger.Debug(msg, args...)
	}
}
