package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/btgateway/internal/device"
	"github.com/nerrad567/btgateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/btgateway/internal/workers"
)

// Logger is the logging interface used by the gateway.
// Satisfied by *logging.Logger and *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Bus is the MQTT surface the manager needs. Implemented by *mqtt.Client.
type Bus interface {
	// Publish sends a message to a topic with the specified QoS and retention.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// Unsubscribe drops the handler registered for a topic.
	Unsubscribe(topic string) error

	// IsConnected returns true if the bus is connected.
	IsConnected() bool
}

// ReadingWriter receives every successful reading. Implemented by
// *influxdb.Client.
type ReadingWriter interface {
	WriteReading(worker, device, mac string, reading map[string]any, ts time.Time)
}

// Options configures a Manager.
type Options struct {
	// Workers to schedule. Workers that implement workers.Lifecycle are
	// started and stopped with the manager.
	Workers []workers.Worker

	// Bus publishes messages and delivers the force-update command. Required.
	Bus Bus

	// QoS is used for every publish and subscription.
	QoS byte

	// TopicPrefix is the global prefix for state, health and command topics.
	TopicPrefix string

	// Discovery enables discovery publishing under DiscoveryPrefix.
	Discovery       bool
	DiscoveryPrefix string

	// Store records device status and reading history. Optional.
	Store device.Repository

	// Readings receives every successful reading. Optional.
	Readings ReadingWriter

	// Metrics records cycle and publish metrics. Optional.
	Metrics *Metrics

	// Logger is optional.
	Logger Logger
}

// runner schedules one worker.
type runner struct {
	worker  workers.Worker
	trigger chan struct{}
	running atomic.Bool

	mu   sync.RWMutex
	last *workers.Cycle
}

func (r *runner) setLast(c workers.Cycle) {
	r.mu.Lock()
	r.last = &c
	r.mu.Unlock()
}

func (r *runner) getLast() *workers.Cycle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Manager owns the workers: it publishes their discovery messages, runs
// their poll cycles on schedule and publishes the resulting state.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
//   - At most one cycle per worker runs at a time; a tick or force update
//     that arrives while a cycle is running is skipped.
type Manager struct {
	opts    Options
	topics  mqtt.Topics
	runners []*runner

	started  atomic.Bool
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	// stopMu orders wg.Add from outside callbacks against Stop's wg.Wait.
	stopMu   sync.Mutex
	stopping bool
}

// New creates a manager. Call Start to begin polling.
func New(opts Options) (*Manager, error) {
	if opts.Bus == nil {
		return nil, ErrNoBus
	}

	m := &Manager{
		opts:   opts,
		topics: mqtt.Topics{Prefix: opts.TopicPrefix},
		done:   make(chan struct{}),
	}
	for _, w := range opts.Workers {
		m.runners = append(m.runners, &runner{
			worker:  w,
			trigger: make(chan struct{}, 1),
		})
	}

	return m, nil
}

// Start starts the workers' drivers, publishes discovery, subscribes to the
// force-update topic and schedules every worker. The first cycle of each
// worker runs immediately.
//
// A driver that fails to start is logged; its worker is still scheduled and
// its devices report faults until the driver recovers.
//
// Returns:
//   - error: ErrAlreadyStarted on a second call
func (m *Manager) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	m.logInfo("starting gateway", "workers", len(m.runners))

	for _, r := range m.runners {
		if lc, ok := r.worker.(workers.Lifecycle); ok {
			if err := lc.Start(ctx); err != nil {
				m.logError("worker driver failed to start", "worker", r.worker.Name(), "error", err)
			}
		}
	}

	if err := m.PublishDiscovery(); err != nil {
		m.logWarn("discovery incomplete", "error", err)
	}

	topic := m.topics.UpdateAll()
	if err := m.opts.Bus.Subscribe(topic, m.opts.QoS, m.handleUpdateAll); err != nil {
		m.logWarn("subscribing to force update topic failed", "topic", topic, "error", err)
	}

	for _, r := range m.runners {
		m.wg.Add(1)
		go m.schedule(ctx, r)
	}

	return nil
}

// Stop stops scheduling, drops the force-update subscription, waits for
// running cycles to finish and stops the workers' drivers. Safe to call
// multiple times.
func (m *Manager) Stop() error {
	var errs []error
	m.stopOnce.Do(func() {
		m.stopMu.Lock()
		m.stopping = true
		close(m.done)
		m.stopMu.Unlock()

		if m.started.Load() {
			topic := m.topics.UpdateAll()
			// A disconnected bus has nothing to tell the broker
			if err := m.opts.Bus.Unsubscribe(topic); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
				errs = append(errs, fmt.Errorf("unsubscribing %s: %w", topic, err))
			}
		}

		m.wg.Wait()

		for _, r := range m.runners {
			if lc, ok := r.worker.(workers.Lifecycle); ok {
				if err := lc.Stop(); err != nil {
					errs = append(errs, fmt.Errorf("stopping %s: %w", r.worker.Name(), err))
				}
			}
		}
		m.logInfo("gateway stopped")
	})
	return errors.Join(errs...)
}

// HandleConnect republishes discovery after a (re)connect so a broker that
// lost its retained messages learns the devices again. Wire it to the MQTT
// client's on-connect callback.
func (m *Manager) HandleConnect() {
	if !m.started.Load() {
		return
	}

	m.stopMu.Lock()
	defer m.stopMu.Unlock()
	if m.stopping {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.PublishDiscovery(); err != nil {
			m.logWarn("discovery incomplete after reconnect", "error", err)
		}
	}()
}

// PublishDiscovery publishes every worker's discovery messages under the
// discovery prefix. It is a no-op when discovery is disabled.
//
// Returns:
//   - error: joined publish errors; every message is attempted
func (m *Manager) PublishDiscovery() error {
	if !m.opts.Discovery {
		return nil
	}

	var errs []error
	count := 0
	for _, r := range m.runners {
		name := r.worker.Name()
		for _, msg := range r.worker.Config() {
			topic := m.topics.Discovery(m.opts.DiscoveryPrefix, msg.Topic)
			if err := m.publish(name, topic, msg); err != nil {
				errs = append(errs, err)
				continue
			}
			count++
		}
	}

	m.logInfo("discovery published", "messages", count, "failed", len(errs))
	return errors.Join(errs...)
}

// UpdateAll requests an immediate cycle of every worker. Workers with a
// cycle already running or already requested are left alone.
func (m *Manager) UpdateAll() {
	for _, r := range m.runners {
		select {
		case r.trigger <- struct{}{}:
		default:
		}
	}
}

// handleUpdateAll is the MQTT handler for the force-update topic.
func (m *Manager) handleUpdateAll(topic string, _ []byte) error {
	m.logInfo("force update requested", "topic", topic)
	m.UpdateAll()
	return nil
}

// defaultUpdateInterval is used for a worker that reports no interval.
const defaultUpdateInterval = 60 * time.Second

// updateInterval returns the worker's cycle period.
func updateInterval(w workers.Worker) time.Duration {
	if d := w.UpdateInterval(); d > 0 {
		return d
	}
	return defaultUpdateInterval
}

// schedule runs a worker's cycles until the manager stops.
func (m *Manager) schedule(ctx context.Context, r *runner) {
	defer m.wg.Done()

	interval := updateInterval(r.worker)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logDebug("worker scheduled", "worker", r.worker.Name(), "interval", interval.String())
	m.tryCycle(ctx, r)

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			m.tryCycle(ctx, r)
		case <-r.trigger:
			m.tryCycle(ctx, r)
		}
	}
}

// tryCycle starts a cycle in the background unless one is running.
func (m *Manager) tryCycle(ctx context.Context, r *runner) {
	if !r.running.CompareAndSwap(false, true) {
		m.logWarn("previous cycle still running, skipping", "worker", r.worker.Name())
		m.opts.Metrics.ObserveSkip(r.worker.Name())
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer r.running.Store(false)
		m.runCycle(ctx, r)
	}()
}

// runCycle polls a worker once and publishes and records the outcome.
func (m *Manager) runCycle(ctx context.Context, r *runner) {
	name := r.worker.Name()
	cycle := r.worker.Poll(ctx)

	published, failed := 0, 0
	for _, msg := range cycle.Messages() {
		if err := m.publish(name, m.topics.State(msg.Topic), msg); err != nil {
			failed++
			continue
		}
		published++
	}

	m.opts.Metrics.ObserveCycle(cycle)
	m.record(ctx, cycle)
	r.setLast(cycle)

	m.logInfo("cycle published",
		"worker", name,
		"cycle_id", cycle.ID,
		"devices", len(cycle.Results),
		"unreachable", len(cycle.Faults()),
		"published", published,
		"failed", failed,
		"duration_ms", cycle.Duration.Milliseconds(),
	)
}

// record hands a cycle to the optional status store and reading writer.
func (m *Manager) record(ctx context.Context, cycle workers.Cycle) {
	if m.opts.Store != nil {
		if err := device.RecordCycle(ctx, m.opts.Store, cycle); err != nil {
			m.logWarn("recording device status failed", "worker", cycle.Worker, "cycle_id", cycle.ID, "error", err)
		}
	}

	if m.opts.Readings != nil {
		for _, res := range cycle.Results {
			if !res.Reachable() || len(res.Reading) == 0 {
				continue
			}
			m.opts.Readings.WriteReading(cycle.Worker, res.Device.Name, res.Device.Address, res.Reading, cycle.Started.Add(res.Duration))
		}
	}
}

// publish encodes and sends one message.
func (m *Manager) publish(worker, topic string, msg workers.Message) error {
	payload, err := msg.Bytes()
	if err == nil {
		err = m.opts.Bus.Publish(topic, payload, m.opts.QoS, msg.Retain)
	}
	m.opts.Metrics.ObservePublish(worker, msg.Kind, err)
	if err != nil {
		m.logWarn("publish failed", "worker", worker, "topic", topic, "kind", msg.Kind.String(), "error", err)
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

// WorkerStatus summarises one scheduled worker.
type WorkerStatus struct {
	Name            string        `json:"name"`
	IntervalSeconds float64       `json:"update_interval_seconds"`
	Devices         int           `json:"devices"`
	Running         bool          `json:"running"`
	LastCycle       *CycleSummary `json:"last_cycle,omitempty"`
}

// CycleSummary describes a completed cycle.
type CycleSummary struct {
	ID          string    `json:"id"`
	Started     time.Time `json:"started"`
	DurationMS  int64     `json:"duration_ms"`
	Unreachable int       `json:"unreachable"`
	Messages    int       `json:"messages"`
}

// Status returns a snapshot of every worker in scheduling order.
func (m *Manager) Status() []WorkerStatus {
	out := make([]WorkerStatus, 0, len(m.runners))
	for _, r := range m.runners {
		s := WorkerStatus{
			Name:            r.worker.Name(),
			IntervalSeconds: updateInterval(r.worker).Seconds(),
			Devices:         len(r.worker.Devices()),
			Running:         r.running.Load(),
		}
		if c := r.getLast(); c != nil {
			s.LastCycle = &CycleSummary{
				ID:          c.ID,
				Started:     c.Started,
				DurationMS:  c.Duration.Milliseconds(),
				Unreachable: len(c.Faults()),
				Messages:    len(c.Messages()),
			}
		}
		out = append(out, s)
	}
	return out
}

// ConfiguredDevice is a device bound to a worker.
type ConfiguredDevice struct {
	Worker  string `json:"worker"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Devices returns every worker's devices in scheduling and configuration
// order.
func (m *Manager) Devices() []ConfiguredDevice {
	var out []ConfiguredDevice
	for _, r := range m.runners {
		for _, d := range r.worker.Devices() {
			out = append(out, ConfiguredDevice{Worker: r.worker.Name(), Name: d.Name, Address: d.Address})
		}
	}
	return out
}

// IsConnected reports whether the bus is connected.
func (m *Manager) IsConnected() bool {
	return m.opts.Bus.IsConnected()
}

func (m *Manager) logInfo(msg string, args ...any) {
	if m.opts.Logger != nil {
		m.opts.Logger.Info(msg, args...)
	}
}

func (m *Manager) logWarn(msg string, args ...any) {
	if m.opts.Logger != nil {
		m.opts.Logger.Warn(msg, args...)
	}
}

func (m *Manager) logError(msg string, args ...any) {
	if m.opts.Logger != nil {
		m.opts.Logger.Error(msg, args...)
	}
}

func (m *Manager) logDebug(msg string, args ...any) {
	if m.opts.Logger != nil {
		m.opts.Logger.Debug(msg, args...)
	}
}
