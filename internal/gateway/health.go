package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// HealthStatus represents the operational status of the gateway.
type HealthStatus string

const (
	// HealthHealthy indicates the gateway is connected and every device
	// answered its last poll.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bus is disconnected or devices are
	// unreachable.
	HealthDegraded HealthStatus = "degraded"

	// HealthStopping indicates the gateway is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// defaultHealthInterval is used when HealthReporterConfig.Interval is zero.
const defaultHealthInterval = 30 * time.Second

// HealthMessage is the retained health payload.
// Topic: [<prefix>/]<gateway id>/health
type HealthMessage struct {
	Gateway       string       `json:"gateway"`
	Status        HealthStatus `json:"status"`
	Reason        string       `json:"reason,omitempty"`
	Version       string       `json:"version"`
	Timestamp     time.Time    `json:"timestamp"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Connected     bool         `json:"connected"`
	Workers       int          `json:"workers"`
	Devices       int          `json:"devices"`
	Unreachable   int          `json:"unreachable"`
}

// StatusSource provides the worker snapshot health is derived from.
// Implemented by *Manager.
type StatusSource interface {
	Status() []WorkerStatus
	IsConnected() bool
}

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// GatewayID names the gateway in the payload.
	GatewayID string

	// Version is the gateway software version.
	Version string

	// Topic is the full health topic.
	Topic string

	// QoS for health publishes.
	QoS byte

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher sends the health message. Optional; without it the
	// reporter only serves Current.
	Publisher HealthPublisher

	// Source provides worker status. Required.
	Source StatusSource

	// Logger is optional.
	Logger Logger
}

// HealthReporter publishes gateway health periodically.
type HealthReporter struct {
	cfg       HealthReporterConfig
	startTime time.Time
	now       func() time.Time

	stopping bool
	mu       sync.RWMutex

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHealthReporter creates a new health reporter.
//
// Parameters:
//   - cfg: Configuration for the health reporter
//
// Returns:
//   - *HealthReporter: Ready to start (call Start to begin reporting)
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultHealthInterval
	}

	return &HealthReporter{
		cfg:       cfg,
		startTime: time.Now(),
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting.
// Call Stop to shut down.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop stops reporting and publishes a final "stopping" status.
// Safe to call multiple times (uses sync.Once).
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		h.mu.Lock()
		h.stopping = true
		h.mu.Unlock()

		if err := h.PublishNow(); err != nil {
			h.logError("failed to publish stopping health", err)
		}
	})
}

// Current returns the health message as it would be published now.
func (h *HealthReporter) Current() HealthMessage {
	msg := HealthMessage{
		Gateway:       h.cfg.GatewayID,
		Version:       h.cfg.Version,
		Timestamp:     h.now().UTC(),
		UptimeSeconds: int64(h.now().Sub(h.startTime).Seconds()),
	}

	if h.cfg.Source != nil {
		msg.Connected = h.cfg.Source.IsConnected()
		for _, w := range h.cfg.Source.Status() {
			msg.Workers++
			msg.Devices += w.Devices
			if w.LastCycle != nil {
				msg.Unreachable += w.LastCycle.Unreachable
			}
		}
	}

	h.mu.RLock()
	stopping := h.stopping
	h.mu.RUnlock()

	switch {
	case stopping:
		msg.Status = HealthStopping
	case !msg.Connected:
		msg.Status, msg.Reason = HealthDegraded, "MQTT disconnected"
	case msg.Unreachable > 0:
		msg.Status, msg.Reason = HealthDegraded, "devices unreachable"
	default:
		msg.Status = HealthHealthy
	}

	return msg
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	if h.cfg.Publisher == nil || h.cfg.Topic == "" {
		return nil
	}

	payload, err := json.Marshal(h.Current())
	if err != nil {
		return err
	}

	return h.cfg.Publisher.Publish(h.cfg.Topic, payload, h.cfg.QoS, true)
}

// reportLoop runs the periodic health reporting.
func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

func (h *HealthReporter) logError(msg string, err error) {
	if h.cfg.Logger != nil {
		h.cfg.Logger.Error(msg, "error", err)
	}
}
