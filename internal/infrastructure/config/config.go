package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the gateway.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
	Bluetooth BluetoothConfig `yaml:"bluetooth"`
	Workers   WorkersConfig   `yaml:"workers"`
}

// GatewayConfig contains gateway identity and polling settings.
type GatewayConfig struct {
	// ID identifies this gateway instance. It namespaces discovery
	// unique_ids and the health topic.
	ID string `yaml:"id"`

	// UpdateInterval is the default time between poll cycles (seconds).
	UpdateInterval int `yaml:"update_interval"`

	// PollTimeout bounds a single device driver call (seconds).
	PollTimeout int `yaml:"poll_timeout"`

	// PollConcurrency is the number of devices polled in parallel per worker.
	// 1 polls sequentially.
	PollConcurrency int `yaml:"poll_concurrency"`

	// TopicPrefix is prepended to every state topic when set.
	TopicPrefix string `yaml:"topic_prefix"`

	// HealthInterval is how often health status is published (seconds).
	HealthInterval int `yaml:"health_interval"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker            MQTTBrokerConfig    `yaml:"broker"`
	Auth              MQTTAuthConfig      `yaml:"auth"`
	QoS               int                 `yaml:"qos"`
	Reconnect         MQTTReconnectConfig `yaml:"reconnect"`
	AvailabilityTopic string              `yaml:"availability_topic"`
	Discovery         DiscoveryConfig     `yaml:"discovery"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// DiscoveryConfig controls Home Assistant MQTT discovery.
type DiscoveryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Prefix  string `yaml:"prefix"`
}

// String returns a string representation with password masked.
// Use this for logging to prevent credential exposure.
func (m MQTTConfig) String() string {
	password := ""
	if m.Auth.Password != "" {
		password = "[REDACTED]"
	}
	return fmt.Sprintf("MQTTConfig{Host:%q, Port:%d, ClientID:%q, Username:%q, Password:%s, QoS:%d}",
		m.Broker.Host, m.Broker.Port, m.Broker.ClientID, m.Auth.Username, password, m.QoS)
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryLimit is the number of readings kept per device.
	HistoryLimit int `yaml:"history_limit"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the HTTP status server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// BluetoothConfig contains BLE adapter settings for the device drivers.
type BluetoothConfig struct {
	// Adapter is the HCI adapter name (e.g. "hci0"). Empty uses the default adapter.
	Adapter string `yaml:"adapter"`

	// AdvertisementMaxAge is how old a cached advertisement may be before a
	// poll waits for a fresh one (seconds).
	AdvertisementMaxAge int `yaml:"advertisement_max_age"`
}

// WorkersConfig contains per-worker settings.
type WorkersConfig struct {
	Ruuvitag RuuvitagConfig `yaml:"ruuvitag"`
}

// RuuvitagConfig configures the RuuviTag worker.
type RuuvitagConfig struct {
	Enabled bool `yaml:"enabled"`

	// TopicPrefix is the worker's topic segment. Default: "ruuvitag".
	TopicPrefix string `yaml:"topic_prefix"`

	// UpdateInterval overrides gateway.update_interval for this worker (seconds).
	UpdateInterval int `yaml:"update_interval"`

	// Devices maps logical names to MAC addresses, in configuration order.
	Devices DeviceList `yaml:"devices"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: BTGATEWAY_SECTION_KEY
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			ID:              "btgateway",
			UpdateInterval:  60,
			PollTimeout:     10,
			PollConcurrency: 1,
			HealthInterval:  30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "btgateway",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			AvailabilityTopic: "btgateway/availability",
			Discovery: DiscoveryConfig{
				Enabled: true,
				Prefix:  "homeassistant",
			},
		},
		Database: DatabaseConfig{
			Enabled:      true,
			Path:         "./data/btgateway.db",
			WALMode:      true,
			BusyTimeout:  5,
			HistoryLimit: 500,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Bluetooth: BluetoothConfig{
			AdvertisementMaxAge: 30,
		},
		Workers: WorkersConfig{
			Ruuvitag: RuuvitagConfig{
				Enabled:     true,
				TopicPrefix: "ruuvitag",
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BTGATEWAY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BTGATEWAY_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("BTGATEWAY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BTGATEWAY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("BTGATEWAY_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("BTGATEWAY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("BTGATEWAY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Device-level problems (bad MAC, duplicate names) are not reported here:
// the worker skips those devices at setup so one typo does not stop the
// whole gateway.
func (c *Config) Validate() error {
	var errs []string

	if c.Gateway.ID == "" {
		errs = append(errs, "gateway.id is required")
	}
	if c.Gateway.UpdateInterval < 1 {
		errs = append(errs, "gateway.update_interval must be at least 1 second")
	}
	if c.Gateway.PollTimeout < 1 {
		errs = append(errs, "gateway.poll_timeout must be at least 1 second")
	}
	if c.Gateway.PollConcurrency < 1 {
		errs = append(errs, "gateway.poll_concurrency must be at least 1")
	}
	if strings.HasSuffix(c.Gateway.TopicPrefix, "/") {
		errs = append(errs, "gateway.topic_prefix must not end with '/'")
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Discovery.Enabled && c.MQTT.Discovery.Prefix == "" {
		errs = append(errs, "mqtt.discovery.prefix is required when discovery is enabled")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Workers.Ruuvitag.UpdateInterval < 0 {
		errs = append(errs, "workers.ruuvitag.update_interval must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetUpdateInterval returns the gateway default poll interval as a Duration.
func (c *Config) GetUpdateInterval() time.Duration {
	return time.Duration(c.Gateway.UpdateInterval) * time.Second
}

// GetPollTimeout returns the per-device poll timeout as a Duration.
func (c *Config) GetPollTimeout() time.Duration {
	return time.Duration(c.Gateway.PollTimeout) * time.Second
}

// GetHealthInterval returns the health publish interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Gateway.HealthInterval) * time.Second
}

// GetRuuvitagInterval returns the RuuviTag worker interval, falling back
// to the gateway default when no override is set.
func (c *Config) GetRuuvitagInterval() time.Duration {
	if c.Workers.Ruuvitag.UpdateInterval > 0 {
		return time.Duration(c.Workers.Ruuvitag.UpdateInterval) * time.Second
	}
	return c.GetUpdateInterval()
}

// GetAdvertisementMaxAge returns the BLE advertisement cache lifetime.
func (c *Config) GetAdvertisementMaxAge() time.Duration {
	return time.Duration(c.Bluetooth.AdvertisementMaxAge) * time.Second
}
