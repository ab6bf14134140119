// btgateway - Bluetooth sensor to MQTT gateway
//
// This is the main entry point for the gateway. It polls Bluetooth Low Energy
// sensors (RuuviTag environmental tags) on a schedule and publishes their
// readings to an MQTT broker, together with Home Assistant discovery
// messages so the sensors appear without manual configuration.
//
// Workers are compiled in through the plugins package; build tags remove
// workers a deployment does not need.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/btgateway/migrations"

	"github.com/nerrad567/btgateway/internal/api"
	"github.com/nerrad567/btgateway/internal/device"
	"github.com/nerrad567/btgateway/internal/gateway"
	"github.com/nerrad567/btgateway/internal/infrastructure/config"
	"github.com/nerrad567/btgateway/internal/infrastructure/database"
	"github.com/nerrad567/btgateway/internal/infrastructure/influxdb"
	"github.com/nerrad567/btgateway/internal/infrastructure/logging"
	"github.com/nerrad567/btgateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/btgateway/internal/plugins"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configFlag overrides BTGATEWAY_CONFIG and the default path.
var configFlag = flag.String("config", "", "path to the YAML configuration file")

// migrateDownFlag rolls back the latest device store migration and exits.
var migrateDownFlag = flag.Bool("migrate-down", false, "roll back the latest database migration and exit")

func main() {
	flag.Parse()

	// Cancel on Ctrl+C and SIGTERM so every component shuts down in order
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting btgateway",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	if *migrateDownFlag {
		return migrateDown(ctx, cfg, log)
	}

	// Device store (optional)
	var store device.Repository
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = openDatabase(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		store = device.NewSQLiteRepository(db.DB, cfg.Database.HistoryLimit)
	} else {
		log.Info("device store disabled")
	}

	// Time-series export (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	compiled := plugins.Compiled(plugins.Deps{Config: cfg, Logger: log})
	if len(compiled) == 0 {
		log.Warn("no workers enabled")
	}

	metrics := gateway.NewMetrics()
	opts := gateway.Options{
		Workers:         compiled,
		Bus:             mqttClient,
		QoS:             mqttClient.QoS(),
		TopicPrefix:     cfg.Gateway.TopicPrefix,
		Discovery:       cfg.MQTT.Discovery.Enabled,
		DiscoveryPrefix: cfg.MQTT.Discovery.Prefix,
		Store:           store,
		Metrics:         metrics,
		Logger:          log.Component("gateway"),
	}
	// A nil *influxdb.Client must not become a non-nil interface
	if influxClient != nil {
		opts.Readings = influxClient
	}

	manager, err := gateway.New(opts)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("starting gateway: %w", err)
	}
	defer func() {
		log.Info("stopping gateway")
		if stopErr := manager.Stop(); stopErr != nil {
			log.Error("error stopping gateway", "error", stopErr)
		}
	}()
	// Discovery is retained, but a broker that lost its store needs it again
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		manager.HandleConnect()
	})

	topics := mqtt.Topics{Prefix: cfg.Gateway.TopicPrefix}
	health := gateway.NewHealthReporter(gateway.HealthReporterConfig{
		GatewayID: cfg.Gateway.ID,
		Version:   version,
		Topic:     topics.Health(cfg.Gateway.ID),
		QoS:       mqttClient.QoS(),
		Interval:  cfg.GetHealthInterval(),
		Publisher: mqttClient,
		Source:    manager,
		Logger:    log.Component("health"),
	})
	health.Start(ctx)
	defer health.Stop()

	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log.Component("api"),
			Gateway: manager,
			Health:  health,
			Store:   store,
			Metrics: metrics.Handler(),
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"workers", len(compiled),
		"devices", len(manager.Devices()),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// API server, health (publishes "stopping"), gateway, MQTT
	// (publishes offline), InfluxDB, database.

	return nil
}

// getConfigPath returns the configuration file path.
// The -config flag wins, then BTGATEWAY_CONFIG, then the default.
func getConfigPath() string {
	if *configFlag != "" {
		return *configFlag
	}
	if path := os.Getenv("BTGATEWAY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openDatabase opens and migrates the device store database.
func openDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Already failing; migration error is more useful
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	schema, err := db.SchemaVersion(ctx)
	if err != nil {
		db.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("reading schema version: %w", err)
	}
	log.Info("device store ready", "path", db.Path(), "schema_version", schema)
	return db, nil
}

// migrateDown rolls the device store back by one migration without
// applying pending ones first.
func migrateDown(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path is required for -migrate-down")
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Process exits after this

	before, err := db.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}
	after, err := db.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	log.Info("migration rolled back", "path", db.Path(), "from", before, "to", after)
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check (may be nil if disabled)
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
