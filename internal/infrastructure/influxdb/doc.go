// Package influxdb exports sensor readings to InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and a health check. The gateway
// writes one point per reachable device per poll cycle; MQTT remains the
// primary output and InfluxDB is optional.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "home",
//	    Bucket:  "sensors",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteReading("ruuvitag", "kitchen", "C4:7C:8D:6A:1B:2C", reading, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Write errors arrive asynchronously through the SetOnError callback.
// Connection and health check errors are returned directly.
package influxdb
