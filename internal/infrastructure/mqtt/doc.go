// Package mqtt provides MQTT client connectivity for the gateway.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Availability reporting through a Last Will and Testament (LWT)
//   - Connection health monitoring
//
// # Architecture
//
// The gateway is a one-way bridge: devices are polled and every reading is
// published as plain values on per-attribute topics. Home Assistant learns
// about the entities from retained discovery messages and marks them
// unavailable when the availability topic turns "offline".
//
//	RuuviTags → BLE scanner → workers → MQTT broker → Home Assistant
//
// The only inbound topic is update_all, which forces an immediate poll.
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) when the broker is not on localhost
//   - Credentials are validated against broker ACL
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.SetOnConnect(func() { manager.PublishDiscovery() })
//
//	client.Publish("ruuvitag/kitchen/temperature", []byte("21.5"), 1, false)
package mqtt
