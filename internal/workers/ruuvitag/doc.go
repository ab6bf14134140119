// Package ruuvitag is the RuuviTag worker.
//
// It announces fourteen sensor entities per configured tag through Home
// Assistant MQTT discovery and, on every cycle, publishes one state message
// per attribute the tag's current data format carries. Tags on older
// firmware simply produce fewer messages.
//
// The worker talks to the radio only through the Resolver and Tag
// interfaces; internal/ruuvi provides the Bluetooth implementation.
package ruuvitag
