// Package workers defines the contract shared by every device worker.
//
// A worker owns a set of configured devices of one kind. It produces two
// kinds of outbound messages:
//
//   - discovery messages, one per device attribute, retained, describing a
//     sensor entity to Home Assistant's MQTT discovery
//   - state messages, one per attribute present in a reading, produced on
//     every poll cycle
//
// The package provides the naming scheme (Formatter), the message type,
// the optional-lookup Reading and RunCycle, which polls every device with
// per-device fault isolation and flattens the results.
//
// # Fault isolation
//
// RunCycle never returns an error. Each device ends a cycle either
// reachable (zero or more messages) or unreachable (a *Fault, no messages,
// one warning log entry). A fault, timeout or panic in one device's driver
// call never affects another device.
//
// # Naming
//
//	f := workers.Formatter{Namespace: "btgateway", Worker: "ruuvitag"}
//	f.DiscoveryID("AA:BB:CC:DD:EE:FF", "kitchen", "temperature")
//	// btgateway/AA-BB-CC-DD-EE-FF/ruuvitag_kitchen_temperature
//	f.Topic("kitchen", "temperature")
//	// ruuvitag/kitchen/temperature
package workers
