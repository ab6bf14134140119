// Package api implements the read-mostly HTTP status API of the gateway.
//
// Endpoints:
//   - GET  /api/v1/health: current health message (503 while stopping)
//   - GET  /api/v1/workers: scheduling status and last cycle of each worker
//   - GET  /api/v1/devices: configured devices with their last poll outcome
//   - GET  /api/v1/devices/{name}/history: stored readings, newest first
//   - POST /api/v1/update: request an immediate cycle of every worker
//   - GET  /metrics: Prometheus exposition, when metrics are enabled
//
// The API never talks to Bluetooth directly. Everything it reports comes from
// the gateway manager, the health reporter and the device store, so it keeps
// serving while the MQTT broker or the adapter is unavailable.
package api
