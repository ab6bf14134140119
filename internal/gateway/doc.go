// Package gateway runs the workers.
//
// The Manager publishes each worker's discovery messages when it starts and
// again on every MQTT reconnect, polls each worker on its own interval and
// publishes the resulting state messages. A force update (the update_all
// topic or the HTTP API) triggers an immediate cycle of every worker.
//
// Topic layout:
//
//	<discovery prefix>/sensor/<node>/<object>/config   discovery, retained
//	[<prefix>/]<worker prefix>/<device>/<class>         state
//	[<prefix>/]update_all                               force update
//	[<prefix>/]<gateway id>/health                      health, retained
//
// Each completed cycle is also handed to the optional device status store,
// the optional InfluxDB writer and the Prometheus metrics.
package gateway
