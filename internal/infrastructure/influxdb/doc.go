// Package influxdb provides the optional payment metrics sink.
//
// When enabled, every normalized payment record flowing through the event
// stream is mirrored into InfluxDB as a measurement point, giving operators
// revenue and failure-rate dashboards without touching the SQLite history.
//
// Writes are non-blocking and batched; async write failures surface through
// the SetOnError callback. The sink is strictly optional — a disabled or
// unreachable InfluxDB never affects command dispatch or the event stream.
package influxdb
