// Package api implements the HTTP server that hosts the venuecore functions.
//
// This package provides:
//   - One endpoint per function under the base path (/functions/v1/{name}
//     and /functions/v1/{name}/{id...}), each running the function pipeline
//   - Middleware stack (request ID, logging, recovery, Prometheus metrics,
//     per-caller rate limiting, body size limit)
//   - /health aggregating store, MQTT and InfluxDB checks
//   - /metrics in the Prometheus text format
//   - The public object route of disk-backed storage
//   - TLS support for production deployments
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// # Telemetry
//
// Every completed invocation is counted in Prometheus and, when a
// Telemetry writer is configured, written to InfluxDB as a
// function_invocations point.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
