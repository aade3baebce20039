// Package influxdb records function telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched writes and health monitoring.
//
// # Purpose
//
//   - function_invocations: one point per request (function, method,
//     auth type, flavor; status and latency)
//   - resource_changes: one point per successful create/update/delete
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB,
//	    influxdb.WithDefaultTags(map[string]string{"service": "venuecore"}))
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteInvocation(influxdb.Invocation{Function: "banners", Method: "GET", Status: 200})
//
// # Error Handling
//
// Write operations are non-blocking. Failed batches are delivered to the
// SetOnError callback as *WriteError, carrying the measurements, HTTP status
// and whether the batch was dropped. Connection and health check errors are
// returned directly.
package influxdb
