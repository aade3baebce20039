package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by venuecore.
const (
	MeasurementInvocations     = "function_invocations"
	MeasurementResourceChanges = "resource_changes"
)

// Invocation describes one completed function request.
type Invocation struct {
	Function string
	Method   string
	AuthType string
	Flavor   string
	Status   int
	Duration time.Duration
	At       time.Time
}

// WriteInvocation records one function request.
//
// Tags are low-cardinality (function, method, auth type, flavor); the
// status code and latency are fields. The write is non-blocking.
//
// Parameters:
//   - inv: the completed invocation; a zero At means now
//
// Example:
//
//	client.WriteInvocation(influxdb.Invocation{
//	    Function: "banners", Method: "GET", AuthType: "user",
//	    Flavor: "api", Status: 200, Duration: 12 * time.Millisecond,
//	})
func (c *Client) WriteInvocation(inv Invocation) {
	if !c.IsConnected() {
		return
	}
	at := inv.At
	if at.IsZero() {
		at = time.Now()
	}

	point := write.NewPoint(
		MeasurementInvocations,
		map[string]string{
			"function":  inv.Function,
			"method":    inv.Method,
			"auth_type": inv.AuthType,
			"flavor":    inv.Flavor,
		},
		map[string]interface{}{
			"status":      int64(inv.Status),
			"duration_ms": float64(inv.Duration.Microseconds()) / 1000,
			"error":       inv.Status >= 500,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WriteResourceChange counts a create, update or delete on a resource.
func (c *Client) WriteResourceChange(resource, action string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		MeasurementResourceChanges,
		map[string]string{
			"resource": resource,
			"action":   action,
		},
		map[string]interface{}{
			"count": int64(1),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
