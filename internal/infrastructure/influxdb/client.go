package influxdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	influxhttp "github.com/influxdata/influxdb-client-go/v2/api/http"

	"github.com/nerrad567/venue-core/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds

	// maxWriteRetries bounds how often a failed invocation batch is resent
	// before it is dropped.
	maxWriteRetries = 3

	// retryBufferLimit caps the points held for retry. Telemetry is lossy
	// under a long outage rather than growing without bound.
	retryBufferLimit = 10000

	applicationName = "venuecore"
)

// WriteError describes a failed batch of telemetry points.
type WriteError struct {
	// Measurements are the measurements present in the failed batch. Empty
	// when the batch text is not available.
	Measurements []string
	// Status is the HTTP status InfluxDB answered with, 0 on transport errors.
	Status int
	// Attempt is the retry attempt that failed, starting at 0.
	Attempt uint
	// Dropped is true when the batch will not be retried.
	Dropped bool
	Err     error
}

func (e *WriteError) Error() string {
	verb := "retrying"
	if e.Dropped {
		verb = "dropped"
	}
	what := "batch"
	if len(e.Measurements) > 0 {
		what = strings.Join(e.Measurements, ",")
	}
	return fmt.Sprintf("influxdb: writing %s (%s after attempt %d): %v", what, verb, e.Attempt, e.Err)
}

func (e *WriteError) Unwrap() error { return ErrWriteFailed }

// Option configures Connect.
type Option func(*influxdb2.Options)

// WithDefaultTags adds tags to every point, typically the service name and
// environment so several deployments can share a bucket.
func WithDefaultTags(tags map[string]string) Option {
	return func(o *influxdb2.Options) {
		for k, v := range tags {
			if v != "" {
				o.AddDefaultTag(k, v)
			}
		}
	}
}

// Client writes function invocation telemetry to InfluxDB v2.
//
// Points are batched by the non-blocking write API. Batches failing with a
// transport error, 429 or a server error are retried a bounded number of
// times and then dropped; other rejections are dropped at once. Every
// failure is reported to the error callback as a *WriteError.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	connected bool
	mu        sync.RWMutex
	onError   func(err error)

	dropped atomic.Uint64
}

// Connect creates the client, verifies the server with a ping and sets up
// the batched write API.
//
// Parameters:
//   - cfg: InfluxDB configuration
//   - opts: optional client settings such as WithDefaultTags
//
// Returns:
//   - *Client: connected client
//   - error: ErrDisabled when disabled, ErrConnectionFailed when the ping fails
func Connect(cfg config.InfluxDBConfig, opts ...Option) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	// #nosec G115 -- values validated above to be positive
	options := influxdb2.DefaultOptions().
		SetApplicationName(applicationName).
		SetPrecision(time.Millisecond).
		SetBatchSize(uint(batchSize)).
		SetFlushInterval(uint(time.Duration(flushInterval) * time.Second / time.Millisecond)).
		SetMaxRetries(maxWriteRetries).
		SetRetryBufferLimit(retryBufferLimit)
	for _, opt := range opts {
		opt(options)
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, options)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	c := &Client{
		client:    client,
		writeAPI:  client.WriteAPI(cfg.Org, cfg.Bucket),
		connected: true,
	}
	c.writeAPI.SetWriteFailedCallback(c.handleWriteFailure)
	go c.handleWriteErrors(c.writeAPI.Errors())
	return c, nil
}

// handleWriteFailure is called by the write API for batches it would
// retry. It reports the failure and decides whether the retry happens.
func (c *Client) handleWriteFailure(batch string, failure influxhttp.Error, attempt uint) bool {
	retry := retryable(failure.StatusCode) && attempt < maxWriteRetries
	if !retry {
		c.dropped.Add(1)
	}

	cause := failure.Err
	if cause == nil {
		cause = fmt.Errorf("status %d: %s", failure.StatusCode, failure.Message)
	}
	c.report(&WriteError{
		Measurements: batchMeasurements(batch),
		Status:       failure.StatusCode,
		Attempt:      attempt,
		Dropped:      !retry,
		Err:          cause,
	})
	return retry
}

// handleWriteErrors drains the write API error channel until Close. Only
// rejected batches are reported here; retryable ones already went through
// handleWriteFailure.
func (c *Client) handleWriteErrors(errCh <-chan error) {
	for err := range errCh {
		status := 0
		var failure *influxhttp.Error
		if errors.As(err, &failure) {
			status = failure.StatusCode
		}
		if retryable(status) {
			continue
		}
		c.dropped.Add(1)
		c.report(&WriteError{Status: status, Dropped: true, Err: err})
	}
}

func (c *Client) report(err *WriteError) {
	c.mu.RLock()
	callback := c.onError
	c.mu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// retryable reports whether a write answered with status may succeed later.
func retryable(status int) bool {
	switch {
	case status == 0, status == http.StatusTooManyRequests:
		return true
	case status >= 400 && status < 500:
		return false
	default:
		return true
	}
}

// batchMeasurements returns the distinct measurements of a line protocol
// batch in order of first appearance.
func batchMeasurements(batch string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(batch, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		end := strings.IndexAny(line, ", ")
		if end < 0 {
			end = len(line)
		}
		m := line[:end]
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// Close flushes pending points and shuts the client down.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// HealthCheck pings the server.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetOnError sets the callback receiving every *WriteError.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Dropped returns the number of batches discarded after failed writes.
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

// Flush blocks until buffered points are sent. No-op after Close.
func (c *Client) Flush() {
	if c.writeAPI == nil || !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}
