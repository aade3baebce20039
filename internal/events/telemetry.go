package events

import "context"

// changeWriter is the part of *influxdb.Client used here.
type changeWriter interface {
	WriteResourceChange(resource, action string)
}

// TelemetryPublisher counts events as InfluxDB points.
type TelemetryPublisher struct {
	writer changeWriter
}

// NewTelemetryPublisher wraps an InfluxDB client.
func NewTelemetryPublisher(w changeWriter) *TelemetryPublisher {
	return &TelemetryPublisher{writer: w}
}

// Publish implements Publisher. Writes are asynchronous and never fail here.
func (p *TelemetryPublisher) Publish(_ context.Context, e Event) error {
	p.writer.WriteResourceChange(e.Resource, string(e.Action))
	return nil
}
