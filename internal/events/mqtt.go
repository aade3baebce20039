package events

import (
	"context"
	"fmt"

	"github.com/nerrad567/venue-core/internal/infrastructure/mqtt"
)

// jsonPublisher is the part of *mqtt.Client used here.
type jsonPublisher interface {
	PublishJSON(topic string, v any) error
	Topics() mqtt.Topics
}

// MQTTPublisher sends each event to {prefix}/resource/{resource}/{action}.
type MQTTPublisher struct {
	client jsonPublisher
}

// NewMQTTPublisher wraps a connected MQTT client.
func NewMQTTPublisher(client jsonPublisher) *MQTTPublisher {
	return &MQTTPublisher{client: client}
}

// Publish implements Publisher.
func (p *MQTTPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	topic := p.client.Topics().ResourceEvent(e.Resource, string(e.Action))
	if err := p.client.PublishJSON(topic, e); err != nil {
		return fmt.Errorf("publishing %s %s event: %w", e.Resource, e.Action, err)
	}
	return nil
}
