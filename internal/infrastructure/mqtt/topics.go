package mqtt

import "fmt"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "venuecore"

// Topics builds venuecore MQTT topics under a configurable prefix.
//
//	topics := mqtt.Topics{Prefix: "venuecore"}
//	topics.ResourceEvent("banners", "created")
//	// Returns: "venuecore/resource/banners/created"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: venuecore/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}

// ResourceEvent returns the topic for a change to a function resource.
//
// Example: venuecore/resource/points_of_sale/updated
func (t Topics) ResourceEvent(resource, action string) string {
	return fmt.Sprintf("%s/resource/%s/%s", t.prefix(), resource, action)
}

// AllResourceEvents returns the wildcard matching every resource event.
//
// Example: venuecore/resource/+/+
func (t Topics) AllResourceEvents() string {
	return fmt.Sprintf("%s/resource/+/+", t.prefix())
}
