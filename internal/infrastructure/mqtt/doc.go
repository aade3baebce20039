// Package mqtt publishes venuecore events to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Functions publish a small JSON event whenever a resource row is created,
// updated or deleted. Downstream consumers (cache invalidators, signage
// players, analytics) subscribe to the topics they care about.
//
//	venuecore → MQTT Broker → consumers
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topic := client.Topics().ResourceEvent("banners", "created")
//	client.PublishJSON(topic, map[string]any{"id": "b1"})
package mqtt
