// Package feed republishes stored readings on the boat-local MQTT bus so
// displays and other onboard consumers get the position without querying the
// remote datastore.
package feed

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/telemetry_agent/internal/gps"
)

// Publisher publishes readings to a single MQTT topic, retained so a late
// subscriber immediately sees the last known position.
type Publisher struct {
	client mqtt.Client
	topic  string
}

// Connect dials the broker and returns a ready publisher.
func Connect(broker, clientID, topic string) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("feed: connect to %s: %w", broker, token.Error())
	}

	return &Publisher{client: client, topic: topic}, nil
}

// Publish sends one reading as JSON, QoS 0 retained.
func (p *Publisher) Publish(r gps.Reading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("feed: marshal reading: %w", err)
	}

	token := p.client.Publish(p.topic, 0, true, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("feed: publish to %s: %w", p.topic, token.Error())
	}
	return nil
}

// Close disconnects from the broker, allowing in-flight work to finish.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
