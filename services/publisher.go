package services

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// Publisher moves a serialized notification request towards the SMS gateway.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close()
}

// MQTTPublisher publishes notification requests to an MQTT broker which the
// SMS gateway subscribes to.
type MQTTPublisher struct {
	client  mqtt.Client
	timeout time.Duration
}

// NewMQTTPublisher connects to the broker and returns a ready publisher
func NewMQTTPublisher(brokerURL, clientID string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetOnConnectHandler(func(mqtt.Client) {
			log.WithField("broker", brokerURL).Info("Connected to MQTT broker")
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost")
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return &MQTTPublisher{client: client, timeout: 5 * time.Second}, nil
}

// Publish sends the payload with QoS 1. It waits at most p.timeout for the
// broker acknowledgement so callers are never held up for long.
func (p *MQTTPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	token := p.client.Publish(topic, 1, false, payload)

	wait := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < wait {
			wait = d
		}
	}
	if !token.WaitTimeout(wait) {
		return fmt.Errorf("publish to %s not acknowledged within %s", topic, wait)
	}
	return token.Error()
}

// Close disconnects from the broker
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

// LogPublisher writes requests to the log. Used when no broker is configured.
type LogPublisher struct{}

// Publish logs the request
func (LogPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	log.WithFields(log.Fields{
		"topic":   topic,
		"payload": string(payload),
	}).Info("SMS request (no broker configured)")
	return nil
}

// Close is a no-op
func (LogPublisher) Close() {}
