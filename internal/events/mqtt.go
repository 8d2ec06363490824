// Package events publishes mission changes to an MQTT broker.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-dispatch/internal/models"
)

var ErrNotConnected = errors.New("mqtt client is not connected")

const (
	qosAtLeastOnce  = 1
	connectTimeout  = 10 * time.Second
	disconnectQuiet = 250 // ms
)

// MQTTPublisher writes every mission event as JSON to <prefix>/missions/<id>.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
}

// NewMQTTPublisher connects to broker and keeps reconnecting in the background.
func NewMQTTPublisher(broker, clientID, prefix string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost")
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			log.WithField("broker", broker).Info("Connected to MQTT broker")
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("timed out connecting to %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", broker, err)
	}
	return NewPublisher(client, prefix), nil
}

// NewPublisher wraps an already configured client.
func NewPublisher(client mqtt.Client, prefix string) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: prefix}
}

// Topic returns the topic events of a mission are published on.
func (p *MQTTPublisher) Topic(missionID int64) string {
	return p.prefix + "/missions/" + strconv.FormatInt(missionID, 10)
}

// PublishMissionEvent publishes event and waits for the broker ack or ctx.
func (p *MQTTPublisher) PublishMissionEvent(ctx context.Context, event models.MissionEvent) error {
	if !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal mission event: %w", err)
	}

	token := p.client.Publish(p.Topic(event.MissionID), qosAtLeastOnce, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(disconnectQuiet)
}
