package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

type MQTTOptions struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

type MQTTPublisher struct {
	client mqtt.Client
	qos    byte
}

func NewMQTTPublisher(opts MQTTOptions) (*MQTTPublisher, error) {
	broker := strings.TrimSpace(opts.Broker)
	if broker == "" {
		return nil, errors.New("mqtt broker is empty")
	}
	if opts.QoS > 2 {
		return nil, fmt.Errorf("invalid mqtt qos %d", opts.QoS)
	}
	clientID := strings.TrimSpace(opts.ClientID)
	if clientID == "" {
		clientID = "ispindel-" + uuid.NewString()[:8]
	}

	co := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetMaxReconnectInterval(30 * time.Second)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}

	client := mqtt.NewClient(co)
	// With ConnectRetry the token only completes once connected; publishes
	// issued before that are queued by the client.
	client.Connect()
	return &MQTTPublisher{client: client, qos: opts.QoS}, nil
}

func (p *MQTTPublisher) Publish(ctx context.Context, topic string, body []byte) error {
	tok := p.client.Publish(topic, p.qos, false, body)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tok.Done():
		return tok.Error()
	}
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
