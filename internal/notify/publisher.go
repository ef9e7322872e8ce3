package notify

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Publisher delivers notification payloads to a topic. The MQTT client
// hides behind this so handlers are testable without a broker.
type Publisher interface {
	Publish(topic string, payload []byte) error
	Close()
}

// mqttPublisher is the paho-backed Publisher.
type mqttPublisher struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
	logger  *zap.Logger
}

// connectMQTT dials the broker and returns a Publisher over it.
func connectMQTT(brokerURL, clientID string, qos byte, logger *zap.Logger) (Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(10 * time.Second).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Info("connected to mqtt broker", zap.String("broker", brokerURL))
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", zap.Error(err))
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("connect to mqtt broker %s: timeout", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", brokerURL, err)
	}

	return &mqttPublisher{
		client:  client,
		qos:     qos,
		timeout: 5 * time.Second,
		logger:  logger,
	}, nil
}

func (p *mqttPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	return token.Error()
}

func (p *mqttPublisher) Close() {
	p.client.Disconnect(250)
}
