package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/preloadwatch/internal/conf"
	"github.com/tphakala/preloadwatch/internal/errors"
	"github.com/tphakala/preloadwatch/internal/logger"
)

const (
	mqttConnectTimeout    = 30 * time.Second
	mqttPublishTimeout    = 10 * time.Second
	mqttDisconnectQuiesce = 250 // milliseconds
)

// MQTTNotifier publishes each report as a JSON message. It connects on the
// first delivery and relies on paho's auto-reconnect afterwards.
type MQTTNotifier struct {
	mu     sync.Mutex
	client mqtt.Client
	broker string
	topic  string
	retain bool
	log    logger.Logger
}

// NewMQTTNotifier configures a paho client from settings without connecting.
func NewMQTTNotifier(s *conf.MQTTSettings) *MQTTNotifier {
	n := &MQTTNotifier{broker: s.Broker, topic: s.Topic, retain: s.Retain, log: GetLogger()}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.Broker)
	opts.SetClientID(s.ClientID)
	opts.SetUsername(s.Username)
	opts.SetPassword(s.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetOnConnectHandler(n.onConnect)
	opts.SetConnectionLostHandler(n.onConnectionLost)

	n.client = mqtt.NewClient(opts)
	return n
}

func newMQTTNotifierWithClient(client mqtt.Client, topic string, retain bool) *MQTTNotifier {
	return &MQTTNotifier{client: client, topic: topic, retain: retain, log: GetLogger()}
}

func (n *MQTTNotifier) Name() string { return "mqtt" }

func (n *MQTTNotifier) onConnect(mqtt.Client) {
	n.log.Info("connected to MQTT broker", logger.String("broker", n.broker))
}

func (n *MQTTNotifier) onConnectionLost(_ mqtt.Client, err error) {
	n.log.Warn("connection to MQTT broker lost", logger.String("broker", n.broker), logger.Error(err))
}

// Connect connects unless the client is already connected.
func (n *MQTTNotifier) Connect(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.client.IsConnected() {
		return nil
	}
	if err := waitToken(ctx, n.client.Connect(), mqttConnectTimeout); err != nil {
		return errors.New(err).
			Category(errors.CategoryNetwork).
			Context("notifier", "mqtt").
			Context("operation", "connect").
			Build()
	}
	return nil
}

func (n *MQTTNotifier) Notify(ctx context.Context, r Report) error {
	if err := n.Connect(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(NewWebhookPayload(r))
	if err != nil {
		return errors.New(err).Category(errors.CategoryNotification).Build()
	}

	token := n.client.Publish(n.topic, 0, n.retain, payload)
	if err := waitToken(ctx, token, mqttPublishTimeout); err != nil {
		return errors.New(err).
			Category(errors.CategoryNotification).
			Context("notifier", "mqtt").
			Context("topic", n.topic).
			Build()
	}
	return nil
}

// Close disconnects from the broker.
func (n *MQTTNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.client.IsConnected() {
		n.client.Disconnect(mqttDisconnectQuiesce)
	}
	return nil
}

func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.NewStd("mqtt operation timed out")
	}
}
