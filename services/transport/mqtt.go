package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"accel-dashboard/utils"
)

// MQTTSubscriber delivers every message published on Topic. Reconnection
// is handled by the paho client (auto-reconnect + connect retry).
type MQTTSubscriber struct {
	Broker   string // tcp://host:1883 or ssl://host:8883
	Topic    string
	Username string
	Password string
	QoS      byte
	ClientID string // generated when empty
}

func (s *MQTTSubscriber) Subscribe(ctx context.Context, h Handler) (Subscription, error) {
	if s.Broker == "" || s.Topic == "" {
		return nil, &Error{Op: "subscribe", Err: errors.New("mqtt broker and topic are required")}
	}
	if h == nil {
		return nil, &Error{Op: "subscribe", Err: errors.New("nil handler")}
	}

	log := utils.L().With("mqtt")
	clientID := s.ClientID
	if clientID == "" {
		clientID = "accel-dashboard-" + uuid.NewString()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.Broker)
	opts.SetClientID(clientID)
	if s.Username != "" {
		opts.SetUsername(s.Username)
		opts.SetPassword(s.Password)
	}
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	// Handlers run one at a time in arrival order.
	opts.SetOrderMatters(true)

	onMessage := func(_ mqtt.Client, msg mqtt.Message) {
		h(msg.Payload())
	}
	opts.OnConnect = func(client mqtt.Client) {
		log.Info("connected to %s", s.Broker)
		token := client.Subscribe(s.Topic, s.QoS, onMessage)
		if !token.WaitTimeout(5 * time.Second) {
			log.Warn("subscribe timeout for %s", s.Topic)
			return
		}
		if err := token.Error(); err != nil {
			log.Warn("%v", &Error{Op: "subscribe", Err: err})
			return
		}
		log.Info("subscribed to %s (qos=%d)", s.Topic, s.QoS)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn("connection lost: %v (will auto-reconnect)", err)
	}
	opts.OnReconnecting = func(mqtt.Client, *mqtt.ClientOptions) {
		log.Info("reconnecting to %s", s.Broker)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	// With connect retry enabled the token only completes once connected;
	// a slow broker is not an error, the client keeps retrying.
	if token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, &Error{Op: "dial", Err: fmt.Errorf("mqtt connect %s: %w", s.Broker, token.Error())}
	}

	sub := &mqttSubscription{client: client}
	context.AfterFunc(ctx, func() { sub.Close() })
	return sub, nil
}

type mqttSubscription struct {
	client mqtt.Client
	once   sync.Once
}

func (m *mqttSubscription) Close() error {
	m.once.Do(func() { m.client.Disconnect(250) })
	return nil
}
