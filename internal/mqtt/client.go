// Package mqtt bridges a simulator to an MQTT broker: events go out on
// <prefix>/events and playback commands come in on <prefix>/control.
package mqtt

import (
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/FNOLSimulator/internal/logging"
)

const opTimeout = 10 * time.Second

// Transport is the broker surface the publisher and control handler use.
type Transport interface {
	Publish(topic string, retained bool, payload []byte) error
	Subscribe(topic string, handler paho.MessageHandler) error
	IsConnected() bool
}

// Client wraps the Paho MQTT client.
type Client struct {
	client paho.Client
	url    string
	logger *slog.Logger
	mu     sync.Mutex

	// subscriptions are restored after a reconnect.
	subMu         sync.Mutex
	subscriptions map[string]paho.MessageHandler
}

// NewClient creates a client for brokerURL but does not connect.
func NewClient(brokerURL, clientID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Client{
		url:           brokerURL,
		logger:        logger,
		subscriptions: make(map[string]paho.MessageHandler),
	}

	opts := paho.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("mqtt connection lost", "url", brokerURL, "error", err)
		})

	c.client = paho.NewClient(opts)
	return c
}

// Connect attempts to connect to the broker without blocking indefinitely.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Connect()
	if !token.WaitTimeout(opTimeout) {
		return &ConnectTimeoutError{}
	}
	return token.Error()
}

// Subscribe subscribes to a topic and remembers it for reconnects.
func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	c.subMu.Lock()
	c.subscriptions[topic] = handler
	c.subMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Subscribe(topic, 1, handler)
	if !token.WaitTimeout(opTimeout) {
		return &TimeoutError{Op: "subscribe", Topic: topic}
	}
	return token.Error()
}

// Publish sends a payload at QoS 0.
func (c *Client) Publish(topic string, retained bool, payload []byte) error {
	token := c.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(opTimeout) {
		return &TimeoutError{Op: "publish", Topic: topic}
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client.Disconnect(1000)
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

func (c *Client) onConnect(pc paho.Client) {
	c.logger.Info("mqtt connected", "url", c.url)

	c.subMu.Lock()
	subs := make(map[string]paho.MessageHandler, len(c.subscriptions))
	for t, h := range c.subscriptions {
		subs[t] = h
	}
	c.subMu.Unlock()

	for topic, handler := range subs {
		token := pc.Subscribe(topic, 1, handler)
		go func(topic string) {
			if token.WaitTimeout(opTimeout) && token.Error() != nil {
				c.logger.Error("mqtt resubscribe failed", "topic", topic, "error", token.Error())
			}
		}(topic)
	}
}

// ConnectTimeoutError indicates connection timed out.
type ConnectTimeoutError struct{}

func (e *ConnectTimeoutError) Error() string {
	return "mqtt connect timeout"
}

// TimeoutError indicates a subscribe or publish timed out.
type TimeoutError struct {
	Op    string
	Topic string
}

func (e *TimeoutError) Error() string {
	return "mqtt " + e.Op + " timeout: " + e.Topic
}
