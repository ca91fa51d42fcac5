// Package mqtt wraps the Eclipse Paho client behind a narrow publish
// interface. It owns option assembly (broker address, stable client id,
// credentials, last-will registration) and translates the library's
// connection callbacks into typed hooks. Reconnect backoff is delegated
// to the library's auto-reconnect policy.
package mqtt

import (
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/ps2mqtt/agent/internal/config"
	"github.com/ps2mqtt/agent/internal/metrics"
)

const (
	// connectTimeout bounds the initial connection attempt. Later drops
	// are handled by paho's auto-reconnect and never surface here.
	connectTimeout = 30 * time.Second

	// publishTimeout bounds each publish acknowledgement wait.
	publishTimeout = 5 * time.Second

	// disconnectQuiesce is the grace given to in-flight messages on
	// clean disconnect, in milliseconds.
	disconnectQuiesce = 250
)

// Publisher is the minimal interface the scheduler uses to send messages.
// The real client and test fakes both implement it.
type Publisher interface {
	Publish(topic, payload string, retained bool) error
}

// Callbacks are the connection lifecycle hooks delivered by the client.
// They are invoked on paho's network goroutines — implementations must
// hand work off to their own execution context rather than block.
type Callbacks struct {
	// OnConnected fires after every successful (re)connection.
	OnConnected func()

	// OnConnectionLost fires when an established connection drops.
	OnConnectionLost func(error)

	// OnHubStatus fires for each message on the hub status topic.
	OnHubStatus func(payload string)
}

// Options configures the parts of the client not covered by config.
type Options struct {
	// StatusTopic is the topic the last-will message is registered on.
	StatusTopic string

	// WillPayload is published (retained) by the broker if the agent
	// disconnects uncleanly.
	WillPayload string

	Callbacks Callbacks
}

// Client manages the persistent broker connection.
type Client struct {
	c      paho.Client
	cfg    *config.Config
	logger *zap.Logger
}

// New creates a broker client for the given configuration. The client id is
// derived from the host name so reconnects resume the same broker session.
func New(cfg *config.Config, opts Options, logger *zap.Logger) *Client {
	hostname, _ := os.Hostname()

	po := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTServer, cfg.MQTTPort)).
		SetClientID(metrics.Slug("ps2mqtt " + hostname)).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetWill(opts.StatusTopic, opts.WillPayload, 0, true)

	if cfg.MQTTUsername != "" {
		po.SetUsername(cfg.MQTTUsername)
		po.SetPassword(cfg.MQTTPassword)
	}

	cb := opts.Callbacks
	po.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("Broker connection lost", zap.Error(err))
		if cb.OnConnectionLost != nil {
			cb.OnConnectionLost(err)
		}
	})
	po.SetOnConnectHandler(func(c paho.Client) {
		logger.Info("Connected to broker",
			zap.String("server", cfg.MQTTServer),
			zap.Int("port", cfg.MQTTPort))

		// (Re)establish the hub status subscription on every connect;
		// subscriptions do not survive a new broker session.
		if cfg.HAStatusTopic != "" && cb.OnHubStatus != nil {
			token := c.Subscribe(cfg.HAStatusTopic, 0, func(_ paho.Client, msg paho.Message) {
				cb.OnHubStatus(string(msg.Payload()))
			})
			if !token.WaitTimeout(publishTimeout) {
				logger.Error("Hub status subscription timed out",
					zap.String("topic", cfg.HAStatusTopic))
			} else if token.Error() != nil {
				logger.Error("Hub status subscription failed",
					zap.String("topic", cfg.HAStatusTopic),
					zap.Error(token.Error()))
			}
		}

		if cb.OnConnected != nil {
			cb.OnConnected()
		}
	})

	return &Client{
		c:      paho.NewClient(po),
		cfg:    cfg,
		logger: logger,
	}
}

// Connect establishes the initial broker connection. A failure here is
// fatal to startup; once connected, drops are recovered automatically.
func (c *Client) Connect() error {
	token := c.c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("connecting to %s:%d: timeout after %v",
			c.cfg.MQTTServer, c.cfg.MQTTPort, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to %s:%d: %w", c.cfg.MQTTServer, c.cfg.MQTTPort, err)
	}
	return nil
}

// Publish sends a message at QoS 0 and waits for the send to complete.
func (c *Client) Publish(topic, payload string, retained bool) error {
	token := c.c.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout after %v", topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Disconnect closes the broker connection cleanly, allowing in-flight
// messages a short quiesce.
func (c *Client) Disconnect() {
	c.c.Disconnect(disconnectQuiesce)
}
