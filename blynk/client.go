package blynk

import (
	"context"
	"fmt"
	"time"

	"github.com/apex/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const subscribeQoS byte = 0

// State connection state of a Client
type State int

const (
	// StateDisconnected no transport connection
	StateDisconnected State = iota
	// StateConnecting Connect in progress
	StateConnecting
	// StateConnected connected and subscribed
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// AdapterFactory creates the transport for a client. onLost must be called,
// from any goroutine, when the transport loses its connection.
type AdapterFactory func(cfg *Config, onLost func(err error)) MqttAdapter

// Option configures a Client
type Option func(c *Client)

// WithLogger sets the logger, default is log.Log
func WithLogger(logger log.Interface) Option {
	return func(c *Client) {
		c.log = logger
	}
}

// WithAdapterFactory replaces the paho transport, mostly useful for tests
func WithAdapterFactory(factory AdapterFactory) Option {
	return func(c *Client) {
		c.factory = factory
	}
}

type inboundMessage struct {
	topic   string
	payload []byte
}

// Client Blynk MQTT device client.
//
// A Client is owned by one goroutine: Connect, Disconnect, Run, the publish
// methods and handler registration must not be called concurrently. The
// transport delivers messages on its own goroutines, they are queued and
// handled by Run.
type Client struct {
	config   Config
	log      log.Interface
	factory  AdapterFactory
	client   MqttAdapter
	state    State
	handlers map[string]interface{}
	device   DeviceInfo

	inbound chan inboundMessage
	lost    chan error

	connectTime time.Time
}

// New creates a disconnected client
func New(cfg *Config, options ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		config:   cfg.withDefaults(),
		log:      log.Log,
		factory:  newPahoAdapter,
		handlers: make(map[string]interface{}),
	}
	for _, option := range options {
		option(c)
	}
	c.device = c.config.Device
	c.inbound = make(chan inboundMessage, c.config.InboundBuffer)
	c.lost = make(chan error, 1)
	c.log = c.log.WithField("ClientID", c.config.Mqtt.ClientID)
	c.client = c.factory(&c.config, c.connectionLost)
	c.log.Debug("Client initialized")
	return c, nil
}

// Config returns the effective configuration, defaults applied
func (c *Client) Config() Config {
	return c.config
}

// State returns the current connection state
func (c *Client) State() State {
	return c.state
}

// IsConnected reports whether the client is connected and subscribed
func (c *Client) IsConnected() bool {
	return c.state == StateConnected
}

// ConnectTime time of the last successful Connect
func (c *Client) ConnectTime() time.Time {
	return c.connectTime
}

// DeviceInfo returns the cached device info
func (c *Client) DeviceInfo() DeviceInfo {
	return c.device
}

// Connect connects to the broker and subscribes to the server to device topics.
// On success the connect handler runs and known device info is published.
// On failure the client is left disconnected and the disconnect handler runs.
// ErrNotConnected is returned when a publish during the connect handler or the
// device info update dropped the connection.
func (c *Client) Connect(ctx context.Context) error {
	if c.state == StateConnected {
		c.log.Debug("Already connected")
		return nil
	}
	c.setState(StateConnecting)
	c.drainLost()
	c.log.WithField("Broker", c.config.brokerURL()).Info("Connecting")

	if err := waitToken(ctx, c.client.Connect(), defaultConnectTimeout); err != nil {
		// paho may still complete the handshake after a timeout or cancel
		c.client.Disconnect(disconnectQuiesce)
		return c.connectFailed(fmt.Errorf("%w: %w", ErrConnectionFailed, err))
	}
	for _, topic := range inboundTopics {
		if err := waitToken(ctx, c.client.Subscribe(topic, subscribeQoS, c.enqueue), defaultConnectTimeout); err != nil {
			c.client.Disconnect(disconnectQuiesce)
			return c.connectFailed(fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err))
		}
		c.log.WithField("Topic", topic).Debug("Subscribed")
	}

	c.setState(StateConnected)
	c.connectTime = time.Now()
	c.log.Info("Connected")
	c.fireEvent(EventConnect)

	if !c.device.Empty() && c.IsConnected() {
		if err := c.PublishDeviceInfo(DeviceInfo{}); err != nil {
			c.log.WithError(err).Warn("Could not publish device info")
		}
	}
	if !c.IsConnected() {
		return fmt.Errorf("%w: connection dropped during connect", ErrNotConnected)
	}
	return nil
}

func (c *Client) connectFailed(err error) error {
	c.log.WithError(err).Warn("Could not connect")
	c.setState(StateDisconnected)
	c.fireEvent(EventDisconnect)
	return err
}

// Disconnect closes the connection and runs the disconnect handler.
// Does nothing when not connected.
func (c *Client) Disconnect() {
	if c.state != StateConnected {
		c.log.Debug("Already disconnected")
		return
	}
	c.disconnect()
}

func (c *Client) disconnect() {
	c.client.Disconnect(disconnectQuiesce)
	c.setState(StateDisconnected)
	if dropped := c.drainInbound(); dropped > 0 {
		c.log.WithField("Dropped", dropped).Debug("Dropped pending messages")
	}
	c.log.Info("Disconnected")
	c.fireEvent(EventDisconnect)
}

// Run handles at most one pending event without blocking: a lost connection
// or one received message. Call it frequently from the main loop.
func (c *Client) Run() {
	if c.state != StateConnected {
		return
	}
	select {
	case err := <-c.lost:
		c.log.WithError(err).Warn("Connection lost")
		c.disconnect()
		return
	default:
	}
	select {
	case msg := <-c.inbound:
		c.dispatch(msg.topic, msg.payload)
	default:
	}
}

// enqueue runs on paho goroutines
func (c *Client) enqueue(_ mqtt.Client, msg mqtt.Message) {
	select {
	case c.inbound <- inboundMessage{topic: msg.Topic(), payload: msg.Payload()}:
	default:
		c.log.WithField("Topic", msg.Topic()).Warn("Inbound buffer full, dropping message")
	}
}

// connectionLost runs on paho goroutines
func (c *Client) connectionLost(err error) {
	if err == nil {
		err = ErrNotConnected
	}
	select {
	case c.lost <- err:
	default:
	}
}

func (c *Client) drainLost() {
	select {
	case <-c.lost:
	default:
	}
}

func (c *Client) drainInbound() (n int) {
	for {
		select {
		case <-c.inbound:
			n++
		default:
			return n
		}
	}
}

func (c *Client) setState(s State) {
	c.state = s
	if s == StateConnected {
		connectedGauge.Set(1)
	} else {
		connectedGauge.Set(0)
	}
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
		return ErrTimeout
	}
}
