package blynk

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errTransport = errors.New("broken pipe")

type mqttTokenMock struct {
	err     error
	timeout bool
}

func (m *mqttTokenMock) Wait() bool {
	return !m.timeout
}
func (m *mqttTokenMock) WaitTimeout(time.Duration) bool {
	return !m.timeout
}
func (m *mqttTokenMock) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !m.timeout {
		close(ch)
	}
	return ch
}
func (m *mqttTokenMock) Error() error {
	return m.err
}

func okToken() mqtt.Token { return &mqttTokenMock{} }
func failedToken(err error) mqtt.Token { return &mqttTokenMock{err: err} }
func timeoutToken() mqtt.Token { return &mqttTokenMock{timeout: true} }

type mqttMessageMock struct {
	topic   string
	payload []byte
}

func (m *mqttMessageMock) Duplicate() bool { return false }
func (m *mqttMessageMock) Qos() byte { return 0 }
func (m *mqttMessageMock) Retained() bool { return false }
func (m *mqttMessageMock) Topic() string { return m.topic }
func (m *mqttMessageMock) MessageID() uint16 { return 0 }
func (m *mqttMessageMock) Payload() []byte { return m.payload }
func (m *mqttMessageMock) Ack() {}

type mqttAdapterMock struct {
	mock.Mock

	mu            sync.Mutex
	subscriptions map[string]mqtt.MessageHandler
	onLost        func(err error)
}

func (m *mqttAdapterMock) Connect() mqtt.Token {
	args := m.Called()
	return args.Get(0).(mqtt.Token)
}
func (m *mqttAdapterMock) Disconnect(quiesce uint) {
	m.Called(quiesce)
}
func (m *mqttAdapterMock) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	args := m.Called(topic, qos, retained, payload)
	return args.Get(0).(mqtt.Token)
}
func (m *mqttAdapterMock) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	m.mu.Lock()
	if m.subscriptions == nil {
		m.subscriptions = make(map[string]mqtt.MessageHandler)
	}
	m.subscriptions[topic] = callback
	m.mu.Unlock()
	args := m.Called(topic, qos, callback)
	return args.Get(0).(mqtt.Token)
}

// deliver simulates the broker sending a message on a subscribed topic
func (m *mqttAdapterMock) deliver(topic string, payload string) {
	m.mu.Lock()
	handler := m.subscriptions[topic]
	m.mu.Unlock()
	if handler == nil {
		panic("not subscribed to " + topic)
	}
	handler(nil, &mqttMessageMock{topic: topic, payload: []byte(payload)})
}

type publishedMessage struct {
	Topic   string
	Payload string
}

// published returns every Publish call in order
func (m *mqttAdapterMock) published() []publishedMessage {
	var result []publishedMessage
	for _, call := range m.Calls {
		if call.Method != "Publish" {
			continue
		}
		result = append(result, publishedMessage{
			Topic:   call.Arguments.String(0),
			Payload: string(call.Arguments.Get(3).([]byte)),
		})
	}
	return result
}

func (m *mqttAdapterMock) subscribedTopics() []string {
	var result []string
	for _, call := range m.Calls {
		if call.Method == "Subscribe" {
			result = append(result, call.Arguments.String(0))
		}
	}
	return result
}

func makeTestConfig() *Config {
	return &Config{
		AuthToken: "test-token",
		Mqtt: MqttConfig{
			Host:     "localhost",
			Port:     1883,
			ClientID: "test-device",
		},
		PublishTimeout: 20,
	}
}

type testEnv struct {
	client  *Client
	adapter *mqttAdapterMock
	logs    *memory.Handler
}

func makeTestClient(t *testing.T, cfg *Config) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = makeTestConfig()
	}
	env := &testEnv{
		adapter: new(mqttAdapterMock),
		logs:    memory.New(),
	}
	logger := &log.Logger{Handler: env.logs, Level: log.DebugLevel}
	client, err := New(cfg,
		WithLogger(logger),
		WithAdapterFactory(func(_ *Config, onLost func(err error)) MqttAdapter {
			env.adapter.onLost = onLost
			return env.adapter
		}),
	)
	require.NoError(t, err)
	env.client = client
	return env
}

// expectHealthy sets up a transport that accepts everything
func (e *testEnv) expectHealthy() {
	e.adapter.On("Connect").Return(okToken())
	e.adapter.On("Subscribe", mock.Anything, mock.Anything, mock.Anything).Return(okToken())
	e.adapter.On("Publish", mock.Anything, mock.Anything, false, mock.Anything).Return(okToken())
	e.adapter.On("Disconnect", mock.Anything).Return()
}

func (e *testEnv) connect(t *testing.T) {
	t.Helper()
	require.NoError(t, e.client.Connect(context.Background()))
	require.True(t, e.client.IsConnected())
}

// logged reports whether a message was logged at level
func (e *testEnv) logged(level log.Level, message string) bool {
	for _, entry := range e.logs.Entries {
		if entry.Level == level && entry.Message == message {
			return true
		}
	}
	return false
}
