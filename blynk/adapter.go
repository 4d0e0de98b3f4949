package blynk

import (
	"crypto/tls"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	// disconnectQuiesce milliseconds paho waits for in-flight work on Disconnect
	disconnectQuiesce = 250

	tlsMinVersion = tls.VersionTLS12
)

// MqttAdapter adapter for paho mqtt, to make it testable
type MqttAdapter interface {
	// Connect will create a connection to the message broker.
	Connect() mqtt.Token

	// Disconnect will end the connection with the server, waiting
	// quiesce milliseconds for existing work to be completed.
	Disconnect(quiesce uint)

	// Publish will publish a message with the specified QoS and content
	// to the specified topic.
	// Returns a token to track delivery of the message to the broker
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token

	// Subscribe starts a new subscription. Provide a MessageHandler to be executed when
	// a message is published on the topic provided, or nil for the default handler
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

type mqttClientDelegate struct {
	client mqtt.Client
}

func (a *mqttClientDelegate) Connect() mqtt.Token {
	return a.client.Connect()
}

func (a *mqttClientDelegate) Disconnect(quiesce uint) {
	a.client.Disconnect(quiesce)
}

func (a *mqttClientDelegate) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return a.client.Publish(topic, qos, retained, payload)
}

func (a *mqttClientDelegate) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return a.client.Subscribe(topic, qos, callback)
}

// createMqttOptions builds paho options. Reconnecting is left to the caller,
// so both auto reconnect and connect retry are off.
func createMqttOptions(cfg *Config, onLost func(err error)) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.brokerURL())
	opts.SetClientID(cfg.Mqtt.ClientID)
	opts.SetUsername(cfg.Mqtt.Username)
	opts.SetPassword(cfg.Mqtt.Password)
	opts.SetKeepAlive(time.Duration(cfg.Mqtt.KeepAlive) * time.Second)
	opts.SetCleanSession(!cfg.Mqtt.PersistentSession)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	if cfg.Mqtt.TLS {
		tlsConfig := cfg.Mqtt.TLSConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{MinVersion: tlsMinVersion}
		}
		opts.SetTLSConfig(tlsConfig)
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		onLost(err)
	})
	return opts
}

func newPahoAdapter(cfg *Config, onLost func(err error)) MqttAdapter {
	return &mqttClientDelegate{
		client: mqtt.NewClient(createMqttOptions(cfg, onLost)),
	}
}
