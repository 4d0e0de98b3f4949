package blynk

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultServer Blynk cloud MQTT broker
	DefaultServer = "broker.blynk.cc"
	// DefaultPort plain TCP port
	DefaultPort = 1883
	// DefaultTLSPort TLS port
	DefaultTLSPort = 8883

	defaultKeepAlive      = 60 * time.Second
	defaultPublishTimeout = 5 * time.Second
	defaultConnectTimeout = 10 * time.Second
	defaultInboundBuffer  = 32
)

// MqttConfig broker config
type MqttConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Username defaults to the auth token, as required by Blynk
	Username  string      `yaml:"username"`
	Password  string      `yaml:"password"`
	TLS       bool        `yaml:"tls"`
	TLSConfig *tls.Config `yaml:"-"`
	ClientID  string      `yaml:"client_id"`
	// KeepAlive in seconds
	KeepAlive int `yaml:"keepalive"`
	// PersistentSession asks the broker to resume the previous session instead of a clean one
	PersistentSession bool `yaml:"persistent_session"`
}

// DeviceInfo static device description sent on info/update
type DeviceInfo struct {
	Board           string `yaml:"board" json:"board,omitempty"`
	FirmwareVersion string `yaml:"firmware_version" json:"firmwareVersion,omitempty"`
	AppName         string `yaml:"app_name" json:"appName,omitempty"`
}

// Empty reports whether no field is known.
func (i DeviceInfo) Empty() bool {
	return i.Board == "" && i.FirmwareVersion == "" && i.AppName == ""
}

func (i DeviceInfo) merge(update DeviceInfo) DeviceInfo {
	if update.Board != "" {
		i.Board = update.Board
	}
	if update.FirmwareVersion != "" {
		i.FirmwareVersion = update.FirmwareVersion
	}
	if update.AppName != "" {
		i.AppName = update.AppName
	}
	return i
}

// Config blynk client config
type Config struct {
	AuthToken string     `yaml:"auth_token"`
	Mqtt      MqttConfig `yaml:"mqtt"`
	Device    DeviceInfo `yaml:"device"`
	// PublishTimeout in milliseconds, 0 means default
	PublishTimeout int `yaml:"publish_timeout"`
	// InboundBuffer max number of received messages waiting for Run
	InboundBuffer int `yaml:"inbound_buffer"`
}

// LoadConfig reads a YAML config file and applies BLYNK_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("BLYNK_AUTH_TOKEN"); v != "" {
		c.AuthToken = v
	}
	if v := os.Getenv("BLYNK_SERVER"); v != "" {
		c.Mqtt.Host = v
	}
	if v := os.Getenv("BLYNK_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: BLYNK_PORT %q", ErrInvalidConfig, v)
		}
		c.Mqtt.Port = port
	}
	return nil
}

// Validate checks mandatory fields. Zero values that have defaults are accepted.
func (c *Config) Validate() error {
	if c.AuthToken == "" {
		return fmt.Errorf("%w: auth token is required", ErrInvalidConfig)
	}
	if c.Mqtt.Port < 0 || c.Mqtt.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Mqtt.Port)
	}
	if c.Mqtt.KeepAlive < 0 {
		return fmt.Errorf("%w: negative keepalive", ErrInvalidConfig)
	}
	if c.PublishTimeout < 0 {
		return fmt.Errorf("%w: negative publish timeout", ErrInvalidConfig)
	}
	if c.InboundBuffer < 0 {
		return fmt.Errorf("%w: negative inbound buffer", ErrInvalidConfig)
	}
	return nil
}

// withDefaults returns a copy with defaults filled in
func (c Config) withDefaults() Config {
	if c.Mqtt.Host == "" {
		c.Mqtt.Host = DefaultServer
	}
	if c.Mqtt.Port == 0 {
		c.Mqtt.Port = DefaultPort
		if c.Mqtt.TLS {
			c.Mqtt.Port = DefaultTLSPort
		}
	}
	if c.Mqtt.Username == "" {
		c.Mqtt.Username = c.AuthToken
	}
	if c.Mqtt.ClientID == "" {
		c.Mqtt.ClientID = defaultClientID()
	}
	if c.Mqtt.KeepAlive == 0 {
		c.Mqtt.KeepAlive = int(defaultKeepAlive / time.Second)
	}
	if c.PublishTimeout == 0 {
		c.PublishTimeout = int(defaultPublishTimeout / time.Millisecond)
	}
	if c.InboundBuffer <= 0 {
		c.InboundBuffer = defaultInboundBuffer
	}
	return c
}

func (c *Config) brokerURL() string {
	scheme := "tcp"
	if c.Mqtt.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Mqtt.Host, c.Mqtt.Port)
}

func (c *Config) publishTimeout() time.Duration {
	return time.Duration(c.PublishTimeout) * time.Millisecond
}
