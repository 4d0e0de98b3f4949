package blynk

import (
	"context"
	"encoding/json"
	"fmt"
)

const publishQoS byte = 0

// LogLevel device log severity
type LogLevel string

// Device log levels
const (
	LevelTrace LogLevel = "trace"
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

func (l LogLevel) valid() bool {
	switch l {
	case LevelTrace, LevelDebug, LevelInfo, LevelWarn, LevelError:
		return true
	}
	return false
}

// Location GPS position, Alt and HDOP are optional
type Location struct {
	Lat  float64  `json:"lat"`
	Lon  float64  `json:"lon"`
	Alt  *float64 `json:"alt,omitempty"`
	HDOP *float64 `json:"hdop,omitempty"`
}

// OTAStatus progress report of a custom OTA update
type OTAStatus struct {
	Status       string `json:"status"`
	Version      string `json:"version,omitempty"`
	Size         *int64 `json:"size,omitempty"`
	ErrorCode    *int   `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type propertyPayload struct {
	Pin      string      `json:"pin"`
	Property string      `json:"property"`
	Value    interface{} `json:"value"`
}

type eventPayload struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type bridgePayload struct {
	TargetToken string      `json:"targetToken"`
	Pin         string      `json:"pin"`
	Value       interface{} `json:"value"`
}

type automationPayload struct {
	AutomationID int         `json:"automationId"`
	State        string      `json:"state,omitempty"`
	Value        interface{} `json:"value,omitempty"`
}

type deviceLogPayload struct {
	Level   LogLevel `json:"level"`
	Message string   `json:"message"`
}

// VirtualWrite sends values to a virtual pin. No value sends null, one value
// is sent as is, more values are sent as a JSON array.
func (c *Client) VirtualWrite(pin int, values ...interface{}) error {
	if pin < 0 || pin > MaxVirtualPin {
		return fmt.Errorf("%w: %d", ErrInvalidPin, pin)
	}
	var value interface{}
	switch len(values) {
	case 0:
		c.log.WithField("Pin", VirtualPinKey(pin)).Warn("VirtualWrite without values, sending null")
	case 1:
		value = values[0]
	default:
		value = values
	}
	return c.publish(TopicDataStream, map[string]interface{}{fmt.Sprintf("v%d", pin): value})
}

// Notify sends a push notification to the app
func (c *Client) Notify(message string) error {
	return c.publish(TopicNotifications, map[string]string{"body": message})
}

// SetProperty sets a widget property, e.g. SetProperty("v0", "label", "Status")
func (c *Client) SetProperty(pin string, property string, value interface{}) error {
	if pin == "" {
		return fmt.Errorf("%w: empty pin designator", ErrInvalidArgument)
	}
	if property == "" {
		return fmt.Errorf("%w: empty property name", ErrInvalidArgument)
	}
	return c.publish(TopicPropertyUpdate, propertyPayload{Pin: pin, Property: property, Value: value})
}

// LogEvent logs an event to the device timeline, description may be empty
func (c *Client) LogEvent(code string, description string) error {
	if code == "" {
		return fmt.Errorf("%w: empty event code", ErrInvalidArgument)
	}
	return c.publish(TopicEvent, eventPayload{Name: code, Description: description})
}

// PublishDeviceInfo merges the non-empty fields of update into the cached
// device info and publishes it.
func (c *Client) PublishDeviceInfo(update DeviceInfo) error {
	c.device = c.device.merge(update)
	if c.device.Empty() {
		c.log.Warn("No device info to publish")
		return ErrNoDeviceInfo
	}
	return c.publish(TopicInfoUpdate, c.device)
}

// BridgeVirtualWrite writes a value to a virtual pin of another device
func (c *Client) BridgeVirtualWrite(targetToken string, pin string, value interface{}) error {
	if targetToken == "" {
		return fmt.Errorf("%w: empty target token", ErrInvalidArgument)
	}
	if _, isPin, err := normalizeEvent(pin); err != nil || !isPin {
		return fmt.Errorf("%w: %q is not a virtual pin", ErrInvalidPin, pin)
	}
	return c.publish(TopicBridgeRequest, bridgePayload{TargetToken: targetToken, Pin: pin, Value: value})
}

// PublishLocation sends the device position
func (c *Client) PublishLocation(loc Location) error {
	return c.publish(TopicLocationUpdate, loc)
}

// PublishMetadata sends custom key/value metadata
func (c *Client) PublishMetadata(metadata map[string]interface{}) error {
	if metadata == nil {
		return fmt.Errorf("%w: nil metadata", ErrInvalidArgument)
	}
	return c.publish(TopicMetadataUpdate, metadata)
}

// TriggerAutomation triggers an automation. An empty state and a nil value are omitted.
func (c *Client) TriggerAutomation(automationID int, state string, value interface{}) error {
	if state == "" && value == nil {
		c.log.WithField("AutomationID", automationID).Warn("TriggerAutomation without state or value")
	}
	return c.publish(TopicAutomationTrigger, automationPayload{AutomationID: automationID, State: state, Value: value})
}

// DeviceLog sends a message to the device log in the console
func (c *Client) DeviceLog(level LogLevel, message string) error {
	if !level.valid() {
		return fmt.Errorf("%w: %q", ErrInvalidLevel, level)
	}
	return c.publish(TopicDeviceLog, deviceLogPayload{Level: level, Message: message})
}

// PublishOTAStatus reports progress of a custom OTA implementation
func (c *Client) PublishOTAStatus(status OTAStatus) error {
	if status.Status == "" {
		return fmt.Errorf("%w: empty OTA status", ErrInvalidArgument)
	}
	c.log.WithField("Status", status.Status).Info("Publishing OTA status")
	return c.publish(TopicOTAUpdate, status)
}

// publish sends payload as JSON. A transport failure disconnects the client.
func (c *Client) publish(topic string, payload interface{}) error {
	ctx := c.log.WithField("Topic", topic)
	if c.state != StateConnected {
		ctx.Warn("Cannot publish, not connected")
		return ErrNotConnected
	}
	data, err := json.Marshal(payload)
	if err != nil {
		ctx.WithError(err).Warn("Could not encode payload")
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}
	ctx.WithField("Payload", string(data)).Debug("Publishing")

	token := c.client.Publish(topic, publishQoS, false, data)
	if err := waitToken(context.Background(), token, c.config.publishTimeout()); err != nil {
		publishFailures.WithLabelValues(topicLabel(topic)).Inc()
		ctx.WithError(err).Warn("Publish failed, assuming disconnection")
		c.disconnect()
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	publishedCounter.WithLabelValues(topicLabel(topic)).Inc()
	return nil
}
