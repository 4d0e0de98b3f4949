package blynk

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apex/log"
)

// Event names accepted by On
const (
	EventConnect            = "connect"
	EventDisconnect         = "disconnect"
	EventInfoGet            = "info_get"
	EventPropertyGet        = "property_get"
	EventAutomationResponse = "automation_response"
	EventOTARequest         = "ota_request"
)

// MaxVirtualPin highest virtual pin number
const MaxVirtualPin = 255

var knownEvents = map[string]bool{
	EventConnect:            true,
	EventDisconnect:         true,
	EventInfoGet:            true,
	EventPropertyGet:        true,
	EventAutomationResponse: true,
	EventOTARequest:         true,
}

// EventHandler handler for connect, disconnect and info_get
type EventHandler func() error

// PinHandler receives a value written to a virtual pin. The value is any
// decoded JSON value: string, float64, bool, nil, []interface{} or map.
type PinHandler func(value interface{}) error

// PropertyGetHandler asked for a widget property, answer with SetProperty
type PropertyGetHandler func(pin string, property string) error

// AutomationResponse execution status of a triggered automation
type AutomationResponse struct {
	AutomationID int
	Status       string
	Message      string
}

// AutomationResponseHandler receives automation execution results
type AutomationResponseHandler func(resp AutomationResponse) error

// OTARequestHandler receives the decoded OTA command
type OTARequestHandler func(request map[string]interface{}) error

// VirtualPinKey handler key of a virtual pin, e.g. V5
func VirtualPinKey(pin int) string {
	return fmt.Sprintf("V%d", pin)
}

// normalizeEvent returns the handler table key for an event name.
// Numeric pin designators become V<n>, with n checked against 0..255.
func normalizeEvent(event string) (key string, isPin bool, err error) {
	if event == "" {
		return "", false, fmt.Errorf("%w: empty event name", ErrInvalidArgument)
	}
	if event[0] != 'v' && event[0] != 'V' {
		return strings.ToLower(event), false, nil
	}
	key = strings.ToUpper(event)
	digits := key[1:]
	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return key, false, nil
	}
	pin, err := strconv.Atoi(digits)
	if err != nil || pin < 0 || pin > MaxVirtualPin {
		return "", true, fmt.Errorf("%w: %s", ErrInvalidPin, event)
	}
	return VirtualPinKey(pin), true, nil
}

// On registers a handler by event name; the last registration for a name wins.
// Accepted names are the Event* constants and virtual pins "V0".."V255"
// (case insensitive). The handler must have the matching type: EventHandler,
// PinHandler, PropertyGetHandler, AutomationResponseHandler, OTARequestHandler,
// or the equivalent func literal.
func (c *Client) On(event string, handler interface{}) error {
	key, isPin, err := normalizeEvent(event)
	if err != nil {
		return err
	}
	h, err := asHandler(key, isPin, handler)
	if err != nil {
		return err
	}
	if !isPin && !knownEvents[key] {
		c.log.WithField("Event", event).Warn("Registering handler for unknown event")
	}
	c.handlers[key] = h
	c.log.WithField("Event", key).Debug("Registered handler")
	return nil
}

func asHandler(key string, isPin bool, handler interface{}) (interface{}, error) {
	if handler == nil {
		return nil, fmt.Errorf("%w: nil handler for %s", ErrInvalidArgument, key)
	}
	if isPin {
		switch h := handler.(type) {
		case PinHandler:
			return h, nil
		case func(interface{}) error:
			return PinHandler(h), nil
		}
		return nil, fmt.Errorf("%w: %s needs a PinHandler, got %T", ErrInvalidArgument, key, handler)
	}
	switch key {
	case EventPropertyGet:
		switch h := handler.(type) {
		case PropertyGetHandler:
			return h, nil
		case func(string, string) error:
			return PropertyGetHandler(h), nil
		}
		return nil, fmt.Errorf("%w: %s needs a PropertyGetHandler, got %T", ErrInvalidArgument, key, handler)
	case EventAutomationResponse:
		switch h := handler.(type) {
		case AutomationResponseHandler:
			return h, nil
		case func(AutomationResponse) error:
			return AutomationResponseHandler(h), nil
		}
		return nil, fmt.Errorf("%w: %s needs an AutomationResponseHandler, got %T", ErrInvalidArgument, key, handler)
	case EventOTARequest:
		switch h := handler.(type) {
		case OTARequestHandler:
			return h, nil
		case func(map[string]interface{}) error:
			return OTARequestHandler(h), nil
		}
		return nil, fmt.Errorf("%w: %s needs an OTARequestHandler, got %T", ErrInvalidArgument, key, handler)
	}
	switch h := handler.(type) {
	case EventHandler:
		return h, nil
	case func() error:
		return EventHandler(h), nil
	case func():
		return EventHandler(func() error { h(); return nil }), nil
	}
	return nil, fmt.Errorf("%w: %s needs an EventHandler, got %T", ErrInvalidArgument, key, handler)
}

// OnConnect registers the connect handler
func (c *Client) OnConnect(h EventHandler) {
	c.handlers[EventConnect] = h
}

// OnDisconnect registers the disconnect handler
func (c *Client) OnDisconnect(h EventHandler) {
	c.handlers[EventDisconnect] = h
}

// OnVirtualPin registers a handler for writes to a virtual pin
func (c *Client) OnVirtualPin(pin int, h PinHandler) error {
	if pin < 0 || pin > MaxVirtualPin {
		return fmt.Errorf("%w: %d", ErrInvalidPin, pin)
	}
	c.handlers[VirtualPinKey(pin)] = h
	return nil
}

// OnInfoGet replaces the default info/get answer (cached device info)
func (c *Client) OnInfoGet(h EventHandler) {
	c.handlers[EventInfoGet] = h
}

// OnPropertyGet registers the property/get handler
func (c *Client) OnPropertyGet(h PropertyGetHandler) {
	c.handlers[EventPropertyGet] = h
}

// OnAutomationResponse registers the automation/response handler
func (c *Client) OnAutomationResponse(h AutomationResponseHandler) {
	c.handlers[EventAutomationResponse] = h
}

// OnOTARequest registers the ota/request handler
func (c *Client) OnOTARequest(h OTARequestHandler) {
	c.handlers[EventOTARequest] = h
}

// dispatch routes one inbound message. It never panics.
func (c *Client) dispatch(topic string, payload []byte) {
	ctx := c.log.WithField("Topic", topic)
	ctx.WithField("Payload", string(payload)).Debug("Received message")
	receivedCounter.WithLabelValues(topicLabel(topic)).Inc()

	data := decodePayload(ctx, payload)

	switch topic {
	case TopicControl:
		c.handleControl(ctx, data)
	case TopicInfoGet:
		if h, ok := c.handlers[EventInfoGet].(EventHandler); ok && h != nil {
			c.fireEvent(EventInfoGet)
			return
		}
		ctx.Debug("Answering info/get with cached device info")
		if err := c.PublishDeviceInfo(DeviceInfo{}); err != nil {
			ctx.WithError(err).Warn("Could not answer info/get")
		}
	case TopicPropertyGet:
		pin, property := stringField(data, "pin"), stringField(data, "property")
		h, ok := c.handlers[EventPropertyGet].(PropertyGetHandler)
		if !ok || h == nil {
			ctx.WithFields(log.Fields{"Pin": pin, "Property": property}).Warn("No property_get handler registered")
			return
		}
		c.invoke(EventPropertyGet, func() error { return h(pin, property) })
	case TopicAutomationResponse:
		resp := AutomationResponse{
			AutomationID: intField(data, "automationId"),
			Status:       stringField(data, "status"),
			Message:      stringField(data, "message"),
		}
		h, ok := c.handlers[EventAutomationResponse].(AutomationResponseHandler)
		if !ok || h == nil {
			ctx.WithFields(log.Fields{"AutomationID": resp.AutomationID, "Status": resp.Status}).Info("No automation_response handler registered")
			return
		}
		c.invoke(EventAutomationResponse, func() error { return h(resp) })
	case TopicOTARequest:
		h, ok := c.handlers[EventOTARequest].(OTARequestHandler)
		if !ok || h == nil {
			ctx.Info("No ota_request handler registered")
			return
		}
		c.invoke(EventOTARequest, func() error { return h(data) })
	default:
		ctx.Warn("Message on unhandled topic")
	}
}

func (c *Client) handleControl(ctx log.Interface, data map[string]interface{}) {
	designator, _ := data["pin"].(string)
	if designator == "" || (designator[0] != 'v' && designator[0] != 'V') {
		ctx.WithField("Data", data).Warn("Control message without a virtual pin")
		return
	}
	key, _, err := normalizeEvent(designator)
	if err != nil {
		ctx.WithError(err).Warn("Control message for invalid pin")
		return
	}
	h, ok := c.handlers[key].(PinHandler)
	if !ok || h == nil {
		ctx.WithField("Pin", key).Warn("No handler registered for pin")
		return
	}
	value := data["value"]
	c.invoke(key, func() error { return h(value) })
}

// fireEvent runs a registered EventHandler, if any
func (c *Client) fireEvent(event string) {
	h, ok := c.handlers[event].(EventHandler)
	if !ok || h == nil {
		return
	}
	c.invoke(event, h)
}

// invoke runs a user callback, logging and swallowing errors and panics
func (c *Client) invoke(event string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			handlerErrors.WithLabelValues(event).Inc()
			c.log.WithFields(log.Fields{"Event": event, "Panic": r}).Error("Handler panicked")
		}
	}()
	if err := fn(); err != nil {
		handlerErrors.WithLabelValues(event).Inc()
		c.log.WithField("Event", event).WithError(err).Error("Handler failed")
	}
}
