package blynk

import "errors"

// Errors returned by the client. Use errors.Is to check them.
var (
	// ErrInvalidConfig configuration is incomplete or malformed.
	ErrInvalidConfig = errors.New("blynk: invalid config")

	// ErrNotConnected operation needs a connected client.
	ErrNotConnected = errors.New("blynk: client not connected")

	// ErrConnectionFailed transport connect failed or timed out.
	ErrConnectionFailed = errors.New("blynk: connection failed")

	// ErrSubscribeFailed subscribing to an inbound topic failed.
	ErrSubscribeFailed = errors.New("blynk: subscribe failed")

	// ErrPublishFailed transport rejected or timed out a publish; the client is now disconnected.
	ErrPublishFailed = errors.New("blynk: publish failed")

	// ErrTimeout transport did not complete an operation in time.
	ErrTimeout = errors.New("blynk: operation timed out")

	// ErrEncode payload could not be serialized to JSON.
	ErrEncode = errors.New("blynk: payload encoding failed")

	// ErrInvalidPin virtual pin outside 0..255 or not a virtual pin designator.
	ErrInvalidPin = errors.New("blynk: invalid virtual pin")

	// ErrInvalidLevel device log level is not one of trace, debug, info, warn, error.
	ErrInvalidLevel = errors.New("blynk: invalid log level")

	// ErrInvalidArgument other caller misuse, e.g. an empty property name.
	ErrInvalidArgument = errors.New("blynk: invalid argument")

	// ErrNoDeviceInfo PublishDeviceInfo has nothing to send.
	ErrNoDeviceInfo = errors.New("blynk: no device info available")
)
