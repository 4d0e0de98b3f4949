package blynk

import (
	"encoding/json"
	"strconv"

	"github.com/apex/log"
)

// decodePayload parses a JSON object. Empty, malformed and non-object
// payloads decode to an empty map.
func decodePayload(ctx log.Interface, payload []byte) map[string]interface{} {
	data := make(map[string]interface{})
	if len(payload) == 0 {
		return data
	}
	var v interface{}
	if err := json.Unmarshal(payload, &v); err != nil {
		ctx.WithError(err).WithField("Payload", string(payload)).Warn("Could not decode JSON payload")
		return data
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		ctx.WithField("Payload", string(payload)).Warn("Payload is not a JSON object")
		return data
	}
	return obj
}

// stringField returns data[key] when it is a string, numbers are formatted
func stringField(data map[string]interface{}, key string) string {
	switch v := data[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// intField returns data[key] as int, accepting numbers and numeric strings
func intField(data map[string]interface{}, key string) int {
	switch v := data[key].(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}
