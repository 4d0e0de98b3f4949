package blynk

import (
	"errors"
	"testing"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEvent(t *testing.T) {
	tests := []struct {
		event string
		key   string
		isPin bool
		err   error
	}{
		{"connect", EventConnect, false, nil},
		{"CONNECT", EventConnect, false, nil},
		{"Property_Get", EventPropertyGet, false, nil},
		{"v0", "V0", true, nil},
		{"V255", "V255", true, nil},
		{"v007", "V7", true, nil},
		{"V256", "", true, ErrInvalidPin},
		{"v99999999999999999999", "", true, ErrInvalidPin},
		{"vibration", "VIBRATION", false, nil},
		{"V", "V", false, nil},
		{"", "", false, ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			key, isPin, err := normalizeEvent(tt.event)
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.isPin, isPin)
		})
	}
}

func TestOn(t *testing.T) {
	env := makeTestClient(t, nil)
	c := env.client

	assert.NoError(t, c.On("v5", func(interface{}) error { return nil }))
	assert.NoError(t, c.On("connect", func() {}))
	assert.NoError(t, c.On("disconnect", EventHandler(func() error { return nil })))
	assert.NoError(t, c.On("property_get", func(string, string) error { return nil }))
	assert.NoError(t, c.On("automation_response", func(AutomationResponse) error { return nil }))
	assert.NoError(t, c.On("ota_request", func(map[string]interface{}) error { return nil }))
	for _, key := range []string{"V5", EventConnect, EventDisconnect, EventPropertyGet, EventAutomationResponse, EventOTARequest} {
		assert.Contains(t, c.handlers, key)
	}

	assert.True(t, errors.Is(c.On("V300", func(interface{}) error { return nil }), ErrInvalidPin))
	assert.True(t, errors.Is(c.On("v1", func() {}), ErrInvalidArgument))
	assert.True(t, errors.Is(c.On("connect", func(interface{}) error { return nil }), ErrInvalidArgument))
	assert.True(t, errors.Is(c.On("info_get", nil), ErrInvalidArgument))

	assert.NoError(t, c.On("reboot", func() {}))
	assert.True(t, env.logged(log.WarnLevel, "Registering handler for unknown event"))

	assert.True(t, errors.Is(c.OnVirtualPin(-1, func(interface{}) error { return nil }), ErrInvalidPin))
}

func TestLastRegistrationWins(t *testing.T) {
	env := makeTestClient(t, nil)
	env.expectHealthy()
	var got string
	require.NoError(t, env.client.On("V2", func(interface{}) error { got = "first"; return nil }))
	require.NoError(t, env.client.On("v2", func(interface{}) error { got = "second"; return nil }))
	env.connect(t)

	env.client.dispatch(TopicControl, []byte(`{"pin":"v2","value":1}`))
	assert.Equal(t, "second", got)
}

func TestDispatchControl(t *testing.T) {
	env := makeTestClient(t, nil)
	env.expectHealthy()
	var got interface{}
	require.NoError(t, env.client.OnVirtualPin(12, func(v interface{}) error {
		got = v
		return nil
	}))
	env.connect(t)

	env.client.dispatch(TopicControl, []byte(`{"pin":"v12","value":[1,"a"]}`))
	assert.Equal(t, []interface{}{float64(1), "a"}, got)

	env.client.dispatch(TopicControl, []byte(`{"pin":"d5","value":1}`))
	assert.True(t, env.logged(log.WarnLevel, "Control message without a virtual pin"))

	env.client.dispatch(TopicControl, []byte(`{"pin":"v13","value":1}`))
	assert.True(t, env.logged(log.WarnLevel, "No handler registered for pin"))

	env.client.dispatch(TopicControl, []byte(`{"pin":"v999","value":1}`))
	assert.True(t, env.logged(log.WarnLevel, "Control message for invalid pin"))
}

func TestDispatchNeverPanics(t *testing.T) {
	env := makeTestClient(t, nil)
	env.expectHealthy()
	env.client.OnPropertyGet(func(string, string) error { return nil })
	env.client.OnAutomationResponse(func(AutomationResponse) error { return nil })
	env.client.OnOTARequest(func(map[string]interface{}) error { return nil })
	require.NoError(t, env.client.OnVirtualPin(0, nil))
	env.connect(t)

	payloads := []string{
		"", "{", "null", "[1,2]", `"text"`, "42", "\xff\xfe",
		`{"pin":5}`, `{"pin":""}`, `{"pin":"v"}`, `{"pin":"v0"}`, `{"pin":null,"value":{}}`,
		`{"automationId":"x","status":3}`, `{"property":["a"]}`,
	}
	topics := append([]string{"some/other/topic", ""}, inboundTopics...)
	for _, topic := range topics {
		for _, payload := range payloads {
			assert.NotPanics(t, func() {
				env.client.dispatch(topic, []byte(payload))
			}, "topic %q payload %q", topic, payload)
		}
	}
}

func TestDispatchSwallowsHandlerFailures(t *testing.T) {
	env := makeTestClient(t, nil)
	env.expectHealthy()
	var calls int
	require.NoError(t, env.client.OnVirtualPin(1, func(v interface{}) error {
		calls++
		switch v {
		case "error":
			return errors.New("handler failed")
		case "panic":
			panic("boom")
		}
		return nil
	}))
	env.connect(t)
	before := testutil.ToFloat64(handlerErrors.WithLabelValues("V1"))

	env.client.dispatch(TopicControl, []byte(`{"pin":"v1","value":"error"}`))
	env.client.dispatch(TopicControl, []byte(`{"pin":"v1","value":"panic"}`))
	env.client.dispatch(TopicControl, []byte(`{"pin":"v1","value":"ok"}`))

	assert.Equal(t, 3, calls)
	assert.Equal(t, before+2, testutil.ToFloat64(handlerErrors.WithLabelValues("V1")))
	assert.True(t, env.logged(log.ErrorLevel, "Handler failed"))
	assert.True(t, env.logged(log.ErrorLevel, "Handler panicked"))
}

func TestDispatchInfoGet(t *testing.T) {
	cfg := makeTestConfig()
	cfg.Device = DeviceInfo{AppName: "Demo/1.0"}
	env := makeTestClient(t, cfg)
	env.expectHealthy()
	env.connect(t)
	// device info sent on connect
	require.Len(t, env.adapter.published(), 1)

	env.client.dispatch(TopicInfoGet, nil)
	published := env.adapter.published()
	require.Len(t, published, 2)
	assert.Equal(t, TopicInfoUpdate, published[1].Topic)
	assert.JSONEq(t, `{"appName":"Demo/1.0"}`, published[1].Payload)

	var called bool
	env.client.OnInfoGet(func() error {
		called = true
		return nil
	})
	env.client.dispatch(TopicInfoGet, []byte(`{}`))
	assert.True(t, called)
	assert.Len(t, env.adapter.published(), 2)
}

func TestDispatchPropertyGet(t *testing.T) {
	env := makeTestClient(t, nil)
	env.expectHealthy()
	env.connect(t)

	env.client.dispatch(TopicPropertyGet, []byte(`{"pin":"v0","property":"label"}`))
	assert.True(t, env.logged(log.WarnLevel, "No property_get handler registered"))

	var pin, property string
	env.client.OnPropertyGet(func(p, prop string) error {
		pin, property = p, prop
		return env.client.SetProperty(p, prop, "Status")
	})
	env.client.dispatch(TopicPropertyGet, []byte(`{"pin":"v0","property":"label"}`))
	assert.Equal(t, "v0", pin)
	assert.Equal(t, "label", property)
	published := env.adapter.published()
	require.Len(t, published, 1)
	assert.JSONEq(t, `{"pin":"v0","property":"label","value":"Status"}`, published[0].Payload)
}

func TestDispatchAutomationResponse(t *testing.T) {
	env := makeTestClient(t, nil)
	env.expectHealthy()
	var got AutomationResponse
	env.client.OnAutomationResponse(func(resp AutomationResponse) error {
		got = resp
		return nil
	})
	env.connect(t)

	env.client.dispatch(TopicAutomationResponse, []byte(`{"automationId":42,"status":"failed","message":"offline"}`))
	assert.Equal(t, AutomationResponse{AutomationID: 42, Status: "failed", Message: "offline"}, got)

	env.client.dispatch(TopicAutomationResponse, []byte(`{"automationId":"7","status":"success"}`))
	assert.Equal(t, AutomationResponse{AutomationID: 7, Status: "success"}, got)
}

func TestDispatchOTARequest(t *testing.T) {
	env := makeTestClient(t, nil)
	env.expectHealthy()
	env.connect(t)

	env.client.dispatch(TopicOTARequest, []byte(`{"url":"http://fw"}`))
	assert.True(t, env.logged(log.InfoLevel, "No ota_request handler registered"))

	var got map[string]interface{}
	env.client.OnOTARequest(func(req map[string]interface{}) error {
		got = req
		return nil
	})
	env.client.dispatch(TopicOTARequest, []byte(`{"url":"http://fw","size":1024}`))
	assert.Equal(t, map[string]interface{}{"url": "http://fw", "size": float64(1024)}, got)

	env.client.dispatch(TopicOTARequest, []byte(`not json`))
	assert.Equal(t, map[string]interface{}{}, got)
}

func TestDispatchUnknownTopic(t *testing.T) {
	env := makeTestClient(t, nil)
	before := testutil.ToFloat64(receivedCounter.WithLabelValues("other"))

	env.client.dispatch("foo/bar", []byte(`{}`))

	assert.True(t, env.logged(log.WarnLevel, "Message on unhandled topic"))
	assert.Equal(t, before+1, testutil.ToFloat64(receivedCounter.WithLabelValues("other")))
}
