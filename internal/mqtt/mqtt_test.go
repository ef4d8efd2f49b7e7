package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/gpio-sensor/internal/gpio"
	"github.com/sweeney/gpio-sensor/internal/logic"
)

var ts = time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC)

func doorEvent(typ logic.EventType, current gpio.Status) logic.Event {
	return logic.Event{
		Timestamp: ts,
		Type:      typ,
		Sensor: logic.Sensor{
			Name:       "front door",
			PartNumber: "DCS001",
			GPI:        1,
			Normal:     gpio.StatusClosed,
			Current:    current,
		},
	}
}

func TestNewTopics(t *testing.T) {
	tests := []struct {
		prefix string
		want   Topics
	}{
		{"site/a", Topics{"site/a/events", "site/a/system", "site/a/gpo/set"}},
		{"site/a/", Topics{"site/a/events", "site/a/system", "site/a/gpo/set"}},
		{"", Topics{"sensors/gpio/events", "sensors/gpio/system", "sensors/gpio/gpo/set"}},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			assert.Equal(t, tt.want, NewTopics(tt.prefix))
		})
	}
}

func TestFormatPayloadExactJSON(t *testing.T) {
	payload, err := FormatPayload(doorEvent(logic.EventOpened, gpio.StatusOpened))
	require.NoError(t, err)

	want := `{"sensor":{"timestamp":"2026-02-02T22:18:12Z","event":"OPENED","name":"front door","part_number":"DCS001","gpi":1,"state":"opened","normal":"closed","alarm":true}}`
	assert.JSONEq(t, want, string(payload))
}

func TestFormatPayloadAlarm(t *testing.T) {
	tests := []struct {
		typ       logic.EventType
		current   gpio.Status
		wantState string
		wantAlarm bool
	}{
		{logic.EventBaseline, gpio.StatusClosed, "closed", false},
		{logic.EventOpened, gpio.StatusOpened, "opened", true},
		{logic.EventClosed, gpio.StatusClosed, "closed", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			payload, err := FormatPayload(doorEvent(tt.typ, tt.current))
			require.NoError(t, err)

			var parsed Payload
			require.NoError(t, json.Unmarshal(payload, &parsed))
			assert.Equal(t, string(tt.typ), parsed.Sensor.Event)
			assert.Equal(t, tt.wantState, parsed.Sensor.State)
			assert.Equal(t, tt.wantAlarm, parsed.Sensor.Alarm)
		})
	}
}

func TestFormatPayloadOmitsEmptyPartNumber(t *testing.T) {
	e := doorEvent(logic.EventClosed, gpio.StatusClosed)
	e.Sensor.PartNumber = ""
	payload, err := FormatPayload(e)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "part_number")
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	e := doorEvent(logic.EventOpened, gpio.StatusOpened)
	e.Timestamp = time.Date(2026, 2, 3, 0, 18, 12, 0, loc)

	payload, err := FormatPayload(e)
	require.NoError(t, err)

	var parsed Payload
	require.NoError(t, json.Unmarshal(payload, &parsed))
	assert.Equal(t, "2026-02-02T22:18:12Z", parsed.Sensor.Timestamp)
}

func TestFormatSystemPayload(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{Timestamp: ts, Event: "SHUTDOWN", Reason: "SIGTERM"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"system":{"timestamp":"2026-02-02T22:18:12Z","event":"SHUTDOWN","reason":"SIGTERM"}}`, string(payload))

	payload, err = FormatSystemPayload(SystemEvent{Timestamp: ts, Event: "OFFLINE"})
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "reason")
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"system":{"event":"HEARTBEAT"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "HEARTBEAT", RawPayload: raw})
	require.NoError(t, err)
	assert.Equal(t, raw, payload)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		pin     int
		value   gpio.Status
	}{
		{"string opened", `{"pin":0,"value":"opened"}`, 0, gpio.StatusOpened},
		{"string closed", `{"pin":3,"value":"CLOSED"}`, 3, gpio.StatusClosed},
		{"number one", `{"pin":1,"value":1}`, 1, gpio.StatusOpened},
		{"number zero", `{"pin":2,"value":0}`, 2, gpio.StatusClosed},
		{"string digit", `{"pin":2,"value":"1"}`, 2, gpio.StatusOpened},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pin, value, err := ParseCommand([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.pin, pin)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `open`},
		{"missing pin", `{"value":1}`},
		{"negative pin", `{"pin":-1,"value":1}`},
		{"missing value", `{"pin":0}`},
		{"value out of range", `{"pin":0,"value":2}`},
		{"unknown word", `{"pin":0,"value":"ajar"}`},
		{"fractional value", `{"pin":0,"value":0.5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, value, err := ParseCommand([]byte(tt.payload))
			assert.Error(t, err)
			assert.Equal(t, gpio.StatusUnknown, value)
		})
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	require.NoError(t, f.Publish(doorEvent(logic.EventOpened, gpio.StatusOpened)))
	require.NoError(t, f.PublishSystem(SystemEvent{Timestamp: ts, Event: "STARTUP", Retained: true}))

	require.Len(t, f.Events, 1)
	require.Len(t, f.Payloads, 1)
	assert.Equal(t, 1, f.EventCount())
	assert.Equal(t, []string{"STARTUP"}, f.SystemEventNames())
	assert.True(t, f.SystemEvents[0].Retained)

	require.NoError(t, f.Close())
	assert.True(t, f.Closed)
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")
	f.PublishSystemError = errors.New("broker down")

	assert.Error(t, f.Publish(doorEvent(logic.EventOpened, gpio.StatusOpened)))
	assert.Error(t, f.PublishSystem(SystemEvent{Event: "STARTUP"}))
	assert.Empty(t, f.Events)
	assert.Empty(t, f.SystemEvents)
}

func TestFakePublisherDeliver(t *testing.T) {
	f := NewFakePublisher()
	assert.Error(t, f.Deliver([]byte(`{"pin":0,"value":1}`)), "no handler yet")

	var gotPin int
	var gotValue gpio.Status
	require.NoError(t, f.Subscribe(func(pin int, value gpio.Status) error {
		gotPin, gotValue = pin, value
		return nil
	}))

	require.NoError(t, f.Deliver([]byte(`{"pin":4,"value":"opened"}`)))
	assert.Equal(t, 4, gotPin)
	assert.Equal(t, gpio.StatusOpened, gotValue)

	assert.Error(t, f.Deliver([]byte(`{"pin":4}`)))
}

func TestFakePublisherDeliverHandlerError(t *testing.T) {
	f := NewFakePublisher()
	boom := errors.New("write failed")
	require.NoError(t, f.Subscribe(func(int, gpio.Status) error { return boom }))
	assert.ErrorIs(t, f.Deliver([]byte(`{"pin":0,"value":0}`)), boom)
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Connected = true
	require.NoError(t, f.Subscribe(func(int, gpio.Status) error { return nil }))
	require.NoError(t, f.Publish(doorEvent(logic.EventOpened, gpio.StatusOpened)))
	require.NoError(t, f.Close())

	f.Reset()

	assert.Empty(t, f.Events)
	assert.Empty(t, f.Payloads)
	assert.False(t, f.Closed)
	assert.False(t, f.IsConnected())
	assert.Error(t, f.Deliver([]byte(`{"pin":0,"value":0}`)))

	require.NoError(t, f.Publish(doorEvent(logic.EventClosed, gpio.StatusClosed)))
	assert.Equal(t, 1, f.EventCount())
}

func TestWillPayloadFormat(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{Timestamp: ts, Event: "OFFLINE", Reason: "connection lost"})
	require.NoError(t, err)

	var parsed SystemPayload
	require.NoError(t, json.Unmarshal(payload, &parsed))
	assert.Equal(t, "OFFLINE", parsed.System.Event)
	assert.Equal(t, "connection lost", parsed.System.Reason)
}

var (
	_ Publisher        = (*RealPublisher)(nil)
	_ Subscriber       = (*RealPublisher)(nil)
	_ ConnectionStatus = (*RealPublisher)(nil)
	_ Publisher        = (*FakePublisher)(nil)
	_ Subscriber       = (*FakePublisher)(nil)
	_ ConnectionStatus = (*FakePublisher)(nil)
)
