package web

import (
	"context"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/sweeney/gpio-sensor/internal/logic"
	"github.com/sweeney/gpio-sensor/internal/status"
)

// Message is one frame on the /ws stream. Type is "snapshot" for the
// initial status and "event" for each sensor event after that.
type Message struct {
	Type   string              `json:"type"`
	Status *status.StatusInner `json:"status,omitempty"`
	Event  *EventJSON          `json:"event,omitempty"`
}

// EventJSON is the websocket rendering of a sensor event.
type EventJSON struct {
	Timestamp string            `json:"timestamp"`
	Type      string            `json:"type"`
	Alarm     bool              `json:"alarm"`
	Sensor    status.SensorJSON `json:"sensor"`
}

func formatSnapshotMessage(snap status.Snapshot) Message {
	inner := status.Inner(snap)
	return Message{Type: "snapshot", Status: &inner}
}

func formatEventMessage(e logic.Event) Message {
	return Message{Type: "event", Event: &EventJSON{
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
		Type:      string(e.Type),
		Alarm:     e.Alarm(),
		Sensor:    status.NewSensorJSON(e.Sensor),
	}}
}

func writeJSON(ctx context.Context, c *websocket.Conn, msg interface{}) error {
	return wsjson.Write(ctx, c, msg)
}
