// Package logic contains the sensor monitoring model: monitoring records, the
// registry that owns them, and debounced state-change detection.
// This package performs no I/O (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"time"

	"github.com/sweeney/gpio-sensor/internal/gpio"
)

// Sensor is the monitoring record of one GPI contact sensor.
type Sensor struct {
	Name       string
	PartNumber string
	GPI        int
	// Normal is the state the sensor is expected to be in.
	Normal gpio.Status
	// Current is the last stable (debounced) state, StatusUnknown until
	// the sensor has a baseline.
	Current    gpio.Status
	LastChange time.Time
}

// Alarm reports whether the sensor's known state deviates from normal.
func (s Sensor) Alarm() bool {
	return s.Current != gpio.StatusUnknown && s.Current != s.Normal
}

// EventType represents a sensor state event.
type EventType string

const (
	// EventBaseline is emitted once per sensor when its first stable
	// state is established.
	EventBaseline EventType = "BASELINE"
	EventOpened   EventType = "OPENED"
	EventClosed   EventType = "CLOSED"
)

// Event is a sensor state event to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	// Sensor is the record after the event was applied.
	Sensor Sensor
}

// Alarm reports whether the sensor is out of its normal state after the event.
func (e Event) Alarm() bool {
	return e.Sensor.Alarm()
}

// Input is one polling cycle of readings keyed by GPI number.
type Input struct {
	Readings map[int]gpio.Status
	Time     time.Time
}

// EventCounts tracks activity since startup.
type EventCounts struct {
	Opened       int
	Closed       int
	Alarms       int
	ReadFailures int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
