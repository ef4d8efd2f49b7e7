package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/gpio-sensor/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Sensors       []SensorJSON `json:"sensors"`
	Outputs       []OutputJSON `json:"outputs"`
	Ready         bool         `json:"ready"`
	Alarm         bool         `json:"alarm"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Config        *ConfigJSON  `json:"config,omitempty"`
}

// SensorJSON is the JSON representation of one monitored sensor.
type SensorJSON struct {
	Name       string `json:"name"`
	PartNumber string `json:"part_number,omitempty"`
	GPI        int    `json:"gpi"`
	State      string `json:"state"`
	Normal     string `json:"normal"`
	Alarm      bool   `json:"alarm"`
	LastChange string `json:"last_change,omitempty"`
}

// OutputJSON is the JSON representation of a GPO pin.
type OutputJSON struct {
	Name  string `json:"name,omitempty"`
	Pin   int    `json:"pin"`
	Value string `json:"value"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Opened       int `json:"opened"`
	Closed       int `json:"closed"`
	Alarms       int `json:"alarms"`
	ReadFailures int `json:"read_failures"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	Backend     string `json:"backend"`
	BaseOffset  int    `json:"base_offset"`
}

func stateText(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// NewSensorJSON renders one sensor record.
func NewSensorJSON(s logic.Sensor) SensorJSON {
	sj := SensorJSON{
		Name:       s.Name,
		PartNumber: s.PartNumber,
		GPI:        s.GPI,
		State:      stateText(s.Current.String()),
		Normal:     s.Normal.String(),
		Alarm:      s.Alarm(),
	}
	if !s.LastChange.IsZero() {
		sj.LastChange = s.LastChange.UTC().Format(time.RFC3339)
	}
	return sj
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Sensors:       make([]SensorJSON, 0, len(snap.Sensors)),
		Outputs:       make([]OutputJSON, 0, len(snap.Outputs)),
		Ready:         snap.Baselined,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Opened:       snap.Counts.Opened,
			Closed:       snap.Counts.Closed,
			Alarms:       snap.Counts.Alarms,
			ReadFailures: snap.Counts.ReadFailures,
		},
	}

	for _, s := range snap.Sensors {
		sj := NewSensorJSON(s)
		inner.Alarm = inner.Alarm || sj.Alarm
		inner.Sensors = append(inner.Sensors, sj)
	}
	for _, o := range snap.Outputs {
		inner.Outputs = append(inner.Outputs, OutputJSON{
			Name:  o.Name,
			Pin:   o.Pin,
			Value: stateText(o.Value.String()),
		})
	}
	return inner
}

func buildConfig(snap Snapshot) *ConfigJSON {
	return &ConfigJSON{
		PollMs:      snap.Config.PollMs,
		DebounceMs:  snap.Config.DebounceMs,
		HeartbeatMs: snap.Config.HeartbeatMs,
		Broker:      snap.Config.Broker,
		HTTPAddr:    snap.Config.HTTPAddr,
		Backend:     snap.Config.Backend,
		BaseOffset:  snap.Config.BaseOffset,
	}
}

// Inner returns the full status body including config, without event/reason.
func Inner(snap Snapshot) StatusInner {
	inner := buildInner(snap)
	inner.Config = buildConfig(snap)
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: Inner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
// Config is only included on STARTUP.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	if event == "STARTUP" {
		inner.Config = buildConfig(snap)
	}

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
