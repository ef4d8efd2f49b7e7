// Package status provides a thread-safe status tracker for the gpio-sensor
// daemon. It is read by HTTP handlers and the MQTT lifecycle events.
package status

import (
	"sort"
	"sync"
	"time"

	"github.com/sweeney/gpio-sensor/internal/gpio"
	"github.com/sweeney/gpio-sensor/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	Backend     string
	BaseOffset  int
}

// Output is the last commanded state of a GPO pin.
type Output struct {
	Name  string
	Pin   int
	Value gpio.Status
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Sensors       []logic.Sensor
	Outputs       []Output
	Baselined     bool
	Counts        logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Alarms returns the sensors currently out of their normal state.
func (s Snapshot) Alarms() []logic.Sensor {
	var out []logic.Sensor
	for _, sensor := range s.Sensors {
		if sensor.Alarm() {
			out = append(out, sensor)
		}
	}
	return out
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu      sync.RWMutex
	snap    Snapshot
	outputs map[int]Output
	now     func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		outputs: make(map[int]Output),
		now:     time.Now,
	}
}

// Update sets sensor records, baseline status, and event counts.
// Called from runLoop on every tick.
func (t *Tracker) Update(sensors []logic.Sensor, baselined bool, counts logic.EventCounts) {
	cp := make([]logic.Sensor, len(sensors))
	copy(cp, sensors)

	t.mu.Lock()
	t.snap.Sensors = cp
	t.snap.Baselined = baselined
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetOutput records the state of a GPO pin.
func (t *Tracker) SetOutput(out Output) {
	t.mu.Lock()
	t.outputs[out.Pin] = out
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Sensors = append([]logic.Sensor(nil), t.snap.Sensors...)
	s.Outputs = make([]Output, 0, len(t.outputs))
	for _, o := range t.outputs {
		s.Outputs = append(s.Outputs, o)
	}
	t.mu.RUnlock()

	sort.Slice(s.Outputs, func(i, j int) bool { return s.Outputs[i].Pin < s.Outputs[j].Pin })
	s.Now = t.now()
	return s
}
