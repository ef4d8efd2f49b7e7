package logic

import (
	"time"

	"github.com/sweeney/gpio-sensor/internal/gpio"
)

// channelState tracks debounce state for a single sensor.
type channelState struct {
	// Current stable (debounced) state
	Stable gpio.Status
	// Pending state during debounce
	Pending    gpio.Status
	HasPending bool
	// Time when pending state was first observed
	PendingSince time.Time
	// Whether we have established a baseline
	Baselined bool
}

// Detector tracks sensor states in a Registry and detects debounced
// transitions.
type Detector struct {
	debounceDuration time.Duration
	registry         *Registry
	channels         map[int]*channelState
	startTime        time.Time
	eventCounts      EventCounts
	lastHeartbeat    time.Time
}

// NewDetector creates a detector over the sensors in registry.
// The startTime is used for calculating uptime in heartbeat events.
func NewDetector(registry *Registry, debounceDuration time.Duration, startTime time.Time) *Detector {
	return &Detector{
		debounceDuration: debounceDuration,
		registry:         registry,
		channels:         make(map[int]*channelState),
		startTime:        startTime,
		lastHeartbeat:    startTime,
	}
}

// Process applies one polling cycle and returns the resulting events in GPI
// order. StatusUnknown readings are counted as read failures and leave the
// sensor's state untouched. Sensors missing from the input are skipped.
func (d *Detector) Process(input Input) []Event {
	var events []Event

	for _, gpi := range d.registry.GPIs() {
		v, ok := input.Readings[gpi]
		if !ok {
			continue
		}
		if v == gpio.StatusUnknown {
			d.eventCounts.ReadFailures++
			continue
		}

		ch := d.channel(gpi)
		typ := d.processChannel(ch, v, input.Time)
		if typ == "" {
			continue
		}

		s := d.registry.lookup(gpi)
		s.Current = ch.Stable
		s.LastChange = input.Time
		event := Event{
			Timestamp: input.Time,
			Type:      typ,
			Sensor:    *s,
		}

		switch typ {
		case EventOpened:
			d.eventCounts.Opened++
		case EventClosed:
			d.eventCounts.Closed++
		}
		if event.Alarm() {
			d.eventCounts.Alarms++
		}
		events = append(events, event)
	}

	return events
}

// processChannel handles debounce logic for a single sensor.
// Returns the event type if the stable state was established or changed,
// "" otherwise.
func (d *Detector) processChannel(ch *channelState, newState gpio.Status, now time.Time) EventType {
	if ch.Baselined && newState == ch.Stable {
		// No change from stable state, clear any pending
		ch.HasPending = false
		return ""
	}

	if !ch.HasPending || ch.Pending != newState {
		// New pending state, restart debounce
		ch.Pending = newState
		ch.HasPending = true
		ch.PendingSince = now
	}

	if now.Sub(ch.PendingSince) < d.debounceDuration {
		return ""
	}

	ch.Stable = newState
	ch.HasPending = false
	if !ch.Baselined {
		ch.Baselined = true
		return EventBaseline
	}
	if newState == gpio.StatusOpened {
		return EventOpened
	}
	return EventClosed
}

func (d *Detector) channel(gpi int) *channelState {
	ch, ok := d.channels[gpi]
	if !ok {
		ch = &channelState{Stable: gpio.StatusUnknown}
		d.channels[gpi] = ch
	}
	return ch
}

// Remove stops monitoring gpi and forgets its debounce state.
func (d *Detector) Remove(gpi int) bool {
	delete(d.channels, gpi)
	return d.registry.Remove(gpi)
}

// IsBaselined reports whether every monitored sensor has a baseline.
func (d *Detector) IsBaselined() bool {
	for _, gpi := range d.registry.GPIs() {
		ch, ok := d.channels[gpi]
		if !ok || !ch.Baselined {
			return false
		}
	}
	return true
}

// Sensors returns the current monitoring records ordered by GPI.
func (d *Detector) Sensors() []Sensor {
	return d.registry.Sensors()
}

// EventCountsSnapshot returns a copy of the counters.
func (d *Detector) EventCountsSnapshot() EventCounts {
	return d.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled). Heartbeats do not wait for a baseline.
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.eventCounts,
	}
}
