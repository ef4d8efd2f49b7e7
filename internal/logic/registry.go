package logic

import (
	"fmt"
	"sort"

	"github.com/sweeney/gpio-sensor/internal/gpio"
)

// Registry owns the monitoring records, keyed by GPI number.
// Not safe for concurrent use; the polling loop is its only writer.
type Registry struct {
	sensors map[int]*Sensor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sensors: make(map[int]*Sensor)}
}

// Add registers a sensor. Its current state starts unknown.
func (r *Registry) Add(s Sensor) error {
	if s.GPI < 1 {
		return fmt.Errorf("sensor %q: GPI must be >= 1, got %d", s.Name, s.GPI)
	}
	if s.Normal != gpio.StatusClosed && s.Normal != gpio.StatusOpened {
		return fmt.Errorf("sensor %q: normal state must be closed or opened", s.Name)
	}
	if existing, ok := r.sensors[s.GPI]; ok {
		return fmt.Errorf("sensor %q: GPI %d already used by %q", s.Name, s.GPI, existing.Name)
	}
	s.Current = gpio.StatusUnknown
	r.sensors[s.GPI] = &s
	return nil
}

// Remove stops monitoring gpi. It reports whether a sensor was removed.
func (r *Registry) Remove(gpi int) bool {
	if _, ok := r.sensors[gpi]; !ok {
		return false
	}
	delete(r.sensors, gpi)
	return true
}

// Get returns a copy of the record for gpi.
func (r *Registry) Get(gpi int) (Sensor, bool) {
	s, ok := r.sensors[gpi]
	if !ok {
		return Sensor{}, false
	}
	return *s, true
}

// Len returns the number of monitored sensors.
func (r *Registry) Len() int {
	return len(r.sensors)
}

// GPIs returns the monitored GPI numbers in ascending order.
func (r *Registry) GPIs() []int {
	gpis := make([]int, 0, len(r.sensors))
	for gpi := range r.sensors {
		gpis = append(gpis, gpi)
	}
	sort.Ints(gpis)
	return gpis
}

// Sensors returns copies of all records ordered by GPI.
func (r *Registry) Sensors() []Sensor {
	out := make([]Sensor, 0, len(r.sensors))
	for _, gpi := range r.GPIs() {
		out = append(out, *r.sensors[gpi])
	}
	return out
}

func (r *Registry) lookup(gpi int) *Sensor {
	return r.sensors[gpi]
}
