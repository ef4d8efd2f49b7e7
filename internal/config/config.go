// Package config loads the daemon configuration from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/sweeney/gpio-sensor/internal/gpio"
	"github.com/sweeney/gpio-sensor/internal/logic"
	"github.com/sweeney/gpio-sensor/internal/mqtt"
)

// DefaultPath is where the daemon looks for its config file.
const DefaultPath = "/etc/gpio-sensor/gpio-sensor.toml"

// Backend names.
const (
	BackendSysfs = "sysfs"
	BackendCdev  = "cdev"
)

// Duration is a time.Duration that decodes from strings like "250ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// GPIO selects and configures the GPIO backend.
type GPIO struct {
	Backend      string `toml:"backend"`
	Root         string `toml:"root"`
	BaseOffset   int    `toml:"base_offset"`
	HoldExported bool   `toml:"hold_exported"`
	Chip         string `toml:"chip"`
}

// MQTT configures the broker connection.
type MQTT struct {
	Broker      string `toml:"broker"`
	ClientID    string `toml:"client_id"`
	TopicPrefix string `toml:"topic_prefix"`
	Buffer      int    `toml:"buffer"`
}

// Monitor holds the polling loop timings. A zero heartbeat disables it.
type Monitor struct {
	Poll      Duration `toml:"poll"`
	Debounce  Duration `toml:"debounce"`
	Heartbeat Duration `toml:"heartbeat"`
}

// HTTP configures the status server. An empty address disables it.
type HTTP struct {
	Addr string `toml:"addr"`
}

// Sensor describes one monitored GPI.
type Sensor struct {
	Name       string `toml:"name"`
	PartNumber string `toml:"part_number"`
	GPI        int    `toml:"gpi"`
	Normal     string `toml:"normal"`
}

// GPO describes one output pin.
type GPO struct {
	Name    string `toml:"name"`
	Pin     int    `toml:"pin"`
	Default string `toml:"default"`
}

// Config is the full daemon configuration.
type Config struct {
	Verbose bool     `toml:"verbose"`
	GPIO    GPIO     `toml:"gpio"`
	MQTT    MQTT     `toml:"mqtt"`
	Monitor Monitor  `toml:"monitor"`
	HTTP    HTTP     `toml:"http"`
	Sensors []Sensor `toml:"sensor"`
	GPOs    []GPO    `toml:"gpo"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		GPIO: GPIO{
			Backend:    BackendSysfs,
			Root:       gpio.DefaultRoot,
			BaseOffset: gpio.DefaultBaseOffset,
			Chip:       "gpiochip0",
		},
		MQTT: MQTT{
			Broker:      "tcp://localhost:1883",
			ClientID:    "gpio-sensor",
			TopicPrefix: mqtt.DefaultTopicPrefix,
			Buffer:      mqtt.DefaultBufferSize,
		},
		Monitor: Monitor{
			Poll:      Duration{2 * time.Second},
			Debounce:  Duration{250 * time.Millisecond},
			Heartbeat: Duration{15 * time.Minute},
		},
		HTTP: HTTP{Addr: ":8080"},
	}
}

// Load reads path from fs over the defaults. A missing file is not an error.
func Load(fs afero.Fs, path string) (*Config, error) {
	cfg := Default()

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("parse %s:%d:%d: %w", path, row, col, err)
		}
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.GPIO.Backend = strings.ToLower(cfg.GPIO.Backend)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []error

	switch c.GPIO.Backend {
	case BackendSysfs, BackendCdev:
	default:
		errs = append(errs, fmt.Errorf("gpio: unknown backend %q", c.GPIO.Backend))
	}
	if c.GPIO.BaseOffset < 0 {
		errs = append(errs, fmt.Errorf("gpio: negative base_offset %d", c.GPIO.BaseOffset))
	}
	if c.Monitor.Poll.Duration <= 0 {
		errs = append(errs, errors.New("monitor: poll must be positive"))
	}
	if c.Monitor.Debounce.Duration < 0 {
		errs = append(errs, errors.New("monitor: debounce must not be negative"))
	}

	gpis := make(map[int]bool)
	for i, s := range c.Sensors {
		if s.GPI < 1 {
			errs = append(errs, fmt.Errorf("sensor[%d]: gpi must be >= 1, got %d", i, s.GPI))
		} else if gpis[s.GPI] {
			errs = append(errs, fmt.Errorf("sensor[%d]: duplicate gpi %d", i, s.GPI))
		}
		gpis[s.GPI] = true
		if _, err := gpio.ParseStatus(s.Normal); err != nil {
			errs = append(errs, fmt.Errorf("sensor[%d]: normal: %w", i, err))
		}
	}

	pins := make(map[int]bool)
	for i, o := range c.GPOs {
		if o.Pin < 0 {
			errs = append(errs, fmt.Errorf("gpo[%d]: pin must be >= 0, got %d", i, o.Pin))
		} else if pins[o.Pin] {
			errs = append(errs, fmt.Errorf("gpo[%d]: duplicate pin %d", i, o.Pin))
		}
		pins[o.Pin] = true
		if _, err := o.DefaultStatus(); err != nil {
			errs = append(errs, fmt.Errorf("gpo[%d]: default: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

// DefaultStatus returns the value the pin is driven to at startup. An empty
// default means closed.
func (o GPO) DefaultStatus() (gpio.Status, error) {
	if o.Default == "" {
		return gpio.StatusClosed, nil
	}
	return gpio.ParseStatus(o.Default)
}

// GPOName returns the configured name of pin, or "".
func (c *Config) GPOName(pin int) string {
	for _, o := range c.GPOs {
		if o.Pin == pin {
			return o.Name
		}
	}
	return ""
}

// Registry builds the sensor registry from the [[sensor]] entries.
func (c *Config) Registry() (*logic.Registry, error) {
	r := logic.NewRegistry()
	for _, s := range c.Sensors {
		normal, err := gpio.ParseStatus(s.Normal)
		if err != nil {
			return nil, fmt.Errorf("sensor %q: %w", s.Name, err)
		}
		err = r.Add(logic.Sensor{
			Name:       s.Name,
			PartNumber: s.PartNumber,
			GPI:        s.GPI,
			Normal:     normal,
		})
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}
