package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/gpio-sensor/internal/gpio"
)

const sample = `
verbose = true

[gpio]
backend = "SYSFS"
base_offset = 500
hold_exported = true

[mqtt]
broker = "tcp://10.0.0.2:1883"
topic_prefix = "site/hall"

[monitor]
poll = "500ms"
debounce = "0s"
heartbeat = "1m"

[http]
addr = ""

[[sensor]]
name = "front door"
part_number = "DCS001"
gpi = 1
normal = "closed"

[[sensor]]
name = "window"
gpi = 4
normal = "opened"

[[gpo]]
name = "siren"
pin = 0
default = "0"
`

func loadString(t *testing.T, content string) (*Config, error) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/gpio-sensor.toml", []byte(content), 0o644))
	return Load(fs, "/gpio-sensor.toml")
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(afero.NewMemMapFs(), DefaultPath)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, gpio.DefaultBaseOffset, cfg.GPIO.BaseOffset)
	assert.Equal(t, 2*time.Second, cfg.Monitor.Poll.Duration)
}

func TestLoad(t *testing.T) {
	cfg, err := loadString(t, sample)
	require.NoError(t, err)

	assert.True(t, cfg.Verbose)
	assert.Equal(t, BackendSysfs, cfg.GPIO.Backend)
	assert.Equal(t, 500, cfg.GPIO.BaseOffset)
	assert.True(t, cfg.GPIO.HoldExported)
	assert.Equal(t, gpio.DefaultRoot, cfg.GPIO.Root, "unset keys keep their default")

	assert.Equal(t, "tcp://10.0.0.2:1883", cfg.MQTT.Broker)
	assert.Equal(t, "site/hall", cfg.MQTT.TopicPrefix)
	assert.Equal(t, "gpio-sensor", cfg.MQTT.ClientID)

	assert.Equal(t, 500*time.Millisecond, cfg.Monitor.Poll.Duration)
	assert.Zero(t, cfg.Monitor.Debounce.Duration)
	assert.Equal(t, time.Minute, cfg.Monitor.Heartbeat.Duration)
	assert.Empty(t, cfg.HTTP.Addr)

	require.Len(t, cfg.Sensors, 2)
	assert.Equal(t, Sensor{Name: "front door", PartNumber: "DCS001", GPI: 1, Normal: "closed"}, cfg.Sensors[0])
	require.Len(t, cfg.GPOs, 1)
	assert.Equal(t, "siren", cfg.GPOName(0))
	assert.Empty(t, cfg.GPOName(7))
}

func TestLoadSyntaxError(t *testing.T) {
	_, err := loadString(t, "[gpio\nbackend = 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/gpio-sensor.toml")
}

func TestLoadBadDuration(t *testing.T) {
	_, err := loadString(t, "[monitor]\npoll = \"fast\"\n")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"backend", func(c *Config) { c.GPIO.Backend = "mmio" }, "unknown backend"},
		{"base offset", func(c *Config) { c.GPIO.BaseOffset = -1 }, "base_offset"},
		{"poll", func(c *Config) { c.Monitor.Poll.Duration = 0 }, "poll"},
		{"debounce", func(c *Config) { c.Monitor.Debounce.Duration = -time.Second }, "debounce"},
		{"gpi zero", func(c *Config) {
			c.Sensors = []Sensor{{Name: "a", GPI: 0, Normal: "closed"}}
		}, "gpi must be >= 1"},
		{"duplicate gpi", func(c *Config) {
			c.Sensors = []Sensor{{Name: "a", GPI: 2, Normal: "closed"}, {Name: "b", GPI: 2, Normal: "opened"}}
		}, "duplicate gpi 2"},
		{"normal", func(c *Config) {
			c.Sensors = []Sensor{{Name: "a", GPI: 1, Normal: "ajar"}}
		}, "normal"},
		{"negative pin", func(c *Config) { c.GPOs = []GPO{{Pin: -1}} }, "pin must be >= 0"},
		{"duplicate pin", func(c *Config) { c.GPOs = []GPO{{Pin: 1}, {Pin: 1}} }, "duplicate pin 1"},
		{"gpo default", func(c *Config) { c.GPOs = []GPO{{Pin: 1, Default: "2"}} }, "default"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	c := Default()
	c.GPIO.Backend = "mmio"
	c.Monitor.Poll.Duration = 0
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
	assert.Contains(t, err.Error(), "poll")
}

func TestGPODefaultStatus(t *testing.T) {
	v, err := GPO{}.DefaultStatus()
	require.NoError(t, err)
	assert.Equal(t, gpio.StatusClosed, v)

	v, err = GPO{Default: "opened"}.DefaultStatus()
	require.NoError(t, err)
	assert.Equal(t, gpio.StatusOpened, v)
}

func TestRegistry(t *testing.T) {
	cfg, err := loadString(t, sample)
	require.NoError(t, err)

	r, err := cfg.Registry()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4}, r.GPIs())

	s, ok := r.Get(4)
	require.True(t, ok)
	assert.Equal(t, gpio.StatusOpened, s.Normal)
	assert.Equal(t, gpio.StatusUnknown, s.Current)
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	b, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(b))
}
