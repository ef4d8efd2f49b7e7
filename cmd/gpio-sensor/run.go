package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sweeney/gpio-sensor/internal/config"
	"github.com/sweeney/gpio-sensor/internal/gpio"
	"github.com/sweeney/gpio-sensor/internal/logging"
	"github.com/sweeney/gpio-sensor/internal/logic"
	"github.com/sweeney/gpio-sensor/internal/mqtt"
	"github.com/sweeney/gpio-sensor/internal/pubsub"
	"github.com/sweeney/gpio-sensor/internal/status"
	"github.com/sweeney/gpio-sensor/internal/web"
)

func init() {
	runCmd.Flags().StringVar(&runOpts.Broker, "broker", "", "MQTT broker address (overrides config)")
	runCmd.Flags().StringVar(&runOpts.HTTPAddr, "http", "", `HTTP status address (overrides config, "off" disables)`)
	rootCmd.AddCommand(runCmd)
}

var (
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Monitor the configured sensors",
		Long: `Poll the configured GPI sensors, publish state changes to MQTT and
serve the status page until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: run,
	}
	runOpts = struct {
		Broker   string
		HTTPAddr string
	}{}
)

// applyRunFlags folds the command line overrides into c.
func applyRunFlags(c *config.Config) {
	if runOpts.Broker != "" {
		c.MQTT.Broker = runOpts.Broker
	}
	switch runOpts.HTTPAddr {
	case "":
	case "off":
		c.HTTP.Addr = ""
	default:
		c.HTTP.Addr = runOpts.HTTPAddr
	}
}

func run(cmd *cobra.Command, args []string) error {
	applyRunFlags(cfg)

	registry, err := cfg.Registry()
	if err != nil {
		return err
	}
	if registry.Len() == 0 {
		log.Warn().Str("config", rootOpts.ConfigPath).Msg("no sensors configured")
	}

	ctrl, err := newController(cfg)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer func() {
		if err := ctrl.Close(); err != nil {
			log.Error().Err(err).Msg("gpio close")
		}
	}()

	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      cfg.Monitor.Poll.Milliseconds(),
		DebounceMs:  cfg.Monitor.Debounce.Milliseconds(),
		HeartbeatMs: cfg.Monitor.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
		Backend:     cfg.GPIO.Backend,
		BaseOffset:  cfg.GPIO.BaseOffset,
	})

	if err := configureOutputs(ctrl, cfg.GPOs, tracker); err != nil {
		return err
	}

	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:     cfg.MQTT.Broker,
		ClientID:   cfg.MQTT.ClientID,
		Topics:     mqtt.NewTopics(cfg.MQTT.TopicPrefix),
		BufferSize: cfg.MQTT.Buffer,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	if err := publisher.Subscribe(gpoHandler(ctrl, cfg, tracker)); err != nil {
		log.Error().Err(err).Msg("subscribe to GPO commands")
	}

	events := pubsub.New[logic.Event](16)

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, events)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http status server listening")
	}

	log.Info().
		Dur("poll", cfg.Monitor.Poll.Duration).
		Dur("debounce", cfg.Monitor.Debounce.Duration).
		Dur("heartbeat", cfg.Monitor.Heartbeat.Duration).
		Str("broker", cfg.MQTT.Broker).
		Str("backend", cfg.GPIO.Backend).
		Int("sensors", registry.Len()).
		Msg("started")

	ticker := time.NewTicker(cfg.Monitor.Poll.Duration)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	m := newMonitor(ctrl, registry, publisher, cfg.Monitor.Debounce.Duration, cfg.Monitor.Heartbeat.Duration, time.Now)
	m.mqttStatus = publisher
	m.tracker = tracker
	m.events = events
	return m.run(ticker.C, sigCh)
}

// configureOutputs exports every configured GPO as an output at its default.
func configureOutputs(ctrl gpio.Controller, gpos []config.GPO, tracker *status.Tracker) error {
	for _, o := range gpos {
		v, err := o.DefaultStatus()
		if err != nil {
			return err
		}
		if err := ctrl.ConfigureOutput(o.Pin, v); err != nil {
			return fmt.Errorf("configure GPO #%d (%s): %w", o.Pin, o.Name, err)
		}
		tracker.SetOutput(status.Output{Name: o.Name, Pin: o.Pin, Value: v})
		log.Debug().Int("pin", o.Pin).Str("name", o.Name).Stringer("value", v).Msg("GPO configured")
	}
	return nil
}

// gpoHandler drives configured GPO pins in response to bus commands.
func gpoHandler(ctrl gpio.Controller, c *config.Config, tracker *status.Tracker) mqtt.CommandHandler {
	logger := logging.Component("gpo")
	configured := make(map[int]string, len(c.GPOs))
	for _, o := range c.GPOs {
		configured[o.Pin] = o.Name
	}

	return func(pin int, value gpio.Status) error {
		name, ok := configured[pin]
		if !ok {
			return fmt.Errorf("GPO #%d is not configured", pin)
		}
		if err := ctrl.Write(pin, value); err != nil {
			return fmt.Errorf("write GPO #%d: %w", pin, err)
		}
		tracker.SetOutput(status.Output{Name: name, Pin: pin, Value: value})
		logger.Info().Int("pin", pin).Str("name", name).Stringer("value", value).Msg("GPO set")
		return nil
	}
}

// monitor is the polling loop state.
type monitor struct {
	reader     gpio.Reader
	registry   *logic.Registry
	detector   *logic.Detector
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	events     *pubsub.Pubsub[logic.Event]
	heartbeat  time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

func newMonitor(reader gpio.Reader, registry *logic.Registry, publisher mqtt.Publisher, debounce, heartbeat time.Duration, now func() time.Time) *monitor {
	return &monitor{
		reader:    reader,
		registry:  registry,
		detector:  logic.NewDetector(registry, debounce, now()),
		publisher: publisher,
		heartbeat: heartbeat,
		now:       now,
		log:       logging.Component("monitor"),
	}
}

// run polls on every tick until a signal arrives. The tracker, connection
// status and event stream are optional.
func (m *monitor) run(tick <-chan time.Time, sig <-chan os.Signal) error {
	m.publishLifecycle("STARTUP", "")

	for {
		select {
		case s := <-sig:
			m.log.Info().Stringer("signal", s).Msg("shutting down")
			m.publishLifecycle("SHUTDOWN", signalName(s))
			return nil

		case <-tick:
			m.poll(m.now())
		}
	}
}

func (m *monitor) poll(t time.Time) {
	readings := make(map[int]gpio.Status, m.registry.Len())
	for _, gpi := range m.registry.GPIs() {
		v := m.reader.Read(gpi)
		if v == gpio.StatusUnknown {
			m.log.Warn().Int("gpi", gpi).Msgf("can't read GPI sensor #%d status", gpi)
		} else {
			m.log.Debug().Int("gpi", gpi).Msgf("Read %s (value: %d) on GPI #%d", v, int(v), gpi)
		}
		readings[gpi] = v
	}

	for _, event := range m.detector.Process(logic.Input{Readings: readings, Time: t}) {
		s := event.Sensor
		level := zerolog.InfoLevel
		if event.Alarm() {
			level = zerolog.WarnLevel
		}
		m.log.WithLevel(level).Str("event", string(event.Type)).
			Str("sensor", s.Name).
			Int("gpi", s.GPI).
			Stringer("state", s.Current).
			Stringer("normal", s.Normal).
			Bool("alarm", event.Alarm()).
			Msg("sensor event")

		if err := m.publisher.Publish(event); err != nil {
			// Don't crash on publish failure
			m.log.Error().Err(err).Msg("publish error")
		}
		if m.events != nil {
			m.events.Publish(event)
		}
	}

	m.updateTracker()

	if hb := m.detector.CheckHeartbeat(t, m.heartbeat); hb != nil {
		m.log.Info().
			Dur("uptime", hb.Uptime).
			Int("opened", hb.Counts.Opened).
			Int("closed", hb.Counts.Closed).
			Int("alarms", hb.Counts.Alarms).
			Int("read_failures", hb.Counts.ReadFailures).
			Msg("heartbeat")

		ev := mqtt.SystemEvent{Timestamp: hb.Timestamp, Event: "HEARTBEAT"}
		if m.tracker != nil {
			ev.RawPayload = status.FormatStatusEvent(m.tracker.Snapshot(), "HEARTBEAT", "")
		}
		if err := m.publisher.PublishSystem(ev); err != nil {
			m.log.Error().Err(err).Msg("heartbeat publish error")
		}
	}
}

func (m *monitor) updateTracker() {
	if m.tracker == nil {
		return
	}
	m.tracker.Update(m.detector.Sensors(), m.detector.IsBaselined(), m.detector.EventCountsSnapshot())
	if m.mqttStatus != nil {
		m.tracker.SetMQTTConnected(m.mqttStatus.IsConnected())
	}
}

// publishLifecycle sends a retained STARTUP or SHUTDOWN event carrying the
// current status snapshot.
func (m *monitor) publishLifecycle(event, reason string) {
	ev := mqtt.SystemEvent{
		Timestamp: m.now(),
		Event:     event,
		Reason:    reason,
		Retained:  true,
	}
	if m.tracker != nil {
		m.updateTracker()
		ev.RawPayload = status.FormatStatusEvent(m.tracker.Snapshot(), event, reason)
	}
	if err := m.publisher.PublishSystem(ev); err != nil {
		m.log.Error().Err(err).Str("event", event).Msg("failed to publish system event")
		return
	}
	m.log.Info().Str("event", event).Msg("published system event")
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
