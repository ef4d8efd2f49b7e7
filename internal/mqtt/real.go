package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/gpio-sensor/internal/logic"
)

// DefaultBufferSize is the number of messages kept while disconnected.
const DefaultBufferSize = 256

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Topics     Topics
	BufferSize int
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topics Topics
	buf    *ringBuffer
	log    zerolog.Logger

	mu      sync.Mutex
	handler CommandHandler

	// sendMu orders direct publishes after the replay of buffered ones.
	// online is false until onConnect has replayed the buffer.
	sendMu sync.Mutex
	online bool
}

// NewRealPublisher creates a publisher for the given broker. If the broker
// is not reachable within the connect timeout, the client keeps retrying in
// the background and messages are buffered meanwhile.
func NewRealPublisher(opts Options) (*RealPublisher, error) {
	if opts.ClientID == "" {
		opts.ClientID = "gpio-sensor"
	}
	if opts.Topics == (Topics{}) {
		opts.Topics = NewTopics(DefaultTopicPrefix)
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}

	p := &RealPublisher{
		topics: opts.Topics,
		log:    log.With().Str("component", "mqtt").Logger(),
	}
	p.buf = newRingBuffer(opts.BufferSize, p.log)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "connection lost",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(opts.Topics.System, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(clientOpts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		p.log.Warn().Str("broker", opts.Broker).Msg("broker not reachable yet, buffering until connected")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// Publish sends a sensor event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	if err := p.send(p.topics.Events, 0, false, payload); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	if err := p.send(p.topics.System, 1, event.Retained, payload); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// Subscribe registers handler for GPO commands. The subscription is renewed
// on every reconnect.
func (p *RealPublisher) Subscribe(handler CommandHandler) error {
	p.mu.Lock()
	p.handler = handler
	p.mu.Unlock()

	if !p.client.IsConnectionOpen() {
		return nil
	}
	return p.subscribe(p.client, handler)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	return p.buf.len()
}

// Close disconnects from the broker. Messages still buffered are lost.
func (p *RealPublisher) Close() error {
	if n := p.Buffered(); n > 0 {
		p.log.Warn().Int("count", n).Msg("discarding buffered messages")
	}
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	if !p.online || !p.client.IsConnectionOpen() {
		p.buf.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("timeout")
	}
	return token.Error()
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.sendMu.Lock()
	p.replay(c)
	p.online = true
	p.sendMu.Unlock()

	p.mu.Lock()
	handler := p.handler
	p.mu.Unlock()
	if handler != nil {
		if err := p.subscribe(c, handler); err != nil {
			p.log.Error().Err(err).Msg("subscribe to commands")
		}
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.sendMu.Lock()
	p.online = false
	p.sendMu.Unlock()
	p.log.Warn().Err(err).Msg("connection lost")
}

// replay publishes the buffered messages in order. sendMu must be held.
func (p *RealPublisher) replay(c paho.Client) {
	msgs := p.buf.drainAll()
	if len(msgs) > 0 {
		p.log.Info().Int("count", len(msgs)).Msg("replaying buffered messages")
	}
	for _, m := range msgs {
		token := c.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(5 * time.Second) {
			p.log.Warn().Str("topic", m.topic).Msg("replay timeout")
			continue
		}
		if err := token.Error(); err != nil {
			p.log.Warn().Err(err).Str("topic", m.topic).Msg("replay failed")
		}
	}
}

func (p *RealPublisher) subscribe(c paho.Client, handler CommandHandler) error {
	token := c.Subscribe(p.topics.Command, 1, func(_ paho.Client, msg paho.Message) {
		p.handleCommand(handler, msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe %s: timeout", p.topics.Command)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", p.topics.Command, err)
	}
	return nil
}

func (p *RealPublisher) handleCommand(handler CommandHandler, payload []byte) {
	if err := dispatchCommand(handler, payload); err != nil {
		p.log.Error().Err(err).Bytes("payload", payload).Msg("GPO command failed")
	}
}

// dispatchCommand parses payload and hands it to handler.
func dispatchCommand(handler CommandHandler, payload []byte) error {
	pin, value, err := ParseCommand(payload)
	if err != nil {
		return err
	}
	return handler(pin, value)
}
