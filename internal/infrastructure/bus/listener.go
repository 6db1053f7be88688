// Package bus maintains the harness's single subscription session to the
// MQTT broker. The harness is a passive observer: it subscribes to the
// wildcard patterns covering the contract namespaces and records every
// delivered message into the observation log.
package bus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"symbion.dev/harness/internal/core/observation"
)

// ConnectError wraps a failure to reach the broker or complete the
// handshake within the timeout. Fatal to the run.
type ConnectError struct {
	Broker string
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to broker %s: %v", e.Broker, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Listener owns the subscription session. Message delivery happens on the
// paho client's own goroutine; the handler only parses and appends, and
// never returns an error into the transport layer.
type Listener struct {
	log       *observation.Log
	logger    *slog.Logger
	topicRoot string
	tap       func(observation.Observation)

	mu        sync.Mutex
	client    mqtt.Client
	patterns  []string
	connected bool
}

// Option configures a Listener.
type Option func(*Listener)

// WithTopicRoot overrides the root namespace the listener subscribes under.
func WithTopicRoot(root string) Option {
	return func(l *Listener) { l.topicRoot = root }
}

// WithTap registers a callback invoked for each recorded observation, on
// the delivery goroutine. Used by the live watch view.
func WithTap(tap func(observation.Observation)) Option {
	return func(l *Listener) { l.tap = tap }
}

// NewListener returns a Listener that appends received messages to log.
func NewListener(log *observation.Log, logger *slog.Logger, opts ...Option) *Listener {
	l := &Listener{
		log:       log,
		logger:    logger,
		topicRoot: "symbion",
	}
	for _, opt := range opts {
		opt(l)
	}
	l.patterns = []string{
		l.topicRoot + "/+/+",
		l.topicRoot + "/+/+/+",
	}
	return l
}

// Connect establishes the session and subscribes to the two- and
// three-segment wildcard patterns under the topic root. A broker that is
// unreachable, or a handshake or subscription that does not complete within
// timeout, yields a ConnectError.
func (l *Listener) Connect(host string, port int, timeout time.Duration) error {
	broker := fmt.Sprintf("tcp://%s:%d", host, port)

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("symbion-harness-" + uuid.NewString()[:8]).
		SetConnectTimeout(timeout).
		SetAutoReconnect(true).
		SetCleanSession(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return &ConnectError{Broker: broker, Err: fmt.Errorf("handshake timed out after %s", timeout)}
	}
	if err := token.Error(); err != nil {
		return &ConnectError{Broker: broker, Err: err}
	}

	for _, pattern := range l.patterns {
		sub := client.Subscribe(pattern, 0, l.onMessage)
		if !sub.WaitTimeout(timeout) {
			client.Disconnect(250)
			return &ConnectError{Broker: broker, Err: fmt.Errorf("subscribe to %s timed out", pattern)}
		}
		if err := sub.Error(); err != nil {
			client.Disconnect(250)
			return &ConnectError{Broker: broker, Err: fmt.Errorf("subscribe to %s: %w", pattern, err)}
		}
	}

	l.mu.Lock()
	l.client = client
	l.connected = true
	l.mu.Unlock()

	l.logger.Info("connected to broker", "broker", broker, "patterns", l.patterns)
	return nil
}

// onMessage runs on the paho delivery goroutine. Payloads that are not
// valid JSON are logged and dropped so a misbehaving publisher cannot
// destabilize the subscription.
func (l *Listener) onMessage(_ mqtt.Client, msg mqtt.Message) {
	raw := msg.Payload()
	if !json.Valid(raw) {
		l.logger.Warn("dropping malformed payload", "topic", msg.Topic(), "bytes", len(raw))
		return
	}

	payload := make(json.RawMessage, len(raw))
	copy(payload, raw)

	o := observation.Observation{
		Topic:      msg.Topic(),
		Payload:    payload,
		ReceivedAt: time.Now(),
	}
	l.log.Append(o)
	l.logger.Debug("observed message", "topic", o.Topic)

	if l.tap != nil {
		l.tap(o)
	}
}

// Disconnect unsubscribes and closes the session. Idempotent.
func (l *Listener) Disconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected {
		return
	}
	l.connected = false

	if token := l.client.Unsubscribe(l.patterns...); token.WaitTimeout(2*time.Second) && token.Error() != nil {
		l.logger.Warn("unsubscribe failed", "error", token.Error())
	}
	l.client.Disconnect(250)
	l.logger.Info("disconnected from broker")
}
