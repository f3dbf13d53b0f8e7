package relay

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/doorsync/doorsync-core/internal/door"
	"github.com/doorsync/doorsync-core/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on
	// disconnect, in milliseconds.
	defaultDisconnectQuiesce = 1000

	// defaultKeepAlive is the keepalive interval for the broker connection.
	defaultKeepAlive = 60 * time.Second
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Info(string, ...any)  {}

// Publisher republishes door state onto an MQTT broker for companion
// consumers (wall displays, notification daemons) that speak MQTT rather
// than the controller's stream.
//
// Per-door state topics are retained so a consumer that connects hours
// after the last movement still sees the current state immediately.
// Transition topics are fire-and-forget events. A Last Will on the status
// topic marks the service offline if it dies without a clean shutdown.
//
// Thread Safety: all methods are safe for concurrent use. HandleTransition
// is designed to run on a fan-out delivery goroutine; a broker outage makes
// it drop (and log) rather than block.
type Publisher struct {
	client  pahomqtt.Client
	topics  topics
	qos     byte
	retries bool

	connected bool
	connMu    sync.RWMutex

	onConnect  func()
	callbackMu sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// transitionPayload is the JSON body published on transition topics.
type transitionPayload struct {
	DoorID    int    `json:"door_id"`
	Previous  string `json:"previous"`
	New       string `json:"new"`
	Timestamp string `json:"timestamp"`
}

// Connect establishes a connection to the MQTT broker.
//
// It configures a Last Will and Testament on the status topic so
// consumers can tell a crashed relay from a quiet one, enables paho's
// auto-reconnect, and publishes the online status once connected.
//
// Parameters:
//   - cfg: Relay configuration from config.yaml
//
// Returns:
//   - *Publisher: Connected publisher ready for use
//   - error: If initial connection fails within timeout
func Connect(cfg config.RelayConfig) (*Publisher, error) {
	opts := buildClientOptions(cfg)

	p := &Publisher{
		topics: topics{prefix: cfg.TopicPrefix},
		qos:    byte(cfg.QoS),
		logger: noopLogger{},
	}

	opts.SetWill(p.topics.Status(), availabilityPayload("offline", cfg.Broker.ClientID), 1, true)

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		p.handleConnect(cfg.Broker.ClientID)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		p.handleDisconnect(err)
	})

	p.client = pahomqtt.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnectHandler runs asynchronously and may not have executed
	// yet; set connected here so IsConnected() is true on return.
	p.connMu.Lock()
	p.connected = true
	p.connMu.Unlock()

	return p, nil
}

// buildClientOptions creates paho MQTT options from relay config.
func buildClientOptions(cfg config.RelayConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	return opts
}

// handleConnect is called on initial connect and every reconnect.
func (p *Publisher) handleConnect(clientID string) {
	p.connMu.Lock()
	p.connected = true
	p.connMu.Unlock()

	p.client.Publish(p.topics.Status(), 1, true, availabilityPayload("online", clientID))

	p.callbackMu.RLock()
	callback := p.onConnect
	p.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect is called when the broker connection is lost.
func (p *Publisher) handleDisconnect(err error) {
	p.connMu.Lock()
	p.connected = false
	p.connMu.Unlock()

	p.getLogger().Warn("relay broker connection lost", "error", err)
}

// PublishState publishes a door's current state as a retained message.
//
// Called for every observed transition and, via the OnConnect callback,
// for the full snapshot after a broker reconnect so retained topics never
// go stale across outages.
func (p *Publisher) PublishState(id door.ID, state door.State) error {
	return p.publish(p.topics.DoorState(id), []byte(state), true)
}

// PublishTransition publishes one door movement as a non-retained event.
func (p *Publisher) PublishTransition(tr door.Transition) error {
	payload, err := json.Marshal(transitionPayload{
		DoorID:    int(tr.Door),
		Previous:  string(tr.Previous),
		New:       string(tr.New),
		Timestamp: tr.At.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("%w: encoding transition: %w", ErrPublishFailed, err)
	}
	return p.publish(p.topics.DoorTransition(tr.Door), payload, false)
}

// HandleTransition is the fan-out subscriber entry point: it publishes the
// retained state and the transition event, logging failures instead of
// returning them so a broker outage never disturbs state tracking.
func (p *Publisher) HandleTransition(tr door.Transition) {
	if err := p.PublishState(tr.Door, tr.New); err != nil {
		p.getLogger().Warn("relay state publish dropped",
			"door_id", int(tr.Door),
			"state", string(tr.New),
			"error", err,
		)
		return
	}
	if err := p.PublishTransition(tr); err != nil {
		p.getLogger().Warn("relay transition publish dropped",
			"door_id", int(tr.Door),
			"error", err,
		)
	}
}

// publish sends one message with the configured QoS, bounded by the
// publish timeout.
func (p *Publisher) publish(topic string, payload []byte, retained bool) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}

	token := p.client.Publish(topic, p.qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Close publishes a graceful offline status and disconnects.
//
// The graceful status differs from the LWT payload so consumers can tell
// a clean shutdown from a crash.
func (p *Publisher) Close() error {
	if p.client == nil {
		return nil
	}

	if p.IsConnected() {
		token := p.client.Publish(p.topics.Status(), 1, true, availabilityPayload("offline", ""))
		token.WaitTimeout(defaultPublishTimeout)
	}

	p.client.Disconnect(defaultDisconnectQuiesce)

	p.connMu.Lock()
	p.connected = false
	p.connMu.Unlock()

	return nil
}

// IsConnected returns the current connection state.
func (p *Publisher) IsConnected() bool {
	p.connMu.RLock()
	defer p.connMu.RUnlock()
	return p.connected && p.client.IsConnected()
}

// SetOnConnect sets a callback invoked on initial connect and every
// reconnect. Used to republish the full retained snapshot.
func (p *Publisher) SetOnConnect(callback func()) {
	p.callbackMu.Lock()
	p.onConnect = callback
	p.callbackMu.Unlock()
}

// SetLogger sets a logger for connection and publish events.
func (p *Publisher) SetLogger(logger Logger) {
	p.loggerMu.Lock()
	p.logger = logger
	p.loggerMu.Unlock()
}

func (p *Publisher) getLogger() Logger {
	p.loggerMu.RLock()
	defer p.loggerMu.RUnlock()
	return p.logger
}

// availabilityPayload builds the JSON body for the status topic.
func availabilityPayload(status, clientID string) string {
	body := map[string]string{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if clientID != "" {
		body["client_id"] = clientID
	}
	payload, _ := json.Marshal(body)
	return string(payload)
}
