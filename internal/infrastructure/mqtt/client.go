package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/garagedoor/internal/infrastructure/config"
)

// Inbound limits.
const (
	// QueueCapacity is the number of inbound messages buffered for the router.
	QueueCapacity = 16

	// MaxTopicLength is the longest topic accepted in either direction.
	MaxTopicLength = 128

	// MaxPayloadSize is the largest payload accepted in either direction.
	MaxPayloadSize = 256
)

// reconnectPoll is how often Connect checks on a reconnect paho is
// already running.
const reconnectPoll = 100 * time.Millisecond

// Message is one inbound message handed to the command router.
type Message struct {
	Topic   string
	Payload []byte
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Session is the controller's connection to the MQTT broker.
//
// The underlying paho client is created lazily by the first Connect, so a
// Session can be handed to the connectivity supervisor before the network
// is up. Inbound messages on subscribed topics are delivered, in order, to
// a bounded channel returned by Messages.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are restored on every (re)connection.
type Session struct {
	cfg      config.MQTTConfig
	clientID string
	deviceID string
	qos      byte

	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client
	client    pahomqtt.Client
	clientMu  sync.Mutex

	queue     chan Message
	done      chan struct{}
	closeOnce sync.Once

	// subscriptions tracks topics for re-subscription on reconnect.
	subscriptions map[string]byte
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// NewSession creates a disconnected session for deviceID.
//
// An empty cfg.Broker.ClientID is replaced by a random one.
func NewSession(cfg config.MQTTConfig, deviceID string) *Session {
	clientID := cfg.Broker.ClientID
	if clientID == "" {
		clientID = "garagedoor-" + uuid.NewString()[:8]
	}
	return &Session{
		cfg:           cfg,
		clientID:      clientID,
		deviceID:      deviceID,
		qos:           byte(cfg.QoS),
		newClient:     pahomqtt.NewClient,
		queue:         make(chan Message, QueueCapacity),
		done:          make(chan struct{}),
		subscriptions: make(map[string]byte),
		logger:        noopLogger{},
	}
}

// ClientID returns the MQTT client identifier in use.
func (s *Session) ClientID() string {
	return s.clientID
}

// Messages returns the inbound queue. It is never closed; consumers stop
// on their own context.
func (s *Session) Messages() <-chan Message {
	return s.queue
}

// Connect brings the session up, creating the client on first use.
//
// On the first call it performs the following setup:
//  1. Builds connection options from config (broker URL, auth, TLS)
//  2. Configures the Last Will so the broker marks the device offline
//  3. Enables paho auto-reconnect with ordered delivery
//  4. Attempts the connection with a timeout
//
// The OnConnect handler then publishes "online" and restores tracked
// subscriptions. Calling Connect on a connected session is a no-op. If paho
// is already reconnecting on its own, Connect waits for that attempt
// instead of starting a second one.
//
// Parameters:
//   - ctx: Bounds the wait; cancellation aborts the attempt
//
// Returns:
//   - error: ErrClosed after Close, or ErrConnectionFailed wrapping the
//     broker error
func (s *Session) Connect(ctx context.Context) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	client := s.ensureClient()

	if client.IsConnectionOpen() {
		s.setConnected(true)
		return nil
	}

	// paho's IsConnected is also true while auto-reconnect is in progress.
	if client.IsConnected() {
		return s.awaitReconnect(ctx, client)
	}

	if err := waitToken(ctx, client.Connect(), defaultConnectTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs asynchronously; mark connected here so
	// IsConnected is true as soon as Connect returns.
	s.setConnected(true)
	return nil
}

// ensureClient returns the paho client, creating it on first call.
func (s *Session) ensureClient() pahomqtt.Client {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()

	if s.client != nil {
		return s.client
	}

	opts := buildClientOptions(s.cfg, s.clientID)
	configureLWT(opts, s.deviceID, s.qos)

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		s.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		s.handleDisconnect(err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		s.getLogger().Debug("mqtt reconnecting")
	})

	s.client = s.newClient(opts)
	return s.client
}

// awaitReconnect polls until paho's reconnect finishes or the attempt times out.
func (s *Session) awaitReconnect(ctx context.Context, client pahomqtt.Client) error {
	deadline := time.NewTimer(defaultConnectTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(reconnectPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: reconnect did not finish within %v", ErrConnectionFailed, defaultConnectTimeout)
		case <-ticker.C:
			if client.IsConnectionOpen() {
				s.setConnected(true)
				return nil
			}
		}
	}
}

// waitToken waits for a paho token, bounded by ctx and timeout.
func waitToken(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}
}

// handleConnect is called when the connection is established.
func (s *Session) handleConnect() {
	s.setConnected(true)
	s.restoreSubscriptions()
	s.publishAvailability(PayloadOnline)
	s.getLogger().Info("mqtt connected", "client_id", s.clientID)

	s.callbackMu.RLock()
	callback := s.onConnect
	s.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect is called when the connection is lost.
func (s *Session) handleDisconnect(err error) {
	s.setConnected(false)
	s.getLogger().Warn("mqtt connection lost", "error", err)

	s.callbackMu.RLock()
	callback := s.onDisconnect
	s.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions re-subscribes to all tracked topics after reconnect.
func (s *Session) restoreSubscriptions() {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	client := s.currentClient()
	for topic, qos := range s.subscriptions {
		// Errors surface on the next reconnect; nothing to retry here.
		client.Subscribe(topic, qos, s.deliver)
	}
}

// publishAvailability sends the retained availability payload without waiting.
func (s *Session) publishAvailability(payload string) pahomqtt.Token {
	return s.currentClient().Publish(Topics{}.Availability(s.deviceID), s.qos, true, payload)
}

// deliver is the paho handler for every subscription. It drops oversized
// messages and blocks while the queue is full.
func (s *Session) deliver(_ pahomqtt.Client, msg pahomqtt.Message) {
	defer func() {
		if r := recover(); r != nil {
			s.getLogger().Error("MQTT handler panic recovered",
				"topic", msg.Topic(),
				"panic", r,
			)
		}
	}()

	topic, payload := msg.Topic(), msg.Payload()
	if len(topic) > MaxTopicLength || len(payload) > MaxPayloadSize {
		s.getLogger().Debug("inbound message dropped",
			"topic_bytes", len(topic),
			"payload_bytes", len(payload),
		)
		return
	}

	m := Message{Topic: topic, Payload: append([]byte(nil), payload...)}
	select {
	case s.queue <- m:
	case <-s.done:
	}
}

// Close gracefully disconnects from the MQTT broker.
//
// It performs:
//  1. Stops delivery into the inbound queue
//  2. Publishes a graceful offline status (the LWT covers crashes)
//  3. Disconnects after letting pending work quiesce
//
// Close is safe to call more than once and on a session that never
// connected.
//
// Returns:
//   - error: Always nil; paho's Disconnect does not report failures
func (s *Session) Close() error {
	s.closeOnce.Do(func() { close(s.done) })

	client := s.currentClient()
	if client == nil {
		return nil
	}

	if s.IsConnected() {
		s.publishAvailability(PayloadOffline).WaitTimeout(defaultPublishTimeout)
	}

	client.Disconnect(defaultDisconnectQuiesce)
	s.setConnected(false)
	return nil
}

// HealthCheck reports whether the session is connected.
func (s *Session) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !s.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns whether the broker connection is currently open.
func (s *Session) IsConnected() bool {
	client := s.currentClient()
	if client == nil {
		return false
	}
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.connected && client.IsConnectionOpen()
}

// SetOnConnect sets a callback invoked on every (re)connection.
func (s *Session) SetOnConnect(callback func()) {
	s.callbackMu.Lock()
	s.onConnect = callback
	s.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
func (s *Session) SetOnDisconnect(callback func(err error)) {
	s.callbackMu.Lock()
	s.onDisconnect = callback
	s.callbackMu.Unlock()
}

// SetLogger sets the logger for the session.
func (s *Session) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

func (s *Session) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

func (s *Session) currentClient() pahomqtt.Client {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()
	return s.client
}

func (s *Session) setConnected(v bool) {
	s.connMu.Lock()
	s.connected = v
	s.connMu.Unlock()
}
