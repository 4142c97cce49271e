package router

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/nerrad567/garagedoor/internal/infrastructure/mqtt"
	"github.com/nerrad567/garagedoor/internal/relay"
)

// FireCommand is the only payload that triggers an actuator.
const FireCommand = "fire"

const (
	topicPrefix = "device/"
	topicSuffix = "_trigger"
)

// Message outcomes reported to SetOnMessage listeners.
const (
	ResultTriggered = "triggered"
	ResultIgnored   = "ignored"
	ResultFailed    = "failed"
)

// Logger defines the logging interface for the router.
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

// Router dispatches trigger messages to actuators by name.
type Router struct {
	actuators map[string]*relay.Actuator
	queue     <-chan mqtt.Message
	logger    Logger
	onMessage func(result string)
}

// New creates a router over the given actuators, reading from queue.
// Actuator names must be unique; a later duplicate replaces an earlier one.
func New(actuators []*relay.Actuator, queue <-chan mqtt.Message) *Router {
	byName := make(map[string]*relay.Actuator, len(actuators))
	for _, a := range actuators {
		byName[a.Name()] = a
	}
	return &Router{
		actuators: byName,
		queue:     queue,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the router.
func (r *Router) SetLogger(logger Logger) {
	r.logger = logger
}

// SetOnMessage registers a callback receiving the outcome of every message.
// Must be called before Run.
func (r *Router) SetOnMessage(fn func(result string)) {
	r.onMessage = fn
}

// Subscriptions returns the trigger topic of every actuator.
func (r *Router) Subscriptions() []string {
	topics := make([]string, 0, len(r.actuators))
	for name := range r.actuators {
		topics = append(topics, mqtt.Topics{}.Trigger(name))
	}
	return topics
}

// Match reports which actuator, if any, a message addresses.
func (r *Router) Match(topic string, payload []byte) (string, bool) {
	if !utf8.Valid(payload) || string(payload) != FireCommand {
		return "", false
	}
	if !strings.HasPrefix(topic, topicPrefix) || !strings.HasSuffix(topic, topicSuffix) {
		return "", false
	}
	if len(topic) < len(topicPrefix)+len(topicSuffix) {
		return "", false
	}
	name := topic[len(topicPrefix) : len(topic)-len(topicSuffix)]
	if _, ok := r.actuators[name]; !ok {
		return "", false
	}
	return name, true
}

// Run consumes the inbound queue until ctx is cancelled or the queue is
// closed.
func (r *Router) Run(ctx context.Context) error {
	r.logger.Info("command router started", "actuators", len(r.actuators))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("command router stopped")
			return ctx.Err()
		case msg, ok := <-r.queue:
			if !ok {
				r.logger.Info("command queue closed")
				<-ctx.Done()
				return ctx.Err()
			}
			r.handle(ctx, msg)
		}
	}
}

func (r *Router) handle(ctx context.Context, msg mqtt.Message) {
	name, ok := r.Match(msg.Topic, msg.Payload)
	if !ok {
		r.logger.Debug("command ignored", "topic", msg.Topic, "payload_bytes", len(msg.Payload))
		r.report(ResultIgnored)
		return
	}

	r.logger.Info("command received", "actuator", name)
	if err := r.actuators[name].Toggle(ctx); err != nil {
		r.logger.Warn("actuator pulse failed", "actuator", name, "error", err)
		r.report(ResultFailed)
		return
	}
	r.report(ResultTriggered)
}

func (r *Router) report(result string) {
	if r.onMessage != nil {
		r.onMessage(result)
	}
}
