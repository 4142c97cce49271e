package mqtt

import (
	"errors"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// fakeToken is a completed paho token.
type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

// fakeMessage is an inbound paho message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

// fakeClient implements pahomqtt.Client in memory.
type fakeClient struct {
	mu          sync.Mutex
	opts        *pahomqtt.ClientOptions
	open        bool
	connectErr  error
	connects    int
	published   []published
	subscribed  map[string]pahomqtt.MessageHandler
	disconnects int
}

func newFakeClient(opts *pahomqtt.ClientOptions) *fakeClient {
	return &fakeClient{opts: opts, subscribed: make(map[string]pahomqtt.MessageHandler)}
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeClient) IsConnectionOpen() bool {
	return c.IsConnected()
}

func (c *fakeClient) Connect() pahomqtt.Token {
	c.mu.Lock()
	c.connects++
	err := c.connectErr
	if err == nil {
		c.open = true
	}
	c.mu.Unlock()

	if err == nil && c.opts.OnConnect != nil {
		c.opts.OnConnect(c)
	}
	return newFakeToken(err)
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	c.open = false
	c.disconnects++
	c.mu.Unlock()
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	var body string
	switch p := payload.(type) {
	case string:
		body = p
	case []byte:
		body = string(p)
	}
	c.mu.Lock()
	c.published = append(c.published, published{topic: topic, qos: qos, retained: retained, payload: body})
	c.mu.Unlock()
	return newFakeToken(nil)
}

func (c *fakeClient) Subscribe(topic string, _ byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	c.mu.Lock()
	c.subscribed[topic] = callback
	c.mu.Unlock()
	return newFakeToken(nil)
}

func (c *fakeClient) SubscribeMultiple(filters map[string]byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	for topic, qos := range filters {
		c.Subscribe(topic, qos, callback)
	}
	return newFakeToken(nil)
}

func (c *fakeClient) Unsubscribe(topics ...string) pahomqtt.Token {
	c.mu.Lock()
	for _, topic := range topics {
		delete(c.subscribed, topic)
	}
	c.mu.Unlock()
	return newFakeToken(nil)
}

func (c *fakeClient) AddRoute(string, pahomqtt.MessageHandler) {}

func (c *fakeClient) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.ClientOptionsReader{}
}

// drop simulates a lost connection.
func (c *fakeClient) drop() {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
	if c.opts.OnConnectionLost != nil {
		c.opts.OnConnectionLost(c, errors.New("connection reset"))
	}
}

// inject delivers a message to the handler subscribed on topic.
func (c *fakeClient) inject(topic string, payload []byte) bool {
	c.mu.Lock()
	handler := c.subscribed[topic]
	c.mu.Unlock()
	if handler == nil {
		return false
	}
	handler(c, fakeMessage{topic: topic, payload: payload})
	return true
}

func (c *fakeClient) publications() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]published, len(c.published))
	copy(out, c.published)
	return out
}
