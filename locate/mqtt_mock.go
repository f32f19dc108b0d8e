package locate

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// doneToken is an mqtt.Token that has already completed
type doneToken struct{ err error }

var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{}          { return closedDone }
func (t doneToken) Error() error                   { return t.err }

// MockMessage records one Publish call
type MockMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// MockClient stands in for a broker connection in tests. It records what the
// scan source and publisher send and lets a test inject gateway payloads
// with SimulateMessage. Failures are configured per operation.
type MockClient struct {
	mu sync.RWMutex

	connected    bool
	connectErr   error
	publishErr   error
	subscribeErr error
	onConnect    mqtt.OnConnectHandler
	attempts     int

	handlers     map[string]mqtt.MessageHandler
	published    []MockMessage
	unsubscribed []string
}

// NewMockClient creates a disconnected mock client
func NewMockClient() *MockClient {
	return &MockClient{handlers: make(map[string]mqtt.MessageHandler)}
}

func (c *MockClient) SetConnected(connected bool) {
	c.mu.Lock()
	c.connected = connected
	c.mu.Unlock()
}

// SetConnectError makes every Connect attempt fail with err
func (c *MockClient) SetConnectError(err error) {
	c.mu.Lock()
	c.connectErr = err
	c.mu.Unlock()
}

func (c *MockClient) SetPublishError(err error) {
	c.mu.Lock()
	c.publishErr = err
	c.mu.Unlock()
}

func (c *MockClient) SetSubscribeError(err error) {
	c.mu.Lock()
	c.subscribeErr = err
	c.mu.Unlock()
}

// SetOnConnect registers the handler run after a successful Connect, the
// way paho runs ClientOptions.OnConnect
func (c *MockClient) SetOnConnect(handler mqtt.OnConnectHandler) {
	c.mu.Lock()
	c.onConnect = handler
	c.mu.Unlock()
}

// ConnectAttempts returns how many times Connect was called
func (c *MockClient) ConnectAttempts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attempts
}

// GetPublishedMessages returns a copy of everything published so far
func (c *MockClient) GetPublishedMessages() []MockMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]MockMessage(nil), c.published...)
}

// HasSubscription reports whether a handler is registered for topic
func (c *MockClient) HasSubscription(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.handlers[topic]
	return ok
}

// Unsubscribed returns the topics passed to Unsubscribe, in order
func (c *MockClient) Unsubscribed() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.unsubscribed...)
}

// SimulateMessage delivers payload to the handler subscribed on topic, if any
func (c *MockClient) SimulateMessage(topic string, payload []byte) {
	c.mu.RLock()
	handler := c.handlers[topic]
	c.mu.RUnlock()
	if handler != nil {
		handler(c, &mockMessage{topic: topic, payload: payload})
	}
}

func (c *MockClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *MockClient) IsConnectionOpen() bool { return c.IsConnected() }

func (c *MockClient) Connect() mqtt.Token {
	c.mu.Lock()
	c.attempts++
	err := c.connectErr
	onConnect := c.onConnect
	if err == nil {
		c.connected = true
	}
	c.mu.Unlock()

	if err == nil && onConnect != nil {
		go onConnect(c)
	}
	return doneToken{err: err}
}

func (c *MockClient) Disconnect(uint) {
	c.SetConnected(false)
}

func (c *MockClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return doneToken{err: mqtt.ErrNotConnected}
	}
	if c.publishErr != nil {
		return doneToken{err: c.publishErr}
	}

	msg := MockMessage{Topic: topic, QoS: qos, Retain: retained}
	switch v := payload.(type) {
	case []byte:
		msg.Payload = v
	case string:
		msg.Payload = []byte(v)
	}
	c.published = append(c.published, msg)
	return doneToken{}
}

func (c *MockClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return c.SubscribeMultiple(map[string]byte{topic: qos}, callback)
}

func (c *MockClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return doneToken{err: mqtt.ErrNotConnected}
	}
	if c.subscribeErr != nil {
		return doneToken{err: c.subscribeErr}
	}
	for topic := range filters {
		c.handlers[topic] = callback
	}
	return doneToken{}
}

func (c *MockClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, topic := range topics {
		delete(c.handlers, topic)
		c.unsubscribed = append(c.unsubscribed, topic)
	}
	return doneToken{}
}

func (c *MockClient) AddRoute(topic string, callback mqtt.MessageHandler) {
	c.mu.Lock()
	c.handlers[topic] = callback
	c.mu.Unlock()
}

func (c *MockClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

// mockMessage carries a gateway payload. The scan handlers only read the
// topic and payload; the embedded interface is nil and the rest of
// mqtt.Message is never called.
type mockMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m *mockMessage) Topic() string   { return m.topic }
func (m *mockMessage) Payload() []byte { return m.payload }
