package locate

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// PositionMessage is the retained payload on {prefix}/position
type PositionMessage struct {
	Position
	Sources int `json:"sources"`
}

// StatusMessage is the retained payload on {prefix}/status
type StatusMessage struct {
	Status    Status `json:"status"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Publisher publishes fused positions and positioning status to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool

	mu   sync.RWMutex
	last *PositionMessage
}

// NewPublisher creates a publisher. MQTT_PUBLISH_PREFIX overrides prefix;
// an empty prefix defaults to "wayfind". A nil client disables publishing.
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if env := os.Getenv("MQTT_PUBLISH_PREFIX"); env != "" {
		prefix = env
	}
	if prefix == "" {
		prefix = "wayfind"
	}
	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,    // position updates are fire and forget
		retain:        true, // late subscribers get the latest value
	}
}

// PublishPosition publishes a fused position with the number of sources used
func (p *Publisher) PublishPosition(pos Position, sources int) error {
	msg := &PositionMessage{Position: pos, Sources: sources}

	p.mu.Lock()
	p.last = msg
	p.mu.Unlock()

	return p.publish(p.publishPrefix+"/position", msg)
}

// PublishStatus publishes the positioning status with an optional error
func (p *Publisher) PublishStatus(status Status, err error) error {
	msg := StatusMessage{Status: status, Timestamp: time.Now().Unix()}
	if err != nil {
		msg.Error = err.Error()
	}
	return p.publish(p.publishPrefix+"/status", msg)
}

func (p *Publisher) publish(topic string, v any) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", topic, err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// LastPosition returns the most recently published position
func (p *Publisher) LastPosition() (*PositionMessage, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return nil, false
	}
	cp := *p.last
	return &cp, true
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}

// Forward publishes every position and status change from the engine until
// stop is closed. It is the MQTT side of the engine's latest-value cells.
func (p *Publisher) Forward(e *Engine, stop <-chan struct{}) {
	positions, cancelPos := e.SubscribePosition()
	defer cancelPos()
	statuses, cancelStatus := e.SubscribeStatus()
	defer cancelStatus()

	for {
		select {
		case <-stop:
			return
		case pos, ok := <-positions:
			if !ok {
				return
			}
			if err := p.PublishPosition(pos, len(e.Contributing())); err != nil {
				log.Printf("[MQTT] publishing position: %v", err)
			}
		case st, ok := <-statuses:
			if !ok {
				return
			}
			var err error
			if st == StatusError {
				err = e.LastError()
			}
			if perr := p.PublishStatus(st, err); perr != nil {
				log.Printf("[MQTT] publishing status: %v", perr)
			}
		}
	}
}
