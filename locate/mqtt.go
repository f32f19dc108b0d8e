package locate

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig holds MQTT connection settings and scan topics
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
	BLETopic      string `yaml:"bleTopic,omitempty" json:"bleTopic,omitempty"`
	WiFiTopic     string `yaml:"wifiTopic,omitempty" json:"wifiTopic,omitempty"`
}

const (
	DefaultBLETopic  = "wayfind/scan/ble"
	DefaultWiFiTopic = "wayfind/scan/wifi"
)

// MQTTSource receives scan gateway reports over MQTT. BLE advertisements are
// pushed to the registered handler as they arrive; WiFi reports are cached
// and handed out by Scan on the session's fixed interval.
type MQTTSource struct {
	client    mqtt.Client
	bleTopic  string
	wifiTopic string

	mu          sync.RWMutex
	handler     func(Observation)
	isConnected bool
	wifiLatest  []WiFiScanRecord
	wifiFresh   bool
	stop        chan struct{}
	stopOnce    sync.Once
}

// InitMQTT connects to the broker described by config. Environment variables
// MQTT_BROKER, MQTT_CLIENT_ID, MQTT_USERNAME and MQTT_PASSWORD override the
// file values. When no broker is configured MQTT is disabled and nil is
// returned without error.
func InitMQTT(config MQTTConfig) (*MQTTSource, error) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		broker = config.Broker
	}
	if broker == "" {
		log.Println("[MQTT] disabled: no broker configured")
		return nil, nil
	}

	src := newMQTTSource(config)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" {
		clientID = config.ClientID
	}
	if clientID == "" {
		clientID = "wayfind"
	}
	opts.SetClientID(clientID)

	username := os.Getenv("MQTT_USERNAME")
	if username == "" {
		username = config.Username
	}
	if username != "" {
		opts.SetUsername(username)
		password := os.Getenv("MQTT_PASSWORD")
		if password == "" {
			password = config.Password
		}
		opts.SetPassword(password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false)
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(src.onConnect)
	opts.SetConnectionLostHandler(src.onConnectionLost)

	src.client = mqtt.NewClient(opts)
	go src.connectWithRetry()

	return src, nil
}

func newMQTTSource(config MQTTConfig) *MQTTSource {
	bleTopic := config.BLETopic
	if bleTopic == "" {
		bleTopic = DefaultBLETopic
	}
	wifiTopic := config.WiFiTopic
	if wifiTopic == "" {
		wifiTopic = DefaultWiFiTopic
	}
	return &MQTTSource{
		bleTopic:  bleTopic,
		wifiTopic: wifiTopic,
		stop:      make(chan struct{}),
	}
}

// newMQTTSourceWithClient wires an existing client, used with mock clients
func newMQTTSourceWithClient(client mqtt.Client, config MQTTConfig) *MQTTSource {
	src := newMQTTSource(config)
	src.client = client
	return src
}

// connectWithRetry connects with exponential backoff until success or Disconnect
func (s *MQTTSource) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("[MQTT] connecting to broker...")

		token := s.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("[MQTT] connected")
				s.setConnected(true)
				return
			}
			log.Printf("[MQTT] connection failed: %v", token.Error())
		} else {
			log.Println("[MQTT] connection timeout")
		}

		log.Printf("[MQTT] retrying in %v...", retryDelay)
		select {
		case <-s.stop:
			return
		case <-time.After(retryDelay):
		}
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// onConnect (re)subscribes to the scan topics
func (s *MQTTSource) onConnect(client mqtt.Client) {
	s.setConnected(true)

	log.Printf("[MQTT] subscribing to %s", s.wifiTopic)
	token := client.Subscribe(s.wifiTopic, 0, s.handleWiFi)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Printf("[MQTT] error subscribing to %s: %v", s.wifiTopic, token.Error())
	}

	if s.getHandler() != nil {
		if err := s.subscribeBLE(client); err != nil {
			log.Printf("[MQTT] %v", err)
		}
	}
}

func (s *MQTTSource) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("[MQTT] connection interrupted (%v), auto-reconnect will retry", err)
	s.setConnected(false)
}

func (s *MQTTSource) subscribeBLE(client mqtt.Client) error {
	log.Printf("[MQTT] subscribing to %s", s.bleTopic)
	token := client.Subscribe(s.bleTopic, 0, s.handleBLE)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		return fmt.Errorf("subscribing to %s: %w", s.bleTopic, token.Error())
	}
	return nil
}

// Subscribe registers the BLE callback. If the client is already connected
// the BLE topic is subscribed immediately, otherwise on connect.
func (s *MQTTSource) Subscribe(handler func(Observation)) error {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()

	if s.client != nil && s.client.IsConnected() {
		return s.subscribeBLE(s.client)
	}
	return nil
}

// Unsubscribe drops the BLE callback and topic subscription
func (s *MQTTSource) Unsubscribe() error {
	s.mu.Lock()
	s.handler = nil
	s.mu.Unlock()

	if s.client == nil || !s.client.IsConnected() {
		return nil
	}
	token := s.client.Unsubscribe(s.bleTopic)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		return fmt.Errorf("unsubscribing from %s: %w", s.bleTopic, token.Error())
	}
	return nil
}

// Scan returns the WiFi records reported since the previous call. It fails
// when the broker connection is down.
func (s *MQTTSource) Scan(ctx context.Context) ([]WiFiScanRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.IsConnected() {
		return nil, fmt.Errorf("mqtt not connected")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.wifiFresh {
		return nil, nil
	}
	out := make([]WiFiScanRecord, len(s.wifiLatest))
	copy(out, s.wifiLatest)
	s.wifiFresh = false
	return out, nil
}

func (s *MQTTSource) handleBLE(client mqtt.Client, msg mqtt.Message) {
	handler := s.getHandler()
	if handler == nil {
		return
	}
	obs, err := DecodeBLEPayload(msg.Payload(), time.Now())
	if err != nil {
		log.Printf("[MQTT] bad BLE payload on %s: %v", msg.Topic(), err)
		return
	}
	for _, o := range obs {
		handler(o)
	}
}

func (s *MQTTSource) handleWiFi(client mqtt.Client, msg mqtt.Message) {
	recs, err := DecodeWiFiPayload(msg.Payload(), time.Now())
	if err != nil {
		log.Printf("[MQTT] bad WiFi payload on %s: %v", msg.Topic(), err)
		return
	}
	s.mu.Lock()
	s.wifiLatest = recs
	s.wifiFresh = true
	s.mu.Unlock()
}

func (s *MQTTSource) getHandler() func(Observation) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handler
}

// IsConnected returns true if the MQTT client is connected
func (s *MQTTSource) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isConnected
}

func (s *MQTTSource) setConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isConnected = connected
}

// Client returns the underlying MQTT client for publishing
func (s *MQTTSource) Client() mqtt.Client {
	return s.client
}

// Disconnect stops connection attempts and closes the connection
func (s *MQTTSource) Disconnect() {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.client != nil && s.client.IsConnected() {
		log.Println("[MQTT] disconnecting...")
		s.client.Disconnect(250)
	}
	s.setConnected(false)
}
