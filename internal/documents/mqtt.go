package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"custodycore/pkg/domain"
)

// DefaultMQTTTopic receives document requests when no topic is configured.
const DefaultMQTTTopic = "custodycore/documents"

// MQTTConfig configures MQTTPublisher.
type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	Topic     string
	Timeout   time.Duration
}

// DocumentMessage is the payload published for each outbox event.
type DocumentMessage struct {
	Type      string                 `json:"type"`
	EventID   string                 `json:"event_id"`
	Timestamp int64                  `json:"timestamp"`
	Request   domain.DocumentRequest `json:"request"`
}

// MQTTPublisher hands documents to an external issuing service over MQTT
// with QoS 1.
type MQTTPublisher struct {
	client  mqtt.Client
	topic   string
	timeout time.Duration
	mu      sync.Mutex
	now     func() time.Time
}

// NewMQTTPublisher builds an auto-reconnecting client. Call Connect before
// the first Issue, or let Issue connect lazily.
func NewMQTTPublisher(cfg MQTTConfig) (*MQTTPublisher, error) {
	if strings.TrimSpace(cfg.BrokerURL) == "" {
		return nil, errors.New("mqtt broker url is required")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "custodycore"
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(fmt.Sprintf("%s-%s", clientID, uuid.NewString()[:8]))
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	return NewMQTTPublisherWithClient(mqtt.NewClient(opts), cfg.Topic, cfg.Timeout), nil
}

// NewMQTTPublisherWithClient wraps an existing client.
func NewMQTTPublisherWithClient(client mqtt.Client, topic string, timeout time.Duration) *MQTTPublisher {
	if strings.TrimSpace(topic) == "" {
		topic = DefaultMQTTTopic
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTTPublisher{client: client, topic: topic, timeout: timeout, now: time.Now}
}

// Connect opens the broker connection if it is not already open.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectLocked(ctx)
}

func (p *MQTTPublisher) connectLocked(ctx context.Context) error {
	if p.client.IsConnected() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return wait(p.client.Connect(), p.timeout, "connect")
}

// Issue implements core.DocumentIssuer.
func (p *MQTTPublisher) Issue(ctx context.Context, event domain.OutboxEvent) error {
	payload, err := json.Marshal(DocumentMessage{
		Type:      string(event.Request.Kind),
		EventID:   event.ID,
		Timestamp: p.now().UnixMilli(),
		Request:   event.Request,
	})
	if err != nil {
		return fmt.Errorf("encode document message: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(ctx); err != nil {
		return err
	}
	return wait(p.client.Publish(p.topic, 1, false, payload), p.timeout, "publish")
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() error {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
	return nil
}

func wait(token mqtt.Token, timeout time.Duration, op string) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt %s timed out after %s", op, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt %s: %w", op, err)
	}
	return nil
}
