package mount

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"github.com/signalsfoundry/antenna-tracker/internal/logging"
	"github.com/signalsfoundry/antenna-tracker/model"
)

const (
	opPoint    = "point"
	opPosition = "position"
)

// ErrNotConnected is returned when a command is issued before Connect.
var ErrNotConnected = errors.New("mount: mqtt commander not connected")

// MQTTConfig configures the networked mount client.
type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	// TopicRoot prefixes the command and reply topics.
	TopicRoot string
	QoS       byte

	// KeepAlive in seconds. Default is 30.
	KeepAlive uint16
	// ConnectTimeout for each connection attempt. Default is 5s.
	ConnectTimeout time.Duration
	// ReplyTimeout bounds the wait for the controller's reply. Zero waits
	// until the context is done.
	ReplyTimeout time.Duration
}

func (c *MQTTConfig) setDefaults() {
	if c.ClientID == "" {
		c.ClientID = "tracker-" + uuid.NewString()[:8]
	}
	if c.TopicRoot == "" {
		c.TopicRoot = "antenna/mount"
	}
	c.TopicRoot = strings.TrimSuffix(c.TopicRoot, "/")
	if c.KeepAlive == 0 {
		c.KeepAlive = 30
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
}

// Validate checks the broker address.
func (c *MQTTConfig) Validate() error {
	if c.BrokerURL == "" {
		return errors.New("mqtt broker url is required")
	}
	u, err := url.Parse(c.BrokerURL)
	if err != nil {
		return fmt.Errorf("mqtt broker url: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("mqtt broker url %q has no host", c.BrokerURL)
	}
	if c.QoS > 2 {
		return fmt.Errorf("mqtt qos %d out of range", c.QoS)
	}
	return nil
}

// CommandTopic is where requests are published.
func (c MQTTConfig) CommandTopic() string { return c.TopicRoot + "/command" }

// ReplyTopic is where the controller answers.
func (c MQTTConfig) ReplyTopic() string { return c.TopicRoot + "/reply" }

type commandMessage struct {
	ID       string    `json:"id"`
	Op       string    `json:"op"`
	Altitude float64   `json:"altitude"`
	Azimuth  float64   `json:"azimuth"`
	SentAt   time.Time `json:"sent_at"`
}

type replyMessage struct {
	ID       string  `json:"id"`
	OK       bool    `json:"ok"`
	Error    string  `json:"error,omitempty"`
	Altitude float64 `json:"altitude"`
	Azimuth  float64 `json:"azimuth"`
}

// publisher is the part of autopaho.ConnectionManager used to send
// commands.
type publisher interface {
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
}

// MQTTCommander sends pointing commands to a mount controller over MQTT and
// waits for correlated replies.
type MQTTCommander struct {
	cfg MQTTConfig
	log logging.Logger

	cm  *autopaho.ConnectionManager
	pub publisher

	mu      sync.Mutex
	pending map[string]chan replyMessage
}

// NewMQTTCommander validates cfg. Call Connect before use.
func NewMQTTCommander(cfg MQTTConfig, log logging.Logger) (*MQTTCommander, error) {
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mqtt config: %w", err)
	}
	if log == nil {
		log = logging.Noop()
	}
	return &MQTTCommander{
		cfg:     cfg,
		log:     log.With(logging.String("component", "mount-mqtt")),
		pending: make(map[string]chan replyMessage),
	}, nil
}

// Connect starts the connection manager and blocks until the first
// connection is up. The reply topic is (re)subscribed on every connect.
func (c *MQTTCommander) Connect(ctx context.Context) error {
	brokerURL, _ := url.Parse(c.cfg.BrokerURL) // validated in constructor

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{brokerURL},
		KeepAlive:                     c.cfg.KeepAlive,
		ConnectTimeout:                c.cfg.ConnectTimeout,
		CleanStartOnInitialConnection: true,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			c.log.Info(ctx, "mqtt connection established", logging.String("broker", c.cfg.BrokerURL))
			if _, err := cm.Subscribe(context.Background(), &paho.Subscribe{
				Subscriptions: []paho.SubscribeOptions{
					{Topic: c.cfg.ReplyTopic(), QoS: c.cfg.QoS},
				},
			}); err != nil {
				c.log.Error(ctx, "failed to subscribe to reply topic",
					logging.String("topic", c.cfg.ReplyTopic()),
					logging.Err(err),
				)
			}
		},
		OnConnectError: func(err error) {
			c.log.Warn(ctx, "mqtt connection failed; retrying", logging.Err(err))
		},
		ClientConfig: paho.ClientConfig{
			ClientID: c.cfg.ClientID,
			OnClientError: func(err error) {
				c.log.Error(ctx, "mqtt client error", logging.Err(err))
			},
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				c.onPublish,
			},
		},
	}

	cm, err := autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create mqtt connection manager: %w", err)
	}
	if err := cm.AwaitConnection(ctx); err != nil {
		return fmt.Errorf("await mqtt connection: %w", err)
	}

	c.mu.Lock()
	c.cm = cm
	c.pub = cm
	c.mu.Unlock()
	return nil
}

// Close disconnects from the broker and fails any in-flight requests.
func (c *MQTTCommander) Close(ctx context.Context) error {
	c.mu.Lock()
	cm := c.cm
	c.cm, c.pub = nil, nil
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if cm == nil {
		return nil
	}
	return cm.Disconnect(ctx)
}

// Point implements core.PointingCommander.
func (c *MQTTCommander) Point(ctx context.Context, altitude, azimuth float64) error {
	_, err := c.request(ctx, commandMessage{Op: opPoint, Altitude: altitude, Azimuth: azimuth})
	return err
}

// CurrentPointing implements core.PointingCommander.
func (c *MQTTCommander) CurrentPointing(ctx context.Context) (model.HorizontalPosition, error) {
	r, err := c.request(ctx, commandMessage{Op: opPosition})
	if err != nil {
		return model.HorizontalPosition{}, err
	}
	return model.HorizontalPosition{Altitude: r.Altitude, Azimuth: r.Azimuth}, nil
}

func (c *MQTTCommander) request(ctx context.Context, msg commandMessage) (replyMessage, error) {
	msg.ID = uuid.NewString()
	msg.SentAt = time.Now().UTC()
	payload, err := json.Marshal(msg)
	if err != nil {
		return replyMessage{}, fmt.Errorf("encode %s command: %w", msg.Op, err)
	}

	ch := make(chan replyMessage, 1)
	c.mu.Lock()
	pub := c.pub
	if pub == nil {
		c.mu.Unlock()
		return replyMessage{}, ErrNotConnected
	}
	c.pending[msg.ID] = ch
	c.mu.Unlock()
	defer c.forget(msg.ID)

	if c.cfg.ReplyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ReplyTimeout)
		defer cancel()
	}

	if _, err := pub.Publish(ctx, &paho.Publish{
		Topic:   c.cfg.CommandTopic(),
		QoS:     c.cfg.QoS,
		Payload: payload,
	}); err != nil {
		return replyMessage{}, fmt.Errorf("publish %s command: %w", msg.Op, err)
	}

	select {
	case <-ctx.Done():
		return replyMessage{}, fmt.Errorf("await %s reply: %w", msg.Op, ctx.Err())
	case r, ok := <-ch:
		if !ok {
			return replyMessage{}, ErrNotConnected
		}
		if !r.OK {
			return r, fmt.Errorf("mount rejected %s command: %s", msg.Op, r.Error)
		}
		return r, nil
	}
}

func (c *MQTTCommander) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *MQTTCommander) onPublish(pr paho.PublishReceived) (bool, error) {
	if pr.Packet.Topic != c.cfg.ReplyTopic() {
		return false, nil
	}
	c.dispatch(pr.Packet.Payload)
	return true, nil
}

// dispatch routes a reply payload to the waiting request, if any.
func (c *MQTTCommander) dispatch(payload []byte) {
	var r replyMessage
	if err := json.Unmarshal(payload, &r); err != nil {
		c.log.Warn(context.Background(), "discarding malformed mount reply", logging.Err(err))
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[r.ID]
	if ok {
		delete(c.pending, r.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.log.Debug(context.Background(), "reply for unknown request", logging.String("id", r.ID))
		return
	}
	ch <- r
}
