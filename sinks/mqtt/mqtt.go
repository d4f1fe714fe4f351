// Package mqtt republishes packets on an MQTT broker so other services (the
// e-paper display, the influx bridge) can pick them up.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/gr-butler/lorastation/packet"
	logger "github.com/sirupsen/logrus"
)

const DefaultTopic = "lorastation/telemetry"

var ErrNotConnected = errors.New("mqtt client not connected")

type Config struct {
	Broker   string // tcp://host:1883
	ClientID string
	Topic    string
	QoS      byte
	Timeout  time.Duration
}

// client is the part of paho's Client the publisher uses.
type client interface {
	Connect() paho.Token
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

type Publisher struct {
	cfg    Config
	client client

	stopCh   chan struct{}
	stopOnce sync.Once
}

func New(cfg Config) *Publisher {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "lorastation"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(_ paho.Client) {
		logger.Infof("MQTT connected to [%v]", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warnf("MQTT connection lost [%v]", err)
	})

	return newPublisher(cfg, paho.NewClient(opts))
}

func newPublisher(cfg Config, c client) *Publisher {
	return &Publisher{
		cfg:    cfg,
		client: c,
		stopCh: make(chan struct{}),
	}
}

// Connect starts the connection. With connect-retry enabled paho keeps
// trying in the background, so giving up here is not fatal: publishes fail
// until the broker shows up.
func (p *Publisher) Connect(ctx context.Context) error {
	token := p.client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return errors.New("publisher stopped")
		default:
		}
	}
}

// Topic is where packets of the given flight are published.
func (p *Publisher) Topic(flight uint32) string {
	return fmt.Sprintf("%s/%d", p.cfg.Topic, flight)
}

func (p *Publisher) Consume(ctx context.Context, pk packet.Packet) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(pk)
	if err != nil {
		return fmt.Errorf("marshal packet: %w", err)
	}

	topic := p.Topic(pk.FlightNumber)
	token := p.client.Publish(topic, p.cfg.QoS, false, payload)
	select {
	case <-token.Done():
	case <-time.After(p.cfg.Timeout):
		return fmt.Errorf("publish timeout for topic %s", topic)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	logger.Debugf("Published packet [%v] to [%v]", pk.PacketNumber, topic)
	return nil
}

// Close disconnects, letting in-flight messages go first. Safe to call more
// than once.
func (p *Publisher) Close() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.client.Disconnect(250)
		logger.Info("MQTT disconnected")
	})
}
