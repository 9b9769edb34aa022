// Package mqtt ingests device readings published to an MQTT broker.
package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/frostdev-ops/telemetry-backend-go/internal/config"
	"github.com/frostdev-ops/telemetry-backend-go/internal/core/devices"
	"github.com/frostdev-ops/telemetry-backend-go/internal/database/models"
	apperrors "github.com/frostdev-ops/telemetry-backend-go/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	dialTimeout   = 10 * time.Second
	ingestTimeout = 5 * time.Second
)

var ErrInvalidTopic = errors.New("topic does not carry a device id")

// Ingester stores readings
type Ingester interface {
	Ingest(ctx context.Context, deviceID int64, reading *devices.Reading, source string) (*models.Sample, error)
}

// Stats counts processed messages
type Stats struct {
	Connected bool  `json:"connected"`
	Received  int64 `json:"received"`
	Stored    int64 `json:"stored"`
	Rejected  int64 `json:"rejected"`
}

// Subscriber keeps a subscription to the sample topic alive and feeds every
// message through the ingester
type Subscriber struct {
	cfg      config.MQTTConfig
	ingester Ingester
	logger   *logrus.Logger
	retry    *apperrors.RetryExecutor

	mu        sync.Mutex
	client    *paho.Client
	connected bool

	received atomic.Int64
	stored   atomic.Int64
	rejected atomic.Int64
}

// NewSubscriber creates a subscriber for cfg.Topic on cfg.BrokerURL
func NewSubscriber(cfg config.MQTTConfig, ingester Ingester, logger *logrus.Logger) *Subscriber {
	policy := apperrors.DefaultRetryPolicy()
	policy.MaxAttempts = 10
	policy.Retryable = func(err error) bool {
		var urlErr *url.Error
		return !errors.As(err, &urlErr)
	}

	return &Subscriber{
		cfg:      cfg,
		ingester: ingester,
		logger:   logger,
		retry:    apperrors.NewRetryExecutor(policy, logger),
	}
}

// Run connects, subscribes and reconnects after connection loss until ctx
// is done. It returns an error only when the broker stays unreachable.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		var lost <-chan error
		err := s.retry.Execute(ctx, "mqtt_connect", func(ctx context.Context) error {
			l, err := s.connect(ctx)
			lost = l
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("mqtt subscriber giving up: %w", err)
		}

		select {
		case <-ctx.Done():
			s.disconnect()
			return nil
		case err := <-lost:
			s.setClient(nil)
			s.logger.WithError(err).Warn("MQTT connection lost, reconnecting")
		}
	}
}

func (s *Subscriber) connect(ctx context.Context) (<-chan error, error) {
	addr, err := brokerAddress(s.cfg.BrokerURL)
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial broker %s: %w", addr, err)
	}

	lost := make(chan error, 1)
	notify := func(err error) {
		select {
		case lost <- err:
		default:
		}
	}

	client := paho.NewClient(paho.ClientConfig{
		Conn:     conn,
		ClientID: s.cfg.ClientID,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			func(pr paho.PublishReceived) (bool, error) {
				s.handle(pr.Packet)
				return true, nil
			},
		},
		OnClientError: notify,
		OnServerDisconnect: func(d *paho.Disconnect) {
			notify(fmt.Errorf("server sent disconnect with reason code %d", d.ReasonCode))
		},
	})

	connack, err := client.Connect(ctx, &paho.Connect{
		ClientID:   s.cfg.ClientID,
		CleanStart: true,
		KeepAlive:  s.cfg.KeepAlive,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	if connack.ReasonCode != 0 {
		conn.Close()
		return nil, fmt.Errorf("broker refused connection with reason code %d", connack.ReasonCode)
	}

	suback, err := client.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{
			Topic: s.cfg.Topic,
			QoS:   s.cfg.QoS,
		}},
	})
	if err != nil {
		_ = client.Disconnect(&paho.Disconnect{})
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.cfg.Topic, err)
	}
	if len(suback.Reasons) > 0 && suback.Reasons[0] >= 0x80 {
		_ = client.Disconnect(&paho.Disconnect{})
		return nil, fmt.Errorf("subscription to %s rejected with reason code %d", s.cfg.Topic, suback.Reasons[0])
	}

	s.setClient(client)
	s.logger.WithFields(logrus.Fields{
		"broker": addr,
		"topic":  s.cfg.Topic,
		"qos":    s.cfg.QoS,
	}).Info("MQTT subscriber connected")

	return lost, nil
}

func (s *Subscriber) disconnect() {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.connected = false
	s.mu.Unlock()

	if client != nil {
		if err := client.Disconnect(&paho.Disconnect{}); err != nil {
			s.logger.WithError(err).Debug("MQTT disconnect failed")
		}
		s.logger.Info("MQTT subscriber disconnected")
	}
}

func (s *Subscriber) setClient(c *paho.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = c
	s.connected = c != nil
}

// Connected reports whether the subscription is active
func (s *Subscriber) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Stats returns message counters
func (s *Subscriber) Stats() Stats {
	return Stats{
		Connected: s.Connected(),
		Received:  s.received.Load(),
		Stored:    s.stored.Load(),
		Rejected:  s.rejected.Load(),
	}
}

type payload struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

func (s *Subscriber) handle(p *paho.Publish) {
	s.received.Add(1)
	log := s.logger.WithField("topic", p.Topic)

	deviceID, err := DeviceIDFromTopic(s.cfg.Topic, p.Topic)
	if err != nil {
		s.rejected.Add(1)
		log.WithError(err).Warn("Dropping MQTT message")
		return
	}

	reading, err := parseReading(p.Payload)
	if err != nil {
		s.rejected.Add(1)
		log.WithError(err).Warn("Dropping MQTT message")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	if _, err := s.ingester.Ingest(ctx, deviceID, reading, models.SourceMQTT); err != nil {
		s.rejected.Add(1)
		log.WithError(err).WithField("device_id", deviceID).Warn("Failed to ingest MQTT sample")
		return
	}
	s.stored.Add(1)
}

// parseReading decodes {"x":..,"y":..,"z":..}. An empty payload yields a nil
// reading, which the device service replaces with a simulated one.
func parseReading(data []byte) (*devices.Reading, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	if p.X == nil || p.Y == nil || p.Z == nil {
		return nil, errors.New("payload must contain x, y and z")
	}
	return &devices.Reading{X: *p.X, Y: *p.Y, Z: *p.Z}, nil
}

// DeviceIDFromTopic reads the device id from the level of topic that matches
// the single-level wildcard of filter
func DeviceIDFromTopic(filter, topic string) (int64, error) {
	filterLevels := strings.Split(filter, "/")
	topicLevels := strings.Split(topic, "/")
	if len(filterLevels) != len(topicLevels) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	idx := -1
	for i, level := range filterLevels {
		switch {
		case level == "+":
			if idx == -1 {
				idx = i
			}
		case level != topicLevels[i]:
			return 0, fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
		}
	}
	if idx == -1 {
		return 0, fmt.Errorf("%w: filter %s has no wildcard", ErrInvalidTopic, filter)
	}

	id, err := strconv.ParseInt(topicLevels[idx], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	return id, nil
}

// brokerAddress turns tcp://host:port (or mqtt://) into host:port
func brokerAddress(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "tcp", "mqtt":
	default:
		return "", &url.Error{Op: "parse", URL: raw, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
	if u.Port() == "" {
		return net.JoinHostPort(u.Hostname(), "1883"), nil
	}
	return u.Host, nil
}
