package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frostdev-ops/telemetry-backend-go/internal/database/models"
	"github.com/sirupsen/logrus"
)

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultSendBuffer        = 256
)

// ConnectionRecorder is told about every connect and disconnect
type ConnectionRecorder interface {
	RecordWebSocketConnection(action string)
}

// Option configures a Hub
type Option func(*Hub)

// WithHeartbeatInterval sets how often a heartbeat is pushed to every client
func WithHeartbeatInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.heartbeatInterval = d
		}
	}
}

// WithSendBuffer sets the per-client outbound queue length
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithRecorder reports connection events to r
func WithRecorder(r ConnectionRecorder) Option {
	return func(h *Hub) { h.recorder = r }
}

// WithAllowedOrigins restricts the Origin header accepted on upgrade. "*"
// or an empty list accepts any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) { h.allowedOrigins = origins }
}

type subscription struct {
	client    *Client
	deviceID  int64
	subscribe bool
}

type outbound struct {
	client *Client
	data   []byte
}

type devicePayload struct {
	deviceID int64
	data     []byte
}

// Hub maintains the set of active clients and fans samples out to the
// clients subscribed to their device. All client and subscription state is
// owned by the Run goroutine.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Device id -> subscribed clients
	devices map[int64]map[*Client]bool

	// Messages for every client
	broadcast chan []byte

	// Messages for the subscribers of one device
	publish chan devicePayload

	// Replies to a single client
	reply chan outbound

	subscriptions chan subscription
	register      chan *Client
	unregister    chan *Client
	done          chan struct{}

	logger   *logrus.Logger
	recorder ConnectionRecorder

	heartbeatInterval time.Duration
	sendBuffer        int
	allowedOrigins    []string

	// Mutex guarding stats
	mu    sync.RWMutex
	stats *HubStats

	messagesReceived atomic.Int64
}

// HubStats contains hub statistics
type HubStats struct {
	ConnectedClients int       `json:"connected_clients"`
	Subscriptions    int       `json:"subscriptions"`
	TotalConnections int64     `json:"total_connections"`
	MessagesSent     int64     `json:"messages_sent"`
	MessagesReceived int64     `json:"messages_received"`
	MessagesDropped  int64     `json:"messages_dropped"`
	LastActivity     time.Time `json:"last_activity"`
}

// NewHub creates a new WebSocket hub
func NewHub(logger *logrus.Logger, opts ...Option) *Hub {
	h := &Hub{
		clients:           make(map[*Client]bool),
		devices:           make(map[int64]map[*Client]bool),
		broadcast:         make(chan []byte, 256),
		publish:           make(chan devicePayload, 256),
		reply:             make(chan outbound, 64),
		subscriptions:     make(chan subscription),
		register:          make(chan *Client),
		unregister:        make(chan *Client),
		done:              make(chan struct{}),
		logger:            logger,
		heartbeatInterval: defaultHeartbeatInterval,
		sendBuffer:        defaultSendBuffer,
		stats: &HubStats{
			LastActivity: time.Now(),
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run starts the hub and handles client registration, subscriptions and
// fan-out until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.logger.WithField("heartbeat_interval", h.heartbeatInterval).Info("WebSocket hub started")

	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case sub := <-h.subscriptions:
			h.applySubscription(sub)

		case message := <-h.broadcast:
			h.deliver(h.allClients(), message)

		case payload := <-h.publish:
			h.deliver(h.subscribersOf(payload.deviceID), payload.data)

		case out := <-h.reply:
			if h.clients[out.client] {
				h.deliver([]*Client{out.client}, out.data)
			}

		case <-ticker.C:
			h.deliver(h.allClients(), h.heartbeat().ToJSON())
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.clients[client] = true

	h.mu.Lock()
	h.stats.TotalConnections++
	h.stats.ConnectedClients = len(h.clients)
	h.stats.LastActivity = time.Now()
	h.mu.Unlock()

	if h.recorder != nil {
		h.recorder.RecordWebSocketConnection("connect")
	}

	h.logger.WithFields(logrus.Fields{
		"client_id":         client.ID,
		"remote_addr":       client.RemoteAddr,
		"connected_clients": len(h.clients),
	}).Info("WebSocket client connected")

	welcome := Message{
		Type: MessageTypeConnection,
		Data: map[string]interface{}{
			"status":    "connected",
			"client_id": client.ID,
		},
	}
	h.deliver([]*Client{client}, welcome.ToJSON())
}

func (h *Hub) removeClient(client *Client) {
	if !h.clients[client] {
		return
	}

	delete(h.clients, client)
	for id := range client.devices {
		h.dropSubscription(client, id)
	}
	close(client.send)

	h.mu.Lock()
	h.stats.ConnectedClients = len(h.clients)
	h.stats.Subscriptions = h.subscriptionCount()
	h.stats.LastActivity = time.Now()
	h.mu.Unlock()

	if h.recorder != nil {
		h.recorder.RecordWebSocketConnection("disconnect")
	}

	h.logger.WithFields(logrus.Fields{
		"client_id":         client.ID,
		"connected_clients": len(h.clients),
	}).Info("WebSocket client disconnected")
}

func (h *Hub) applySubscription(sub subscription) {
	if !h.clients[sub.client] {
		return
	}

	msgType := MessageTypeUnsubscribed
	if sub.subscribe {
		msgType = MessageTypeSubscribed
		if h.devices[sub.deviceID] == nil {
			h.devices[sub.deviceID] = make(map[*Client]bool)
		}
		h.devices[sub.deviceID][sub.client] = true
		sub.client.devices[sub.deviceID] = true
	} else {
		h.dropSubscription(sub.client, sub.deviceID)
	}

	h.mu.Lock()
	h.stats.Subscriptions = h.subscriptionCount()
	h.mu.Unlock()

	h.logger.WithFields(logrus.Fields{
		"client_id": sub.client.ID,
		"device_id": sub.deviceID,
		"subscribe": sub.subscribe,
	}).Debug("WebSocket subscription changed")

	ack := Message{
		Type: msgType,
		Data: map[string]interface{}{
			"device_id": sub.deviceID,
		},
	}
	h.deliver([]*Client{sub.client}, ack.ToJSON())
}

func (h *Hub) dropSubscription(client *Client, deviceID int64) {
	delete(client.devices, deviceID)
	if subs := h.devices[deviceID]; subs != nil {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.devices, deviceID)
		}
	}
}

func (h *Hub) subscriptionCount() int {
	n := 0
	for _, subs := range h.devices {
		n += len(subs)
	}
	return n
}

func (h *Hub) allClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

func (h *Hub) subscribersOf(deviceID int64) []*Client {
	subs := h.devices[deviceID]
	clients := make([]*Client, 0, len(subs))
	for client := range subs {
		clients = append(clients, client)
	}
	return clients
}

// deliver queues message for clients. A client whose queue is full is
// disconnected.
func (h *Hub) deliver(clients []*Client, message []byte) {
	var sent, dropped int64
	for _, client := range clients {
		select {
		case client.send <- message:
			sent++
		default:
			dropped++
			h.logger.WithField("client_id", client.ID).Warn("WebSocket client too slow, disconnecting")
			h.removeClient(client)
		}
	}

	h.mu.Lock()
	h.stats.MessagesSent += sent
	h.stats.MessagesDropped += dropped
	h.stats.LastActivity = time.Now()
	h.mu.Unlock()
}

func (h *Hub) heartbeat() Message {
	return Message{
		Type: MessageTypeHeartbeat,
		Data: map[string]interface{}{
			"clients": len(h.clients),
		},
	}
}

func (h *Hub) shutdown() {
	for client := range h.clients {
		h.removeClient(client)
	}
	h.logger.Info("WebSocket hub stopped")
}

// SampleIngested pushes sample to the clients subscribed to its device
func (h *Hub) SampleIngested(sample *models.Sample) {
	payload := devicePayload{deviceID: sample.DeviceID, data: SampleMessage(sample).ToJSON()}
	select {
	case h.publish <- payload:
	default:
		h.logger.WithField("device_id", sample.DeviceID).Warn("Publish channel is full, sample dropped")
	}
}

// BroadcastToAll broadcasts a message to all connected clients
func (h *Hub) BroadcastToAll(message Message) {
	select {
	case h.broadcast <- message.ToJSON():
	default:
		h.logger.Warn("Broadcast channel is full, message dropped")
	}
}

// GetStats returns current hub statistics
func (h *Hub) GetStats() *HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	statsCopy := *h.stats
	statsCopy.MessagesReceived = h.messagesReceived.Load()
	return &statsCopy
}

// GetClientCount returns the current number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stats.ConnectedClients
}

func (h *Hub) enqueueRegister(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) enqueueUnregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) enqueueSubscription(sub subscription) {
	select {
	case h.subscriptions <- sub:
	case <-h.done:
	}
}

func (h *Hub) enqueueReply(c *Client, message Message) {
	select {
	case h.reply <- outbound{client: c, data: message.ToJSON()}:
	case <-h.done:
	}
}
