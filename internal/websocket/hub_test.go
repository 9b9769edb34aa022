package websocket

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/frostdev-ops/telemetry-backend-go/internal/database/models"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *countingRecorder) RecordWebSocketConnection(action string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, action)
}

func (r *countingRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func startHub(t *testing.T, opts ...Option) (*Hub, string) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	hub := NewHub(logger, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HandleWebSocket(hub, w, r)
	}))
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	welcome := readUntil(t, conn, MessageTypeConnection)
	assert.Equal(t, "connected", welcome.Data["status"])
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType string) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == msgType {
			return msg
		}
	}
}

func sendJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func TestHub_DeviceSubscription(t *testing.T) {
	hub, url := startHub(t)

	subscriber := dial(t, url)
	other := dial(t, url)

	sendJSON(t, subscriber, map[string]interface{}{"type": "subscribe_device", "data": map[string]interface{}{"device_id": 4}})
	ack := readUntil(t, subscriber, MessageTypeSubscribed)
	assert.Equal(t, float64(4), ack.Data["device_id"])

	sendJSON(t, other, map[string]interface{}{"type": "subscribe_device", "data": map[string]interface{}{"device_id": 5}})
	readUntil(t, other, MessageTypeSubscribed)

	hub.SampleIngested(&models.Sample{DeviceID: 4, X: 1, Y: 2, Z: 3, Source: models.SourceAPI, RecordedAt: time.Now()})
	hub.SampleIngested(&models.Sample{DeviceID: 5, X: 9, Y: 9, Z: 9, Source: models.SourceAPI, RecordedAt: time.Now()})

	got := readUntil(t, subscriber, MessageTypeSample)
	assert.Equal(t, float64(4), got.Data["device_id"])
	assert.Equal(t, float64(1), got.Data["x"])

	got = readUntil(t, other, MessageTypeSample)
	assert.Equal(t, float64(5), got.Data["device_id"])

	stats := hub.GetStats()
	assert.Equal(t, 2, stats.ConnectedClients)
	assert.Equal(t, 2, stats.Subscriptions)
	assert.Equal(t, int64(2), stats.MessagesReceived)
}

func TestHub_Unsubscribe(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)

	sendJSON(t, conn, map[string]interface{}{"type": "subscribe_device", "data": map[string]interface{}{"device_id": 1}})
	readUntil(t, conn, MessageTypeSubscribed)
	sendJSON(t, conn, map[string]interface{}{"type": "unsubscribe_device", "data": map[string]interface{}{"device_id": 1}})
	readUntil(t, conn, MessageTypeUnsubscribed)

	hub.SampleIngested(&models.Sample{DeviceID: 1, RecordedAt: time.Now()})

	// The pong must be the next message: no sample was queued before it.
	sendJSON(t, conn, map[string]interface{}{"type": "ping"})
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, MessageTypePong, msg.Type)
	assert.Equal(t, 0, hub.GetStats().Subscriptions)
}

func TestHub_RejectsBadRequests(t *testing.T) {
	_, url := startHub(t)
	conn := dial(t, url)

	sendJSON(t, conn, map[string]interface{}{"type": "subscribe_device", "data": map[string]interface{}{"device_id": -3}})
	msg := readUntil(t, conn, MessageTypeError)
	assert.Contains(t, msg.Data["error"], "device_id")

	sendJSON(t, conn, map[string]interface{}{"type": "subscribe_room"})
	msg = readUntil(t, conn, MessageTypeError)
	assert.Contains(t, msg.Data["error"], "unknown message type")
}

func TestHub_Heartbeat(t *testing.T) {
	_, url := startHub(t, WithHeartbeatInterval(20*time.Millisecond))
	conn := dial(t, url)

	msg := readUntil(t, conn, MessageTypeHeartbeat)
	assert.Equal(t, float64(1), msg.Data["clients"])
}

func TestHub_RecordsConnections(t *testing.T) {
	recorder := &countingRecorder{}
	hub, url := startHub(t, WithRecorder(recorder))

	conn := dial(t, url)
	conn.Close()

	assert.Eventually(t, func() bool {
		return hub.GetClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"connect", "disconnect"}, recorder.snapshot())
	assert.Equal(t, int64(1), hub.GetStats().TotalConnections)
}

func TestHub_CheckOrigin(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	hub := NewHub(logger, WithAllowedOrigins([]string{"http://dashboard.local"}))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, hub.checkOrigin(req))

	req.Header.Set("Origin", "http://dashboard.local")
	assert.True(t, hub.checkOrigin(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, hub.checkOrigin(req))
}
