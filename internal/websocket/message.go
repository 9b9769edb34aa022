package websocket

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/frostdev-ops/telemetry-backend-go/internal/database/models"
)

// Message types for WebSocket communication
const (
	// Server to client
	MessageTypeConnection   = "connection"
	MessageTypeSample       = "sample"
	MessageTypeHeartbeat    = "heartbeat"
	MessageTypePong         = "pong"
	MessageTypeSubscribed   = "subscribed"
	MessageTypeUnsubscribed = "unsubscribed"
	MessageTypeError        = "error"

	// Client to server
	MessageTypeSubscribeDevice   = "subscribe_device"
	MessageTypeUnsubscribeDevice = "unsubscribe_device"
	MessageTypePing              = "ping"
)

// Message represents a WebSocket message
type Message struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m Message) ToJSON() []byte {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	data, _ := json.Marshal(m)
	return data
}

// UnmarshalJSON accepts timestamps as RFC3339 strings or unix seconds or
// milliseconds, either quoted or bare. Clients that omit it get the time of
// receipt.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type      string                 `json:"type"`
		Data      map[string]interface{} `json:"data"`
		Timestamp interface{}            `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Type = raw.Type
	m.Data = raw.Data
	m.Timestamp = parseTimestamp(raw.Timestamp)
	return nil
}

// DeviceID extracts data.device_id
func (m Message) DeviceID() (int64, bool) {
	switch v := m.Data["device_id"].(type) {
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		return id, err == nil
	}
	return 0, false
}

// parseTimestamp values above this are taken as milliseconds
const millisecondThreshold = 1e11

func parseTimestamp(v interface{}) time.Time {
	fromNumber := func(n int64) time.Time {
		if n > millisecondThreshold {
			return time.Unix(0, n*int64(time.Millisecond))
		}
		return time.Unix(n, 0)
	}

	switch t := v.(type) {
	case float64:
		return fromNumber(int64(t))
	case int64:
		return fromNumber(t)
	case int:
		return fromNumber(int64(t))
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return fromNumber(n)
		}
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts
		}
	}
	return time.Now().UTC()
}

// SampleMessage creates the message pushed to subscribers of a device
func SampleMessage(sample *models.Sample) Message {
	return Message{
		Type: MessageTypeSample,
		Data: map[string]interface{}{
			"device_id": sample.DeviceID,
			"x":         sample.X,
			"y":         sample.Y,
			"z":         sample.Z,
			"source":    sample.Source,
			"date":      sample.RecordedAt,
		},
	}
}

// ErrorMessage creates a message reporting a rejected client request
func ErrorMessage(reason string) Message {
	return Message{
		Type: MessageTypeError,
		Data: map[string]interface{}{
			"error": reason,
		},
	}
}
