package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Level(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, NewWithOutput(&bytes.Buffer{}, "debug", "json").Level)
	assert.Equal(t, logrus.WarnLevel, NewWithOutput(&bytes.Buffer{}, "WARN", "json").Level)
	assert.Equal(t, logrus.InfoLevel, NewWithOutput(&bytes.Buffer{}, "bogus", "json").Level)
}

func TestLogRequest_BatchesSuccess(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, "info", "json")
	log.batchSize = 3

	log.LogRequest("GET", "/api/v1/analysis", 200, 2*time.Millisecond, nil)
	log.LogRequest("GET", "/api/v1/analysis", 200, 4*time.Millisecond, nil)
	assert.Zero(t, buf.Len())

	log.LogRequest("GET", "/health", 200, time.Millisecond, nil)
	require.NotZero(t, buf.Len())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, true, entry["batch_summary"])
	assert.EqualValues(t, 3, entry["total_requests"])
}

func TestLogRequest_ErrorsLoggedImmediately(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, "info", "json")

	log.LogRequest("POST", "/api/v1/devices", 409, time.Millisecond, logrus.Fields{"client_ip": "127.0.0.1"})
	out := buf.String()
	assert.True(t, strings.Contains(out, `"level":"warning"`))
	assert.True(t, strings.Contains(out, "127.0.0.1"))
}

func TestFlushPending(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, "info", "text")

	log.FlushPending()
	assert.Zero(t, buf.Len())

	log.LogRequest("GET", "/", 200, time.Millisecond, nil)
	log.FlushPending()
	assert.Contains(t, buf.String(), "batch summary")
}
