package simulator

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/frostdev-ops/telemetry-backend-go/internal/core/devices"
	"github.com/frostdev-ops/telemetry-backend-go/internal/database/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIngester struct {
	mu      sync.Mutex
	ids     []int64
	failFor map[int64]error
	stored  []*models.Sample
}

func (f *fakeIngester) ListIDs(ctx context.Context, owner *int64) ([]int64, error) {
	return f.ids, nil
}

func (f *fakeIngester) Ingest(ctx context.Context, deviceID int64, reading *devices.Reading, source string) (*models.Sample, error) {
	if err := f.failFor[deviceID]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &models.Sample{DeviceID: deviceID, Source: source}
	f.stored = append(f.stored, s)
	return s, nil
}

func (f *fakeIngester) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stored)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestRunOnce(t *testing.T) {
	boom := errors.New("boom")
	ing := &fakeIngester{ids: []int64{1, 2, 3}, failFor: map[int64]error{2: boom}}

	s, err := NewScheduler(ing, "", quietLogger())
	require.NoError(t, err)

	stored, err := s.RunOnce(context.Background())
	assert.Equal(t, 2, stored)
	assert.ErrorIs(t, err, boom)

	require.Len(t, ing.stored, 2)
	for _, sample := range ing.stored {
		assert.Equal(t, models.SourceSimulator, sample.Source)
	}

	runs, last := s.Stats()
	assert.Equal(t, int64(1), runs)
	assert.False(t, last.IsZero())
}

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	_, err := NewScheduler(&fakeIngester{}, "every now and then", quietLogger())
	assert.Error(t, err)
}

func TestScheduler_StartStop(t *testing.T) {
	ing := &fakeIngester{ids: []int64{7}}
	s, err := NewScheduler(ing, "@every 1s", quietLogger())
	require.NoError(t, err)

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start())

	assert.Eventually(t, func() bool { return ing.count() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
	assert.Error(t, s.Stop(ctx))
}
