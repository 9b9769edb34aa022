package devices

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/frostdev-ops/telemetry-backend-go/internal/database/models"
	"github.com/frostdev-ops/telemetry-backend-go/internal/database/repositories"
	"github.com/sirupsen/logrus"
)

// Reading is one (x, y, z) measurement as reported by a device
type Reading struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Observer is notified after a sample has been stored
type Observer interface {
	SampleIngested(sample *models.Sample)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(sample *models.Sample)

func (f ObserverFunc) SampleIngested(sample *models.Sample) { f(sample) }

// Service manages device registration and sample ingestion
type Service struct {
	deviceRepo repositories.DeviceRepository
	sampleRepo repositories.SampleRepository
	logger     *logrus.Logger

	mu        sync.RWMutex
	observers []Observer

	simulate func() Reading
}

// NewService creates a new device service
func NewService(deviceRepo repositories.DeviceRepository, sampleRepo repositories.SampleRepository, logger *logrus.Logger) *Service {
	return &Service{
		deviceRepo: deviceRepo,
		sampleRepo: sampleRepo,
		logger:     logger,
		simulate:   Simulate,
	}
}

// AddObserver registers o for every future ingested sample
func (s *Service) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Register creates a device with a caller-chosen id. owner may be nil.
func (s *Service) Register(ctx context.Context, id int64, owner *int64) (*models.Device, error) {
	if id <= 0 {
		return nil, ErrInvalidDeviceID
	}

	device := &models.Device{ID: id, UserID: owner}
	if err := s.deviceRepo.Create(ctx, device); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("device with id = %d: %w", id, ErrDeviceExists)
		}
		return nil, err
	}

	fields := logrus.Fields{"device_id": id}
	if owner != nil {
		fields["user_id"] = *owner
	}
	s.logger.WithFields(fields).Info("Device registered")

	return device, nil
}

// Get returns a registered device
func (s *Service) Get(ctx context.Context, id int64) (*models.Device, error) {
	device, err := s.deviceRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("device with id = %d: %w", id, ErrDeviceNotFound)
		}
		return nil, err
	}
	return device, nil
}

// ListIDs returns the ids of all devices, or only those of owner when set
func (s *Service) ListIDs(ctx context.Context, owner *int64) ([]int64, error) {
	var (
		list []*models.Device
		err  error
	)
	if owner != nil {
		list, err = s.deviceRepo.GetByUser(ctx, *owner)
	} else {
		list, err = s.deviceRepo.GetAll(ctx)
	}
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(list))
	for i, d := range list {
		ids[i] = d.ID
	}
	return ids, nil
}

// Ingest stores a reading for a device with a server-assigned timestamp.
// A nil reading is replaced by a simulated one.
func (s *Service) Ingest(ctx context.Context, deviceID int64, reading *Reading, source string) (*models.Sample, error) {
	if _, err := s.Get(ctx, deviceID); err != nil {
		return nil, err
	}

	if reading == nil {
		r := s.simulate()
		reading = &r
	}

	sample := &models.Sample{
		DeviceID:   deviceID,
		X:          reading.X,
		Y:          reading.Y,
		Z:          reading.Z,
		Source:     source,
		RecordedAt: time.Now().UTC(),
	}
	if err := s.sampleRepo.Append(ctx, sample); err != nil {
		s.logger.WithError(err).WithField("device_id", deviceID).Error("Failed to store sample")
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"device_id": deviceID,
		"sample_id": sample.ID,
		"source":    source,
	}).Debug("Sample ingested")

	s.mu.RLock()
	observers := append([]Observer(nil), s.observers...)
	s.mu.RUnlock()
	for _, o := range observers {
		o.SampleIngested(sample)
	}

	return sample, nil
}

// Recent returns the newest samples of a device
func (s *Service) Recent(ctx context.Context, deviceID int64, limit int) ([]*models.Sample, error) {
	if _, err := s.Get(ctx, deviceID); err != nil {
		return nil, err
	}
	return s.sampleRepo.Recent(ctx, deviceID, limit)
}

// Simulate produces a synthetic reading: three values uniformly drawn from
// [-100, 100) rounded to two decimals.
func Simulate() Reading {
	v := func() float64 {
		return float64(int((rand.Float64()*200-100)*100)) / 100
	}
	return Reading{X: v(), Y: v(), Z: v()}
}
