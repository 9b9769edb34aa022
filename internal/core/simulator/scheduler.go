package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/frostdev-ops/telemetry-backend-go/internal/core/devices"
	"github.com/frostdev-ops/telemetry-backend-go/internal/database/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultSchedule runs the simulator every ten seconds
const DefaultSchedule = "@every 10s"

// Ingester is the part of the device service the simulator drives
type Ingester interface {
	ListIDs(ctx context.Context, owner *int64) ([]int64, error)
	Ingest(ctx context.Context, deviceID int64, reading *devices.Reading, source string) (*models.Sample, error)
}

// Scheduler periodically makes every registered device report a simulated
// reading
type Scheduler struct {
	cron     *cron.Cron
	ingester Ingester
	schedule string
	logger   *logrus.Logger

	mu      sync.Mutex
	running bool
	entryID cron.EntryID
	lastRun time.Time
	runs    int64
}

// NewScheduler validates schedule and creates a stopped scheduler. An empty
// schedule means DefaultSchedule.
func NewScheduler(ingester Ingester, schedule string, logger *logrus.Logger) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithSeconds(),
			cron.WithChain(
				cron.SkipIfStillRunning(cron.PrintfLogger(logger)),
				cron.Recover(cron.PrintfLogger(logger)),
			),
		),
		ingester: ingester,
		schedule: schedule,
		logger:   logger,
	}

	id, err := s.cron.AddFunc(schedule, s.tick)
	if err != nil {
		return nil, fmt.Errorf("invalid simulator schedule %q: %w", schedule, err)
	}
	s.entryID = id

	return s, nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("simulator is already running")
	}

	s.cron.Start()
	s.running = true
	s.logger.WithFields(logrus.Fields{
		"schedule": s.schedule,
		"next_run": s.cron.Entry(s.entryID).Next,
	}).Info("Device simulator started")

	return nil
}

// Stop stops the scheduler and waits for a running tick to finish or ctx to
// expire
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("simulator is not running")
	}

	done := s.cron.Stop()
	s.running = false

	select {
	case <-done.Done():
		s.logger.Info("Device simulator stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Timeout waiting for simulator run to complete")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.WithError(err).Warn("Simulator run finished with errors")
	}
}

// RunOnce ingests one simulated reading for each registered device and
// returns how many were stored. Failures for single devices do not stop the
// run; they are joined into the returned error.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	ids, err := s.ingester.ListIDs(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to list devices: %w", err)
	}

	stored := 0
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := s.ingester.Ingest(ctx, id, nil, models.SourceSimulator); err != nil {
			errs = append(errs, fmt.Errorf("device %d: %w", id, err))
			continue
		}
		stored++
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.runs++
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"devices": len(ids),
		"stored":  stored,
	}).Debug("Simulator run completed")

	return stored, errors.Join(errs...)
}

// Stats reports how often the simulator ran
func (s *Scheduler) Stats() (runs int64, lastRun time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, s.lastRun
}
