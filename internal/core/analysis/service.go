package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

var (
	// ErrInvalidColumn is returned for a column name other than x, y or z.
	ErrInvalidColumn = errors.New("invalid column")
	// ErrStorageUnavailable wraps any failure to reach the sample store. It is
	// safe to retry.
	ErrStorageUnavailable = errors.New("sample store unavailable")
	// ErrTimeout is returned when an analysis exceeds its deadline.
	ErrTimeout = errors.New("analysis timed out")
)

// SampleStore is the read side of the sample persistence layer.
type SampleStore interface {
	// PeriodFor returns the earliest and latest sample timestamps of the set,
	// or nil when the set has no samples.
	PeriodFor(ctx context.Context, devices DeviceSet) (*Period, error)
	// ValuesInRange returns the column values of every sample in the set whose
	// timestamp lies in [window.Begin, window.End], in ascending order.
	ValuesInRange(ctx context.Context, devices DeviceSet, window EffectiveWindow, column Column) ([]float64, error)
}

// DeviceDirectory resolves ownership relations between users and devices.
type DeviceDirectory interface {
	DevicesOwnedBy(ctx context.Context, userID int64) ([]int64, error)
}

// Recorder receives timing of completed analyses.
type Recorder interface {
	RecordAnalysis(scope string, columns int, duration time.Duration, err error)
}

// Result is the outcome of one analysis. A nil *Result means the scope had
// no data at all.
type Result struct {
	Scope  Scope           `json:"-"`
	Period Period          `json:"period"`
	Window EffectiveWindow `json:"window"`
	Stats  []ColumnStat    `json:"stats"`
}

// Service answers statistical queries over the sample store.
type Service struct {
	store     SampleStore
	directory DeviceDirectory
	timeout   time.Duration
	recorder  Recorder
	logger    *logrus.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout bounds every Analyze call. Zero disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithRecorder reports analysis timings to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// NewService creates a new analysis service
func NewService(store SampleStore, directory DeviceDirectory, logger *logrus.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		directory: directory,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze computes the statistics of the requested columns for a scope over
// the requested window. Columns default to x, y, z. A scope without samples
// yields a nil result and no error. Any failing sub-query fails the call.
func (s *Service) Analyze(ctx context.Context, scope Scope, columns []Column, requested Window) (result *Result, err error) {
	if len(columns) == 0 {
		columns = AllColumns()
	}
	for _, col := range columns {
		if !col.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidColumn, col)
		}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if s.recorder != nil {
			s.recorder.RecordAnalysis(scopeName(scope), len(columns), time.Since(start), err)
		}
	}()

	devices, err := s.deviceSet(ctx, scope)
	if err != nil {
		return nil, err
	}

	period, err := s.periodFor(ctx, devices)
	if err != nil {
		return nil, err
	}
	if period == nil {
		s.logger.WithField("scope", scopeName(scope)).Debug("No samples for analysis scope")
		return nil, nil
	}

	window := Clamp(requested, *period)

	stats := make([]ColumnStat, len(columns))
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	for i, col := range columns {
		p.Go(func(ctx context.Context) error {
			stat, err := s.aggregate(ctx, col, devices, window)
			if err != nil {
				return err
			}
			stats[i] = stat
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		s.logger.WithError(err).WithField("scope", scopeName(scope)).Warn("Analysis failed")
		return nil, err
	}

	return &Result{
		Scope:  scope,
		Period: *period,
		Window: window,
		Stats:  stats,
	}, nil
}

// ResolvePeriod returns the observation period of a scope, or nil when it has
// no samples.
func (s *Service) ResolvePeriod(ctx context.Context, scope Scope) (*Period, error) {
	devices, err := s.deviceSet(ctx, scope)
	if err != nil {
		return nil, err
	}
	return s.periodFor(ctx, devices)
}

// Aggregate computes the statistics of one column for a scope over an
// already clamped window.
func (s *Service) Aggregate(ctx context.Context, scope Scope, column Column, window EffectiveWindow) (ColumnStat, error) {
	if !column.Valid() {
		return ColumnStat{}, fmt.Errorf("%w: %q", ErrInvalidColumn, column)
	}
	devices, err := s.deviceSet(ctx, scope)
	if err != nil {
		return ColumnStat{}, err
	}
	return s.aggregate(ctx, column, devices, window)
}

func (s *Service) deviceSet(ctx context.Context, scope Scope) (DeviceSet, error) {
	switch sc := scope.(type) {
	case SingleDevice:
		return Devices(sc.DeviceID), nil
	case UserDevices:
		ids, err := s.directory.DevicesOwnedBy(ctx, sc.UserID)
		if err != nil {
			return DeviceSet{}, classify(ctx, err)
		}
		return Devices(ids...), nil
	case AllDevices:
		return Everything(), nil
	default:
		panic(fmt.Sprintf("analysis: unknown scope %T", scope))
	}
}

func (s *Service) periodFor(ctx context.Context, devices DeviceSet) (*Period, error) {
	if devices.Empty() {
		return nil, nil
	}
	period, err := s.store.PeriodFor(ctx, devices)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return period, nil
}

func (s *Service) aggregate(ctx context.Context, column Column, devices DeviceSet, window EffectiveWindow) (ColumnStat, error) {
	if window.Inverted() || devices.Empty() {
		return Summarize(column, window, nil), nil
	}

	values, err := s.store.ValuesInRange(ctx, devices, window, column)
	if err != nil {
		return ColumnStat{}, classify(ctx, err)
	}
	return Summarize(column, window, values), nil
}

func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
}

func scopeName(scope Scope) string {
	switch scope.(type) {
	case SingleDevice:
		return "device"
	case UserDevices:
		return "user"
	case AllDevices:
		return "all"
	}
	return "unknown"
}
