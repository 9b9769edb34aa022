package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/frostdev-ops/telemetry-backend-go/internal/core/analysis"
	"github.com/frostdev-ops/telemetry-backend-go/internal/database/models"
	"github.com/frostdev-ops/telemetry-backend-go/internal/database/repositories"
	"github.com/jmoiron/sqlx"
)

// SampleRepository implements repositories.SampleRepository and
// analysis.SampleStore. recorded_at is stored as unix nanoseconds.
type SampleRepository struct {
	db *sqlx.DB
}

// NewSampleRepository creates a new SampleRepository
func NewSampleRepository(db *sqlx.DB) repositories.SampleRepository {
	return &SampleRepository{db: db}
}

type sampleRow struct {
	ID         int64   `db:"id"`
	DeviceID   int64   `db:"device_id"`
	X          float64 `db:"x"`
	Y          float64 `db:"y"`
	Z          float64 `db:"z"`
	Source     string  `db:"source"`
	RecordedAt int64   `db:"recorded_at"`
}

func (r sampleRow) toModel() *models.Sample {
	return &models.Sample{
		ID:         r.ID,
		DeviceID:   r.DeviceID,
		X:          r.X,
		Y:          r.Y,
		Z:          r.Z,
		Source:     r.Source,
		RecordedAt: time.Unix(0, r.RecordedAt).UTC(),
	}
}

// Append stores a sample. A zero RecordedAt is replaced by the current time.
func (r *SampleRepository) Append(ctx context.Context, sample *models.Sample) error {
	if sample.RecordedAt.IsZero() {
		sample.RecordedAt = time.Now().UTC()
	}
	if sample.Source == "" {
		sample.Source = models.SourceAPI
	}

	query := `
		INSERT INTO samples (device_id, x, y, z, source, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		sample.DeviceID, sample.X, sample.Y, sample.Z, sample.Source, sample.RecordedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to append sample: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted sample ID: %w", err)
	}
	sample.ID = id

	return nil
}

// Recent returns the latest samples of a device, newest first
func (r *SampleRepository) Recent(ctx context.Context, deviceID int64, limit int) ([]*models.Sample, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, device_id, x, y, z, source, recorded_at
		FROM samples
		WHERE device_id = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?
	`

	var rows []sampleRow
	if err := r.db.SelectContext(ctx, &rows, query, deviceID, limit); err != nil {
		return nil, fmt.Errorf("failed to get samples for device %d: %w", deviceID, err)
	}

	samples := make([]*models.Sample, len(rows))
	for i, row := range rows {
		samples[i] = row.toModel()
	}
	return samples, nil
}

// PeriodFor returns the earliest and latest timestamps of the device set
func (r *SampleRepository) PeriodFor(ctx context.Context, devices analysis.DeviceSet) (*analysis.Period, error) {
	if devices.Empty() {
		return nil, nil
	}

	where, args, err := scopeFilter(devices, nil)
	if err != nil {
		return nil, err
	}

	query := r.db.Rebind(`SELECT MIN(recorded_at) AS earliest, MAX(recorded_at) AS latest FROM samples` + where)

	var bounds struct {
		Earliest sql.NullInt64 `db:"earliest"`
		Latest   sql.NullInt64 `db:"latest"`
	}
	if err := r.db.GetContext(ctx, &bounds, query, args...); err != nil {
		return nil, fmt.Errorf("failed to resolve sample period: %w", err)
	}

	if !bounds.Earliest.Valid || !bounds.Latest.Valid {
		return nil, nil
	}

	return &analysis.Period{
		Earliest: time.Unix(0, bounds.Earliest.Int64).UTC(),
		Latest:   time.Unix(0, bounds.Latest.Int64).UTC(),
	}, nil
}

// ValuesInRange returns the column values of the matching samples in
// ascending order. Both window bounds are inclusive.
func (r *SampleRepository) ValuesInRange(ctx context.Context, devices analysis.DeviceSet, window analysis.EffectiveWindow, column analysis.Column) ([]float64, error) {
	if devices.Empty() || window.Inverted() {
		return nil, nil
	}

	col, err := columnName(column)
	if err != nil {
		return nil, err
	}

	where, args, err := scopeFilter(devices, []string{"recorded_at >= ?", "recorded_at <= ?"})
	if err != nil {
		return nil, err
	}
	args = append(args, window.Begin.UnixNano(), window.End.UnixNano())

	query := r.db.Rebind(fmt.Sprintf(`SELECT %s FROM samples%s ORDER BY %s`, col, where, col))

	var values []float64
	if err := r.db.SelectContext(ctx, &values, query, args...); err != nil {
		return nil, fmt.Errorf("failed to read %s values: %w", col, err)
	}
	return values, nil
}

// scopeFilter builds the WHERE clause restricting a query to a device set,
// followed by any extra conditions. The device arguments come first.
func scopeFilter(devices analysis.DeviceSet, extra []string) (string, []interface{}, error) {
	var conds []string
	var args []interface{}

	if !devices.All {
		cond, inArgs, err := sqlx.In("device_id IN (?)", devices.IDs)
		if err != nil {
			return "", nil, fmt.Errorf("failed to build device filter: %w", err)
		}
		conds = append(conds, cond)
		args = append(args, inArgs...)
	}
	conds = append(conds, extra...)

	if len(conds) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func columnName(column analysis.Column) (string, error) {
	switch column {
	case analysis.ColumnX:
		return "x", nil
	case analysis.ColumnY:
		return "y", nil
	case analysis.ColumnZ:
		return "z", nil
	}
	return "", fmt.Errorf("%w: %q", analysis.ErrInvalidColumn, column)
}
