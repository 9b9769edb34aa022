package repositories

import (
	"context"
	"errors"

	"github.com/frostdev-ops/telemetry-backend-go/internal/core/analysis"
	"github.com/frostdev-ops/telemetry-backend-go/internal/database/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique key.
	ErrDuplicate = errors.New("record already exists")
)

// UserRepository defines user data access methods
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByLogin(ctx context.Context, login string) (*models.User, error)
}

// DeviceRepository defines device data access methods
type DeviceRepository interface {
	analysis.DeviceDirectory

	Create(ctx context.Context, device *models.Device) error
	GetByID(ctx context.Context, id int64) (*models.Device, error)
	GetAll(ctx context.Context) ([]*models.Device, error)
	GetByUser(ctx context.Context, userID int64) ([]*models.Device, error)
}

// SampleRepository defines sample data access methods. Samples are append
// only.
type SampleRepository interface {
	analysis.SampleStore

	Append(ctx context.Context, sample *models.Sample) error
	Recent(ctx context.Context, deviceID int64, limit int) ([]*models.Sample, error)
}
