package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/frostdev-ops/telemetry-backend-go/internal/database/models"
	"github.com/frostdev-ops/telemetry-backend-go/internal/database/repositories"
	"github.com/jmoiron/sqlx"
)

// DeviceRepository implements repositories.DeviceRepository
type DeviceRepository struct {
	db *sqlx.DB
}

// NewDeviceRepository creates a new DeviceRepository
func NewDeviceRepository(db *sqlx.DB) repositories.DeviceRepository {
	return &DeviceRepository{db: db}
}

// Create registers a device under the id it carries
func (r *DeviceRepository) Create(ctx context.Context, device *models.Device) error {
	query := `INSERT INTO devices (id, user_id, created_at) VALUES (?, ?, ?)`

	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, query, device.ID, device.UserID, now); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("device %d: %w", device.ID, repositories.ErrDuplicate)
		}
		return fmt.Errorf("failed to create device: %w", err)
	}

	device.CreatedAt = now
	return nil
}

// GetByID retrieves a device by ID
func (r *DeviceRepository) GetByID(ctx context.Context, id int64) (*models.Device, error) {
	var device models.Device
	err := r.db.GetContext(ctx, &device, `SELECT id, user_id, created_at FROM devices WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("device %d: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return &device, nil
}

// GetAll retrieves every registered device
func (r *DeviceRepository) GetAll(ctx context.Context) ([]*models.Device, error) {
	var devices []*models.Device
	err := r.db.SelectContext(ctx, &devices, `SELECT id, user_id, created_at FROM devices ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}
	return devices, nil
}

// GetByUser retrieves the devices owned by a user
func (r *DeviceRepository) GetByUser(ctx context.Context, userID int64) ([]*models.Device, error) {
	var devices []*models.Device
	err := r.db.SelectContext(ctx, &devices,
		`SELECT id, user_id, created_at FROM devices WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get devices for user %d: %w", userID, err)
	}
	return devices, nil
}

// DevicesOwnedBy returns the ids of the devices owned by a user
func (r *DeviceRepository) DevicesOwnedBy(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `SELECT id FROM devices WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get device ids for user %d: %w", userID, err)
	}
	return ids, nil
}
