package database

import (
	"github.com/frostdev-ops/telemetry-backend-go/internal/database/repositories"
	"github.com/frostdev-ops/telemetry-backend-go/internal/database/sqlite"
	"github.com/jmoiron/sqlx"
)

// Repositories holds all repository instances
type Repositories struct {
	User   repositories.UserRepository
	Device repositories.DeviceRepository
	Sample repositories.SampleRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		User:   sqlite.NewUserRepository(db),
		Device: sqlite.NewDeviceRepository(db),
		Sample: sqlite.NewSampleRepository(db),
	}
}
