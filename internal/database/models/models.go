package models

import (
	"time"
)

// User represents a registered user
type User struct {
	ID           int64     `json:"id" db:"id"`
	Login        string    `json:"login" db:"login"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Device represents a registered sample source. UserID is nil for devices
// without an owner.
type Device struct {
	ID        int64     `json:"id" db:"id"`
	UserID    *int64    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Sample sources
const (
	SourceAPI       = "api"
	SourceMQTT      = "mqtt"
	SourceSimulator = "simulator"
)

// Sample is one timestamped (x, y, z) reading of a device
type Sample struct {
	ID         int64     `json:"id" db:"id"`
	DeviceID   int64     `json:"device_id" db:"device_id"`
	X          float64   `json:"x" db:"x"`
	Y          float64   `json:"y" db:"y"`
	Z          float64   `json:"z" db:"z"`
	Source     string    `json:"source" db:"source"`
	RecordedAt time.Time `json:"date" db:"-"`
}
