package devices

import "errors"

var (
	ErrInvalidDeviceID = errors.New("device id must be a positive integer")
	ErrDeviceNotFound  = errors.New("device not found")
	ErrDeviceExists    = errors.New("device already exists")
)
