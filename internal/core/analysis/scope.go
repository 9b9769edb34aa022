package analysis

import "strconv"

// Scope selects which samples a query can see. The set of variants is closed:
// SingleDevice, UserDevices and AllDevices.
type Scope interface {
	// Key is the identifier responses are grouped under.
	Key() string
	scope()
}

// SingleDevice restricts a query to one device.
type SingleDevice struct {
	DeviceID int64
}

// UserDevices restricts a query to every device owned by a user. Devices
// without an owner never match.
type UserDevices struct {
	UserID int64
}

// AllDevices lets a query see the whole sample store.
type AllDevices struct{}

func (s SingleDevice) Key() string { return strconv.FormatInt(s.DeviceID, 10) }
func (s UserDevices) Key() string  { return strconv.FormatInt(s.UserID, 10) }
func (AllDevices) Key() string     { return "all" }

func (SingleDevice) scope() {}
func (UserDevices) scope()  {}
func (AllDevices) scope()   {}

// DeviceSet is the store-facing form of a scope: either every device or an
// explicit list of ids. An explicit empty list matches nothing.
type DeviceSet struct {
	All bool
	IDs []int64
}

// Everything is the device set matching the whole store.
func Everything() DeviceSet {
	return DeviceSet{All: true}
}

// Devices builds an explicit device set.
func Devices(ids ...int64) DeviceSet {
	return DeviceSet{IDs: ids}
}

// Empty reports whether the set can never match a sample.
func (d DeviceSet) Empty() bool {
	return !d.All && len(d.IDs) == 0
}
