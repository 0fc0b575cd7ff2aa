// Package location keeps the latest device fix per ride and serves single-shot position requests.
package location

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"ride-tracker/internal/domain/geo"
)

var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrLocationTimeout  = errors.New("location request timed out")
	ErrRideIDRequired   = errors.New("ride id is required")
)

// DeviceLocator is fed by passenger devices (HTTP or websocket) and answers position requests
// with the freshest fix it has, waiting a bounded time for one when it has none.
type DeviceLocator struct {
	maxAge  time.Duration
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	devices map[string]*device
}

type device struct {
	fix     geo.Fix
	hasFix  bool
	denied  bool
	changed chan struct{} // closed and replaced on every report
}

// NewDeviceLocator returns a locator accepting fixes up to maxAge old and waiting up to timeout for a new one.
func NewDeviceLocator(maxAge, timeout time.Duration) *DeviceLocator {
	return &DeviceLocator{
		maxAge:  maxAge,
		timeout: timeout,
		now:     time.Now,
		devices: make(map[string]*device),
	}
}

// Report stores a fresh fix for rideID and wakes pending requests. A zero RecordedAt is set to now.
func (locator *DeviceLocator) Report(rideID string, fix geo.Fix) error {
	if rideID = strings.TrimSpace(rideID); rideID == "" {
		return ErrRideIDRequired
	}
	if err := fix.Validate(); err != nil {
		return err
	}
	if fix.RecordedAt.IsZero() {
		fix.RecordedAt = locator.now().UTC()
	}

	locator.mu.Lock()
	defer locator.mu.Unlock()

	dev := locator.deviceLocked(rideID)
	dev.fix = fix
	dev.hasFix = true
	dev.denied = false
	dev.notifyLocked()
	return nil
}

// Deny records that the passenger refused location access. It holds until the next Report.
func (locator *DeviceLocator) Deny(rideID string) error {
	if rideID = strings.TrimSpace(rideID); rideID == "" {
		return ErrRideIDRequired
	}

	locator.mu.Lock()
	defer locator.mu.Unlock()

	dev := locator.deviceLocked(rideID)
	dev.denied = true
	dev.notifyLocked()
	return nil
}

// Forget drops everything known about rideID's device.
func (locator *DeviceLocator) Forget(rideID string) {
	locator.mu.Lock()
	defer locator.mu.Unlock()

	if dev, ok := locator.devices[rideID]; ok {
		dev.notifyLocked()
		delete(locator.devices, rideID)
	}
}

// CurrentPosition returns a fix no older than maxAge, waiting up to the locator timeout for one.
func (locator *DeviceLocator) CurrentPosition(ctx context.Context, rideID string) (geo.Fix, error) {
	timer := time.NewTimer(locator.timeout)
	defer timer.Stop()

	for {
		locator.mu.Lock()
		dev := locator.deviceLocked(rideID)
		if dev.denied {
			locator.mu.Unlock()
			return geo.Fix{}, ErrPermissionDenied
		}
		if dev.hasFix && dev.fix.Age(locator.now()) <= locator.maxAge {
			fix := dev.fix
			locator.mu.Unlock()
			return fix, nil
		}
		changed := dev.changed
		locator.mu.Unlock()

		select {
		case <-changed:
		case <-timer.C:
			return geo.Fix{}, ErrLocationTimeout
		case <-ctx.Done():
			return geo.Fix{}, ctx.Err()
		}
	}
}

func (locator *DeviceLocator) deviceLocked(rideID string) *device {
	dev, ok := locator.devices[rideID]
	if !ok {
		dev = &device{changed: make(chan struct{})}
		locator.devices[rideID] = dev
	}
	return dev
}

func (dev *device) notifyLocked() {
	close(dev.changed)
	dev.changed = make(chan struct{})
}
