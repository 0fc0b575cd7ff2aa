package geo

import (
	"errors"
	"time"

	"github.com/mmcloughlin/geohash"
)

// Fix is a single device geolocation reading.
type Fix struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters *float64  `json:"accuracy_meters,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// geohashPrecision of 7 characters is roughly a 150m cell.
const geohashPrecision = 7

var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
	ErrNegativeAccuracy = errors.New("accuracy_meters cannot be negative")
)

// NewFix constructs a validated Fix recorded now.
func NewFix(latitude, longitude float64) (Fix, error) {
	fix := Fix{
		Latitude:   latitude,
		Longitude:  longitude,
		RecordedAt: time.Now().UTC(),
	}
	if err := fix.Validate(); err != nil {
		return Fix{}, err
	}
	return fix, nil
}

// Validate checks coordinate ranges.
func (fix Fix) Validate() error {
	if fix.Latitude < -90 || fix.Latitude > 90 {
		return ErrInvalidLatitude
	}
	if fix.Longitude < -180 || fix.Longitude > 180 {
		return ErrInvalidLongitude
	}
	if fix.AccuracyMeters != nil && *fix.AccuracyMeters < 0 {
		return ErrNegativeAccuracy
	}
	return nil
}

// Geohash encodes the fix into a geohash cell used to group SOS logs by area.
func (fix Fix) Geohash() string {
	return geohash.EncodeWithPrecision(fix.Latitude, fix.Longitude, geohashPrecision)
}

// Age returns how old the fix is relative to now.
func (fix Fix) Age(now time.Time) time.Duration {
	return now.Sub(fix.RecordedAt)
}
