package emergency

import (
	"errors"
	"strings"
	"time"

	"ride-tracker/internal/domain/geo"
)

// SOSLog is the domain entity corresponding to the `sos_logs` table.
type SOSLog struct {
	ID          string    `json:"id"`
	RideID      string    `json:"ride_id"`
	UserID      string    `json:"user_id,omitempty"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Geohash     string    `json:"geohash"`
	TriggeredAt time.Time `json:"triggered_at"`
}

var (
	ErrRideIDRequired = errors.New("ride id is required")
	ErrNotFound       = errors.New("sos log not found")
)

// NewSOSLog builds a log entry for an SOS raised at fix.
func NewSOSLog(rideID, userID string, fix geo.Fix, triggeredAt time.Time) (*SOSLog, error) {
	if rideID = strings.TrimSpace(rideID); rideID == "" {
		return nil, ErrRideIDRequired
	}
	if err := fix.Validate(); err != nil {
		return nil, err
	}
	if triggeredAt.IsZero() {
		triggeredAt = time.Now().UTC()
	}

	return &SOSLog{
		RideID:      rideID,
		UserID:      strings.TrimSpace(userID),
		Latitude:    fix.Latitude,
		Longitude:   fix.Longitude,
		Geohash:     fix.Geohash(),
		TriggeredAt: triggeredAt.UTC(),
	}, nil
}
