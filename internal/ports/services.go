package ports

import (
	"context"
	"time"

	"ride-tracker/internal/domain/emergency"
	"ride-tracker/internal/domain/ride"
	"ride-tracker/internal/domain/user"
	"ride-tracker/internal/tracking"
)

// ----- DTOs for Tracking Service -----

// StartTrackingInput is the validated input required to start tracking a ride.
// A nil Ride starts the placeholder ride.
type StartTrackingInput struct {
	Ride          *ride.Snapshot
	PassengerID   string
	CorrelationID string
}

// TrackingResult is the live view of a tracked ride.
type TrackingResult struct {
	RideID string         `json:"ride_id"`
	Ride   ride.Snapshot  `json:"ride"`
	State  tracking.State `json:"state"`
}

// ReportLocationInput is a device geolocation reading (or a refusal) for a ride.
type ReportLocationInput struct {
	RideID         string
	Latitude       float64
	Longitude      float64
	AccuracyMeters *float64
	Denied         bool
}

// TriggerSOSInput is the validated input for POST /rides/{ride_id}/sos.
// A PASSENGER caller must be the passenger the ride was started for.
type TriggerSOSInput struct {
	RideID string
	UserID string
	Role   user.Role
}

// StopTrackingInput is the input for DELETE /rides/{ride_id}/tracking; ownership
// is checked the same way as for TriggerSOSInput.
type StopTrackingInput struct {
	RideID string
	UserID string
	Role   user.Role
}

// TriggerSOSResult is returned once the emergency report was accepted.
type TriggerSOSResult struct {
	RideID      string    `json:"ride_id"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	TriggeredAt time.Time `json:"triggered_at"`
	Message     string    `json:"message"`
}

// OverviewResult aggregates the live trackers and today's SOS alerts.
type OverviewResult struct {
	Timestamp time.Time `json:"timestamp"`
	Metrics   struct {
		ActiveTrackers int            `json:"active_trackers"`
		ByStatus       map[string]int `json:"by_status"`
		SOSActive      int            `json:"sos_active"`
		SOSToday       int            `json:"sos_today"`
	} `json:"metrics"`
}

// ----- Tracking Service Interface -----

// TrackingService exposes the boundary for the tracker service.
type TrackingService interface {
	StartTracking(ctx context.Context, in StartTrackingInput) (*TrackingResult, error)
	GetTracking(ctx context.Context, rideID string) (*TrackingResult, error)
	StopTracking(ctx context.Context, in StopTrackingInput) error
	GetRide(ctx context.Context, rideID string) (*ride.Snapshot, error)

	ReportLocation(ctx context.Context, in ReportLocationInput) error
	TriggerSOS(ctx context.Context, in TriggerSOSInput) (*TriggerSOSResult, error)

	GetSOSLog(ctx context.Context, id string) (*emergency.SOSLog, error)
	ListSOSLogsByRide(ctx context.Context, rideID string) ([]*emergency.SOSLog, error)
	ListSOSLogsByUser(ctx context.Context, userID string) ([]*emergency.SOSLog, error)
	GetOverview(ctx context.Context) (*OverviewResult, error)

	RunBackgroundConsumers(ctx context.Context)
	Close()
}
