package ports

import (
	"context"
	"time"

	"ride-tracker/internal/domain/emergency"
	"ride-tracker/internal/domain/ride"
)

// UnitOfWork interface is used to manage transactions across multiple repository operations.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RideSnapshotRepository stores the latest snapshot of every tracked ride.
type RideSnapshotRepository interface {
	Upsert(ctx context.Context, snapshot ride.Snapshot) error
	GetByID(ctx context.Context, id string) (*ride.Snapshot, error)
}

// RideEventRepository defines the methods for managing ride event data.
type RideEventRepository interface {
	Append(ctx context.Context, e *ride.Event) error
	ListByRide(ctx context.Context, rideID string, limit int) ([]*ride.Event, error)
}

// SOSLogRepository persists raised SOS alerts.
type SOSLogRepository interface {
	Create(ctx context.Context, log *emergency.SOSLog) error
	GetByID(ctx context.Context, id string) (*emergency.SOSLog, error)
	ListByRide(ctx context.Context, rideID string) ([]*emergency.SOSLog, error)
	ListByUser(ctx context.Context, userID string) ([]*emergency.SOSLog, error)
	CountBetween(ctx context.Context, from, to time.Time) (int, error)
}

// Publisher sends a message to an exchange with a routing key.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}
