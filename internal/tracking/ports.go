package tracking

import (
	"context"
	"errors"
	"time"

	"ride-tracker/internal/domain/geo"
	"ride-tracker/internal/domain/ride"
)

// StatusSink receives every status transition as a full snapshot. Best-effort: a failure
// never blocks or rolls back the transition.
type StatusSink interface {
	Update(ctx context.Context, snapshot ride.Snapshot) error
}

// SOSReport is what an emergency reporter receives.
type SOSReport struct {
	RideID      string    `json:"rideId"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	TriggeredAt time.Time `json:"triggeredAt"`
}

// EmergencyReporter accepts an SOS. The tracker never retries; callers may.
type EmergencyReporter interface {
	Send(ctx context.Context, report SOSReport) error
}

// LocationCapability returns the current device position for a ride's passenger.
// Single-shot: one call, one answer or one error.
type LocationCapability interface {
	CurrentPosition(ctx context.Context, rideID string) (geo.Fix, error)
}

// NavigationHandoff moves the passenger on to the next flow once the ride completes.
type NavigationHandoff interface {
	Go(ctx context.Context, rideID, route string) error
}

// SinkFunc adapts a function to StatusSink.
type SinkFunc func(ctx context.Context, snapshot ride.Snapshot) error

func (f SinkFunc) Update(ctx context.Context, snapshot ride.Snapshot) error { return f(ctx, snapshot) }

// ReporterFunc adapts a function to EmergencyReporter.
type ReporterFunc func(ctx context.Context, report SOSReport) error

func (f ReporterFunc) Send(ctx context.Context, report SOSReport) error { return f(ctx, report) }

// LocatorFunc adapts a function to LocationCapability.
type LocatorFunc func(ctx context.Context, rideID string) (geo.Fix, error)

func (f LocatorFunc) CurrentPosition(ctx context.Context, rideID string) (geo.Fix, error) {
	return f(ctx, rideID)
}

// HandoffFunc adapts a function to NavigationHandoff.
type HandoffFunc func(ctx context.Context, rideID, route string) error

func (f HandoffFunc) Go(ctx context.Context, rideID, route string) error { return f(ctx, rideID, route) }

// MultiSink forwards a snapshot to every sink and joins their errors.
type MultiSink []StatusSink

func (sinks MultiSink) Update(ctx context.Context, snapshot ride.Snapshot) error {
	var errs []error
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		if err := sink.Update(ctx, snapshot); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ChainReporter sends to each reporter in order and stops at the first failure.
type ChainReporter []EmergencyReporter

func (chain ChainReporter) Send(ctx context.Context, report SOSReport) error {
	for _, reporter := range chain {
		if reporter == nil {
			continue
		}
		if err := reporter.Send(ctx, report); err != nil {
			return err
		}
	}
	return nil
}
