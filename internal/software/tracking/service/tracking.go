package service

import (
	"context"
	"errors"
	"strings"

	"ride-tracker/internal/domain/ride"
	"ride-tracker/internal/general/cache"
	"ride-tracker/internal/general/contextx"
	"ride-tracker/internal/ports"
	"ride-tracker/internal/tracking"
)

// StartTracking starts the lifecycle of a ride (the placeholder ride when in.Ride is nil)
// and stores its Upcoming snapshot.
func (service *trackingService) StartTracking(ctx context.Context, in ports.StartTrackingInput) (*ports.TrackingResult, error) {
	ctx = contextx.WithCorrelationID(ctx, in.CorrelationID)

	tracker, err := service.registry.Start(ctx, in.Ride)
	if err != nil {
		service.logger.Warn(ctx, "tracking_start_failed", "Failed to start tracking", err, map[string]any{
			"passenger_id": in.PassengerID,
		})
		return nil, err
	}
	rideCtx := service.logger.WithRideID(ctx, tracker.RideID())
	service.bindOwner(tracker.RideID(), strings.TrimSpace(in.PassengerID))

	result, err := service.result(rideCtx, tracker)
	if err != nil {
		return nil, err
	}
	if err := service.storeSnapshot(rideCtx, result.Ride); err != nil {
		service.logger.Warn(rideCtx, "snapshot_store_failed", "Failed to store the initial ride snapshot", err, nil)
	}

	service.logger.Info(rideCtx, "tracking_started", "Ride tracking started", map[string]any{
		"passenger_id": in.PassengerID,
		"destination":  result.Ride.Destination,
	})
	return result, nil
}

// GetTracking returns the live state of a tracked ride.
func (service *trackingService) GetTracking(ctx context.Context, rideID string) (*ports.TrackingResult, error) {
	tracker, err := service.registry.Get(strings.TrimSpace(rideID))
	if err != nil {
		return nil, err
	}
	return service.result(ctx, tracker)
}

// StopTracking disposes a ride's tracker.
func (service *trackingService) StopTracking(ctx context.Context, in ports.StopTrackingInput) error {
	rideID := strings.TrimSpace(in.RideID)
	if err := service.checkOwner(rideID, in.UserID, in.Role); err != nil {
		service.logger.Warn(service.logger.WithRideID(ctx, rideID), "tracking_stop_denied", "Passenger does not own the ride", err, map[string]any{
			"user_id": in.UserID,
		})
		return err
	}
	if err := service.registry.Stop(rideID); err != nil {
		return err
	}
	service.logger.Info(service.logger.WithRideID(ctx, rideID), "tracking_stopped", "Ride tracking stopped", nil)
	return nil
}

// GetRide returns the latest snapshot: live tracker, then cache, then database.
func (service *trackingService) GetRide(ctx context.Context, rideID string) (*ride.Snapshot, error) {
	rideID = strings.TrimSpace(rideID)
	if rideID == "" {
		return nil, ride.ErrRideIDRequired
	}

	if tracker, err := service.registry.Get(rideID); err == nil {
		snapshot, err := tracker.Snapshot(ctx)
		if err == nil {
			return &snapshot, nil
		}
	}

	if service.cache != nil {
		snapshot, err := service.cache.Get(ctx, rideID)
		if err == nil {
			return &snapshot, nil
		}
		if !errors.Is(err, cache.ErrSnapshotNotFound) {
			service.logger.Warn(ctx, "snapshot_cache_read_failed", "Failed to read the snapshot cache", err, map[string]any{
				"ride_id": rideID,
			})
		}
	}

	var snapshot *ride.Snapshot
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		snapshot, err = service.snapshots.GetByID(txCtx, rideID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (service *trackingService) result(ctx context.Context, tracker *tracking.Tracker) (*ports.TrackingResult, error) {
	state, err := tracker.State(ctx)
	if err != nil {
		return nil, err
	}
	snapshot, err := tracker.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &ports.TrackingResult{RideID: tracker.RideID(), Ride: snapshot, State: state}, nil
}
