package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ride-tracker/internal/domain/emergency"
	"ride-tracker/internal/domain/geo"
	"ride-tracker/internal/domain/ride"
	"ride-tracker/internal/general/contextx"
	"ride-tracker/internal/general/contracts"
	"ride-tracker/internal/ports"
	"ride-tracker/internal/tracking"
)

// ReportLocation feeds a device fix (or a permission refusal) to the locator.
func (service *trackingService) ReportLocation(ctx context.Context, in ports.ReportLocationInput) error {
	if service.locator == nil {
		return tracking.ErrCapabilityUnavailable
	}
	rideID := strings.TrimSpace(in.RideID)
	if in.Denied {
		service.logger.Info(service.logger.WithRideID(ctx, rideID), "location_denied", "Passenger denied location access", nil)
		return service.locator.Deny(rideID)
	}

	fix := geo.Fix{
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
		AccuracyMeters: in.AccuracyMeters,
	}
	return service.locator.Report(rideID, fix)
}

// TriggerSOS raises an SOS on a tracked ride on behalf of in.UserID.
func (service *trackingService) TriggerSOS(ctx context.Context, in ports.TriggerSOSInput) (*ports.TriggerSOSResult, error) {
	rideID := strings.TrimSpace(in.RideID)
	ctx = contextx.WithUserID(service.logger.WithRideID(ctx, rideID), in.UserID)

	if err := service.checkOwner(rideID, in.UserID, in.Role); err != nil {
		service.logger.Warn(ctx, "sos_denied", "Passenger does not own the ride", err, map[string]any{
			"user_id": in.UserID,
		})
		return nil, err
	}

	report, err := service.registry.TriggerSOS(ctx, rideID)
	if err != nil {
		service.logger.Warn(ctx, "sos_failed", "SOS request failed", err, map[string]any{
			"user_id": in.UserID,
		})
		return nil, err
	}

	return &ports.TriggerSOSResult{
		RideID:      report.RideID,
		Latitude:    report.Latitude,
		Longitude:   report.Longitude,
		TriggeredAt: report.TriggeredAt,
		Message:     "Emergency services have been notified",
	}, nil
}

// reportSOS is the durable emergency reporter: it stores the SOS log and its ride event in one
// transaction, then publishes the alert for dispatch.
func (service *trackingService) reportSOS(ctx context.Context, report tracking.SOSReport) error {
	fix := geo.Fix{Latitude: report.Latitude, Longitude: report.Longitude}
	log, err := emergency.NewSOSLog(report.RideID, contextx.UserID(ctx), fix, report.TriggeredAt)
	if err != nil {
		return err
	}

	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		if err := service.sosLogs.Create(txCtx, log); err != nil {
			return err
		}
		event, err := ride.NewEvent(log.RideID, ride.EventSOSTriggered, map[string]any{
			"sos_id":    log.ID,
			"user_id":   log.UserID,
			"latitude":  log.Latitude,
			"longitude": log.Longitude,
			"geohash":   log.Geohash,
		})
		if err != nil {
			return err
		}
		return service.events.Append(txCtx, event)
	})
	if err != nil {
		return fmt.Errorf("store sos log: %w", err)
	}

	body, err := json.Marshal(contracts.SOSMessage{
		SOSID:       log.ID,
		RideID:      log.RideID,
		UserID:      log.UserID,
		Location:    contracts.GeoPoint{Lat: log.Latitude, Lng: log.Longitude},
		Geohash:     log.Geohash,
		TriggeredAt: log.TriggeredAt,
		Envelope:    contracts.NewEnvelope(contracts.Producer, contextx.CorrelationID(ctx)),
	})
	if err != nil {
		return err
	}
	routingKey := contracts.EmergencySOSRoute(log.RideID)
	if err := service.pub.Publish(ctx, contracts.ExchangeEmergencyTopic, routingKey, body); err != nil {
		return fmt.Errorf("publish sos: %w", err)
	}

	service.logger.Info(ctx, "sos_reported", "SOS stored and published", map[string]any{
		"sos_id":      log.ID,
		"geohash":     log.Geohash,
		"routing_key": routingKey,
	})
	return nil
}

// GetSOSLog returns one SOS log.
func (service *trackingService) GetSOSLog(ctx context.Context, id string) (*emergency.SOSLog, error) {
	var log *emergency.SOSLog
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		log, err = service.sosLogs.GetByID(txCtx, strings.TrimSpace(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return log, nil
}

// ListSOSLogsByRide returns a ride's SOS logs, newest first.
func (service *trackingService) ListSOSLogsByRide(ctx context.Context, rideID string) ([]*emergency.SOSLog, error) {
	return service.listSOSLogs(ctx, func(txCtx context.Context) ([]*emergency.SOSLog, error) {
		return service.sosLogs.ListByRide(txCtx, strings.TrimSpace(rideID))
	})
}

// ListSOSLogsByUser returns the SOS logs raised by a user, newest first.
func (service *trackingService) ListSOSLogsByUser(ctx context.Context, userID string) ([]*emergency.SOSLog, error) {
	return service.listSOSLogs(ctx, func(txCtx context.Context) ([]*emergency.SOSLog, error) {
		return service.sosLogs.ListByUser(txCtx, strings.TrimSpace(userID))
	})
}

func (service *trackingService) listSOSLogs(
	ctx context.Context,
	list func(context.Context) ([]*emergency.SOSLog, error),
) ([]*emergency.SOSLog, error) {
	var logs []*emergency.SOSLog
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		logs, err = list(txCtx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return logs, nil
}
