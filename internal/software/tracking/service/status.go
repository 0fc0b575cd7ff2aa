package service

import (
	"context"
	"encoding/json"
	"fmt"

	"ride-tracker/internal/domain/ride"
	"ride-tracker/internal/general/contextx"
	"ride-tracker/internal/general/contracts"
)

// recordStatus is the durable status sink: it stores the snapshot and its ride event in one
// transaction, then publishes the status change.
func (service *trackingService) recordStatus(ctx context.Context, snapshot ride.Snapshot) error {
	event, err := ride.NewStatusEvent(snapshot)
	if err != nil {
		return err
	}

	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		if err := service.snapshots.Upsert(txCtx, snapshot); err != nil {
			return fmt.Errorf("upsert ride snapshot: %w", err)
		}
		if err := service.events.Append(txCtx, event); err != nil {
			return fmt.Errorf("append ride event: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return service.publishRideStatus(ctx, contracts.RideStatusMessage{
		RideID:      snapshot.ID,
		Status:      snapshot.Status.BusName(),
		Timestamp:   event.CreatedAt,
		DriverName:  snapshot.DriverName,
		CarNumber:   snapshot.CarNumber,
		Departure:   snapshot.Departure,
		Destination: snapshot.Destination,
		Envelope:    contracts.NewEnvelope(contracts.Producer, contextx.CorrelationID(ctx)),
	})
}

// storeSnapshot writes snapshot to the database and the cache without recording an event.
func (service *trackingService) storeSnapshot(ctx context.Context, snapshot ride.Snapshot) error {
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		return service.snapshots.Upsert(txCtx, snapshot)
	})
	if err != nil {
		return err
	}
	if service.cache != nil {
		return service.cache.Update(ctx, snapshot)
	}
	return nil
}

// publishRideStatus sends a ride status update to the ride topic exchange using routing key
// ride.status.{STATUS}, e.g. ride.status.IN_PROGRESS
func (service *trackingService) publishRideStatus(ctx context.Context, msg contracts.RideStatusMessage) error {
	routingKey := contracts.RideStatusRoute(msg.Status)

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := service.pub.Publish(ctx, contracts.ExchangeRideTopic, routingKey, body); err != nil {
		return fmt.Errorf("publish ride status: %w", err)
	}

	service.logger.Info(ctx, "ride_status_published", "Published ride status to RabbitMQ", map[string]any{
		"routing_key": routingKey,
	})
	return nil
}
