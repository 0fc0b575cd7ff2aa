package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"ride-tracker/internal/domain/ride"
	"ride-tracker/internal/general/contracts"
	"ride-tracker/internal/general/rabbitmq"
	"ride-tracker/internal/ports"
	"ride-tracker/internal/tracking"
)

const assignmentConsumerTag = "tracker-service-assignments"

// RunBackgroundConsumers starts tracking rides as the ride service assigns drivers to them.
func (service *trackingService) RunBackgroundConsumers(ctx context.Context) {
	if service.consumer == nil {
		return
	}
	go service.consumer.ConsumeLoop(ctx, contracts.QueueRideTracking, assignmentConsumerTag, 10, service.handleRideAssigned)

	service.logger.Info(ctx, "mq_consumer_started", "Tracker service MQ consumer started",
		map[string]any{"queue": contracts.QueueRideTracking})
}

// handleRideAssigned starts a tracker for one assignment. Malformed messages are dropped;
// duplicates of a ride already tracked are acknowledged.
func (service *trackingService) handleRideAssigned(ctx context.Context, d amqp.Delivery) error {
	var msg contracts.RideAssignedMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		service.logger.Error(ctx, "mq_message_parse_failed", "Failed to parse ride assignment", err, map[string]any{
			"routing_key": d.RoutingKey,
		})
		return fmt.Errorf("%w: %v", rabbitmq.ErrPoison, err)
	}

	snapshot := ride.Snapshot{
		ID:          msg.RideID,
		DriverName:  msg.DriverName,
		DriverPhone: msg.DriverPhone,
		CarModel:    msg.CarModel,
		CarNumber:   msg.CarNumber,
		Departure:   msg.Departure,
		Destination: msg.Destination,
		Date:        msg.Date,
		Time:        msg.Time,
		Status:      ride.StatusUpcoming,
	}
	if err := snapshot.Validate(); err != nil {
		service.logger.Error(ctx, "ride_assignment_invalid", "Ride assignment rejected", err, map[string]any{
			"routing_key": d.RoutingKey,
		})
		return fmt.Errorf("%w: %v", rabbitmq.ErrPoison, err)
	}

	_, err := service.StartTracking(ctx, ports.StartTrackingInput{
		Ride:          &snapshot,
		PassengerID:   msg.PassengerID,
		CorrelationID: msg.CorrelationID,
	})
	if errors.Is(err, tracking.ErrAlreadyTracking) {
		service.logger.Debug(ctx, "ride_assignment_duplicate", "Ride is already tracked", map[string]any{
			"ride_id": msg.RideID,
		})
		return nil
	}
	return err
}
