package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"ride-tracker/internal/general/contracts"
)

// declareTopology is idempotent and runs on every (re)connect.
func declareTopology(ch *amqp.Channel) error {
	for _, exchange := range []string{contracts.ExchangeRideTopic, contracts.ExchangeEmergencyTopic} {
		if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", exchange, err)
		}
	}

	bindings := []struct {
		queue      string
		exchange   string
		routingKey string
	}{
		{contracts.QueueRideTracking, contracts.ExchangeRideTopic, contracts.RouteRideAssignedPrefix + "*"},
		{contracts.QueueRideStatus, contracts.ExchangeRideTopic, contracts.RouteRideStatusPrefix + "*"},
		{contracts.QueueEmergencySOS, contracts.ExchangeEmergencyTopic, contracts.RouteEmergencySOSPrefix + "*"},
	}

	for _, b := range bindings {
		if _, err := ch.QueueDeclare(b.queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", b.queue, err)
		}
		if err := ch.QueueBind(b.queue, b.routingKey, b.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}
