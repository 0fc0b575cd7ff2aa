package ride

import (
	"errors"
	"strings"
)

// EventType corresponds to the values stored in `ride_events.event_type`.
type EventType string

const (
	EventRideStarted   EventType = "RIDE_STARTED"
	EventRideCompleted EventType = "RIDE_COMPLETED"
	EventStatusChanged EventType = "STATUS_CHANGED"
	EventSOSTriggered  EventType = "SOS_TRIGGERED"
)

var ErrInvalidEventType = errors.New("invalid ride event type")

// ParseEventType normalizes (uppercases+trims) and validates an event type string.
func ParseEventType(input string) (EventType, error) {
	eventType := EventType(strings.ToUpper(strings.TrimSpace(input)))
	if eventType.Valid() {
		return eventType, nil
	}
	return "", ErrInvalidEventType
}

// Valid reports whether eventType is one of the allowed event type constants.
func (eventType EventType) Valid() bool {
	switch eventType {
	case EventRideStarted,
		EventRideCompleted,
		EventStatusChanged,
		EventSOSTriggered:
		return true
	default:
		return false
	}
}

// String returns the string representation of the EventType.
func (eventType EventType) String() string {
	return string(eventType)
}

// EventTypeFor maps a status the ride moved into to its specific event type.
func EventTypeFor(status Status) EventType {
	switch status {
	case StatusInProgress:
		return EventRideStarted
	case StatusCompleted:
		return EventRideCompleted
	default:
		return EventStatusChanged
	}
}
