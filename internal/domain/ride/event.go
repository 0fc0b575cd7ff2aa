package ride

import (
	"encoding/json"
	"errors"
	"maps"
	"strings"
	"time"
)

// Event is the domain entity corresponding to the `ride_events` table.
type Event struct {
	ID        string
	CreatedAt time.Time

	RideID string

	Type EventType
	Data map[string]any
}

var ErrEventDataNil = errors.New("event data must not be nil")

// NewEvent constructs a new domain Event.
func NewEvent(rideID string, eventType EventType, eventData map[string]any) (*Event, error) {
	if rideID = strings.TrimSpace(rideID); rideID == "" {
		return nil, ErrRideIDRequired
	}
	if !eventType.Valid() {
		return nil, ErrInvalidEventType
	}
	if eventData == nil {
		return nil, ErrEventDataNil
	}

	return &Event{
		RideID:    rideID,
		Type:      eventType,
		Data:      maps.Clone(eventData),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// NewStatusEvent builds the event recorded when a ride moves into status.
func NewStatusEvent(snapshot Snapshot) (*Event, error) {
	return NewEvent(snapshot.ID, EventTypeFor(snapshot.Status), map[string]any{
		"status":      snapshot.Status.BusName(),
		"departure":   snapshot.Departure,
		"destination": snapshot.Destination,
		"car_number":  snapshot.CarNumber,
	})
}

// Validate performs basic invariants checks mirroring DB constraints.
func (event *Event) Validate() error {
	if event.RideID == "" {
		return ErrRideIDRequired
	}
	if !event.Type.Valid() {
		return ErrInvalidEventType
	}
	if event.Data == nil {
		return ErrEventDataNil
	}
	return nil
}

// DataJSON returns event.Data encoded as JSON.
func (event *Event) DataJSON() ([]byte, error) {
	if event.Data == nil {
		return nil, ErrEventDataNil
	}
	return json.Marshal(event.Data)
}
