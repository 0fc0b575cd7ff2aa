package contracts

import "time"

// RideStatusMessage is published on every tracked status change.
// Routing key: "ride.status.{STATUS}" on ExchangeRideTopic.
type RideStatusMessage struct {
	RideID      string    `json:"ride_id"`
	Status      string    `json:"status"` // UPCOMING|IN_PROGRESS|COMPLETED
	Timestamp   time.Time `json:"timestamp"`
	DriverName  string    `json:"driver_name,omitempty"`
	CarNumber   string    `json:"car_number,omitempty"`
	Departure   string    `json:"departure,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Envelope
}

// RideAssignedMessage is consumed from the ride service once a driver accepted a ride;
// it starts tracking on the passenger side.
// Routing key: "ride.assigned.{ride_id}" on ExchangeRideTopic.
type RideAssignedMessage struct {
	RideID      string `json:"ride_id"`
	PassengerID string `json:"passenger_id,omitempty"`
	DriverName  string `json:"driver_name"`
	DriverPhone string `json:"driver_phone,omitempty"`
	CarModel    string `json:"car_model,omitempty"`
	CarNumber   string `json:"car_number,omitempty"`
	Departure   string `json:"departure,omitempty"`
	Destination string `json:"destination,omitempty"`
	Date        string `json:"date,omitempty"`
	Time        string `json:"time,omitempty"`
	Envelope
}
