package contracts

import "time"

// SOSMessage is published when a passenger raises an SOS.
// Routing key: "emergency.sos.{ride_id}" on ExchangeEmergencyTopic.
type SOSMessage struct {
	SOSID       string    `json:"sos_id,omitempty"`
	RideID      string    `json:"ride_id"`
	UserID      string    `json:"user_id,omitempty"`
	Location    GeoPoint  `json:"location"`
	Geohash     string    `json:"geohash,omitempty"`
	TriggeredAt time.Time `json:"triggered_at"`
	Envelope
}
