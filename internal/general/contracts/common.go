package contracts

import "time"

// Envelope adds cross-cutting headers all messages may carry.
type Envelope struct {
	CorrelationID string    `json:"correlation_id,omitempty"` // request id of the call that caused the message
	Producer      string    `json:"producer,omitempty"`       // producer service name, e.g. "tracker-service"
	SentAt        time.Time `json:"sent_at,omitempty"`        // send time (UTC)
}

// NewEnvelope stamps a message produced by service now.
func NewEnvelope(producer, correlationID string) Envelope {
	return Envelope{
		CorrelationID: correlationID,
		Producer:      producer,
		SentAt:        time.Now().UTC(),
	}
}

// GeoPoint is a latitude/longitude pair on the wire.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
