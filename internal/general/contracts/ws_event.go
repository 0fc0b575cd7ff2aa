package contracts

import "encoding/json"

// Server -> passenger websocket frame types.
const (
	WSTypeTrackingUpdate   = "tracking_update"
	WSTypeRideStatusUpdate = "ride_status_update"
	WSTypeSOSUpdate        = "sos_update"
	WSTypeNavigate         = "navigate"
	WSTypeError            = "error"
)

// Passenger -> server websocket frame types (after the auth frame).
const (
	WSTypeLocation = "location"
	WSTypeSOS      = "sos"
)

// WSTrackingUpdate carries the full tracking state on every tick.
type WSTrackingUpdate struct {
	Type   string          `json:"type"` // "tracking_update"
	RideID string          `json:"ride_id"`
	State  json.RawMessage `json:"state"`
}

// WSRideStatusUpdate mirrors a status change with the updated snapshot.
type WSRideStatusUpdate struct {
	Type   string          `json:"type"` // "ride_status_update"
	RideID string          `json:"ride_id"`
	Status string          `json:"status"`
	Label  string          `json:"label"`
	Ride   json.RawMessage `json:"ride"`
	Envelope
}

// WSSOSUpdate tells the passenger the SOS banner state.
type WSSOSUpdate struct {
	Type   string `json:"type"` // "sos_update"
	RideID string `json:"ride_id"`
	Active bool   `json:"active"`
}

// WSNavigate asks the client to move to another screen.
type WSNavigate struct {
	Type   string `json:"type"` // "navigate"
	RideID string `json:"ride_id"`
	Route  string `json:"route"`
}

// WSError reports a rejected client frame.
type WSError struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WSClientFrame is any passenger frame; fields are read by Type.
type WSClientFrame struct {
	Type           string   `json:"type"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	AccuracyMeters *float64 `json:"accuracy_meters,omitempty"`
	Error          string   `json:"error,omitempty"` // "permission_denied"
}
