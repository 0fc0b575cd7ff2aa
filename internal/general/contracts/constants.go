package contracts

// Producer is the name this service stamps on its messages.
const Producer = "tracker-service"

// Exchanges
const (
	ExchangeRideTopic      = "ride_topic"
	ExchangeEmergencyTopic = "emergency_topic"
)

// Queues
const (
	QueueRideTracking = "ride_tracking" // assignments that start tracking
	QueueRideStatus   = "ride_status"
	QueueEmergencySOS = "emergency_sos"
)

// Routing patterns
const (
	RouteRideAssignedPrefix = "ride.assigned." // {ride_id}
	RouteRideStatusPrefix   = "ride.status."   // {STATUS}
	RouteEmergencySOSPrefix = "emergency.sos." // {ride_id}
)

// RideStatusRoute is the routing key of a status message.
func RideStatusRoute(busStatus string) string { return RouteRideStatusPrefix + busStatus }

// EmergencySOSRoute is the routing key of an SOS message.
func EmergencySOSRoute(rideID string) string { return RouteEmergencySOSPrefix + rideID }
