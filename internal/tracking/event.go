package tracking

import "ride-tracker/internal/domain/ride"

// EventType names what happened to a tracker.
type EventType string

const (
	EventTrackingStarted EventType = "tracking_started"
	EventStatusChanged   EventType = "status_changed"
	EventTick            EventType = "tick"
	EventSOSActivated    EventType = "sos_activated"
	EventSOSCleared      EventType = "sos_cleared"
	EventHandoff         EventType = "handoff"
	EventSinkFailed      EventType = "sink_failed"
	EventHandoffFailed   EventType = "handoff_failed"
	EventTrackingStopped EventType = "tracking_stopped"
)

// Event is delivered to listeners on the tracker's scheduler. State and Snapshot are copies.
type Event struct {
	Type     EventType
	State    State
	Snapshot ride.Snapshot
	Route    string // EventHandoff, EventHandoffFailed
	Err      error  // EventSinkFailed, EventHandoffFailed
}

// Listener observes tracker events. It runs on the scheduler and must not call back into
// the tracker synchronously or block for long.
type Listener func(Event)
