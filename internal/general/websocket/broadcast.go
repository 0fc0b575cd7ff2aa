package websocket

import (
	"context"
	"encoding/json"

	"ride-tracker/internal/general/contracts"
	"ride-tracker/internal/tracking"
)

// Listen is a tracking.Listener that forwards tracker events to the ride's passengers.
func (h *Hub) Listen(ev tracking.Event) {
	rideID := ev.State.RideID
	clients := h.clientsOf(rideID)
	if len(clients) == 0 {
		return
	}

	frames, err := framesFor(ev)
	if err != nil {
		h.logger.Error(context.Background(), "ws_frame_encode_failed", "Failed to encode tracking frame", err, map[string]any{
			"ride_id": rideID,
			"event":   string(ev.Type),
		})
		return
	}
	for _, frame := range frames {
		for _, c := range clients {
			c.enqueue(frame)
		}
	}
}

// Go implements tracking.NavigationHandoff by telling connected passengers to navigate to route.
func (h *Hub) Go(ctx context.Context, rideID, route string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(contracts.WSNavigate{
		Type:   contracts.WSTypeNavigate,
		RideID: rideID,
		Route:  route,
	})
	if err != nil {
		return err
	}

	delivered := 0
	for _, c := range h.clientsOf(rideID) {
		if c.enqueue(payload) {
			delivered++
		}
	}
	if delivered == 0 {
		return ErrNotConnected
	}
	return nil
}

func framesFor(ev tracking.Event) ([][]byte, error) {
	var frames []any
	switch ev.Type {
	case tracking.EventTrackingStarted, tracking.EventTick:
		frame, err := trackingUpdate(ev.State)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)

	case tracking.EventStatusChanged:
		rideJSON, err := json.Marshal(ev.Snapshot)
		if err != nil {
			return nil, err
		}
		frames = append(frames, contracts.WSRideStatusUpdate{
			Type:     contracts.WSTypeRideStatusUpdate,
			RideID:   ev.State.RideID,
			Status:   ev.Snapshot.Status.String(),
			Label:    ev.Snapshot.Status.Label(),
			Ride:     rideJSON,
			Envelope: contracts.NewEnvelope(contracts.Producer, ""),
		})
		frame, err := trackingUpdate(ev.State)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)

	case tracking.EventSOSActivated, tracking.EventSOSCleared:
		frames = append(frames, contracts.WSSOSUpdate{
			Type:   contracts.WSTypeSOSUpdate,
			RideID: ev.State.RideID,
			Active: ev.State.SOSActive,
		})
	}

	out := make([][]byte, 0, len(frames))
	for _, frame := range frames {
		payload, err := json.Marshal(frame)
		if err != nil {
			return nil, err
		}
		out = append(out, payload)
	}
	return out, nil
}

func trackingUpdate(state tracking.State) (contracts.WSTrackingUpdate, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return contracts.WSTrackingUpdate{}, err
	}
	return contracts.WSTrackingUpdate{
		Type:   contracts.WSTypeTrackingUpdate,
		RideID: state.RideID,
		State:  raw,
	}, nil
}
