package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"ride-tracker/internal/domain/ride"
	"ride-tracker/internal/domain/user"
	"ride-tracker/internal/general/contracts"
	"ride-tracker/internal/general/jwt"
	"ride-tracker/internal/ports"
	"ride-tracker/internal/tracking"
)

// ConnectPassenger handles GET /ws/rides/{ride_id}. The first frame must be
// {"type":"auth","token":"Bearer <jwt>"} from a passenger.
func (h *Hub) ConnectPassenger(w http.ResponseWriter, r *http.Request) {
	rideID := r.PathValue("ride_id")
	ctx := h.logger.WithRideID(r.Context(), rideID)

	// 1) Upgrade HTTP -> WS
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error(ctx, "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}

	// Teardown order (LIFO on return):
	defer conn.Close()              // close socket last
	defer h.writeLocks.Delete(conn) // forget per-conn writer lock (idempotent)

	// 2) Auth deadline
	conn.SetReadLimit(1 << 16)
	if err := conn.SetReadDeadline(time.Now().Add(authTimeout)); err != nil {
		h.logger.Error(ctx, "ws_set_deadline_failed", "Failed to set initial read deadline", err, nil)
		h.sendAuthError(conn, "internal server error")
		return
	}

	// 3) Auth frame
	mt, first, err := conn.ReadMessage()
	if err != nil {
		h.logger.Warn(ctx, "ws_auth_read_failed", "Client disconnected before authentication", err, nil)
		h.sendAuthError(conn, "authentication timeout: please send auth message within 10 seconds")
		return
	}
	if mt != websocket.TextMessage {
		h.sendAuthError(conn, "auth message must be in text format")
		return
	}
	claims, err := jwt.ValidateWSAuth(first, h.jwtMgr, user.RolePassenger)
	if err != nil {
		h.logger.Warn(ctx, "ws_auth_failed", "Invalid auth message or token", err, nil)
		h.sendAuthError(conn, "authentication failed: invalid token")
		return
	}
	passengerID := claims.UserID()

	// 4) Register and start the writer
	c := newClient(conn, rideID, passengerID)
	if !h.register(c) {
		h.wsWriteClose(conn, websocket.CloseGoingAway, "server shutting down")
		return
	}
	defer h.unregister(c)
	defer c.shutdown()
	go h.writePump(ctx, c)

	c.enqueueJSON(authSuccess(rideID, passengerID))
	h.sendCurrentState(ctx, c)

	h.logger.Info(ctx, "ws_connected", "Passenger WebSocket connected", map[string]any{
		"passenger_id": passengerID,
	})

	// 5) Keepalive
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(_ string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	// 6) Read loop
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn(ctx, "ws_unexpected_close", "Passenger connection closed unexpectedly", err, map[string]any{
					"passenger_id": passengerID,
				})
			} else {
				h.logger.Info(ctx, "ws_connection_closed", "Passenger connection closed", map[string]any{
					"passenger_id": passengerID,
				})
			}
			return
		}

		var frame contracts.WSClientFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			c.enqueueJSON(wsError("bad_json", "frame is not valid JSON"))
			continue
		}

		switch frame.Type {
		case contracts.WSTypeLocation:
			h.handleLocation(ctx, c, frame)

		case contracts.WSTypeSOS:
			// The SOS waits for a location frame read by this loop.
			go h.handleSOS(ctx, c)

		default:
			c.enqueueJSON(wsError("unknown_type", "unknown message type"))
		}
	}
}

func (h *Hub) sendCurrentState(ctx context.Context, c *client) {
	commands := h.boundCommands()
	if commands == nil {
		return
	}
	res, err := commands.GetTracking(ctx, c.rideID)
	if err != nil {
		return
	}
	if frame, err := trackingUpdate(res.State); err == nil {
		c.enqueueJSON(frame)
	}
}

func (h *Hub) handleLocation(ctx context.Context, c *client, frame contracts.WSClientFrame) {
	commands := h.boundCommands()
	if commands == nil {
		c.enqueueJSON(wsError("unavailable", "service is starting"))
		return
	}

	in := ports.ReportLocationInput{RideID: c.rideID, AccuracyMeters: frame.AccuracyMeters}
	switch {
	case frame.Error == "permission_denied":
		in.Denied = true
	case frame.Latitude != nil && frame.Longitude != nil:
		in.Latitude, in.Longitude = *frame.Latitude, *frame.Longitude
	default:
		c.enqueueJSON(wsError("bad_location", "latitude and longitude are required"))
		return
	}

	if err := commands.ReportLocation(ctx, in); err != nil {
		h.logger.Warn(ctx, "ws_location_rejected", "Location frame rejected", err, map[string]any{
			"passenger_id": c.passengerID,
		})
		c.enqueueJSON(wsError("bad_location", err.Error()))
	}
}

func (h *Hub) handleSOS(ctx context.Context, c *client) {
	commands := h.boundCommands()
	if commands == nil {
		c.enqueueJSON(wsError("unavailable", "service is starting"))
		return
	}

	_, err := commands.TriggerSOS(ctx, ports.TriggerSOSInput{
		RideID: c.rideID,
		UserID: c.passengerID,
		Role:   user.RolePassenger,
	})
	if err != nil {
		h.logger.Warn(ctx, "ws_sos_failed", "SOS from websocket failed", err, map[string]any{
			"passenger_id": c.passengerID,
		})
		c.enqueueJSON(wsError(SOSErrorCode(err), err.Error()))
	}
}

// SOSErrorCode maps a TriggerSOS failure to the code shown to the passenger client.
func SOSErrorCode(err error) string {
	switch {
	case errors.Is(err, tracking.ErrCapabilityUnavailable):
		return "location_unavailable"
	case errors.Is(err, tracking.ErrLocation):
		return "location_failed"
	case errors.Is(err, tracking.ErrReport):
		return "report_failed"
	case errors.Is(err, tracking.ErrSOSInProgress):
		return "sos_in_progress"
	case errors.Is(err, tracking.ErrRideCompleted):
		return "ride_completed"
	case errors.Is(err, tracking.ErrNotTracking):
		return "not_tracking"
	case errors.Is(err, tracking.ErrTrackerClosed):
		return "tracking_stopped"
	case errors.Is(err, ride.ErrNotRideOwner):
		return "not_ride_owner"
	default:
		return "sos_failed"
	}
}

func wsError(code, message string) contracts.WSError {
	return contracts.WSError{Type: contracts.WSTypeError, Code: code, Message: message}
}
