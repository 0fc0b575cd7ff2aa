package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsWriteClose sends a close control frame with the given code and reason.
func (h *Hub) wsWriteClose(conn *websocket.Conn, code int, reason string) {
	mu := h.lockOf(conn)
	mu.Lock()
	defer mu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(wsCloseAckWindow),
	)
}

// wsWriteMessage sets a short write deadline and writes a message.
func (h *Hub) wsWriteMessage(conn *websocket.Conn, mt int, payload []byte) error {
	mu := h.lockOf(conn)
	mu.Lock()
	defer mu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(mt, payload)
}

// wsWritePing sends a ping control frame.
func (h *Hub) wsWritePing(conn *websocket.Conn) error {
	mu := h.lockOf(conn)
	mu.Lock()
	defer mu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(ctrlTimeout))
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctrlTimeout))
}

// lockOf returns the mutex for a specific connection
func (h *Hub) lockOf(conn *websocket.Conn) *sync.Mutex {
	if v, ok := h.writeLocks.Load(conn); ok {
		if mu, ok := v.(*sync.Mutex); ok && mu != nil {
			return mu
		}
	}
	mu := &sync.Mutex{}
	actual, _ := h.writeLocks.LoadOrStore(conn, mu)
	return actual.(*sync.Mutex)
}

// writeJSON marshals v and writes a single TextMessage to the given connection.
func (h *Hub) writeJSON(conn *websocket.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.wsWriteMessage(conn, websocket.TextMessage, payload)
}

// sendAuthError sends authentication error message to client
func (h *Hub) sendAuthError(conn *websocket.Conn, message string) {
	_ = h.writeJSON(conn, map[string]any{
		"type":    "auth_error",
		"error":   message,
		"success": false,
	})
}

func authSuccess(rideID, passengerID string) map[string]any {
	return map[string]any{
		"type":         "auth_success",
		"message":      "Authentication successful",
		"success":      true,
		"ride_id":      rideID,
		"passenger_id": passengerID,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	}
}
