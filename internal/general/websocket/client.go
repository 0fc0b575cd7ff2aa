package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// client is one passenger connection. Outbound frames go through send so that
// scheduler-side listeners never block on a slow socket.
type client struct {
	conn        *websocket.Conn
	rideID      string
	passengerID string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, rideID, passengerID string) *client {
	return &client{
		conn:        conn,
		rideID:      rideID,
		passengerID: passengerID,
		send:        make(chan []byte, sendQueueSize),
		done:        make(chan struct{}),
	}
}

// enqueue queues payload; a full queue drops the client.
func (c *client) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		c.shutdown()
		return false
	}
}

func (c *client) enqueueJSON(v any) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return c.enqueue(payload)
}

// shutdown stops the writer and closes the socket, which unblocks the reader.
func (c *client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// writePump drains the send queue and keeps the connection alive with pings.
func (h *Hub) writePump(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case payload := <-c.send:
			if err := h.wsWriteMessage(c.conn, websocket.TextMessage, payload); err != nil {
				h.logger.Error(ctx, "ws_write_failed", "Failed to write frame", err, map[string]any{
					"passenger_id": c.passengerID,
				})
				c.shutdown()
				return
			}

		case <-ticker.C:
			if err := h.wsWritePing(c.conn); err != nil {
				h.logger.Error(ctx, "ws_ping_failed", "Failed to send ping", err, map[string]any{
					"passenger_id": c.passengerID,
				})
				c.shutdown()
				return
			}

		case <-c.done:
			return
		}
	}
}
