// Package websocket pushes live tracking frames to passenger clients and accepts their
// location and SOS frames.
package websocket

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ride-tracker/internal/general/jwt"
	"ride-tracker/internal/general/logger"
	"ride-tracker/internal/ports"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsCloseAckWindow = 2 * time.Second
	ctrlTimeout      = 5 * time.Second
	authTimeout      = 10 * time.Second
	readTimeout      = 60 * time.Second
	pingInterval     = 30 * time.Second
	sendQueueSize    = 32
)

var ErrNotConnected = errors.New("passenger is not connected")

// Commands is what passenger frames are turned into.
type Commands interface {
	GetTracking(ctx context.Context, rideID string) (*ports.TrackingResult, error)
	ReportLocation(ctx context.Context, in ports.ReportLocationInput) error
	TriggerSOS(ctx context.Context, in ports.TriggerSOSInput) (*ports.TriggerSOSResult, error)
}

// Hub keeps the passenger connections of every tracked ride.
type Hub struct {
	logger   *logger.Logger
	jwtMgr   *jwt.Manager
	upgrader websocket.Upgrader

	writeLocks sync.Map // *websocket.Conn -> *sync.Mutex

	mu       sync.RWMutex
	commands Commands
	rides    map[string]map[*client]struct{}
	closed   bool
}

// NewHub creates a Hub. An empty allowedOrigins list (or "*") accepts any origin.
func NewHub(logger *logger.Logger, jwtMgr *jwt.Manager, allowedOrigins []string) *Hub {
	return &Hub{
		logger: logger,
		jwtMgr: jwtMgr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		rides: make(map[string]map[*client]struct{}),
	}
}

// Bind sets the command target. Frames arriving before Bind are rejected.
func (h *Hub) Bind(commands Commands) {
	h.mu.Lock()
	h.commands = commands
	h.mu.Unlock()
}

// Connected returns how many passenger connections rideID has.
func (h *Hub) Connected(rideID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rides[rideID])
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var clients []*client
	for rideID, set := range h.rides {
		for c := range set {
			clients = append(clients, c)
		}
		delete(h.rides, rideID)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.wsWriteClose(c.conn, websocket.CloseGoingAway, "server shutting down")
		c.shutdown()
	}
}

func (h *Hub) boundCommands() Commands {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.commands
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.rides[c.rideID]
	if !ok {
		set = make(map[*client]struct{})
		h.rides[c.rideID] = set
	}
	set[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.rides[c.rideID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.rides, c.rideID)
	}
}

// clientsOf returns a copy of rideID's clients.
func (h *Hub) clientsOf(rideID string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*client, 0, len(h.rides[rideID]))
	for c := range h.rides[rideID] {
		out = append(out, c)
	}
	return out
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
