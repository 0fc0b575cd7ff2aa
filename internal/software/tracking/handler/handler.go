package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"

	"ride-tracker/internal/domain/emergency"
	"ride-tracker/internal/domain/geo"
	"ride-tracker/internal/domain/ride"
	"ride-tracker/internal/domain/user"
	"ride-tracker/internal/general/contextx"
	"ride-tracker/internal/general/jwt"
	"ride-tracker/internal/general/location"
	"ride-tracker/internal/general/logger"
	"ride-tracker/internal/general/websocket"
	"ride-tracker/internal/ports"
	"ride-tracker/internal/tracking"
)

const (
	requestTimeout = 5 * time.Second
	sosTimeout     = 15 * time.Second
	maxBodyBytes   = 64 << 10
)

// TrackingHTTPHandler adapts HTTP requests to the TrackingService.
type TrackingHTTPHandler struct {
	svc      ports.TrackingService
	logger   *logger.Logger
	auth     *jwt.Manager
	hub      *websocket.Hub
	validate *validator.Validate
}

// NewTrackingHTTPHandler wires an HTTP handler around the TrackingService. hub may be nil.
func NewTrackingHTTPHandler(
	svc ports.TrackingService,
	logger *logger.Logger,
	auth *jwt.Manager,
	hub *websocket.Hub,
) *TrackingHTTPHandler {
	return &TrackingHTTPHandler{
		svc:      svc,
		logger:   logger,
		auth:     auth,
		hub:      hub,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts tracking endpoints on the provided mux.
func (handler *TrackingHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	riders := jwt.AuthMiddlewareFunc(handler.auth, user.RolePassenger, user.RoleAdmin)
	anyone := jwt.AuthMiddlewareFunc(handler.auth)
	desk := jwt.AuthMiddlewareFunc(handler.auth, user.RoleSupport, user.RoleAdmin)

	mux.HandleFunc("POST /rides/{ride_id}/tracking", riders(handler.handleStartTracking))
	mux.HandleFunc("GET /rides/{ride_id}/tracking", anyone(handler.handleGetTracking))
	mux.HandleFunc("DELETE /rides/{ride_id}/tracking", riders(handler.handleStopTracking))
	mux.HandleFunc("GET /rides/{ride_id}", anyone(handler.handleGetRide))

	mux.HandleFunc("POST /rides/{ride_id}/location", riders(handler.handleReportLocation))
	mux.HandleFunc("POST /rides/{ride_id}/sos", riders(handler.handleTriggerSOS))

	mux.HandleFunc("GET /emergency/logs/{id}", desk(handler.handleGetSOSLog))
	mux.HandleFunc("GET /emergency/logs/ride/{ride_id}", desk(handler.handleListSOSLogsByRide))
	mux.HandleFunc("GET /emergency/logs/user/{user_id}", anyone(handler.handleListSOSLogsByUser))

	mux.HandleFunc("GET /admin/overview", desk(handler.handleOverview))

	if handler.hub != nil {
		// the websocket authenticates with its first frame
		mux.HandleFunc("GET /ws/rides/{ride_id}", handler.hub.ConnectPassenger)
	}

	mux.HandleFunc("GET /tracking/health", handler.handleHealth)
}

// CORS wraps h for browser clients. An empty origin list allows any origin.
func CORS(allowedOrigins []string, h http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return handlers.CORS(
		handlers.AllowedOrigins(allowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Request-ID"}),
	)(h)
}

// ----- general helpers -----

// jsonResponse takes any type of data and encode it to HTTP response.
func (handler *TrackingHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	// encode to buffer first so we can control status on failure
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (handler *TrackingHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	switch {
	case status >= 500:
		action = "http_internal_error"
		handler.logger.Error(ctx, action, msg, err, nil)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		action = "validation_failed"
		handler.logger.Warn(ctx, action, msg, err, nil)
	default:
		handler.logger.Warn(ctx, action, msg, err, nil)
	}

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// serviceError maps a service failure to its HTTP status.
func (handler *TrackingHTTPHandler) serviceError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	handler.httpError(ctx, w, status, msg, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, tracking.ErrCapabilityUnavailable):
		return http.StatusNotImplemented
	case errors.Is(err, tracking.ErrLocation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, tracking.ErrReport):
		return http.StatusBadGateway
	case errors.Is(err, tracking.ErrSOSInProgress),
		errors.Is(err, tracking.ErrAlreadyTracking),
		errors.Is(err, tracking.ErrRideCompleted):
		return http.StatusConflict
	case errors.Is(err, tracking.ErrNotTracking),
		errors.Is(err, ride.ErrNotFound),
		errors.Is(err, emergency.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, tracking.ErrTrackerClosed):
		return http.StatusGone
	case errors.Is(err, ride.ErrNotRideOwner):
		return http.StatusForbidden
	case errors.Is(err, ride.ErrRideIDRequired),
		errors.Is(err, ride.ErrInvalidStatus),
		errors.Is(err, location.ErrRideIDRequired),
		errors.Is(err, geo.ErrInvalidLatitude),
		errors.Is(err, geo.ErrInvalidLongitude),
		errors.Is(err, geo.ErrNegativeAccuracy):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes a bounded JSON body strictly and validates it. An empty body leaves dst untouched.
func (handler *TrackingHTTPHandler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) (int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	if r.ContentLength != 0 {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			return http.StatusUnsupportedMediaType, errors.New("Content-Type must be application/json")
		}
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(dst); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				return http.StatusRequestEntityTooLarge, errors.New("request body too large")
			}
			return http.StatusBadRequest, errors.New("invalid JSON: " + err.Error())
		}
	}

	if err := handler.validate.Struct(dst); err != nil {
		return http.StatusBadRequest, err
	}
	return 0, nil
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *TrackingHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if reqID == "" {
		reqID = contextx.NewRequestID()
	}
	ctx = contextx.WithCorrelationID(ctx, reqID)
	return handler.logger.WithRequestID(ctx, reqID)
}

// rideID reads and checks the ride_id path value.
func (handler *TrackingHTTPHandler) rideID(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, context.Context, bool) {
	rideID := strings.TrimSpace(r.PathValue("ride_id"))
	if rideID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "ride_id is required", ride.ErrRideIDRequired)
		return "", ctx, false
	}
	return rideID, handler.logger.WithRideID(ctx, rideID), true
}
