package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"ride-tracker/internal/general/jwt"
	"ride-tracker/internal/ports"
)

// --- Request DTO (HTTP boundary) ---

type reportLocationRequest struct {
	Latitude       *float64 `json:"latitude" validate:"omitnil,gte=-90,lte=90"`
	Longitude      *float64 `json:"longitude" validate:"omitnil,gte=-180,lte=180"`
	AccuracyMeters *float64 `json:"accuracy_meters" validate:"omitnil,gte=0"`
	Error          string   `json:"error" validate:"omitempty,oneof=permission_denied"`
}

// --- Handler: POST /rides/{ride_id}/location ---

func (handler *TrackingHTTPHandler) handleReportLocation(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	rideID, ctx, ok := handler.rideID(ctx, w, r)
	if !ok {
		return
	}

	var req reportLocationRequest
	if status, err := handler.decodeJSON(w, r, &req); err != nil {
		handler.httpError(ctx, w, status, err.Error(), err)
		return
	}

	in := ports.ReportLocationInput{RideID: rideID, AccuracyMeters: req.AccuracyMeters}
	switch {
	case req.Error != "":
		in.Denied = true
	case req.Latitude != nil && req.Longitude != nil:
		in.Latitude, in.Longitude = *req.Latitude, *req.Longitude
	default:
		err := errors.New("latitude and longitude are required")
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
		return
	}

	if err := handler.svc.ReportLocation(ctx, in); err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Handler: POST /rides/{ride_id}/sos ---

func (handler *TrackingHTTPHandler) handleTriggerSOS(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	rideID, ctx, ok := handler.rideID(ctx, w, r)
	if !ok {
		return
	}

	// bounded by the location wait plus the emergency report
	ctx, cancel := context.WithTimeout(ctx, sosTimeout)
	defer cancel()

	claims := jwt.RequireClaims(r)
	res, err := handler.svc.TriggerSOS(ctx, ports.TriggerSOSInput{
		RideID: rideID,
		UserID: claims.UserID(),
		Role:   claims.Role,
	})
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.logger.Info(ctx, "sos_accepted", "SOS accepted", map[string]any{
		"latitude":  res.Latitude,
		"longitude": res.Longitude,
	})
	handler.jsonResponse(ctx, w, http.StatusOK, res)
}

// --- Handler: GET /emergency/logs/{id} ---

func (handler *TrackingHTTPHandler) handleGetSOSLog(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	id := strings.TrimSpace(r.PathValue("id"))

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	log, err := handler.svc.GetSOSLog(ctx, id)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, log)
}

// --- Handler: GET /emergency/logs/ride/{ride_id} ---

func (handler *TrackingHTTPHandler) handleListSOSLogsByRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	rideID, ctx, ok := handler.rideID(ctx, w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	logs, err := handler.svc.ListSOSLogsByRide(ctx, rideID)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, logs)
}

// --- Handler: GET /emergency/logs/user/{user_id} ---

// handleListSOSLogsByUser lets a passenger read their own logs; the support desk reads anyone's.
func (handler *TrackingHTTPHandler) handleListSOSLogsByUser(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	userID := strings.TrimSpace(r.PathValue("user_id"))

	claims := jwt.RequireClaims(r)
	if !claims.Role.CanReadEmergencyLogs() && claims.UserID() != userID {
		handler.httpError(ctx, w, http.StatusForbidden, "cannot read other users' emergency logs", nil)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	logs, err := handler.svc.ListSOSLogsByUser(ctx, userID)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, logs)
}
