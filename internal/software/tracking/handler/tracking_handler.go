package handler

import (
	"context"
	"net/http"

	"ride-tracker/internal/domain/ride"
	"ride-tracker/internal/domain/user"
	"ride-tracker/internal/general/jwt"
	"ride-tracker/internal/ports"
)

// --- Request DTO (HTTP boundary) ---

// startTrackingRequest overrides fields of the placeholder ride; all fields are optional.
type startTrackingRequest struct {
	DriverName  string `json:"driverName" validate:"omitempty,max=100"`
	DriverPhone string `json:"driverPhone" validate:"omitempty,max=32"`
	CarModel    string `json:"carModel" validate:"omitempty,max=64"`
	CarNumber   string `json:"carNumber" validate:"omitempty,max=16"`
	Departure   string `json:"departure" validate:"omitempty,max=200"`
	Destination string `json:"destination" validate:"omitempty,max=200"`
	Date        string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Time        string `json:"time" validate:"omitempty,max=16"`
}

func (req startTrackingRequest) snapshot(rideID string) *ride.Snapshot {
	snapshot := ride.DefaultSnapshot()
	snapshot.ID = rideID
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&snapshot.DriverName, req.DriverName)
	override(&snapshot.DriverPhone, req.DriverPhone)
	override(&snapshot.CarModel, req.CarModel)
	override(&snapshot.CarNumber, req.CarNumber)
	override(&snapshot.Departure, req.Departure)
	override(&snapshot.Destination, req.Destination)
	override(&snapshot.Date, req.Date)
	override(&snapshot.Time, req.Time)
	return &snapshot
}

// --- Handler: POST /rides/{ride_id}/tracking ---

func (handler *TrackingHTTPHandler) handleStartTracking(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	rideID, ctx, ok := handler.rideID(ctx, w, r)
	if !ok {
		return
	}

	var req startTrackingRequest
	if status, err := handler.decodeJSON(w, r, &req); err != nil {
		handler.httpError(ctx, w, status, err.Error(), err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	in := ports.StartTrackingInput{Ride: req.snapshot(rideID)}
	if claims := jwt.RequireClaims(r); claims.Role == user.RolePassenger {
		in.PassengerID = claims.UserID()
	}
	res, err := handler.svc.StartTracking(ctx, in)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusCreated, res)
}

// --- Handler: GET /rides/{ride_id}/tracking ---

func (handler *TrackingHTTPHandler) handleGetTracking(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	rideID, ctx, ok := handler.rideID(ctx, w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := handler.svc.GetTracking(ctx, rideID)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, res)
}

// --- Handler: DELETE /rides/{ride_id}/tracking ---

func (handler *TrackingHTTPHandler) handleStopTracking(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	rideID, ctx, ok := handler.rideID(ctx, w, r)
	if !ok {
		return
	}

	claims := jwt.RequireClaims(r)
	err := handler.svc.StopTracking(ctx, ports.StopTrackingInput{
		RideID: rideID,
		UserID: claims.UserID(),
		Role:   claims.Role,
	})
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]string{
		"ride_id": rideID,
		"message": "Tracking stopped",
	})
}

// --- Handler: GET /rides/{ride_id} ---

func (handler *TrackingHTTPHandler) handleGetRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	rideID, ctx, ok := handler.rideID(ctx, w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	snapshot, err := handler.svc.GetRide(ctx, rideID)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, snapshot)
}
