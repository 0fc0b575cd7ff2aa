package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ride-tracker/internal/domain/emergency"
	"ride-tracker/internal/domain/geo"
	"ride-tracker/internal/domain/ride"
	"ride-tracker/internal/domain/user"
	"ride-tracker/internal/general/jwt"
	"ride-tracker/internal/general/logger"
	"ride-tracker/internal/ports"
	"ride-tracker/internal/tracking"
)

type fakeService struct {
	mu        sync.Mutex
	started   []ports.StartTrackingInput
	locations []ports.ReportLocationInput
	sos       []ports.TriggerSOSInput
	stopped   []ports.StopTrackingInput
	err       error
}

// fakeOwner is the passenger every tracked ride in fakeService belongs to.
const fakeOwner = "p-1"

func fakeOwnerCheck(userID string, role user.Role) error {
	if role == user.RolePassenger && userID != fakeOwner {
		return ride.ErrNotRideOwner
	}
	return nil
}

func (f *fakeService) StartTracking(_ context.Context, in ports.StartTrackingInput) (*ports.TrackingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.started = append(f.started, in)
	return &ports.TrackingResult{
		RideID: in.Ride.ID,
		Ride:   *in.Ride,
		State:  tracking.State{RideID: in.Ride.ID, Status: ride.StatusUpcoming},
	}, nil
}

func (f *fakeService) GetTracking(_ context.Context, rideID string) (*ports.TrackingResult, error) {
	if rideID != "r-1" {
		return nil, tracking.ErrNotTracking
	}
	return &ports.TrackingResult{RideID: rideID, State: tracking.State{RideID: rideID, Status: ride.StatusInProgress}}, nil
}

func (f *fakeService) StopTracking(_ context.Context, in ports.StopTrackingInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := fakeOwnerCheck(in.UserID, in.Role); err != nil {
		return err
	}
	if in.RideID != "r-1" {
		return tracking.ErrNotTracking
	}
	f.stopped = append(f.stopped, in)
	return nil
}

func (f *fakeService) GetRide(_ context.Context, rideID string) (*ride.Snapshot, error) {
	if rideID != "r-1" {
		return nil, ride.ErrNotFound
	}
	snapshot := ride.DefaultSnapshot()
	snapshot.ID = rideID
	return &snapshot, nil
}

func (f *fakeService) ReportLocation(_ context.Context, in ports.ReportLocationInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locations = append(f.locations, in)
	return nil
}

func (f *fakeService) TriggerSOS(_ context.Context, in ports.TriggerSOSInput) (*ports.TriggerSOSResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if err := fakeOwnerCheck(in.UserID, in.Role); err != nil {
		return nil, err
	}
	f.sos = append(f.sos, in)
	return &ports.TriggerSOSResult{RideID: in.RideID, Latitude: 1, Longitude: 2, Message: "ok"}, nil
}

func (f *fakeService) GetSOSLog(_ context.Context, id string) (*emergency.SOSLog, error) {
	if id != "sos-1" {
		return nil, emergency.ErrNotFound
	}
	return &emergency.SOSLog{ID: id, RideID: "r-1"}, nil
}

func (f *fakeService) ListSOSLogsByRide(_ context.Context, rideID string) ([]*emergency.SOSLog, error) {
	return []*emergency.SOSLog{{ID: "sos-1", RideID: rideID}}, nil
}

func (f *fakeService) ListSOSLogsByUser(_ context.Context, userID string) ([]*emergency.SOSLog, error) {
	return []*emergency.SOSLog{{ID: "sos-1", RideID: "r-1", UserID: userID}}, nil
}

func (f *fakeService) GetOverview(context.Context) (*ports.OverviewResult, error) {
	var res ports.OverviewResult
	res.Metrics.ActiveTrackers = 1
	res.Metrics.ByStatus = map[string]int{"IN_PROGRESS": 1}
	return &res, nil
}

func (f *fakeService) RunBackgroundConsumers(context.Context) {}

func (f *fakeService) Close() {}

type handlerFixture struct {
	svc    *fakeService
	mgr    *jwt.Manager
	server http.Handler
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	mgr, err := jwt.NewManager("handler-secret", time.Hour)
	require.NoError(t, err)

	svc := &fakeService{}
	mux := http.NewServeMux()
	NewTrackingHTTPHandler(svc, logger.Discard(), mgr, nil).RegisterRoutes(mux)
	return &handlerFixture{svc: svc, mgr: mgr, server: CORS(nil, mux)}
}

func (f *handlerFixture) do(t *testing.T, method, path string, role user.Role, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		token, _, err := f.mgr.IssueUserToken(userID, role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	rec := f.do(t, http.MethodGet, "/tracking/health", "", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStartTracking(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/rides/r-9/tracking", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/rides/r-9/tracking", user.RoleSupport, "s-1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/rides/r-9/tracking", user.RolePassenger, "p-1", `{"driverName":"Jane Doe","carNumber":"XYZ-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res ports.TrackingResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "r-9", res.RideID)
	assert.Equal(t, "Jane Doe", res.Ride.DriverName)
	assert.Equal(t, "Toyota Camry", res.Ride.CarModel)

	require.Len(t, f.svc.started, 1)
	assert.Equal(t, "p-1", f.svc.started[0].PassengerID)

	t.Run("an admin start binds no passenger", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/rides/r-11/tracking", user.RoleAdmin, "a-1", "")
		require.Equal(t, http.StatusCreated, rec.Code)
		f.svc.mu.Lock()
		defer f.svc.mu.Unlock()
		assert.Empty(t, f.svc.started[len(f.svc.started)-1].PassengerID)
	})

	t.Run("empty body starts the placeholder ride", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/rides/r-10/tracking", user.RolePassenger, "p-1", "")
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "John Smith", f.svc.started[len(f.svc.started)-1].Ride.DriverName)
	})

	t.Run("rejected bodies", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/rides/r-9/tracking", user.RolePassenger, "p-1", `{"pilot":"x"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = f.do(t, http.MethodPost, "/rides/r-9/tracking", user.RolePassenger, "p-1", `{"date":"15/06/2023"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("already tracked", func(t *testing.T) {
		f.svc.mu.Lock()
		f.svc.err = tracking.ErrAlreadyTracking
		f.svc.mu.Unlock()
		defer func() {
			f.svc.mu.Lock()
			f.svc.err = nil
			f.svc.mu.Unlock()
		}()

		rec := f.do(t, http.MethodPost, "/rides/r-9/tracking", user.RolePassenger, "p-1", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestTrackingReads(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/rides/r-1/tracking", user.RoleSupport, "s-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"in-progress"`)

	rec = f.do(t, http.MethodGet, "/rides/r-2/tracking", user.RolePassenger, "p-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/rides/r-1", user.RolePassenger, "p-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"driverName":"John Smith"`)

	rec = f.do(t, http.MethodGet, "/rides/r-2", user.RolePassenger, "p-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, "/rides/r-1/tracking", user.RolePassenger, "p-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/rides/r-1/tracking", user.RolePassenger, "p-2", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodDelete, "/rides/r-1/tracking", user.RoleAdmin, "a-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, f.svc.stopped, 2)
	assert.Equal(t, ports.StopTrackingInput{RideID: "r-1", UserID: "p-1", Role: user.RolePassenger}, f.svc.stopped[0])
	assert.Equal(t, user.RoleAdmin, f.svc.stopped[1].Role)
}

func TestReportLocation(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/rides/r-1/location", user.RolePassenger, "p-1", `{"latitude":40.7,"longitude":-74.0,"accuracy_meters":12}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPost, "/rides/r-1/location", user.RolePassenger, "p-1", `{"error":"permission_denied"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	require.Len(t, f.svc.locations, 2)
	assert.Equal(t, 40.7, f.svc.locations[0].Latitude)
	require.NotNil(t, f.svc.locations[0].AccuracyMeters)
	assert.True(t, f.svc.locations[1].Denied)

	for _, body := range []string{
		`{"latitude":40.7}`,
		`{"latitude":91,"longitude":0}`,
		`{"latitude":1,"longitude":1,"accuracy_meters":-1}`,
		`{"error":"blocked"}`,
	} {
		rec := f.do(t, http.MethodPost, "/rides/r-1/location", user.RolePassenger, "p-1", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestTriggerSOS(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/rides/r-1/sos", user.RolePassenger, "p-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ride_id":"r-1"`)
	require.Len(t, f.svc.sos, 1)
	assert.Equal(t, "p-1", f.svc.sos[0].UserID)
	assert.Equal(t, user.RolePassenger, f.svc.sos[0].Role)

	rec = f.do(t, http.MethodPost, "/rides/r-1/sos", user.RolePassenger, "p-2", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), ride.ErrNotRideOwner.Error())
	assert.Len(t, f.svc.sos, 1)

	f.svc.mu.Lock()
	f.svc.err = &tracking.SOSError{RideID: "r-1", Stage: tracking.StagePrecondition, Err: tracking.ErrSOSInProgress}
	f.svc.mu.Unlock()

	rec = f.do(t, http.MethodPost, "/rides/r-1/sos", user.RolePassenger, "p-1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "sos already in progress")
}

func TestEmergencyLogs(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/emergency/logs/sos-1", user.RolePassenger, "p-1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/emergency/logs/sos-1", user.RoleSupport, "s-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/emergency/logs/sos-2", user.RoleSupport, "s-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/emergency/logs/ride/r-1", user.RoleAdmin, "a-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ride_id":"r-1"`)

	rec = f.do(t, http.MethodGet, "/emergency/logs/user/p-1", user.RolePassenger, "p-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/emergency/logs/user/p-2", user.RolePassenger, "p-1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/emergency/logs/user/p-2", user.RoleSupport, "s-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOverview(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/admin/overview", user.RolePassenger, "p-1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/admin/overview", user.RoleSupport, "s-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"active_trackers":1`)
	assert.Contains(t, rec.Body.String(), `"IN_PROGRESS":1`)
}

func TestCORS(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/tracking/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	sos := func(stage tracking.SOSStage, err error) error {
		return &tracking.SOSError{RideID: "r", Stage: stage, Err: err}
	}
	tests := []struct {
		err  error
		want int
	}{
		{sos(tracking.StagePrecondition, tracking.ErrCapabilityUnavailable), http.StatusNotImplemented},
		{sos(tracking.StageLocation, fmt.Errorf("%w: %w", tracking.ErrLocation, errors.New("timeout"))), http.StatusUnprocessableEntity},
		{sos(tracking.StageReport, fmt.Errorf("%w: %w", tracking.ErrReport, errors.New("503"))), http.StatusBadGateway},
		{sos(tracking.StagePrecondition, tracking.ErrRideCompleted), http.StatusConflict},
		{sos(tracking.StagePrecondition, tracking.ErrNotTracking), http.StatusNotFound},
		{sos(tracking.StageActivation, tracking.ErrTrackerClosed), http.StatusGone},
		{ride.ErrNotRideOwner, http.StatusForbidden},
		{geo.ErrInvalidLatitude, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
