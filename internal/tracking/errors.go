package tracking

import (
	"errors"
	"fmt"

	"ride-tracker/internal/domain/ride"
)

var (
	// ErrSOSFailed matches every SOS failure (see SOSError).
	ErrSOSFailed = errors.New("sos failed")

	// ErrCapabilityUnavailable means the device has no location support.
	ErrCapabilityUnavailable = errors.New("location capability unavailable")

	// ErrLocation wraps a failed position request (permission denied, timeout).
	ErrLocation = errors.New("location error")

	// ErrReport wraps a failed emergency report (network or server error).
	ErrReport = errors.New("emergency report failed")

	// ErrSOSInProgress means an SOS request for the ride is still outstanding.
	ErrSOSInProgress = errors.New("sos already in progress")

	// ErrRideCompleted means SOS was requested after the ride reached its terminal state.
	ErrRideCompleted = errors.New("ride already completed")
)

var (
	ErrTrackerClosed     = errors.New("tracker closed")
	ErrAlreadyStarted    = errors.New("tracking already started")
	ErrMissingDependency = errors.New("tracker dependency missing")
	ErrAlreadyTracking   = errors.New("ride is already being tracked")
	ErrNotTracking       = errors.New("ride is not being tracked")
)

// SOSStage names the step an SOS failed at.
type SOSStage string

const (
	StagePrecondition SOSStage = "precondition"
	StageLocation     SOSStage = "location"
	StageReport       SOSStage = "report"
	StageActivation   SOSStage = "activation"
)

// SOSError is the typed outcome of a failed TriggerSOS.
type SOSError struct {
	RideID string
	Stage  SOSStage
	Err    error
}

func (e *SOSError) Error() string {
	return fmt.Sprintf("sos for ride %s failed at %s: %v", e.RideID, e.Stage, e.Err)
}

func (e *SOSError) Unwrap() error { return e.Err }

// Is makes every SOSError match ErrSOSFailed.
func (e *SOSError) Is(target error) bool { return target == ErrSOSFailed }

// SinkError reports a StatusSink failure for one transition.
type SinkError struct {
	RideID string
	Status ride.Status
	Err    error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("status sink update for ride %s (%s): %v", e.RideID, e.Status, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }
