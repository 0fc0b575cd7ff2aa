package tracking

import (
	"context"
	"fmt"
	"time"
)

// TriggerSOS reads the device position, sends an emergency report and flags the ride as
// SOS-active for the cooldown period. It blocks until the report is accepted or fails.
//
// Every failure is a *SOSError (errors.Is(err, ErrSOSFailed) holds) and leaves SOSActive
// untouched. A new SOS while the flag is up restarts the cooldown.
func (t *Tracker) TriggerSOS(ctx context.Context) (SOSReport, error) {
	fail := func(stage SOSStage, err error) (SOSReport, error) {
		return SOSReport{}, &SOSError{RideID: t.rideID, Stage: stage, Err: err}
	}

	if t.deps.Locator == nil {
		return fail(StagePrecondition, ErrCapabilityUnavailable)
	}
	if !t.sosBusy.CompareAndSwap(false, true) {
		return fail(StagePrecondition, ErrSOSInProgress)
	}
	// the tracker cannot finish on its own while an SOS is outstanding
	defer func() {
		t.sosBusy.Store(false)
		_ = t.sched.Do(context.Background(), t.maybeFinish)
	}()

	// 1) ride must still be tracked and not completed
	var precondition error
	if err := t.sched.Do(ctx, func() {
		switch {
		case t.disposed:
			precondition = ErrTrackerClosed
		case t.state.Status.Terminal():
			precondition = ErrRideCompleted
		}
	}); err != nil {
		return fail(StagePrecondition, t.schedErr(err))
	}
	if precondition != nil {
		return fail(StagePrecondition, precondition)
	}

	// calls are bound to the caller and to the tracker lifetime
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(t.lifetime, cancel)
	defer stop()

	// 2) position
	fix, err := t.deps.Locator.CurrentPosition(callCtx, t.rideID)
	if t.lifetime.Err() != nil {
		return fail(StageLocation, ErrTrackerClosed)
	}
	if err == nil {
		err = fix.Validate()
	}
	if err != nil {
		t.logger.Warn(t.lifetime, "sos_location_failed", "Failed to read device position for SOS", err, nil)
		return fail(StageLocation, fmt.Errorf("%w: %w", ErrLocation, err))
	}

	// 3) report
	report := SOSReport{
		RideID:      t.rideID,
		Latitude:    fix.Latitude,
		Longitude:   fix.Longitude,
		TriggeredAt: time.Now().UTC(),
	}
	err = t.deps.Reporter.Send(callCtx, report)
	if err != nil && t.lifetime.Err() != nil {
		return fail(StageReport, ErrTrackerClosed)
	}
	if err != nil {
		t.logger.Warn(t.lifetime, "sos_report_failed", "Failed to send emergency report", err, map[string]any{
			"latitude":  report.Latitude,
			"longitude": report.Longitude,
		})
		return fail(StageReport, fmt.Errorf("%w: %w", ErrReport, err))
	}

	// 4) flag; the report went out, so a cancelled caller must not drop the activation
	if t.lifetime.Err() != nil {
		return fail(StageActivation, ErrTrackerClosed)
	}
	activated := false
	if err := t.sched.Do(context.WithoutCancel(ctx), func() {
		if t.disposed {
			return
		}
		t.activateSOS(report)
		activated = true
	}); err != nil || !activated {
		return fail(StageActivation, ErrTrackerClosed)
	}

	return report, nil
}

func (t *Tracker) activateSOS(report SOSReport) {
	if t.cooldown != 0 {
		t.sched.Cancel(t.cooldown)
	}
	t.state.SOSActive = true
	t.cooldown = t.sched.After(t.cfg.SOSCooldown, t.clearSOS)

	t.logger.Info(t.lifetime, "sos_activated", "SOS activated", map[string]any{
		"latitude":    report.Latitude,
		"longitude":   report.Longitude,
		"cooldown_ms": t.cfg.SOSCooldown.Milliseconds(),
	})
	t.emit(Event{Type: EventSOSActivated})
}

func (t *Tracker) clearSOS() {
	if t.disposed {
		return
	}
	t.cooldown = 0
	t.state.SOSActive = false
	t.logger.Info(t.lifetime, "sos_cleared", "SOS cooldown elapsed", nil)
	t.emit(Event{Type: EventSOSCleared})
	t.maybeFinish()
}
