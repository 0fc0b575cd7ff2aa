// Package tracking drives a single ride's lifecycle on the passenger side: the simulated
// approach of the driver (Upcoming -> InProgress -> Completed) and the SOS side channel.
//
// A Tracker owns its State exclusively. All mutation happens on the tracker's scheduler;
// snapshots leave the tracker only as copies, through a StatusSink and through listeners.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"ride-tracker/internal/domain/ride"
	"ride-tracker/internal/general/logger"
	"ride-tracker/internal/tracking/schedule"
)

// Deps are the collaborators of a Tracker. Sink and Reporter are required.
type Deps struct {
	Sink      StatusSink
	Reporter  EmergencyReporter
	Locator   LocationCapability // nil: the device has no location support
	Handoff   NavigationHandoff  // nil: nothing follows completion
	Logger    *logger.Logger
	Listeners []Listener

	// OnFinish runs once when the tracker ends, either closed or finished on its own.
	OnFinish func(rideID string)
}

// Tracker is the state machine for one ride.
type Tracker struct {
	rideID string
	cfg    Config
	deps   Deps
	logger *logger.Logger
	sched  schedule.Scheduler

	lifetime context.Context
	cancel   context.CancelFunc
	closed   atomic.Bool
	sosBusy  atomic.Bool
	done     chan struct{}

	// owned by sched
	snapshot  ride.Snapshot
	state     State
	started   bool
	disposed  bool
	handedOff bool
	tick      schedule.TimerID
	cooldown  schedule.TimerID
	listeners []listenerEntry
	nextID    int
}

type listenerEntry struct {
	id int
	fn Listener
}

// New builds a tracker for snapshot, or for the placeholder ride when snapshot is nil.
// The caller's snapshot is copied. Tracking always begins in Upcoming. A nil scheduler
// gets a wall-clock schedule.Loop.
func New(snapshot *ride.Snapshot, cfg Config, deps Deps, sched schedule.Scheduler) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Sink == nil {
		return nil, fmt.Errorf("%w: status sink", ErrMissingDependency)
	}
	if deps.Reporter == nil {
		return nil, fmt.Errorf("%w: emergency reporter", ErrMissingDependency)
	}

	snap := ride.DefaultSnapshot()
	if snapshot != nil {
		snap = *snapshot
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	snap = snap.WithStatus(ride.StatusUpcoming)

	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	if sched == nil {
		sched = schedule.NewLoop()
	}

	lifetime, cancel := context.WithCancel(context.Background())
	t := &Tracker{
		rideID:   snap.ID,
		cfg:      cfg,
		deps:     deps,
		logger:   deps.Logger,
		sched:    sched,
		lifetime: deps.Logger.WithRideID(lifetime, snap.ID),
		cancel:   cancel,
		done:     make(chan struct{}),
		snapshot: snap,
		state:    initialState(snap.ID, cfg),
	}
	for _, l := range deps.Listeners {
		t.addListener(l)
	}
	return t, nil
}

// RideID returns the id of the tracked ride.
func (t *Tracker) RideID() string { return t.rideID }

// Done is closed when the tracker has ended.
func (t *Tracker) Done() <-chan struct{} { return t.done }

// Start begins tracking; the ride moves to InProgress after the start delay.
func (t *Tracker) Start(ctx context.Context) error {
	var err error
	doErr := t.sched.Do(ctx, func() {
		switch {
		case t.disposed:
			err = ErrTrackerClosed
		case t.started:
			err = ErrAlreadyStarted
		default:
			t.started = true
			t.sched.After(t.cfg.StartDelay, t.begin)
			t.logger.Info(t.lifetime, "tracking_started", "Ride tracking started", map[string]any{
				"start_delay_ms": t.cfg.StartDelay.Milliseconds(),
			})
			t.emit(Event{Type: EventTrackingStarted})
		}
	})
	if doErr != nil {
		return t.schedErr(doErr)
	}
	return err
}

// State returns a copy of the current tracking state.
func (t *Tracker) State(ctx context.Context) (State, error) {
	var state State
	var disposed bool
	if err := t.sched.Do(ctx, func() { state, disposed = t.state, t.disposed }); err != nil {
		return State{}, t.schedErr(err)
	}
	if disposed {
		return State{}, ErrTrackerClosed
	}
	return state, nil
}

// Snapshot returns a copy of the latest ride snapshot.
func (t *Tracker) Snapshot(ctx context.Context) (ride.Snapshot, error) {
	var snap ride.Snapshot
	if err := t.sched.Do(ctx, func() { snap = t.snapshot }); err != nil {
		return ride.Snapshot{}, t.schedErr(err)
	}
	return snap, nil
}

// Subscribe registers l for future events. The returned func unregisters it.
func (t *Tracker) Subscribe(ctx context.Context, l Listener) (func(), error) {
	var id int
	if err := t.sched.Do(ctx, func() { id = t.addListener(l) }); err != nil {
		return nil, t.schedErr(err)
	}
	return func() {
		_ = t.sched.Do(context.Background(), func() { t.removeListener(id) })
	}, nil
}

// Close tears the tracker down: pending timers are cancelled, in-flight collaborator
// calls are cancelled and their results dropped. It must not be called from a Listener.
func (t *Tracker) Close() {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}
	t.cancel()
	_ = t.sched.Do(context.Background(), t.dispose)
	t.sched.Close()
	t.ended()
}

// ----- scheduler-side transitions -----

func (t *Tracker) begin() {
	if t.disposed || !t.state.Status.CanTransitionTo(ride.StatusInProgress) {
		return
	}
	t.transition(ride.StatusInProgress)
	t.tick = t.sched.Every(t.cfg.TickInterval, t.advance)
}

func (t *Tracker) advance() {
	if t.disposed || t.tick == 0 || t.state.Status != ride.StatusInProgress {
		return
	}

	if arrived := t.state.advance(t.cfg); arrived {
		// cancel in the same step so no tick can observe the arrival twice
		t.sched.Cancel(t.tick)
		t.tick = 0
		t.sched.After(t.cfg.DwellDelay, t.complete)
		t.logger.Info(t.lifetime, "driver_arrived", "Driver reached the pickup point", map[string]any{
			"x": t.state.DriverPosition.X,
			"y": t.state.DriverPosition.Y,
		})
	}
	t.emit(Event{Type: EventTick})
}

func (t *Tracker) complete() {
	if t.disposed || !t.state.Status.CanTransitionTo(ride.StatusCompleted) {
		return
	}
	t.transition(ride.StatusCompleted)
	t.sched.After(t.cfg.HandoffDelay, t.handOff)
}

func (t *Tracker) handOff() {
	if t.disposed || t.handedOff {
		return
	}
	t.handedOff = true
	route := t.cfg.HandoffRoute

	if t.deps.Handoff != nil {
		ctx, cancel := t.callContext()
		err := t.deps.Handoff.Go(ctx, t.rideID, route)
		cancel()
		if err != nil {
			t.logger.Warn(t.lifetime, "handoff_failed", "Failed to hand the passenger over", err,
				map[string]any{"route": route})
			t.emit(Event{Type: EventHandoffFailed, Route: route, Err: err})
			t.maybeFinish()
			return
		}
	}

	t.logger.Info(t.lifetime, "handoff_fired", "Passenger handed over after completion", map[string]any{"route": route})
	t.emit(Event{Type: EventHandoff, Route: route})
	t.maybeFinish()
}

// transition moves to next, preserving every other snapshot field, and notifies everyone.
func (t *Tracker) transition(next ride.Status) {
	prev := t.state.Status
	t.state.Status = next
	t.snapshot = t.snapshot.WithStatus(next)

	t.logger.Info(t.lifetime, "ride_status_changed", "Ride status changed", map[string]any{
		"from": prev.String(),
		"to":   next.String(),
	})
	t.emit(Event{Type: EventStatusChanged})

	ctx, cancel := t.callContext()
	err := t.deps.Sink.Update(ctx, t.snapshot)
	cancel()
	if err != nil {
		sinkErr := &SinkError{RideID: t.rideID, Status: next, Err: err}
		t.logger.Warn(t.lifetime, "status_sink_failed", "Failed to propagate ride status", sinkErr, nil)
		t.emit(Event{Type: EventSinkFailed, Err: sinkErr})
	}
}

// maybeFinish ends the tracker once the handoff fired and no SOS is pending or cooling down.
func (t *Tracker) maybeFinish() {
	if !t.handedOff || t.cooldown != 0 || t.sosBusy.Load() {
		return
	}
	if !t.closed.CompareAndSwap(false, true) {
		return
	}
	t.cancel()
	t.dispose()
	t.sched.Close()
	t.ended()
}

func (t *Tracker) dispose() {
	if t.disposed {
		return
	}
	t.emit(Event{Type: EventTrackingStopped})
	t.disposed = true
	if t.tick != 0 {
		t.sched.Cancel(t.tick)
		t.tick = 0
	}
	if t.cooldown != 0 {
		t.sched.Cancel(t.cooldown)
		t.cooldown = 0
	}
	t.listeners = nil
	t.logger.Info(t.lifetime, "tracking_stopped", "Ride tracking stopped", map[string]any{
		"status": t.state.Status.String(),
	})
}

func (t *Tracker) ended() {
	close(t.done)
	if t.deps.OnFinish != nil {
		t.deps.OnFinish(t.rideID)
	}
}

// ----- helpers -----

func (t *Tracker) emit(ev Event) {
	ev.State = t.state
	ev.Snapshot = t.snapshot
	for _, l := range t.listeners {
		l.fn(ev)
	}
}

func (t *Tracker) addListener(l Listener) int {
	t.nextID++
	t.listeners = append(t.listeners, listenerEntry{id: t.nextID, fn: l})
	return t.nextID
}

func (t *Tracker) removeListener(id int) {
	for i, l := range t.listeners {
		if l.id == id {
			t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
			return
		}
	}
}

// callContext bounds one collaborator call by the sink timeout and the tracker lifetime.
func (t *Tracker) callContext() (context.Context, context.CancelFunc) {
	if t.cfg.SinkTimeout > 0 {
		return context.WithTimeout(t.lifetime, t.cfg.SinkTimeout)
	}
	return context.WithCancel(t.lifetime)
}

func (t *Tracker) schedErr(err error) error {
	if errors.Is(err, schedule.ErrClosed) {
		return ErrTrackerClosed
	}
	return err
}
