package tracking

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"ride-tracker/internal/domain/ride"
	"ride-tracker/internal/general/logger"
	"ride-tracker/internal/tracking/schedule"
)

// Registry keeps one Tracker per ride id. Trackers that finish on their own drop out.
type Registry struct {
	cfg          Config
	deps         Deps
	newScheduler func() schedule.Scheduler
	logger       *logger.Logger

	mu       sync.Mutex
	trackers map[string]*Tracker
	closed   bool
}

// NewRegistry creates a Registry sharing deps across all trackers. newScheduler may be nil,
// in which case each tracker runs on its own schedule.Loop.
func NewRegistry(cfg Config, deps Deps, newScheduler func() schedule.Scheduler) *Registry {
	if newScheduler == nil {
		newScheduler = func() schedule.Scheduler { return schedule.NewLoop() }
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	return &Registry{
		cfg:          cfg,
		deps:         deps,
		newScheduler: newScheduler,
		logger:       deps.Logger,
		trackers:     make(map[string]*Tracker),
	}
}

// Start creates and starts a tracker for snapshot (the placeholder ride when nil).
func (r *Registry) Start(ctx context.Context, snapshot *ride.Snapshot) (*Tracker, error) {
	var tracker *Tracker
	deps := r.deps
	outer := r.deps.OnFinish
	deps.OnFinish = func(rideID string) {
		r.remove(rideID, tracker)
		if outer != nil {
			outer(rideID)
		}
	}

	tracker, err := New(snapshot, r.cfg, deps, r.newScheduler())
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		tracker.Close()
		return nil, ErrTrackerClosed
	}
	if _, exists := r.trackers[tracker.RideID()]; exists {
		r.mu.Unlock()
		tracker.Close()
		return nil, ErrAlreadyTracking
	}
	r.trackers[tracker.RideID()] = tracker
	r.mu.Unlock()

	if err := tracker.Start(ctx); err != nil {
		tracker.Close()
		return nil, err
	}
	return tracker, nil
}

// Get returns the live tracker for rideID.
func (r *Registry) Get(rideID string) (*Tracker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tracker, ok := r.trackers[rideID]
	if !ok {
		return nil, ErrNotTracking
	}
	return tracker, nil
}

// State returns the current state of rideID's tracker.
func (r *Registry) State(ctx context.Context, rideID string) (State, error) {
	tracker, err := r.Get(rideID)
	if err != nil {
		return State{}, err
	}
	return tracker.State(ctx)
}

// TriggerSOS raises an SOS on rideID's tracker.
func (r *Registry) TriggerSOS(ctx context.Context, rideID string) (SOSReport, error) {
	tracker, err := r.Get(rideID)
	if err != nil {
		return SOSReport{}, &SOSError{RideID: rideID, Stage: StagePrecondition, Err: err}
	}
	return tracker.TriggerSOS(ctx)
}

// States returns the state of every live tracker. Trackers that end meanwhile are skipped.
func (r *Registry) States(ctx context.Context) ([]State, error) {
	r.mu.Lock()
	trackers := make([]*Tracker, 0, len(r.trackers))
	for _, tracker := range r.trackers {
		trackers = append(trackers, tracker)
	}
	r.mu.Unlock()

	states := make([]State, 0, len(trackers))
	for _, tracker := range trackers {
		state, err := tracker.State(ctx)
		if errors.Is(err, ErrTrackerClosed) {
			continue
		}
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	slices.SortFunc(states, func(a, b State) int { return strings.Compare(a.RideID, b.RideID) })
	return states, nil
}

// Stop closes rideID's tracker.
func (r *Registry) Stop(rideID string) error {
	r.mu.Lock()
	tracker, ok := r.trackers[rideID]
	delete(r.trackers, rideID)
	r.mu.Unlock()

	if !ok {
		return ErrNotTracking
	}
	tracker.Close()
	return nil
}

// Len returns the number of live trackers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trackers)
}

// Close stops every tracker and rejects new ones.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	trackers := make([]*Tracker, 0, len(r.trackers))
	for id, tracker := range r.trackers {
		trackers = append(trackers, tracker)
		delete(r.trackers, id)
	}
	r.mu.Unlock()

	for _, tracker := range trackers {
		tracker.Close()
	}
	if len(trackers) > 0 {
		r.logger.Info(context.Background(), "trackers_closed", "Closed live trackers", map[string]any{"count": len(trackers)})
	}
}

// remove drops rideID only if it still maps to tracker.
func (r *Registry) remove(rideID string, tracker *Tracker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.trackers[rideID]; ok && current == tracker {
		delete(r.trackers, rideID)
	}
}
