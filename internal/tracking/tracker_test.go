package tracking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ride-tracker/internal/domain/geo"
	"ride-tracker/internal/domain/ride"
	"ride-tracker/internal/tracking/schedule"
)

func TestTrackerTimeline(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	ctx := context.Background()
	require.NoError(t, f.tracker.Start(ctx))

	// upcoming for the whole start delay
	f.manual.Advance(5*time.Second - time.Millisecond)
	assert.Equal(t, ride.StatusUpcoming, f.state().Status)
	assert.Empty(t, f.sink.snapshots())

	f.manual.Advance(time.Millisecond)
	assert.Equal(t, ride.StatusInProgress, f.state().Status)
	require.Len(t, f.sink.snapshots(), 1)

	inProgress := f.sink.snapshots()[0]
	want := ride.DefaultSnapshot()
	want.Status = ride.StatusInProgress
	assert.Equal(t, want, inProgress)

	// first tick at 7s
	f.manual.Advance(2 * time.Second)
	state := f.state()
	assert.Equal(t, geo.Position{X: 35, Y: 35}, state.DriverPosition)
	assert.Equal(t, ETA{Minutes: 14}, state.ETA)
	assert.Equal(t, Distance{Tenths: 47}, state.Distance)
	assert.Equal(t, "4.7 km", state.Distance.String())

	// ticks at 9..21s bring the driver to the passenger
	f.manual.Advance(14 * time.Second)
	state = f.state()
	assert.Equal(t, geo.Position{X: 70, Y: 70}, state.DriverPosition)
	assert.Equal(t, ride.StatusInProgress, state.Status)
	assert.Len(t, f.events.ofType(EventTick), 8)

	// no more ticks after arrival
	f.manual.Advance(5*time.Second - time.Millisecond)
	assert.Len(t, f.events.ofType(EventTick), 8)
	assert.Equal(t, ride.StatusInProgress, f.state().Status)

	// completed at 26s
	f.manual.Advance(time.Millisecond)
	assert.Equal(t, ride.StatusCompleted, f.state().Status)
	snapshots := f.sink.snapshots()
	require.Len(t, snapshots, 2)
	assert.Equal(t, ride.StatusCompleted, snapshots[1].Status)
	assert.Equal(t, want.DriverName, snapshots[1].DriverName)
	assert.Equal(t, 0, f.handoff.count())

	// handoff at 28s, exactly once
	f.manual.Advance(2 * time.Second)
	assert.Equal(t, 1, f.handoff.count())
	assert.Equal(t, []string{"/rating"}, f.handoff.routes)
	assert.Equal(t, []string{"1"}, f.handoff.rides)
	assert.True(t, isDone(f.tracker))
	assert.True(t, f.manual.Closed())

	f.manual.Advance(time.Minute)
	assert.Equal(t, 1, f.handoff.count())
	assert.Len(t, f.sink.snapshots(), 2)

	_, err := f.tracker.State(ctx)
	assert.ErrorIs(t, err, ErrTrackerClosed)
	assert.Len(t, f.events.ofType(EventTrackingStopped), 1)
}

func TestTrackerStatusNeverMovesBackward(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	require.NoError(t, f.tracker.Start(context.Background()))

	var seen []ride.Status
	for range 40 {
		f.manual.Advance(time.Second)
		status := f.state().Status
		if len(seen) == 0 || seen[len(seen)-1] != status {
			seen = append(seen, status)
		}
	}
	assert.Equal(t, []ride.Status{ride.StatusUpcoming, ride.StatusInProgress, ride.StatusCompleted}, seen)
}

func TestTrackerStart(t *testing.T) {
	t.Parallel()

	t.Run("twice", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil, nil)
		require.NoError(t, f.tracker.Start(context.Background()))
		assert.ErrorIs(t, f.tracker.Start(context.Background()), ErrAlreadyStarted)
	})

	t.Run("after close", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil, nil)
		f.tracker.Close()
		assert.ErrorIs(t, f.tracker.Start(context.Background()), ErrTrackerClosed)
	})

	t.Run("does not notify the sink", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil, nil)
		require.NoError(t, f.tracker.Start(context.Background()))
		assert.Empty(t, f.sink.snapshots())
		assert.Len(t, f.events.ofType(EventTrackingStarted), 1)
	})
}

func TestTrackerSnapshotInput(t *testing.T) {
	t.Parallel()

	t.Run("caller snapshot is copied and starts upcoming", func(t *testing.T) {
		t.Parallel()
		input := ride.Snapshot{
			ID:          "ride-42",
			DriverName:  "Ana",
			CarModel:    "Kia Rio",
			CarNumber:   "XYZ-987",
			Departure:   "Harbor",
			Destination: "Museum",
			Status:      ride.StatusCompleted,
		}
		f := newFixture(t, &input, nil)
		input.DriverName = "changed"

		snap, err := f.tracker.Snapshot(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Ana", snap.DriverName)
		assert.Equal(t, ride.StatusUpcoming, snap.Status)
		assert.Equal(t, "ride-42", f.tracker.RideID())

		require.NoError(t, f.tracker.Start(context.Background()))
		f.manual.Advance(5 * time.Second)
		sent := f.sink.snapshots()
		require.Len(t, sent, 1)
		assert.Equal(t, "Museum", sent[0].Destination)
		assert.Equal(t, ride.StatusInProgress, sent[0].Status)
	})

	t.Run("blank id is rejected", func(t *testing.T) {
		t.Parallel()
		_, err := New(&ride.Snapshot{ID: "  "}, DefaultConfig(), Deps{
			Sink:     &recordingSink{},
			Reporter: &recordingReporter{},
		}, schedule.NewManual())
		assert.ErrorIs(t, err, ride.ErrRideIDRequired)
	})
}

func TestNewMissingDependencies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		deps Deps
	}{
		{"no sink", Deps{Reporter: &recordingReporter{}}},
		{"no reporter", Deps{Sink: &recordingSink{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(nil, DefaultConfig(), tt.deps, schedule.NewManual())
			assert.ErrorIs(t, err, ErrMissingDependency)
		})
	}

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig()
		cfg.TickInterval = 0
		_, err := New(nil, cfg, Deps{Sink: &recordingSink{}, Reporter: &recordingReporter{}}, schedule.NewManual())
		assert.Error(t, err)
	})
}

func TestTrackerSinkFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	boom := errors.New("backend down")
	f.sink.err = boom
	require.NoError(t, f.tracker.Start(context.Background()))

	f.manual.Advance(26 * time.Second)
	assert.Equal(t, ride.StatusCompleted, f.state().Status)

	failures := f.events.ofType(EventSinkFailed)
	require.Len(t, failures, 2)

	var sinkErr *SinkError
	require.ErrorAs(t, failures[0].Err, &sinkErr)
	assert.Equal(t, ride.StatusInProgress, sinkErr.Status)
	assert.Equal(t, "1", sinkErr.RideID)
	assert.ErrorIs(t, failures[1].Err, boom)
}

func TestTrackerHandoffFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	f.handoff.err = errors.New("no renderer")
	require.NoError(t, f.tracker.Start(context.Background()))

	f.manual.Advance(30 * time.Second)
	assert.Equal(t, 1, f.handoff.count())
	failed := f.events.ofType(EventHandoffFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "/rating", failed[0].Route)
	assert.True(t, isDone(f.tracker))
}

func TestTrackerClose(t *testing.T) {
	t.Parallel()

	t.Run("before the start delay", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil, nil)
		require.NoError(t, f.tracker.Start(context.Background()))
		f.manual.Advance(3 * time.Second)

		f.tracker.Close()
		assert.True(t, isDone(f.tracker))
		assert.Equal(t, 0, f.manual.Pending())

		f.manual.Advance(time.Minute)
		assert.Empty(t, f.sink.snapshots())
		assert.Equal(t, 0, f.handoff.count())
		assert.Empty(t, f.events.ofType(EventStatusChanged))
	})

	t.Run("mid ride stops ticks", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil, nil)
		require.NoError(t, f.tracker.Start(context.Background()))
		f.manual.Advance(9 * time.Second)
		ticks := len(f.events.ofType(EventTick))

		f.tracker.Close()
		f.tracker.Close()
		f.manual.Advance(time.Minute)

		assert.Len(t, f.events.ofType(EventTick), ticks)
		assert.Len(t, f.sink.snapshots(), 1)
		assert.Len(t, f.events.ofType(EventTrackingStopped), 1)
	})

	t.Run("calls OnFinish once", func(t *testing.T) {
		t.Parallel()
		var finished []string
		tracker, err := New(nil, DefaultConfig(), Deps{
			Sink:     &recordingSink{},
			Reporter: &recordingReporter{},
			OnFinish: func(rideID string) { finished = append(finished, rideID) },
		}, schedule.NewManual())
		require.NoError(t, err)

		tracker.Close()
		tracker.Close()
		assert.Equal(t, []string{"1"}, finished)
	})
}

func TestTrackerSubscribe(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	ctx := context.Background()

	var got []EventType
	unsubscribe, err := f.tracker.Subscribe(ctx, func(ev Event) { got = append(got, ev.Type) })
	require.NoError(t, err)

	require.NoError(t, f.tracker.Start(ctx))
	f.manual.Advance(5 * time.Second)
	assert.Equal(t, []EventType{EventTrackingStarted, EventStatusChanged}, got)

	unsubscribe()
	f.manual.Advance(2 * time.Second)
	assert.Len(t, got, 2)
	assert.Len(t, f.events.ofType(EventTick), 1)
}

func TestTrackerOnLoop(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.StartDelay = 5 * time.Millisecond
	cfg.TickInterval = time.Millisecond
	cfg.DwellDelay = 5 * time.Millisecond
	cfg.HandoffDelay = 2 * time.Millisecond

	sink := &recordingSink{}
	handoff := &recordingHandoff{}
	var mu sync.Mutex
	var statuses []ride.Status
	tracker, err := New(nil, cfg, Deps{
		Sink:     sink,
		Reporter: &recordingReporter{},
		Handoff:  handoff,
		Listeners: []Listener{func(ev Event) {
			if ev.Type == EventStatusChanged {
				mu.Lock()
				statuses = append(statuses, ev.State.Status)
				mu.Unlock()
			}
		}},
	}, schedule.NewLoop())
	require.NoError(t, err)
	require.NoError(t, tracker.Start(context.Background()))

	select {
	case <-tracker.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("tracker did not finish")
	}

	assert.Len(t, sink.snapshots(), 2)
	assert.Equal(t, 1, handoff.count())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []ride.Status{ride.StatusInProgress, ride.StatusCompleted}, statuses)
}
