package tracking

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"ride-tracker/internal/domain/geo"
	"ride-tracker/internal/domain/ride"
	"ride-tracker/internal/tracking/schedule"
)

type recordingSink struct {
	mu    sync.Mutex
	calls []ride.Snapshot
	err   error
}

func (sink *recordingSink) Update(_ context.Context, snapshot ride.Snapshot) error {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	sink.calls = append(sink.calls, snapshot)
	return sink.err
}

func (sink *recordingSink) snapshots() []ride.Snapshot {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	return append([]ride.Snapshot(nil), sink.calls...)
}

type recordingReporter struct {
	mu      sync.Mutex
	reports []SOSReport
	err     error
}

func (reporter *recordingReporter) Send(_ context.Context, report SOSReport) error {
	reporter.mu.Lock()
	defer reporter.mu.Unlock()
	reporter.reports = append(reporter.reports, report)
	return reporter.err
}

func (reporter *recordingReporter) sent() []SOSReport {
	reporter.mu.Lock()
	defer reporter.mu.Unlock()
	return append([]SOSReport(nil), reporter.reports...)
}

type recordingHandoff struct {
	mu     sync.Mutex
	routes []string
	rides  []string
	err    error
}

func (handoff *recordingHandoff) Go(_ context.Context, rideID, route string) error {
	handoff.mu.Lock()
	defer handoff.mu.Unlock()
	handoff.rides = append(handoff.rides, rideID)
	handoff.routes = append(handoff.routes, route)
	return handoff.err
}

func (handoff *recordingHandoff) count() int {
	handoff.mu.Lock()
	defer handoff.mu.Unlock()
	return len(handoff.routes)
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (log *eventLog) listen(ev Event) {
	log.mu.Lock()
	defer log.mu.Unlock()
	log.events = append(log.events, ev)
}

func (log *eventLog) ofType(typ EventType) []Event {
	log.mu.Lock()
	defer log.mu.Unlock()
	var out []Event
	for _, ev := range log.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func fixedLocator(lat, lon float64) LocatorFunc {
	return func(context.Context, string) (geo.Fix, error) {
		return geo.Fix{Latitude: lat, Longitude: lon}, nil
	}
}

type fixture struct {
	tracker  *Tracker
	manual   *schedule.Manual
	sink     *recordingSink
	reporter *recordingReporter
	handoff  *recordingHandoff
	events   *eventLog
}

func newFixture(t *testing.T, snapshot *ride.Snapshot, locator LocationCapability) *fixture {
	t.Helper()
	f := &fixture{
		manual:   schedule.NewManual(),
		sink:     &recordingSink{},
		reporter: &recordingReporter{},
		handoff:  &recordingHandoff{},
		events:   &eventLog{},
	}
	tracker, err := New(snapshot, DefaultConfig(), Deps{
		Sink:      f.sink,
		Reporter:  f.reporter,
		Locator:   locator,
		Handoff:   f.handoff,
		Listeners: []Listener{f.events.listen},
	}, f.manual)
	require.NoError(t, err)
	f.tracker = tracker
	return f
}

func (f *fixture) state() State {
	return f.tracker.state
}

func isDone(tracker *Tracker) bool {
	select {
	case <-tracker.Done():
		return true
	default:
		return false
	}
}
