package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ride-tracker/internal/domain/emergency"
	"ride-tracker/internal/domain/ride"
	"ride-tracker/internal/general/cache"
	"ride-tracker/internal/general/location"
	"ride-tracker/internal/tracking"
	"ride-tracker/internal/tracking/schedule"
)

type passthroughUOW struct{}

func (passthroughUOW) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memSnapshots struct {
	mu   sync.Mutex
	byID map[string]ride.Snapshot
}

func (repo *memSnapshots) Upsert(_ context.Context, snapshot ride.Snapshot) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.byID == nil {
		repo.byID = make(map[string]ride.Snapshot)
	}
	repo.byID[snapshot.ID] = snapshot
	return nil
}

func (repo *memSnapshots) GetByID(_ context.Context, id string) (*ride.Snapshot, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	snapshot, ok := repo.byID[id]
	if !ok {
		return nil, ride.ErrNotFound
	}
	return &snapshot, nil
}

func (repo *memSnapshots) get(id string) (ride.Snapshot, bool) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	snapshot, ok := repo.byID[id]
	return snapshot, ok
}

type memEvents struct {
	mu     sync.Mutex
	events []*ride.Event
}

func (repo *memEvents) Append(_ context.Context, e *ride.Event) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.events = append(repo.events, e)
	return nil
}

func (repo *memEvents) ListByRide(_ context.Context, rideID string, limit int) ([]*ride.Event, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	var out []*ride.Event
	for _, e := range repo.events {
		if e.RideID == rideID && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (repo *memEvents) types() []ride.EventType {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	out := make([]ride.EventType, 0, len(repo.events))
	for _, e := range repo.events {
		out = append(out, e.Type)
	}
	return out
}

type memSOSLogs struct {
	mu   sync.Mutex
	logs []*emergency.SOSLog
	err  error
}

func (repo *memSOSLogs) Create(_ context.Context, log *emergency.SOSLog) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.err != nil {
		return repo.err
	}
	log.ID = fmt.Sprintf("sos-%d", len(repo.logs)+1)
	repo.logs = append(repo.logs, log)
	return nil
}

func (repo *memSOSLogs) GetByID(_ context.Context, id string) (*emergency.SOSLog, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, log := range repo.logs {
		if log.ID == id {
			return log, nil
		}
	}
	return nil, emergency.ErrNotFound
}

func (repo *memSOSLogs) ListByRide(_ context.Context, rideID string) ([]*emergency.SOSLog, error) {
	return repo.filter(func(log *emergency.SOSLog) bool { return log.RideID == rideID }), nil
}

func (repo *memSOSLogs) ListByUser(_ context.Context, userID string) ([]*emergency.SOSLog, error) {
	return repo.filter(func(log *emergency.SOSLog) bool { return log.UserID == userID }), nil
}

func (repo *memSOSLogs) CountBetween(_ context.Context, from, to time.Time) (int, error) {
	logs := repo.filter(func(log *emergency.SOSLog) bool {
		return !log.TriggeredAt.Before(from) && log.TriggeredAt.Before(to)
	})
	return len(logs), nil
}

func (repo *memSOSLogs) filter(keep func(*emergency.SOSLog) bool) []*emergency.SOSLog {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	out := make([]*emergency.SOSLog, 0)
	for _, log := range repo.logs {
		if keep(log) {
			out = append(out, log)
		}
	}
	return out
}

type published struct {
	exchange   string
	routingKey string
	body       []byte
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (pub *recordingPublisher) Publish(_ context.Context, exchange, routingKey string, body []byte) error {
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.err != nil {
		return pub.err
	}
	pub.msgs = append(pub.msgs, published{exchange: exchange, routingKey: routingKey, body: body})
	return nil
}

func (pub *recordingPublisher) sent() []published {
	pub.mu.Lock()
	defer pub.mu.Unlock()
	return append([]published(nil), pub.msgs...)
}

type memCache struct {
	mu   sync.Mutex
	byID map[string]ride.Snapshot
}

func (c *memCache) Update(_ context.Context, snapshot ride.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.byID == nil {
		c.byID = make(map[string]ride.Snapshot)
	}
	c.byID[snapshot.ID] = snapshot
	return nil
}

func (c *memCache) Get(_ context.Context, rideID string) (ride.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot, ok := c.byID[rideID]
	if !ok {
		return ride.Snapshot{}, cache.ErrSnapshotNotFound
	}
	return snapshot, nil
}

func (c *memCache) Delete(_ context.Context, rideID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byID, rideID)
	return nil
}

type fakeBackend struct {
	mu      sync.Mutex
	reports []tracking.SOSReport
	err     error
}

func (b *fakeBackend) Send(_ context.Context, report tracking.SOSReport) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.reports = append(b.reports, report)
	return nil
}

type serviceFixture struct {
	service   *trackingService
	snapshots *memSnapshots
	events    *memEvents
	sosLogs   *memSOSLogs
	pub       *recordingPublisher
	cache     *memCache
	backend   *fakeBackend
	locator   *location.DeviceLocator

	mu      sync.Mutex
	manuals []*schedule.Manual
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		snapshots: &memSnapshots{},
		events:    &memEvents{},
		sosLogs:   &memSOSLogs{},
		pub:       &recordingPublisher{},
		cache:     &memCache{},
		backend:   &fakeBackend{},
		locator:   location.NewDeviceLocator(time.Minute, 50*time.Millisecond),
	}

	svc, err := NewTrackingService(Dependencies{
		Config:       tracking.DefaultConfig(),
		UOW:          passthroughUOW{},
		Snapshots:    f.snapshots,
		Events:       f.events,
		SOSLogs:      f.sosLogs,
		Publisher:    f.pub,
		Cache:        f.cache,
		Locator:      f.locator,
		Backend:      f.backend,
		NewScheduler: f.scheduler,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	f.service = svc.(*trackingService)
	return f
}

func (f *serviceFixture) scheduler() schedule.Scheduler {
	f.mu.Lock()
	defer f.mu.Unlock()
	manual := schedule.NewManual()
	f.manuals = append(f.manuals, manual)
	return manual
}

func (f *serviceFixture) advance(d time.Duration) {
	f.mu.Lock()
	manuals := append([]*schedule.Manual(nil), f.manuals...)
	f.mu.Unlock()
	for _, manual := range manuals {
		manual.Advance(d)
	}
}

var errBoom = errors.New("boom")
