package service

import (
	"context"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"ride-tracker/internal/domain/geo"
	"ride-tracker/internal/domain/ride"
	"ride-tracker/internal/domain/user"
	"ride-tracker/internal/general/logger"
	"ride-tracker/internal/ports"
	"ride-tracker/internal/tracking"
	"ride-tracker/internal/tracking/schedule"
)

var ErrNilDependency = errors.New("trackingservice: required dependency is nil")

// DeviceLocator is the location capability plus the feed that passenger devices write into.
type DeviceLocator interface {
	tracking.LocationCapability
	Report(rideID string, fix geo.Fix) error
	Deny(rideID string) error
	Forget(rideID string)
}

// SnapshotCache is the read-through copy of the latest ride snapshots.
type SnapshotCache interface {
	Update(ctx context.Context, snapshot ride.Snapshot) error
	Get(ctx context.Context, rideID string) (ride.Snapshot, error)
	Delete(ctx context.Context, rideID string) error
}

// Consumer runs a queue handler until ctx ends.
type Consumer interface {
	ConsumeLoop(ctx context.Context, queue, consumerTag string, prefetch int, handler func(context.Context, amqp.Delivery) error)
}

// Dependencies wires the tracking service. Cache, Locator, Backend, Handoff,
// Consumer and NewScheduler are optional.
type Dependencies struct {
	Config    tracking.Config
	Logger    *logger.Logger
	UOW       ports.UnitOfWork
	Snapshots ports.RideSnapshotRepository
	Events    ports.RideEventRepository
	SOSLogs   ports.SOSLogRepository
	Publisher ports.Publisher

	Cache     SnapshotCache
	Locator   DeviceLocator
	Backend   tracking.EmergencyReporter
	Handoff   tracking.NavigationHandoff
	Listeners []tracking.Listener
	Consumer  Consumer

	NewScheduler func() schedule.Scheduler
}

// trackingService encapsulates the tracker service logic and dependencies.
type trackingService struct {
	logger    *logger.Logger
	uow       ports.UnitOfWork
	snapshots ports.RideSnapshotRepository
	events    ports.RideEventRepository
	sosLogs   ports.SOSLogRepository
	pub       ports.Publisher
	cache     SnapshotCache
	locator   DeviceLocator
	consumer  Consumer
	registry  *tracking.Registry

	ownersMu sync.Mutex
	owners   map[string]string // ride id -> passenger id, while tracked
}

// NewTrackingService creates the service and the registry its trackers live in.
func NewTrackingService(deps Dependencies) (ports.TrackingService, error) {
	if deps.UOW == nil || deps.Snapshots == nil || deps.Events == nil || deps.SOSLogs == nil || deps.Publisher == nil {
		return nil, ErrNilDependency
	}
	if err := deps.Config.Validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}

	service := &trackingService{
		logger:    deps.Logger,
		uow:       deps.UOW,
		snapshots: deps.Snapshots,
		events:    deps.Events,
		sosLogs:   deps.SOSLogs,
		pub:       deps.Publisher,
		cache:     deps.Cache,
		locator:   deps.Locator,
		consumer:  deps.Consumer,
		owners:    make(map[string]string),
	}

	sink := tracking.MultiSink{tracking.SinkFunc(service.recordStatus)}
	if deps.Cache != nil {
		sink = append(sink, deps.Cache)
	}
	reporter := tracking.ChainReporter{tracking.ReporterFunc(service.reportSOS)}
	if deps.Backend != nil {
		reporter = append(reporter, deps.Backend)
	}

	trackerDeps := tracking.Deps{
		Sink:      sink,
		Reporter:  reporter,
		Handoff:   deps.Handoff,
		Logger:    deps.Logger,
		Listeners: deps.Listeners,
		OnFinish:  service.onFinish,
	}
	if deps.Locator != nil {
		trackerDeps.Locator = deps.Locator
	}
	service.registry = tracking.NewRegistry(deps.Config, trackerDeps, deps.NewScheduler)

	return service, nil
}

// Close stops every live tracker.
func (service *trackingService) Close() {
	service.registry.Close()
}

func (service *trackingService) onFinish(rideID string) {
	service.ownersMu.Lock()
	delete(service.owners, rideID)
	service.ownersMu.Unlock()
	if service.locator != nil {
		service.locator.Forget(rideID)
	}
}

func (service *trackingService) bindOwner(rideID, passengerID string) {
	if passengerID == "" {
		return
	}
	service.ownersMu.Lock()
	service.owners[rideID] = passengerID
	service.ownersMu.Unlock()
}

// checkOwner rejects a PASSENGER acting on a ride started for someone else. Other roles,
// and rides started without a passenger, pass.
func (service *trackingService) checkOwner(rideID, userID string, role user.Role) error {
	if role != user.RolePassenger {
		return nil
	}
	service.ownersMu.Lock()
	owner, ok := service.owners[rideID]
	service.ownersMu.Unlock()
	if ok && owner != userID {
		return ride.ErrNotRideOwner
	}
	return nil
}
