// Package simulate runs one ride tracker without any infrastructure and prints its timeline.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"ride-tracker/internal/domain/geo"
	"ride-tracker/internal/domain/ride"
	"ride-tracker/internal/general/logger"
	"ride-tracker/internal/tracking"
	"ride-tracker/internal/tracking/schedule"
)

// virtualLimit stops a virtual run that never finishes.
const virtualLimit = 10 * time.Minute

// Options configure a simulation run.
type Options struct {
	RideID    string
	Config    tracking.Config
	Virtual   bool          // drive a schedule.Manual instead of the wall clock
	SOSAt     time.Duration // 0 disables the SOS
	Latitude  float64
	Longitude float64
}

// Run tracks the placeholder ride until it hands off or ctx ends.
func Run(ctx context.Context, out io.Writer, opts Options) error {
	var (
		sched   schedule.Scheduler
		manual  *schedule.Manual
		started = time.Now()
		elapsed = func() time.Duration { return time.Since(started) }
	)
	if opts.Virtual {
		manual = schedule.NewManual()
		sched, elapsed = manual, manual.Now
	} else {
		sched = schedule.NewLoop()
	}

	p := &printer{out: out, elapsed: elapsed}
	snapshot := ride.DefaultSnapshot()
	if opts.RideID != "" {
		snapshot.ID = opts.RideID
	}

	tracker, err := tracking.New(&snapshot, opts.Config, tracking.Deps{
		Sink:     tracking.SinkFunc(p.update),
		Reporter: tracking.ReporterFunc(p.report),
		Locator: tracking.LocatorFunc(func(context.Context, string) (geo.Fix, error) {
			return geo.NewFix(opts.Latitude, opts.Longitude)
		}),
		Handoff:   tracking.HandoffFunc(p.handoff),
		Logger:    logger.Discard(),
		Listeners: []tracking.Listener{p.listen},
	}, sched)
	if err != nil {
		return err
	}
	defer tracker.Close()

	if err := tracker.Start(ctx); err != nil {
		return err
	}
	if opts.Virtual {
		return runVirtual(ctx, tracker, manual, opts.SOSAt, p)
	}
	return runRealtime(ctx, tracker, opts.SOSAt, p)
}

func runVirtual(ctx context.Context, tracker *tracking.Tracker, manual *schedule.Manual, sosAt time.Duration, p *printer) error {
	const step = 100 * time.Millisecond
	sosPending := sosAt > 0
	for manual.Now() < virtualLimit {
		if err := ctx.Err(); err != nil {
			return err
		}
		if sosPending && manual.Now() >= sosAt {
			sosPending = false
			p.sos(tracker.TriggerSOS(ctx))
		}
		select {
		case <-tracker.Done():
			return nil
		default:
		}
		manual.Advance(step)
	}
	return errors.New("simulation did not finish")
}

func runRealtime(ctx context.Context, tracker *tracking.Tracker, sosAt time.Duration, p *printer) error {
	var sos <-chan time.Time
	if sosAt > 0 {
		timer := time.NewTimer(sosAt)
		defer timer.Stop()
		sos = timer.C
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tracker.Done():
			return nil
		case <-sos:
			sos = nil
			p.sos(tracker.TriggerSOS(ctx))
		}
	}
}

// printer writes one line per tracker event. Listener calls come from the scheduler,
// SOS results from the caller.
type printer struct {
	mu      sync.Mutex
	out     io.Writer
	elapsed func() time.Duration
}

func (p *printer) line(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "[%6.1fs] ", p.elapsed().Seconds())
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *printer) listen(ev tracking.Event) {
	s := ev.State
	switch ev.Type {
	case tracking.EventTick:
		p.line("tick      driver=(%.0f,%.0f) eta=%s distance=%s", s.DriverPosition.X, s.DriverPosition.Y, s.ETA, s.Distance)
	case tracking.EventStatusChanged:
		p.line("status    %s", s.Status)
	case tracking.EventSinkFailed, tracking.EventHandoffFailed:
		p.line("%-9s %v", ev.Type, ev.Err)
	case tracking.EventHandoff:
		p.line("handoff   %s", ev.Route)
	default:
		p.line("%s", ev.Type)
	}
}

func (p *printer) update(_ context.Context, snapshot ride.Snapshot) error {
	p.line("sink      %s -> %s", snapshot.ID, snapshot.Status.BusName())
	return nil
}

func (p *printer) report(_ context.Context, report tracking.SOSReport) error {
	p.line("report    %.4f,%.4f", report.Latitude, report.Longitude)
	return nil
}

func (p *printer) handoff(_ context.Context, rideID, route string) error {
	p.line("navigate  %s %s", rideID, route)
	return nil
}

func (p *printer) sos(_ tracking.SOSReport, err error) {
	if err != nil {
		p.line("sos       failed: %v", err)
		return
	}
	p.line("sos       accepted")
}
