package schedule

import (
	"context"
	"sync"
	"time"
)

// Loop is a Scheduler backed by wall-clock timers and a single goroutine.
type Loop struct {
	fire   chan TimerID
	calls  chan call
	done   chan struct{}
	exited chan struct{}
	once   sync.Once

	// owned by the loop goroutine
	timers map[TimerID]*loopTimer
	next   TimerID
}

type loopTimer struct {
	timer *time.Timer
	every time.Duration
	fn    func()
}

type call struct {
	fn   func()
	done chan struct{}
}

// NewLoop starts the loop goroutine. Close stops it.
func NewLoop() *Loop {
	loop := &Loop{
		fire:   make(chan TimerID),
		calls:  make(chan call),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
		timers: make(map[TimerID]*loopTimer),
	}
	go loop.run()
	return loop
}

// After implements Scheduler.
func (loop *Loop) After(d time.Duration, fn func()) TimerID {
	return loop.add(d, 0, fn)
}

// Every implements Scheduler.
func (loop *Loop) Every(d time.Duration, fn func()) TimerID {
	if d <= 0 {
		panic("schedule: non-positive interval for Every")
	}
	return loop.add(d, d, fn)
}

// Cancel implements Scheduler.
func (loop *Loop) Cancel(id TimerID) {
	if entry, ok := loop.timers[id]; ok {
		entry.timer.Stop()
		delete(loop.timers, id)
	}
}

// Do implements Scheduler.
func (loop *Loop) Do(ctx context.Context, fn func()) error {
	c := call{fn: fn, done: make(chan struct{})}

	select {
	case loop.calls <- c:
	case <-loop.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	// once accepted, fn either runs to completion or the loop exits without running it
	select {
	case <-c.done:
		return nil
	case <-loop.exited:
		return ErrClosed
	}
}

// Close implements Scheduler. It does not wait for a running callback, so it is safe to call from one.
func (loop *Loop) Close() {
	loop.once.Do(func() { close(loop.done) })
}

// Done is closed once the loop goroutine has exited.
func (loop *Loop) Done() <-chan struct{} {
	return loop.exited
}

func (loop *Loop) add(d, every time.Duration, fn func()) TimerID {
	loop.next++
	id := loop.next

	// the timer goroutine only hands the id over; all bookkeeping stays on the loop
	timer := time.AfterFunc(d, func() {
		select {
		case loop.fire <- id:
		case <-loop.done:
		}
	})
	loop.timers[id] = &loopTimer{timer: timer, every: every, fn: fn}
	return id
}

func (loop *Loop) run() {
	defer close(loop.exited)
	defer loop.stopAll()

	for {
		select {
		case <-loop.done:
			return

		case id := <-loop.fire:
			if loop.closed() {
				return
			}
			entry, ok := loop.timers[id]
			if !ok {
				// cancelled after the wall-clock timer already fired
				continue
			}
			if entry.every > 0 {
				entry.timer.Reset(entry.every)
			} else {
				delete(loop.timers, id)
			}
			entry.fn()

		case c := <-loop.calls:
			if loop.closed() {
				return
			}
			c.fn()
			close(c.done)
		}
	}
}

func (loop *Loop) closed() bool {
	select {
	case <-loop.done:
		return true
	default:
		return false
	}
}

func (loop *Loop) stopAll() {
	for id, entry := range loop.timers {
		entry.timer.Stop()
		delete(loop.timers, id)
	}
}
