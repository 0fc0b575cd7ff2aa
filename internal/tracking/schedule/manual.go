package schedule

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Manual is a Scheduler driven by a virtual clock. Nothing happens until Advance is called,
// which makes timer-driven code deterministic in tests and in offline simulations.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	seq     uint64
	next    TimerID
	pending map[TimerID]*manualTimer
	closed  bool
}

type manualTimer struct {
	due   time.Duration
	every time.Duration
	seq   uint64
	fn    func()
}

// NewManual returns a Manual scheduler at virtual time zero.
func NewManual() *Manual {
	return &Manual{pending: make(map[TimerID]*manualTimer)}
}

// After implements Scheduler.
func (manual *Manual) After(d time.Duration, fn func()) TimerID {
	return manual.add(d, 0, fn)
}

// Every implements Scheduler.
func (manual *Manual) Every(d time.Duration, fn func()) TimerID {
	if d <= 0 {
		panic("schedule: non-positive interval for Every")
	}
	return manual.add(d, d, fn)
}

// Cancel implements Scheduler.
func (manual *Manual) Cancel(id TimerID) {
	manual.mu.Lock()
	defer manual.mu.Unlock()
	delete(manual.pending, id)
}

// Do implements Scheduler; fn runs immediately on the calling goroutine.
func (manual *Manual) Do(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	manual.mu.Lock()
	closed := manual.closed
	manual.mu.Unlock()
	if closed {
		return ErrClosed
	}

	fn()
	return nil
}

// Close implements Scheduler.
func (manual *Manual) Close() {
	manual.mu.Lock()
	defer manual.mu.Unlock()
	manual.closed = true
	clear(manual.pending)
}

// Advance moves the virtual clock forward by d, running every callback that falls due
// in order of due time, then scheduling order. Timers scheduled by callbacks run in the
// same Advance when they fall due within the window.
func (manual *Manual) Advance(d time.Duration) {
	manual.mu.Lock()
	target := manual.now + d
	manual.mu.Unlock()

	for {
		fn, ok := manual.popDue(target)
		if !ok {
			break
		}
		fn()
	}

	manual.mu.Lock()
	if manual.now < target {
		manual.now = target
	}
	manual.mu.Unlock()
}

// Now returns the elapsed virtual time.
func (manual *Manual) Now() time.Duration {
	manual.mu.Lock()
	defer manual.mu.Unlock()
	return manual.now
}

// Pending returns how many timers are scheduled.
func (manual *Manual) Pending() int {
	manual.mu.Lock()
	defer manual.mu.Unlock()
	return len(manual.pending)
}

// Closed reports whether Close has been called.
func (manual *Manual) Closed() bool {
	manual.mu.Lock()
	defer manual.mu.Unlock()
	return manual.closed
}

func (manual *Manual) add(d, every time.Duration, fn func()) TimerID {
	manual.mu.Lock()
	defer manual.mu.Unlock()

	if manual.closed {
		return 0
	}
	if d < 0 {
		d = 0
	}

	manual.next++
	manual.seq++
	manual.pending[manual.next] = &manualTimer{
		due:   manual.now + d,
		every: every,
		seq:   manual.seq,
		fn:    fn,
	}
	return manual.next
}

// popDue removes (or reschedules) the earliest timer due at or before target and returns its callback.
func (manual *Manual) popDue(target time.Duration) (func(), bool) {
	manual.mu.Lock()
	defer manual.mu.Unlock()

	if manual.closed || len(manual.pending) == 0 {
		return nil, false
	}

	ids := make([]TimerID, 0, len(manual.pending))
	for id, entry := range manual.pending {
		if entry.due <= target {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, false
	}

	sort.Slice(ids, func(i, j int) bool {
		a, b := manual.pending[ids[i]], manual.pending[ids[j]]
		if a.due != b.due {
			return a.due < b.due
		}
		return a.seq < b.seq
	})

	id := ids[0]
	entry := manual.pending[id]
	manual.now = entry.due

	if entry.every > 0 {
		manual.seq++
		entry.due += entry.every
		entry.seq = manual.seq
	} else {
		delete(manual.pending, id)
	}
	return entry.fn, true
}
