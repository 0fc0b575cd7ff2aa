// Package schedule provides the single owner of a tracker's pending timers.
//
// Every timer callback and every closure passed to Do runs serialized on one
// logical thread, so the code they touch needs no further locking. After, Every
// and Cancel must only be called from inside such a callback or closure.
package schedule

import (
	"context"
	"errors"
	"time"
)

// TimerID identifies a pending timer. The zero value never refers to a timer.
type TimerID uint64

var ErrClosed = errors.New("schedule: scheduler closed")

// Scheduler owns timers and runs their callbacks one at a time.
type Scheduler interface {
	// After runs fn once after d.
	After(d time.Duration, fn func()) TimerID
	// Every runs fn every d until cancelled.
	Every(d time.Duration, fn func()) TimerID
	// Cancel stops a pending timer; a cancelled callback never runs. Unknown ids are ignored.
	Cancel(id TimerID)
	// Do runs fn serialized with timer callbacks and waits for it to finish.
	// It must not be called from inside a callback.
	Do(ctx context.Context, fn func()) error
	// Close cancels every pending timer. Later Do calls return ErrClosed.
	Close()
}
