// Package clock provides cancellable one-shot and repeating tasks behind an interface,
// so timer-driven components (command repeat, reconnect, status fade) can be driven
// deterministically in tests.
package clock

import (
	"sync"
	"time"
)

// Task is a handle to a scheduled function.
type Task interface {
	// Stop cancels the task. It reports whether the task was still pending.
	Stop() bool
}

// Clock schedules tasks.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f once after d.
	AfterFunc(d time.Duration, f func()) Task
	// Every runs f every d until the returned task is stopped.
	Every(d time.Duration, f func()) Task
}

// Real is the wall clock.
type Real struct{}

// Now returns time.Now.
func (Real) Now() time.Time { return time.Now() }

// AfterFunc wraps time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Task { return time.AfterFunc(d, f) }

// Every starts a ticker goroutine that calls f on each tick.
func (Real) Every(d time.Duration, f func()) Task {
	t := &ticker{t: time.NewTicker(d), done: make(chan struct{})}
	go t.loop(f)
	return t
}

type ticker struct {
	t    *time.Ticker
	done chan struct{}
	once sync.Once
}

func (t *ticker) loop(f func()) {
	for {
		select {
		case <-t.done:
			return
		case <-t.t.C:
			// a tick may race Stop; prefer the stop signal
			select {
			case <-t.done:
				return
			default:
			}
			f()
		}
	}
}

func (t *ticker) Stop() bool {
	stopped := false
	t.once.Do(func() {
		t.t.Stop()
		close(t.done)
		stopped = true
	})
	return stopped
}
