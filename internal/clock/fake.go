package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manual clock. Tasks only run inside Advance, synchronously and in
// due-time order, which keeps timer-driven tests deterministic.
type Fake struct {
	mu    sync.Mutex
	now   time.Time
	seq   uint64
	tasks []*fakeTask
}

type fakeTask struct {
	c       *Fake
	id      uint64
	at      time.Time
	every   time.Duration
	f       func()
	stopped bool
}

// NewFake returns a Fake set to a fixed instant.
func NewFake() *Fake {
	return &Fake{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

// Now returns the fake time.
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f at Now()+d.
func (c *Fake) AfterFunc(d time.Duration, f func()) Task {
	return c.add(d, 0, f)
}

// Every schedules f at every multiple of d from Now().
func (c *Fake) Every(d time.Duration, f func()) Task {
	if d <= 0 {
		d = time.Nanosecond
	}
	return c.add(d, d, f)
}

func (c *Fake) add(d, every time.Duration, f func()) Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTask{c: c, id: c.seq, at: c.now.Add(d), every: every, f: f}
	c.tasks = append(c.tasks, t)
	return t
}

// Pending returns the number of scheduled tasks that have not fired (one-shot)
// or been stopped.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}

// Advance moves the clock forward by d, running every task that falls due.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	end := c.now.Add(d)
	for {
		t := c.nextDue(end)
		if t == nil {
			break
		}
		c.now = t.at
		if t.every > 0 {
			t.at = t.at.Add(t.every)
		} else {
			t.stopped = true
			c.remove(t)
		}
		c.mu.Unlock()
		t.f()
		c.mu.Lock()
	}
	c.now = end
	c.mu.Unlock()
}

func (c *Fake) nextDue(end time.Time) *fakeTask {
	if len(c.tasks) == 0 {
		return nil
	}
	sort.SliceStable(c.tasks, func(i, j int) bool {
		if c.tasks[i].at.Equal(c.tasks[j].at) {
			return c.tasks[i].id < c.tasks[j].id
		}
		return c.tasks[i].at.Before(c.tasks[j].at)
	})
	if c.tasks[0].at.After(end) {
		return nil
	}
	return c.tasks[0]
}

func (c *Fake) remove(t *fakeTask) {
	for i, x := range c.tasks {
		if x == t {
			c.tasks = append(c.tasks[:i], c.tasks[i+1:]...)
			return
		}
	}
}

func (t *fakeTask) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	t.c.remove(t)
	return true
}
