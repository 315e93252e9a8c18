package clock

import (
	"testing"
	"time"
)

func TestFakeAfterFuncFiresOnce(t *testing.T) {
	c := NewFake()
	n := 0
	c.AfterFunc(100*time.Millisecond, func() { n++ })

	c.Advance(99 * time.Millisecond)
	if n != 0 {
		t.Fatalf("fired early: %d", n)
	}
	c.Advance(time.Millisecond)
	if n != 1 {
		t.Fatalf("expected 1 call, got %d", n)
	}
	c.Advance(time.Second)
	if n != 1 {
		t.Fatalf("one-shot fired again: %d", n)
	}
	if c.Pending() != 0 {
		t.Fatalf("pending = %d", c.Pending())
	}
}

func TestFakeEveryAndStop(t *testing.T) {
	c := NewFake()
	n := 0
	task := c.Every(150*time.Millisecond, func() { n++ })

	c.Advance(450 * time.Millisecond)
	if n != 3 {
		t.Fatalf("expected 3 ticks, got %d", n)
	}
	if !task.Stop() {
		t.Fatal("Stop on live task returned false")
	}
	if task.Stop() {
		t.Fatal("second Stop returned true")
	}
	c.Advance(time.Second)
	if n != 3 {
		t.Fatalf("ticked after stop: %d", n)
	}
}

func TestFakeTaskScheduledFromCallback(t *testing.T) {
	c := NewFake()
	var order []string
	c.AfterFunc(10*time.Millisecond, func() {
		order = append(order, "a")
		c.AfterFunc(10*time.Millisecond, func() { order = append(order, "b") })
	})
	c.Advance(20 * time.Millisecond)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected order %v", order)
	}
}
