package status

import (
	"errors"
	"testing"
	"time"

	"github.com/Crys266/IoT-Project/internal/clock"
	"github.com/Crys266/IoT-Project/internal/model"
)

func newTestReporter() (*Reporter, *clock.Fake) {
	c := clock.NewFake()
	return NewReporter(Options{IdleText: "System ready", Clock: c}), c
}

func TestReportDimsThenReverts(t *testing.T) {
	r, c := newTestReporter()
	r.Report("Saved!", model.SeveritySuccess)

	if l := r.Current(); l.Text != "Saved!" || l.Dimmed || l.Idle {
		t.Fatalf("immediately after report: %+v", l)
	}

	c.Advance(2999 * time.Millisecond)
	if r.Current().Dimmed {
		t.Fatal("dimmed before 3000ms")
	}
	c.Advance(time.Millisecond)
	if l := r.Current(); l.Text != "Saved!" || !l.Dimmed {
		t.Fatalf("at 3000ms expected dimmed text, got %+v", l)
	}

	c.Advance(1999 * time.Millisecond)
	if r.Current().Idle {
		t.Fatal("reverted before 5000ms")
	}
	c.Advance(time.Millisecond)
	if l := r.Current(); !l.Idle || l.Text != "System ready" || l.Dimmed {
		t.Fatalf("at 5000ms expected idle placeholder, got %+v", l)
	}
	if c.Pending() != 0 {
		t.Fatalf("pending timers = %d", c.Pending())
	}
}

func TestNewerReportSupersedes(t *testing.T) {
	r, c := newTestReporter()
	r.Report("first", model.SeverityInfo)
	c.Advance(4 * time.Second)
	r.Report("second", model.SeverityWarning)

	c.Advance(1500 * time.Millisecond) // first's revert time has passed
	if l := r.Current(); l.Text != "second" || l.Dimmed {
		t.Fatalf("second message disturbed by first's timers: %+v", l)
	}
	c.Advance(3500 * time.Millisecond)
	if !r.Current().Idle {
		t.Fatalf("second should revert 5s after its own report, got %+v", r.Current())
	}
}

func TestErrorNeverReverts(t *testing.T) {
	r, c := newTestReporter()
	r.Report("WebSocket connection error", model.SeverityError)
	c.Advance(time.Minute)
	l := r.Current()
	if l.Text != "WebSocket connection error" || l.Dimmed || l.Idle {
		t.Fatalf("error line changed: %+v", l)
	}
	if c.Pending() != 0 {
		t.Fatalf("error report armed %d timers", c.Pending())
	}

	r.Report("Connected to IoT system", model.SeveritySuccess)
	c.Advance(5 * time.Second)
	if !r.Current().Idle {
		t.Fatal("later non-error report should still revert")
	}
}

func TestErrorCancelsPendingFade(t *testing.T) {
	r, c := newTestReporter()
	r.Report("Saving current frame...", model.SeverityInfo)
	r.Report("Save failed: disk full", model.SeverityError)
	c.Advance(10 * time.Second)
	if l := r.Current(); l.Text != "Save failed: disk full" || l.Dimmed {
		t.Fatalf("unexpected %+v", l)
	}
}

func TestSinksSeeEveryChange(t *testing.T) {
	r, c := newTestReporter()
	var seen []Line
	r.AddSink(func(l Line) { seen = append(seen, l) })

	r.Report("Detected 3 objects", model.SeverityInfo)
	c.Advance(5 * time.Second)

	if len(seen) != 3 {
		t.Fatalf("expected report, dim and revert, got %d: %+v", len(seen), seen)
	}
	if seen[0].Text != "Detected 3 objects" || !seen[1].Dimmed || !seen[2].Idle {
		t.Fatalf("unexpected sequence %+v", seen)
	}
}

func TestDesktopNotifierOnlyErrors(t *testing.T) {
	var sent []string
	n := NewDesktopNotifier("Rover", nil)
	n.send = func(title, message string) error {
		sent = append(sent, title+": "+message)
		return errors.New("no notification daemon")
	}
	sink := n.Sink()
	sink(Line{Text: "Connected", Severity: model.SeveritySuccess})
	sink(Line{Text: "Save failed: x", Severity: model.SeverityError})

	if len(sent) != 1 || sent[0] != "Rover: Save failed: x" {
		t.Fatalf("unexpected notifications %v", sent)
	}
}
