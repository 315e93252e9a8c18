package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Crys266/IoT-Project/internal/bus"
	"github.com/Crys266/IoT-Project/internal/clock"
	"github.com/Crys266/IoT-Project/internal/model"
	"github.com/Crys266/IoT-Project/internal/simulator"
	"github.com/Crys266/IoT-Project/internal/status"
)

type sessionFixture struct {
	sim    *simulator.Server
	clock  *clock.Fake
	s      *Session
	events chan model.InputEvent
	cancel context.CancelFunc
	done   chan error

	mu    sync.Mutex
	lines []status.Line
}

func startSession(t *testing.T) *sessionFixture {
	t.Helper()
	sim, srv := newSimServer(t)

	cfg := model.DefaultConfig()
	cfg.Connection.Endpoint = wsURL(srv)
	cfg.Global.Username = "tester"
	cfg.Collab.BaseURL = ""

	fc := clock.NewFake()
	s, err := NewSession(cfg, SessionOptions{Clock: fc})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	f := &sessionFixture{sim: sim, clock: fc, s: s, events: make(chan model.InputEvent), done: make(chan error, 1)}

	sub := s.Bus.Subscribe(bus.TopicStatus)
	go func() {
		for msg := range sub {
			f.mu.Lock()
			f.lines = append(f.lines, msg.(status.Line))
			f.mu.Unlock()
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() { f.done <- s.Run(ctx, f.events) }()
	t.Cleanup(func() {
		f.stop(t)
		_ = s.Close()
	})

	waitFor(t, "channel open", func() bool { return s.Conn.State() == model.Open })
	waitFor(t, "connection_ack", func() bool { return s.Telemetry.Current().GPS.Available() })
	return f
}

func (f *sessionFixture) stop(t *testing.T) {
	t.Helper()
	f.cancel()
	select {
	case err := <-f.done:
		if err != nil {
			t.Errorf("run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("session did not stop")
	}
	f.done <- nil // keep later stop calls from blocking
}

// sawStatus counts how often text was shown as a fresh line.
func (f *sessionFixture) sawStatus(text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, l := range f.lines {
		if l.Text == text && !l.Dimmed {
			n++
		}
	}
	return n
}

func commands(sim *simulator.Server) []model.Command {
	var out []model.Command
	for _, env := range sim.Received() {
		if c, ok := env.(model.Command); ok {
			out = append(out, c)
		}
	}
	return out
}

func TestSessionConnectsAndReportsStatus(t *testing.T) {
	f := startSession(t)
	waitFor(t, "connected status", func() bool { return f.sawStatus(textConnected) == 1 })
	waitFor(t, "hello", func() bool { return hellos(f.sim) == 1 })
	if err := f.s.Run(context.Background(), nil); err != ErrAlreadyRunning {
		t.Fatalf("second run = %v", err)
	}
}

func TestSessionDirectionHeartbeatAndStop(t *testing.T) {
	f := startSession(t)

	f.events <- model.InputEvent{Kind: model.InputDirectionDown, Direction: model.Forward, Source: "test"}
	waitFor(t, "forward active", func() bool { d, ok := f.s.Control.Active(); return ok && d == model.Forward })
	waitFor(t, "command status", func() bool { return f.sawStatus("Command: forward") == 1 })

	f.clock.Advance(300 * time.Millisecond)
	f.events <- model.InputEvent{Kind: model.InputDirectionUp, Source: "test"}
	waitFor(t, "idle", func() bool { _, ok := f.s.Control.Active(); return !ok })

	waitFor(t, "four commands", func() bool { return len(commands(f.sim)) == 4 })
	cmds := commands(f.sim)
	for i, c := range cmds[:3] {
		if c.Command != model.Forward {
			t.Fatalf("command %d = %q", i, c.Command)
		}
		if c.Speed == nil || *c.Speed != 50 {
			t.Fatalf("command %d speed = %v", i, c.Speed)
		}
	}
	if cmds[3].Command != model.Stop {
		t.Fatalf("last command = %q", cmds[3].Command)
	}
	waitFor(t, "stop status", func() bool { return f.sawStatus("STOP") == 1 })
	if sev := f.s.Status.Current().Severity; sev != model.SeverityWarning {
		t.Fatalf("stop severity = %v", sev)
	}
}

func TestSessionEffectsSaveAndSpeed(t *testing.T) {
	f := startSession(t)

	f.events <- model.InputEvent{Kind: model.InputToggleEffect, Effect: model.EffectNegative}
	waitFor(t, "effect confirmation", func() bool { return f.sawStatus("Negative effect enabled") == 1 })

	f.events <- model.InputEvent{Kind: model.InputSaveFrame}
	waitFor(t, "saving", func() bool { return f.sawStatus(textSaving) == 1 })
	waitFor(t, "save confirmation", func() bool { return f.sawStatus("Image saved: capture_001.jpg (negative)") == 1 })
	waitFor(t, "save broadcast", func() bool { return f.sawStatus("New image saved by tester") == 1 })

	f.events <- model.InputEvent{Kind: model.InputSpeedStep, Speed: 10}
	waitFor(t, "control command", func() bool {
		for _, env := range f.sim.Received() {
			if c, ok := env.(model.ControlCommand); ok && c.Command == "stop:speed:60" {
				return true
			}
		}
		return false
	})
	if f.s.Control.Speed() != 60 {
		t.Fatalf("speed = %d", f.s.Control.Speed())
	}
}

func TestSessionReconnectsAfterDrop(t *testing.T) {
	f := startSession(t)

	f.sim.DropClients()
	waitFor(t, "reconnect scheduled", f.s.Conn.ReconnectPending)
	waitFor(t, "error status", func() bool { return f.sawStatus(textChannelError) == 1 })
	waitFor(t, "disconnect status", func() bool { return f.sawStatus(textDisconnected) == 1 })
	if f.s.SaveImage() {
		t.Fatal("save accepted while disconnected")
	}

	f.clock.Advance(3 * time.Second)
	waitFor(t, "reopened", func() bool { return f.s.Conn.State() == model.Open })
	waitFor(t, "second hello", func() bool { return hellos(f.sim) == 2 })
	waitFor(t, "connected again", func() bool { return f.sawStatus(textConnected) == 2 })
}

func TestSessionShutdownStopsMovingRover(t *testing.T) {
	f := startSession(t)
	f.events <- model.InputEvent{Kind: model.InputDirectionDown, Direction: model.Left}
	waitFor(t, "left active", func() bool { _, ok := f.s.Control.Active(); return ok })

	f.stop(t)
	waitFor(t, "stop delivered", func() bool {
		cmds := commands(f.sim)
		return len(cmds) > 0 && cmds[len(cmds)-1].Command == model.Stop
	})
	if f.s.Conn.State() != model.Disconnected {
		t.Fatalf("state = %v", f.s.Conn.State())
	}
}
