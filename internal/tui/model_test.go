package tui

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	"github.com/Crys266/IoT-Project/internal/bus"
	"github.com/Crys266/IoT-Project/internal/collab"
	"github.com/Crys266/IoT-Project/internal/control"
	"github.com/Crys266/IoT-Project/internal/model"
	"github.com/Crys266/IoT-Project/internal/render"
	"github.com/Crys266/IoT-Project/internal/status"
	tea "github.com/charmbracelet/bubbletea"
)

type staticTelemetry struct{ st model.SystemStatus }

func (s *staticTelemetry) Current() model.SystemStatus { return s.st }

type fakeGallery struct {
	loads int
	tests int
}

func (g *fakeGallery) LoadGallery(context.Context) (collab.Gallery, error) {
	g.loads++
	return collab.Gallery{}, nil
}

func (g *fakeGallery) TestNotification(context.Context) error {
	g.tests++
	return errors.New("not configured")
}

type harness struct {
	m      Model
	events chan model.InputEvent
	sub    bus.Subscription
	tel    *staticTelemetry
}

func newHarness(gallery Gallery) *harness {
	h := &harness{
		events: make(chan model.InputEvent, 16),
		sub:    make(bus.Subscription, 16),
		tel:    &staticTelemetry{},
	}
	h.m = New(h.sub, Options{
		Events:     h.events,
		Telemetry:  h.tel,
		Gallery:    gallery,
		Endpoint:   "ws://rover.local:8765/",
		Speed:      50,
		SpeedStep:  10,
		KeyRelease: 600 * time.Millisecond,
	})
	return h
}

func (h *harness) update(msg tea.Msg) tea.Cmd {
	next, cmd := h.m.Update(msg)
	h.m = next.(Model)
	return cmd
}

func (h *harness) drain() []model.InputEvent {
	var out []model.InputEvent
	for {
		select {
		case ev := <-h.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestDirectionKeyRepeatSendsOnce(t *testing.T) {
	h := newHarness(nil)
	if cmd := h.update(tea.KeyMsg{Type: tea.KeyUp}); cmd == nil {
		t.Fatal("expected a release timer")
	}
	h.update(runes("w"))
	h.update(tea.KeyMsg{Type: tea.KeyUp})

	evs := h.drain()
	if len(evs) != 1 || evs[0].Kind != model.InputDirectionDown || evs[0].Direction != model.Forward {
		t.Fatalf("unexpected events %+v", evs)
	}
	if evs[0].Source != inputSource {
		t.Fatalf("source = %q", evs[0].Source)
	}
}

func TestStaleReleaseIsIgnored(t *testing.T) {
	h := newHarness(nil)
	h.update(runes("d"))
	first := h.m.releaseGen
	h.update(runes("d"))
	h.drain()

	h.update(releaseMsg{gen: first})
	if evs := h.drain(); len(evs) != 0 {
		t.Fatalf("stale timer released the key: %+v", evs)
	}

	h.update(releaseMsg{gen: h.m.releaseGen})
	evs := h.drain()
	if len(evs) != 1 || evs[0].Kind != model.InputDirectionUp {
		t.Fatalf("expected one release, got %+v", evs)
	}
	h.update(releaseMsg{gen: h.m.releaseGen})
	if evs := h.drain(); len(evs) != 0 {
		t.Fatalf("released twice: %+v", evs)
	}
}

func TestChangingDirectionAndSpaceStop(t *testing.T) {
	h := newHarness(nil)
	h.update(tea.KeyMsg{Type: tea.KeyLeft})
	h.update(tea.KeyMsg{Type: tea.KeyDown})
	h.update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	h.update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})

	evs := h.drain()
	want := []model.InputEvent{
		{Kind: model.InputDirectionDown, Direction: model.Left, Source: inputSource},
		{Kind: model.InputDirectionDown, Direction: model.Backward, Source: inputSource},
		{Kind: model.InputDirectionUp, Source: inputSource},
	}
	if len(evs) != len(want) {
		t.Fatalf("got %+v", evs)
	}
	for i := range want {
		if evs[i] != want[i] {
			t.Fatalf("event %d = %+v, want %+v", i, evs[i], want[i])
		}
	}
}

func TestFullInputQueueNeverBlocksUpdate(t *testing.T) {
	h := newHarness(nil)
	small := make(chan model.InputEvent, 1)
	h.events, h.m.opts.Events = small, small
	small <- model.InputEvent{Kind: model.InputSaveFrame}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.update(runes("c"))
		h.update(runes("w"))
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Update blocked on a full input queue")
	}
	if h.m.held != "" {
		t.Fatalf("dropped press still marked held: %q", h.m.held)
	}
	if evs := h.drain(); len(evs) != 1 {
		t.Fatalf("expected only the queued event, got %+v", evs)
	}
}

func TestDroppedReleaseIsRetried(t *testing.T) {
	h := newHarness(nil)
	small := make(chan model.InputEvent, 1)
	h.events, h.m.opts.Events = small, small

	h.update(runes("w"))
	h.drain()
	small <- model.InputEvent{Kind: model.InputSaveFrame}

	if cmd := h.update(releaseMsg{gen: h.m.releaseGen}); cmd == nil {
		t.Fatal("dropped release was not rescheduled")
	}
	if h.m.held != model.Forward {
		t.Fatalf("held = %q after a dropped release", h.m.held)
	}
	h.drain()

	if cmd := h.update(releaseMsg{gen: h.m.releaseGen}); cmd != nil {
		t.Fatal("successful release scheduled another retry")
	}
	evs := h.drain()
	if len(evs) != 1 || evs[0].Kind != model.InputDirectionUp || h.m.held != "" {
		t.Fatalf("retry did not release: %+v held=%q", evs, h.m.held)
	}
}

func TestActionKeys(t *testing.T) {
	h := newHarness(nil)
	for _, k := range []string{"+", "-", "n", "o", "c"} {
		h.update(runes(k))
	}
	evs := h.drain()
	if len(evs) != 5 {
		t.Fatalf("got %+v", evs)
	}
	if evs[0].Kind != model.InputSpeedStep || evs[0].Speed != 10 {
		t.Fatalf("plus: %+v", evs[0])
	}
	if evs[1].Kind != model.InputSpeedStep || evs[1].Speed != -10 {
		t.Fatalf("minus: %+v", evs[1])
	}
	if evs[2].Effect != model.EffectNegative || evs[3].Effect != model.EffectDetection {
		t.Fatalf("effects: %+v %+v", evs[2], evs[3])
	}
	if evs[4].Kind != model.InputSaveFrame {
		t.Fatalf("save: %+v", evs[4])
	}
}

func TestQuitReleasesHeldDirection(t *testing.T) {
	h := newHarness(nil)
	h.update(runes("w"))
	h.drain()
	cmd := h.update(runes("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q did not quit")
	}
	evs := h.drain()
	if len(evs) != 1 || evs[0].Kind != model.InputDirectionUp {
		t.Fatalf("expected stop before quit, got %+v", evs)
	}
}

func TestGalleryKeys(t *testing.T) {
	g := &fakeGallery{}
	h := newHarness(g)

	cmd := h.update(runes("g"))
	if cmd == nil {
		t.Fatal("no gallery command")
	}
	if done, ok := cmd().(actionDoneMsg); !ok || done.err != nil {
		t.Fatalf("unexpected result %#v", done)
	}
	cmd = h.update(runes("t"))
	done := cmd().(actionDoneMsg)
	if done.err == nil || g.loads != 1 || g.tests != 1 {
		t.Fatalf("loads=%d tests=%d err=%v", g.loads, g.tests, done.err)
	}

	noGallery := newHarness(nil)
	if cmd := noGallery.update(runes("g")); cmd != nil {
		t.Fatal("gallery key active without a gallery")
	}
}

func TestBusUpdatesView(t *testing.T) {
	h := newHarness(&fakeGallery{})
	h.tel.st = model.SystemStatus{
		NegativeEffect: true,
		GPS:            model.GPSFix{Lat: model.Float(45.4642), Lon: model.Float(9.19)},
		Environmental:  model.Environmental{Temperature: model.Float(21.5)},
	}

	h.update(busMsg{payload: model.ConnectionEvent{State: model.Open}})
	h.update(busMsg{payload: status.Line{Text: "Connected to IoT system", Severity: model.SeveritySuccess}})
	h.update(busMsg{payload: h.tel.st})
	h.update(busMsg{payload: model.DetectionSummary{ObjectsCount: 4}})
	h.update(busMsg{payload: false})
	h.update(busMsg{payload: control.State{Direction: model.Left, Speed: 70}})
	cmd := h.update(busMsg{payload: collab.Summary{
		Statistics:     collab.Statistics{TotalImages: 12, TotalSizeMB: 3.25},
		WithDetections: 5,
		CreatedToday:   2,
	}})
	if cmd == nil {
		t.Fatal("bus listener not re-armed")
	}

	view := h.m.View()
	for _, want := range []string{
		"open",
		"Connected to IoT system",
		"Lat: 45.464200 | Lon: 9.190000",
		"Temperature: 21.5 °C | Humidity: N/A",
		"negative ON",
		"detection OFF",
		"ESP32 disconnected",
		"4 objects",
		"left  speed 70",
		"12 images",
		"g gallery",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestEffectToggledOverridesSnapshot(t *testing.T) {
	h := newHarness(nil)
	h.update(busMsg{payload: model.SystemStatus{NegativeEffect: true}})
	h.update(busMsg{payload: model.EffectToggled{Effect: model.EffectNegative, Enabled: false}})
	h.update(busMsg{payload: model.EffectToggled{Effect: model.EffectDetection, Enabled: true}})

	view := h.m.View()
	if !strings.Contains(view, "negative OFF") || !strings.Contains(view, "detection ON") {
		t.Fatalf("effects not tracked:\n%s", view)
	}
}

type stubFrames struct{ stats render.Stats }

func (f stubFrames) Stats() render.Stats { return f.stats }

func TestFrameCountersShown(t *testing.T) {
	h := newHarness(nil)
	h.m.opts.Frames = stubFrames{stats: render.Stats{Received: 9, Rendered: 7, Failed: 1, Skipped: 1}}
	h.update(busMsg{payload: render.FrameInfo{Seq: 7, SourceSize: image.Pt(320, 240)}})

	view := h.m.View()
	if !strings.Contains(view, "#7  320x240 source  received 9  failed 1  skipped 1") {
		t.Fatalf("frame counters missing:\n%s", view)
	}
}

func TestWaitForBusReportsClose(t *testing.T) {
	sub := make(bus.Subscription, 1)
	sub <- status.Line{Text: "x"}
	close(sub)

	cmd := waitForBus(sub)
	if msg, ok := cmd().(busMsg); !ok || msg.payload.(status.Line).Text != "x" {
		t.Fatalf("unexpected %#v", msg)
	}
	if _, ok := cmd().(busClosedMsg); !ok {
		t.Fatal("closed subscription not reported")
	}
}

func TestInitialViewShowsNA(t *testing.T) {
	h := newHarness(nil)
	view := h.m.View()
	for _, want := range []string{"GPS N/A", "disconnected", "stopped  speed 50", "unknown"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "g gallery") {
		t.Error("gallery help shown without a gallery")
	}
}
