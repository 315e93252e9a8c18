// Package tui is the terminal dashboard: it turns key presses into input events
// for the session and renders the session bus as a live status panel.
package tui

import (
	"context"
	"log/slog"
	"time"

	"github.com/Crys266/IoT-Project/internal/bus"
	"github.com/Crys266/IoT-Project/internal/collab"
	"github.com/Crys266/IoT-Project/internal/control"
	"github.com/Crys266/IoT-Project/internal/model"
	"github.com/Crys266/IoT-Project/internal/render"
	"github.com/Crys266/IoT-Project/internal/status"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	inputSource  = "terminal"
	releaseRetry = 50 * time.Millisecond
)

// Telemetry is the read side of the telemetry cache.
type Telemetry interface {
	Current() model.SystemStatus
}

// FrameStats exposes the renderer counters.
type FrameStats interface {
	Stats() render.Stats
}

// Gallery is the part of the collaborator service the dashboard triggers.
type Gallery interface {
	LoadGallery(ctx context.Context) (collab.Gallery, error)
	TestNotification(ctx context.Context) error
}

// Options configures the dashboard model.
type Options struct {
	Events     chan<- model.InputEvent // consumed by Session.Run
	Telemetry  Telemetry
	Frames     FrameStats // optional; adds received/failed counters to the view
	Gallery    Gallery    // nil hides the gallery keys
	Endpoint   string
	Speed      int // initial level shown before the first control update
	SpeedStep  int
	KeyRelease time.Duration
	Context    context.Context
	Logger     *slog.Logger
}

// Messages
type busMsg struct{ payload any }

type busClosedMsg struct{}

type releaseMsg struct{ gen uint64 }

type actionDoneMsg struct {
	action string
	err    error
}

// Model is the bubbletea model of the dashboard.
type Model struct {
	opts Options
	sub  bus.Subscription

	conn      model.ConnectionState
	status    status.Line
	telemetry model.SystemStatus
	negative  bool // effect flags: seeded by connection_ack, then effect_toggled
	detection bool
	frames    render.FrameInfo
	stats     render.Stats
	detected  int
	camera    *bool
	control   control.State
	gallery   *collab.Summary

	held       model.Direction
	releaseGen uint64

	width int
}

// New builds the model. sub must be subscribed to every topic the view shows
// (see Topics) and is drained for as long as the program runs.
func New(sub bus.Subscription, opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.KeyRelease <= 0 {
		opts.KeyRelease = 600 * time.Millisecond
	}
	if opts.SpeedStep <= 0 {
		opts.SpeedStep = 10
	}
	m := Model{
		opts:    opts,
		sub:     sub,
		conn:    model.Disconnected,
		control: control.State{Speed: opts.Speed},
	}
	if opts.Telemetry != nil {
		m.telemetry = opts.Telemetry.Current()
		m.negative, m.detection = m.telemetry.NegativeEffect, m.telemetry.ObjectDetection
	}
	return m
}

// Topics lists the bus topics the dashboard renders.
func Topics() []string {
	return []string{
		bus.TopicStatus, bus.TopicConnection, bus.TopicFrame, bus.TopicTelemetry,
		bus.TopicEffect, bus.TopicDetection, bus.TopicCamera, bus.TopicControl, bus.TopicGallery,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForBus(m.sub),
		tea.SetWindowTitle("Rover dashboard"),
	)
}

func waitForBus(sub bus.Subscription) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-sub
		if !ok {
			return busClosedMsg{}
		}
		return busMsg{payload: v}
	}
}

func releaseAfter(d time.Duration, gen uint64) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return releaseMsg{gen: gen} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case busMsg:
		m.apply(msg.payload)
		return m, waitForBus(m.sub)

	case busClosedMsg:
		return m, nil

	case releaseMsg:
		if msg.gen != m.releaseGen || m.held == "" {
			return m, nil
		}
		return m, m.release()

	case actionDoneMsg:
		// The gallery service reports outcomes on the status line itself.
		return m, nil
	}
	return m, nil
}

// apply folds one bus payload into the view state.
func (m *Model) apply(payload any) {
	switch v := payload.(type) {
	case status.Line:
		m.status = v
	case model.ConnectionEvent:
		m.conn = v.State
	case render.FrameInfo:
		m.frames = v
		if m.opts.Frames != nil {
			m.stats = m.opts.Frames.Stats()
		}
	case model.SystemStatus:
		m.telemetry = v
		m.negative, m.detection = v.NegativeEffect, v.ObjectDetection
	case model.SensorUpdate:
		if m.opts.Telemetry != nil {
			m.telemetry = m.opts.Telemetry.Current()
		}
	case model.EffectToggled:
		switch v.Effect {
		case model.EffectNegative:
			m.negative = v.Enabled
		case model.EffectDetection:
			m.detection = v.Enabled
		}
	case model.DetectionSummary:
		m.detected = v.ObjectsCount
	case bool:
		c := v
		m.camera = &c
	case control.State:
		m.control = v
	case collab.Summary:
		s := v
		m.gallery = &s
	}
}

// send hands ev to the session without blocking the UI loop. The session publishes
// on the bus this model drains, so waiting here could stall both.
func (m *Model) send(ev model.InputEvent) bool {
	ev.Source = inputSource
	select {
	case m.opts.Events <- ev:
		return true
	default:
		m.opts.Logger.Warn("input dropped, session busy", "kind", ev.Kind, "direction", ev.Direction)
		return false
	}
}

// release stops the held direction. A dropped stop keeps the direction held and
// retries shortly, so the rover is never left moving.
func (m *Model) release() tea.Cmd {
	m.releaseGen++
	if !m.send(model.InputEvent{Kind: model.InputDirectionUp}) {
		return releaseAfter(releaseRetry, m.releaseGen)
	}
	m.held = ""
	return nil
}
