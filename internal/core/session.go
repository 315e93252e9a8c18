// Package core contains the runtime orchestration of the dashboard: the controller
// channel and the Session that wires every component around it.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/Crys266/IoT-Project/internal/bus"
	"github.com/Crys266/IoT-Project/internal/clock"
	"github.com/Crys266/IoT-Project/internal/collab"
	"github.com/Crys266/IoT-Project/internal/control"
	"github.com/Crys266/IoT-Project/internal/dispatch"
	"github.com/Crys266/IoT-Project/internal/model"
	"github.com/Crys266/IoT-Project/internal/parser"
	"github.com/Crys266/IoT-Project/internal/render"
	"github.com/Crys266/IoT-Project/internal/status"
	"github.com/Crys266/IoT-Project/internal/telemetry"
	"github.com/Crys266/IoT-Project/internal/util"
)

// ErrAlreadyRunning is returned by a second concurrent Run.
var ErrAlreadyRunning = errors.New("session already running")

// Status texts for channel transitions.
const (
	textConnected    = "Connected to IoT system"
	textDisconnected = "Disconnected from IoT system"
	textChannelError = "WebSocket connection error"
	textSaving       = "Saving current frame..."
)

// SessionOptions carries the injectable runtime pieces. Zero values use the real ones.
type SessionOptions struct {
	Clock clock.Clock
	Logs  *util.LogManager
}

// Session is one dashboard connected to one rover controller. It owns every
// component explicitly; nothing is shared through package state.
type Session struct {
	cfg    model.Config
	clock  clock.Clock
	logs   *util.LogManager
	logger *slog.Logger

	Bus        *bus.PubSubBus
	Telemetry  *telemetry.State
	Frames     *render.Renderer
	Status     *status.Reporter
	Control    *control.Controller
	Dispatcher *dispatch.Dispatcher
	Conn       *ConnectionManager
	Gallery    *collab.Service // nil when no collaborator is configured

	cache *collab.Cache

	started   bool
	startLock sync.Mutex
	wg        sync.WaitGroup
}

// NewSession builds every component from cfg. Nothing touches the network until Run.
func NewSession(cfg model.Config, opts SessionOptions) (*Session, error) {
	codec, err := parser.ForFormat(cfg.Global.WireFormat)
	if err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	s := &Session{cfg: cfg, clock: opts.Clock, logs: opts.Logs}
	s.logger = s.componentLogger("session")

	s.Bus = bus.New(s.componentLogger("bus"))
	s.Telemetry = telemetry.New(s.clock)

	s.Status = status.NewReporter(status.Options{
		IdleText:    cfg.Status.IdleText,
		DimAfter:    cfg.Status.DimAfter(),
		RevertAfter: cfg.Status.RevertAfter(),
		Clock:       s.clock,
		Logger:      s.componentLogger("status"),
	})
	s.Status.AddSink(func(l status.Line) { s.Bus.Publish(bus.TopicStatus, l) })
	if cfg.Status.DesktopNotify {
		s.Status.AddSink(status.NewDesktopNotifier("Rover dashboard", s.componentLogger("notify")).Sink())
	}

	s.Frames = render.New(cfg.Render.Width, cfg.Render.Height, s.componentLogger("render"))
	s.Frames.OnFrame(func(fi render.FrameInfo) { s.Bus.Publish(bus.TopicFrame, fi) })

	s.Dispatcher = dispatch.New(codec, s.Telemetry, s.Frames, s.Status, s.Bus, s.componentLogger("dispatch"))

	s.Conn = NewConnectionManager(ConnOptions{
		Endpoint:         cfg.Connection.Endpoint,
		Username:         cfg.Global.Username,
		Token:            cfg.Connection.Token,
		Cookie:           cfg.Connection.SessionCookie,
		ReconnectDelay:   cfg.Connection.ReconnectDelay(),
		HandshakeTimeout: cfg.Connection.HandshakeTimeout(),
		Codec:            codec,
		Clock:            s.clock,
		Logger:           s.componentLogger("conn"),
		OnMessage:        s.Dispatcher.Dispatch,
		OnEvent:          s.onConnectionEvent,
	})

	s.Control = control.New(s.Conn, control.Options{
		RepeatInterval: cfg.Control.RepeatInterval(),
		SpeedMin:       cfg.Control.SpeedMin,
		SpeedMax:       cfg.Control.SpeedMax,
		Clock:          s.clock,
		Logger:         s.componentLogger("control"),
	})
	s.Control.SetInitialSpeed(cfg.Control.SpeedInitial)

	if cfg.Collab.BaseURL != "" {
		s.Gallery = s.newGallery(cfg.Collab)
	}
	return s, nil
}

func (s *Session) newGallery(cfg model.CollabConfig) *collab.Service {
	log := s.componentLogger("collab")
	if cfg.CachePath != "" {
		cache, err := collab.OpenCache(cfg.CachePath)
		if err != nil {
			log.Warn("gallery cache disabled", "error", err)
		} else {
			s.cache = cache
		}
	}
	token := cfg.Token
	if token == "" {
		token = s.cfg.Connection.Token
	}
	client := collab.NewClient(cfg.BaseURL, token, &http.Client{Timeout: cfg.Timeout()}, log)
	return collab.NewService(client, s.cache, s.Status, s.Bus, s.clock, log)
}

func (s *Session) componentLogger(name string) *slog.Logger {
	if s.logs != nil {
		return s.logs.Logger(name)
	}
	return slog.Default().With("component", name)
}

// Config returns the configuration the session was built from.
func (s *Session) Config() model.Config { return s.cfg }

// Run connects and consumes input events until ctx is done. A closed events
// channel only ends input; the session keeps running until ctx ends.
func (s *Session) Run(ctx context.Context, events <-chan model.InputEvent) error {
	s.startLock.Lock()
	if s.started {
		s.startLock.Unlock()
		return ErrAlreadyRunning
	}
	s.started = true
	s.startLock.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.Frames.Run(ctx)
	}()

	if err := s.Conn.Connect(ctx); err != nil {
		s.logger.Warn("initial connect failed", "error", err, "retry_in", s.cfg.Connection.ReconnectDelay())
	}

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.HandleInput(ev)
		}
	}
}

// shutdown stops the rover if it is moving and closes the channel.
func (s *Session) shutdown() {
	if _, moving := s.Control.Active(); moving {
		s.Control.OnDirectionStop()
	}
	s.Control.Close()
	s.Conn.Close()
	s.wg.Wait()
	s.logger.Info("session stopped")
}

// HandleInput applies one operator action.
func (s *Session) HandleInput(ev model.InputEvent) {
	switch ev.Kind {
	case model.InputDirectionDown:
		prev, _ := s.Control.Active()
		if err := s.Control.OnDirectionStart(ev.Direction); err != nil {
			s.logger.Warn("ignoring input", "source", ev.Source, "error", err)
			return
		}
		if prev != ev.Direction {
			s.Status.Report("Command: "+string(ev.Direction), model.SeverityInfo)
		}
	case model.InputDirectionUp:
		s.Control.OnDirectionStop()
		s.Status.Report("STOP", model.SeverityWarning)
	case model.InputSpeedSet:
		s.Control.OnSpeedChange(ev.Speed)
	case model.InputSpeedStep:
		s.Control.StepSpeed(ev.Speed)
	case model.InputToggleEffect:
		s.ToggleEffect(ev.Effect)
	case model.InputSaveFrame:
		s.SaveImage()
	default:
		s.logger.Warn("unknown input", "kind", ev.Kind, "source", ev.Source)
		return
	}
	s.Bus.Publish(bus.TopicControl, s.Control.Snapshot())
}

// ToggleEffect asks the controller to flip effect. It reports false when the
// channel is not open.
func (s *Session) ToggleEffect(effect model.Effect) bool {
	ok := s.Conn.Send(model.NewToggleEffect(effect))
	if !ok {
		s.logger.Debug("toggle effect dropped", "effect", effect)
	}
	return ok
}

// SaveImage asks the controller to store the current frame.
func (s *Session) SaveImage() bool {
	if !s.Conn.Send(model.NewSaveImage()) {
		s.logger.Debug("save image dropped")
		return false
	}
	s.Status.Report(textSaving, model.SeverityInfo)
	return true
}

func (s *Session) onConnectionEvent(ev model.ConnectionEvent) {
	switch ev.State {
	case model.Open:
		s.Status.Report(textConnected, model.SeveritySuccess)
	case model.Disconnected:
		if ev.Err != nil {
			s.Status.Report(textChannelError, model.SeverityError)
		}
		s.Status.Report(textDisconnected, model.SeverityWarning)
	}
	s.Bus.Publish(bus.TopicConnection, ev)
}

// Close releases what Run does not: the gallery cache and the event bus.
func (s *Session) Close() error {
	s.Bus.Close()
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			return fmt.Errorf("close gallery cache: %w", err)
		}
	}
	return nil
}
