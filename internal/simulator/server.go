// Package simulator implements a stand-in rover controller: a websocket endpoint that
// acknowledges dashboards, streams generated video frames and sensor readings, and
// answers effect and save requests the way the real controller does.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/Crys266/IoT-Project/internal/model"
	"github.com/Crys266/IoT-Project/internal/parser"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Options configures a Server.
type Options struct {
	Addr           string
	Codec          parser.Codec
	FrameInterval  time.Duration // 0 disables the video stream
	SensorInterval time.Duration // 0 disables sensor updates
	FrameWidth     int
	FrameHeight    int
	Logger         *slog.Logger
}

// Server is the simulated controller.
type Server struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	clients  map[*websocket.Conn]string // conn -> username from web_hello
	status   model.SystemStatus
	received []model.Outbound
	saved    int
	frame    int
	rng      *rand.Rand
	server   *http.Server
}

// New constructs a simulator. The rover starts at a fixed position with effects off.
func New(opts Options) *Server {
	if opts.Codec == nil {
		opts.Codec = parser.NewJSONCodec()
	}
	if opts.FrameWidth <= 0 || opts.FrameHeight <= 0 {
		opts.FrameWidth, opts.FrameHeight = 160, 120
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		opts:    opts,
		logger:  opts.Logger,
		clients: map[*websocket.Conn]string{},
		status: model.SystemStatus{
			GPS:           model.GPSFix{Lat: model.Float(45.4642), Lon: model.Float(9.19)},
			Environmental: model.Environmental{Temperature: model.Float(21.0), Humidity: model.Float(48.0)},
		},
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Handler returns the websocket endpoint. Dashboards connect to its root path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)
	return mux
}

// Start launches the HTTP server and blocks until Stop or a listen failure.
func (s *Server) Start() error {
	s.mu.Lock()
	s.server = &http.Server{Addr: s.opts.Addr, Handler: s.Handler()}
	srv := s.server
	s.mu.Unlock()
	s.logger.Info("simulator listening", "addr", s.opts.Addr, "wire_format", s.opts.Codec.Name())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("simulator listen: %w", err)
	}
	return nil
}

// Stop shuts the HTTP server down and disconnects every dashboard.
func (s *Server) Stop() {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv != nil {
		_ = srv.Close()
	}
	s.DropClients()
}

// Run streams frames and sensor updates until ctx is done.
func (s *Server) Run(ctx context.Context) {
	var frameC, sensorC <-chan time.Time
	if s.opts.FrameInterval > 0 {
		t := time.NewTicker(s.opts.FrameInterval)
		defer t.Stop()
		frameC = t.C
	}
	if s.opts.SensorInterval > 0 {
		t := time.NewTicker(s.opts.SensorInterval)
		defer t.Stop()
		sensorC = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-frameC:
			s.PushFrame()
		case <-sensorC:
			s.PushSensors()
		}
	}
}

// SetGPS replaces the simulated position, e.g. with fixes from a real receiver.
func (s *Server) SetGPS(fix model.GPSFix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.GPS = fix
}

// Clients returns the number of connected dashboards.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Received returns every envelope received from dashboards, in arrival order.
func (s *Server) Received() []model.Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Outbound(nil), s.received...)
}

// DropClients closes every dashboard connection without a close handshake.
func (s *Server) DropClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if err := c.Close(); err != nil {
			s.logger.Warn("close client", "error", err)
		}
		delete(s.clients, c)
	}
}

// Broadcast sends env to every connected dashboard.
func (s *Server) Broadcast(env model.Inbound) {
	b, err := s.opts.Codec.EncodeInbound(env)
	if err != nil {
		s.logger.Error("encode broadcast", "type", env.EnvelopeType(), "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		s.writeLocked(c, b)
	}
}

// PushFrame broadcasts one generated video frame.
func (s *Server) PushFrame() {
	s.mu.Lock()
	s.frame++
	n, neg := s.frame, s.status.NegativeEffect
	s.mu.Unlock()

	frame, err := generateFrame(s.opts.FrameWidth, s.opts.FrameHeight, n, neg)
	if err != nil {
		s.logger.Error("generate frame", "error", err)
		return
	}
	s.Broadcast(model.VideoFrame{Envelope: model.Envelope{Type: model.TypeVideoFrame}, Frame: frame})

	s.mu.Lock()
	detect := s.status.ObjectDetection
	count := s.rng.Intn(4)
	s.mu.Unlock()
	if detect && n%10 == 0 {
		s.Broadcast(model.DetectionUpdate{Envelope: model.Envelope{Type: model.TypeDetectionUpdate}, ObjectsCount: count})
	}
}

// PushSensors broadcasts a sensor_update with a slightly drifted reading.
func (s *Server) PushSensors() {
	s.mu.Lock()
	env := s.status.Environmental
	if env.Temperature != nil {
		env.Temperature = model.Float(*env.Temperature + (s.rng.Float64()-0.5)*0.4)
	}
	if env.Humidity != nil {
		env.Humidity = model.Float(*env.Humidity + (s.rng.Float64()-0.5)*1.0)
	}
	s.status.Environmental = env
	snap := s.status.Clone()
	s.mu.Unlock()

	s.Broadcast(model.SensorUpdate{
		Envelope:      model.Envelope{Type: model.TypeSensorUpdate},
		GPS:           &snap.GPS,
		Environmental: &snap.Environmental,
	})
}

// handleWS upgrades the request and serves one dashboard until it disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.clients[conn] = ""
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		if err := conn.Close(); err != nil {
			s.logger.Debug("close websocket", "error", err)
		}
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := s.opts.Codec.DecodeOutbound(data)
		if err != nil {
			s.logger.Warn("bad envelope from dashboard", "error", err)
			continue
		}
		s.handle(conn, env)
	}
}

func (s *Server) handle(conn *websocket.Conn, env model.Outbound) {
	s.mu.Lock()
	s.received = append(s.received, env)
	s.mu.Unlock()

	switch m := env.(type) {
	case model.Hello:
		s.mu.Lock()
		if _, ok := s.clients[conn]; ok {
			s.clients[conn] = m.Username
		}
		ack := model.ConnectionAck{Envelope: model.Envelope{Type: model.TypeConnectionAck}, SystemStatus: s.status.Clone()}
		s.mu.Unlock()
		s.logger.Info("dashboard connected", "username", m.Username)
		s.sendTo(conn, ack)
	case model.Command:
		s.logger.Debug("command", "direction", m.Command, "speed", m.Speed)
	case model.ControlCommand:
		d, level, err := parser.ParseSpeedCommand(m.Command)
		if err != nil {
			s.logger.Warn("bad control command", "command", m.Command, "error", err)
			return
		}
		s.logger.Debug("speed", "direction", d, "level", level)
	case model.ToggleEffect:
		s.mu.Lock()
		var enabled bool
		switch m.Effect {
		case model.EffectNegative:
			s.status.NegativeEffect = !s.status.NegativeEffect
			enabled = s.status.NegativeEffect
		case model.EffectDetection:
			s.status.ObjectDetection = !s.status.ObjectDetection
			enabled = s.status.ObjectDetection
		}
		s.mu.Unlock()
		s.Broadcast(model.EffectToggled{Envelope: model.Envelope{Type: model.TypeEffectToggled}, Effect: m.Effect, Enabled: enabled})
	case model.SaveImage:
		s.mu.Lock()
		s.saved++
		img := model.SavedImage{
			ID:       fmt.Sprintf("%d", s.saved),
			Filename: fmt.Sprintf("capture_%03d.jpg", s.saved),
		}
		if s.status.NegativeEffect {
			img.EffectsApplied = append(img.EffectsApplied, string(model.EffectNegative))
		}
		if s.status.ObjectDetection {
			img.EffectsApplied = append(img.EffectsApplied, string(model.EffectDetection))
		}
		user := s.clients[conn]
		s.mu.Unlock()
		s.sendTo(conn, model.SaveSuccess{Envelope: model.Envelope{Type: model.TypeSaveSuccess}, Image: img})
		s.Broadcast(model.ImageSaved{Envelope: model.Envelope{Type: model.TypeImageSaved}, SavedBy: user})
	}
}

func (s *Server) sendTo(conn *websocket.Conn, env model.Inbound) {
	b, err := s.opts.Codec.EncodeInbound(env)
	if err != nil {
		s.logger.Error("encode reply", "type", env.EnvelopeType(), "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[conn]; ok {
		s.writeLocked(conn, b)
	}
}

// writeLocked writes one frame; callers hold s.mu, which serializes writers.
func (s *Server) writeLocked(c *websocket.Conn, b []byte) {
	mt := websocket.TextMessage
	if s.opts.Codec.Binary() {
		mt = websocket.BinaryMessage
	}
	if err := c.WriteMessage(mt, b); err != nil {
		s.logger.Debug("write to dashboard failed", "error", err)
	}
}
