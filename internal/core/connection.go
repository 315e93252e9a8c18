package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Crys266/IoT-Project/internal/clock"
	"github.com/Crys266/IoT-Project/internal/model"
	"github.com/Crys266/IoT-Project/internal/parser"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrClosed is returned by Connect after Close.
var ErrClosed = errors.New("connection manager closed")

const (
	outboxSize = 64
	writeWait  = 5 * time.Second
)

// ConnOptions configures a ConnectionManager.
type ConnOptions struct {
	Endpoint         string
	Username         string
	Token            string // sent as "Authorization: Bearer <token>"
	Cookie           string
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
	Codec            parser.Codec
	Clock            clock.Clock
	Logger           *slog.Logger

	// OnMessage receives every inbound frame, in arrival order, from one goroutine.
	OnMessage func([]byte)
	// OnEvent receives every state transition.
	OnEvent func(model.ConnectionEvent)
}

// ConnectionManager owns the single websocket to the rover controller. After an
// unexpected drop it reconnects after a fixed delay, with at most one reconnect pending.
type ConnectionManager struct {
	endpoint  string
	username  string
	header    http.Header
	dialer    *websocket.Dialer
	codec     parser.Codec
	clock     clock.Clock
	delay     time.Duration
	logger    *slog.Logger
	onMessage func([]byte)
	onEvent   func(model.ConnectionEvent)

	mu           sync.Mutex
	ctx          context.Context
	state        model.ConnectionState
	conn         *websocket.Conn
	outbox       chan []byte
	writerDone   chan struct{}
	reconnect    clock.Task
	reconnectGen uint64
	closed       bool
	wg           sync.WaitGroup
}

// NewConnectionManager returns a disconnected manager.
func NewConnectionManager(opts ConnOptions) *ConnectionManager {
	if opts.Endpoint == "" {
		opts.Endpoint = model.DefaultEndpoint
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = model.DefaultReconnectDelay * time.Millisecond
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 5 * time.Second
	}
	if opts.Codec == nil {
		opts.Codec = parser.NewJSONCodec()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.OnMessage == nil {
		opts.OnMessage = func([]byte) {}
	}
	if opts.OnEvent == nil {
		opts.OnEvent = func(model.ConnectionEvent) {}
	}

	header := http.Header{}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}
	if opts.Cookie != "" {
		header.Set("Cookie", opts.Cookie)
	}
	return &ConnectionManager{
		endpoint: opts.Endpoint,
		username: opts.Username,
		header:   header,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		codec:     opts.Codec,
		clock:     opts.Clock,
		delay:     opts.ReconnectDelay,
		logger:    opts.Logger,
		onMessage: opts.OnMessage,
		onEvent:   opts.OnEvent,
		state:     model.Disconnected,
	}
}

// State returns the current channel state.
func (m *ConnectionManager) State() model.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ReconnectPending reports whether a reconnect attempt is scheduled.
func (m *ConnectionManager) ReconnectPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnect != nil
}

// Connect makes one connection attempt. A failed attempt schedules a reconnect
// and returns the dial error. Calling Connect while connecting or open is a no-op.
// ctx bounds the attempt and every later automatic reconnect.
func (m *ConnectionManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state == model.Connecting || m.state == model.Open {
		m.mu.Unlock()
		return nil
	}
	m.ctx = ctx
	m.cancelReconnectLocked()
	m.state = model.Connecting
	m.mu.Unlock()

	attempt := uuid.NewString()
	log := m.logger.With("attempt", attempt)
	m.emit(model.ConnectionEvent{State: model.Connecting, Attempt: attempt})
	log.Info("connecting", "endpoint", m.endpoint)

	conn, resp, err := m.dialer.DialContext(ctx, m.endpoint, m.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		m.mu.Lock()
		m.state = model.Disconnected
		if !m.closed {
			m.scheduleReconnectLocked()
		}
		m.mu.Unlock()
		log.Warn("connect failed", "error", err, "retry_in", m.delay)
		m.emit(model.ConnectionEvent{State: model.Disconnected, Attempt: attempt, Err: err})
		return fmt.Errorf("dial %s: %w", m.endpoint, err)
	}

	hello, err := m.codec.EncodeOutbound(model.NewHello(m.username, m.clock.Now()))
	if err != nil {
		_ = conn.Close()
		err = fmt.Errorf("encode hello: %w", err)
		m.mu.Lock()
		m.state = model.Disconnected
		if !m.closed {
			m.scheduleReconnectLocked()
		}
		m.mu.Unlock()
		log.Error("handshake failed", "error", err, "retry_in", m.delay)
		m.emit(model.ConnectionEvent{State: model.Disconnected, Attempt: attempt, Err: err})
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.state = model.Disconnected
		m.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	out := make(chan []byte, outboxSize)
	out <- hello // queued before the state opens, so it is always the first frame
	done := make(chan struct{})
	m.conn = conn
	m.outbox = out
	m.writerDone = done
	m.state = model.Open
	m.wg.Add(2)
	go m.writeLoop(conn, out, done)
	go m.readLoop(conn)
	m.mu.Unlock()

	log.Info("connected", "endpoint", m.endpoint)
	m.emit(model.ConnectionEvent{State: model.Open, Attempt: attempt})
	return nil
}

// Send queues env for the controller. It never blocks and reports false when the
// channel is not open or the outbox is full; nothing is buffered across reconnects.
func (m *ConnectionManager) Send(env model.Outbound) bool {
	b, err := m.codec.EncodeOutbound(env)
	if err != nil {
		m.logger.Error("encode outbound", "type", env.EnvelopeType(), "error", err)
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != model.Open || m.outbox == nil {
		m.logger.Debug("dropping outbound, channel not open", "type", env.EnvelopeType(), "state", m.state)
		return false
	}
	select {
	case m.outbox <- b:
		return true
	default:
		m.logger.Warn("outbox full, dropping", "type", env.EnvelopeType())
		return false
	}
}

// Close flushes frames already queued, shuts the channel with a normal close
// frame and cancels any pending reconnect. No reconnect happens afterwards.
func (m *ConnectionManager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.cancelReconnectLocked()
	conn, done := m.conn, m.writerDone
	if conn != nil {
		m.state = model.Closing
		if m.outbox != nil {
			close(m.outbox)
			m.outbox = nil
		}
	}
	m.mu.Unlock()

	if conn != nil {
		m.emit(model.ConnectionEvent{State: model.Closing})
		select {
		case <-done:
		case <-time.After(writeWait):
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "dashboard closed")
		if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
			m.logger.Debug("close frame", "error", err)
		}
		m.mu.Lock()
		mine := m.conn == conn
		if mine {
			m.conn = nil
			m.state = model.Disconnected
		}
		m.mu.Unlock()
		_ = conn.Close()
		if mine {
			m.emit(model.ConnectionEvent{State: model.Disconnected})
		}
	}
	m.wg.Wait()
}

func (m *ConnectionManager) readLoop(conn *websocket.Conn) {
	defer m.wg.Done()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.drop(conn, err)
			return
		}
		m.onMessage(data)
	}
}

func (m *ConnectionManager) writeLoop(conn *websocket.Conn, out <-chan []byte, done chan<- struct{}) {
	defer m.wg.Done()
	defer close(done)
	mt := websocket.TextMessage
	if m.codec.Binary() {
		mt = websocket.BinaryMessage
	}
	for b := range out {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(mt, b); err != nil {
			m.drop(conn, err)
			return
		}
	}
}

// drop handles the end of conn. Only the first caller for the current
// connection acts; the reader and the writer may both observe the failure.
func (m *ConnectionManager) drop(conn *websocket.Conn, cause error) {
	m.mu.Lock()
	if m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.detachLocked(conn)
	m.state = model.Disconnected
	if !m.closed {
		m.scheduleReconnectLocked()
	}
	m.mu.Unlock()
	_ = conn.Close()

	ev := model.ConnectionEvent{State: model.Disconnected}
	if websocket.IsCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		m.logger.Info("connection closed by controller", "retry_in", m.delay)
	} else {
		ev.Err = cause
		m.logger.Warn("connection lost", "error", cause, "retry_in", m.delay)
	}
	m.emit(ev)
}

func (m *ConnectionManager) detachLocked(conn *websocket.Conn) {
	if m.conn != conn {
		return
	}
	m.conn = nil
	if m.outbox != nil {
		close(m.outbox)
		m.outbox = nil
	}
}

// scheduleReconnectLocked replaces any pending reconnect with a new one.
func (m *ConnectionManager) scheduleReconnectLocked() {
	m.cancelReconnectLocked()
	gen := m.reconnectGen
	m.reconnect = m.clock.AfterFunc(m.delay, func() { m.reconnectNow(gen) })
}

func (m *ConnectionManager) cancelReconnectLocked() {
	m.reconnectGen++
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
}

func (m *ConnectionManager) reconnectNow(gen uint64) {
	m.mu.Lock()
	if gen != m.reconnectGen || m.closed {
		m.mu.Unlock()
		return
	}
	m.reconnect = nil
	ctx := m.ctx
	m.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}
	if err := m.Connect(ctx); err != nil {
		m.logger.Debug("reconnect attempt failed", "error", err)
	}
}

func (m *ConnectionManager) emit(ev model.ConnectionEvent) {
	ev.Endpoint = m.endpoint
	m.onEvent(ev)
}
