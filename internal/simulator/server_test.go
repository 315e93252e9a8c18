package simulator

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Crys266/IoT-Project/internal/model"
	"github.com/Crys266/IoT-Project/internal/parser"
	"github.com/gorilla/websocket"
)

type dashboard struct {
	t     *testing.T
	conn  *websocket.Conn
	codec parser.Codec
}

func dial(t *testing.T, s *Server) *dashboard {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &dashboard{t: t, conn: conn, codec: s.opts.Codec}
}

func (d *dashboard) send(env model.Outbound) {
	d.t.Helper()
	b, err := d.codec.EncodeOutbound(env)
	if err != nil {
		d.t.Fatalf("encode: %v", err)
	}
	mt := websocket.TextMessage
	if d.codec.Binary() {
		mt = websocket.BinaryMessage
	}
	if err := d.conn.WriteMessage(mt, b); err != nil {
		d.t.Fatalf("write: %v", err)
	}
}

func (d *dashboard) next() model.Inbound {
	d.t.Helper()
	_ = d.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	mt, b, err := d.conn.ReadMessage()
	if err != nil {
		d.t.Fatalf("read: %v", err)
	}
	if d.codec.Binary() && mt != websocket.BinaryMessage {
		d.t.Fatalf("expected binary frame, got %d", mt)
	}
	env, err := d.codec.DecodeInbound(b)
	if err != nil {
		d.t.Fatalf("decode: %v", err)
	}
	return env
}

func TestHelloIsAcknowledgedWithSnapshot(t *testing.T) {
	for _, codec := range []parser.Codec{parser.NewJSONCodec(), parser.NewMsgpackCodec()} {
		t.Run(codec.Name(), func(t *testing.T) {
			s := New(Options{Codec: codec})
			d := dial(t, s)
			d.send(model.NewHello("ana", time.Now()))

			ack, ok := d.next().(model.ConnectionAck)
			if !ok {
				t.Fatal("expected connection_ack")
			}
			if !ack.SystemStatus.GPS.Available() || ack.SystemStatus.NegativeEffect {
				t.Fatalf("ack = %+v", ack.SystemStatus)
			}
			if got := s.Received(); len(got) != 1 || got[0].(model.Hello).Username != "ana" {
				t.Fatalf("received = %+v", got)
			}
		})
	}
}

func TestToggleAndSave(t *testing.T) {
	s := New(Options{})
	d := dial(t, s)
	d.send(model.NewHello("ana", time.Now()))
	d.next()

	d.send(model.NewToggleEffect(model.EffectDetection))
	tog, ok := d.next().(model.EffectToggled)
	if !ok || tog.Effect != model.EffectDetection || !tog.Enabled {
		t.Fatalf("toggle reply = %+v", tog)
	}

	d.send(model.NewSaveImage())
	saved, ok := d.next().(model.SaveSuccess)
	if !ok || saved.Image.Filename != "capture_001.jpg" {
		t.Fatalf("save reply = %+v", saved)
	}
	if len(saved.Image.EffectsApplied) != 1 || saved.Image.EffectsApplied[0] != "detection" {
		t.Fatalf("effects = %v", saved.Image.EffectsApplied)
	}
	by, ok := d.next().(model.ImageSaved)
	if !ok || by.SavedBy != "ana" {
		t.Fatalf("broadcast = %+v", by)
	}
}

func TestPushFrameAndSensors(t *testing.T) {
	s := New(Options{FrameWidth: 32, FrameHeight: 24})
	d := dial(t, s)
	d.send(model.NewHello("ana", time.Now()))
	d.next()

	s.PushFrame()
	vf, ok := d.next().(model.VideoFrame)
	if !ok || vf.Frame == "" {
		t.Fatalf("frame = %+v", vf)
	}

	s.SetGPS(model.GPSFix{})
	s.PushSensors()
	su, ok := d.next().(model.SensorUpdate)
	if !ok || su.GPS == nil || su.GPS.Available() || su.Environmental == nil || su.Environmental.Temperature == nil {
		t.Fatalf("sensor update = %+v", su)
	}
}

func TestDropClients(t *testing.T) {
	s := New(Options{})
	d := dial(t, s)
	d.send(model.NewHello("ana", time.Now()))
	d.next()
	if s.Clients() != 1 {
		t.Fatalf("clients = %d", s.Clients())
	}
	s.DropClients()
	_ = d.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := d.conn.ReadMessage(); err == nil {
		t.Fatal("expected read error after drop")
	}
}
