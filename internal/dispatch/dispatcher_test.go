package dispatch

import (
	"testing"

	"github.com/Crys266/IoT-Project/internal/bus"
	"github.com/Crys266/IoT-Project/internal/model"
	"github.com/Crys266/IoT-Project/internal/parser"
	"github.com/Crys266/IoT-Project/internal/telemetry"
)

type statusLine struct {
	text string
	sev  model.Severity
}

type fakeStatus struct{ lines []statusLine }

func (f *fakeStatus) Report(msg string, sev model.Severity) {
	f.lines = append(f.lines, statusLine{msg, sev})
}

type fakeFrames struct{ frames []string }

func (f *fakeFrames) Present(s string) { f.frames = append(f.frames, s) }

type fakeBus struct{ topics []string }

func (b *fakeBus) Publish(topic string, _ any) { b.topics = append(b.topics, topic) }

type fixture struct {
	d      *Dispatcher
	state  *telemetry.State
	status *fakeStatus
	frames *fakeFrames
	bus    *fakeBus
}

func newFixture() fixture {
	f := fixture{state: telemetry.New(nil), status: &fakeStatus{}, frames: &fakeFrames{}, bus: &fakeBus{}}
	f.d = New(parser.NewJSONCodec(), f.state, f.frames, f.status, f.bus, nil)
	return f
}

func TestSensorUpdateMergesGPS(t *testing.T) {
	f := newFixture()
	f.d.Dispatch([]byte(`{"type":"sensor_update","gps":{"lat":45.1,"lon":9.2}}`))

	gps := f.state.Current().GPS
	if !gps.Available() || *gps.Lat != 45.1 || *gps.Lon != 9.2 {
		t.Fatalf("gps = %+v", gps)
	}
}

func TestConnectionAckReplaces(t *testing.T) {
	f := newFixture()
	f.d.Dispatch([]byte(`{"type":"sensor_update","environmental":{"temperature":30,"humidity":60}}`))
	f.d.Dispatch([]byte(`{"type":"connection_ack","system_status":{"object_detection":true,"gps":{"lat":null,"lon":null},"environmental":{"temperature":null,"humidity":null}}}`))

	cur := f.state.Current()
	if !cur.ObjectDetection || cur.Environmental.Temperature != nil || cur.Environmental.Humidity != nil {
		t.Fatalf("ack did not replace snapshot: %+v", cur)
	}
}

func TestUnknownAndMalformedAreHarmless(t *testing.T) {
	f := newFixture()
	f.d.Dispatch([]byte(`{"type":"sensor_update","gps":{"lat":1,"lon":2}}`))
	before := f.state.Current()

	f.d.Dispatch([]byte(`{"type":"unknown_type_xyz","gps":{"lat":9,"lon":9}}`))
	f.d.Dispatch([]byte(`{"type":`))
	f.d.Dispatch(nil)

	after := f.state.Current()
	if *after.GPS.Lat != *before.GPS.Lat || *after.GPS.Lon != *before.GPS.Lon {
		t.Fatalf("state mutated: %+v", after.GPS)
	}
	if len(f.status.lines) != 0 || len(f.frames.frames) != 0 {
		t.Fatalf("side effects: %+v %+v", f.status.lines, f.frames.frames)
	}
}

func TestVideoFrameForwarded(t *testing.T) {
	f := newFixture()
	f.d.Dispatch([]byte(`{"type":"video_frame","frame":"QUJD"}`))
	if len(f.frames.frames) != 1 || f.frames.frames[0] != "QUJD" {
		t.Fatalf("frames = %v", f.frames.frames)
	}
}

func TestPresentationMessages(t *testing.T) {
	tests := []struct {
		raw  string
		want []statusLine
	}{
		{`{"type":"detection_update","objects_count":0}`, nil},
		{`{"type":"detection_update","objects_count":3}`, []statusLine{{"Detected 3 objects", model.SeverityInfo}}},
		{`{"type":"effect_toggled","effect":"negative","enabled":true}`, []statusLine{{"Negative effect enabled", model.SeveritySuccess}}},
		{`{"type":"effect_toggled","effect":"detection","enabled":false}`, []statusLine{{"Object detection disabled", model.SeveritySuccess}}},
		{`{"type":"save_success","image":{"filename":"img_1.jpg","effects_applied":["negative","detection"]}}`, []statusLine{{"Image saved: img_1.jpg (negative, detection)", model.SeveritySuccess}}},
		{`{"type":"save_success","image":{"filename":"img_2.jpg","effects_applied":[]}}`, []statusLine{{"Image saved: img_2.jpg", model.SeveritySuccess}}},
		{`{"type":"save_error","error":"no frame"}`, []statusLine{{"Save failed: no frame", model.SeverityError}}},
		{`{"type":"image_saved","saved_by":"bob"}`, []statusLine{{"New image saved by bob", model.SeveritySuccess}}},
		{`{"type":"telegram_notification","message":"person detected"}`, []statusLine{{"Telegram notification sent: person detected", model.SeveritySuccess}}},
		{`{"type":"esp32_status","connected":false}`, []statusLine{{"ESP32 Disconnected", model.SeverityWarning}}},
	}
	for _, tt := range tests {
		f := newFixture()
		f.d.Dispatch([]byte(tt.raw))
		if len(f.status.lines) != len(tt.want) {
			t.Errorf("%s: got %+v, want %+v", tt.raw, f.status.lines, tt.want)
			continue
		}
		for i := range tt.want {
			if f.status.lines[i] != tt.want[i] {
				t.Errorf("%s: got %+v, want %+v", tt.raw, f.status.lines[i], tt.want[i])
			}
		}
		if !f.state.Updated().IsZero() {
			t.Errorf("%s: presentation message mutated telemetry", tt.raw)
		}
	}
}

func TestEventsPublished(t *testing.T) {
	f := newFixture()
	f.d.Dispatch([]byte(`{"type":"effect_toggled","effect":"negative","enabled":true}`))
	f.d.Dispatch([]byte(`{"type":"detection_update","objects_count":2}`))
	f.d.Dispatch([]byte(`{"type":"esp32_status","connected":true}`))

	want := []string{bus.TopicEffect, bus.TopicDetection, bus.TopicCamera}
	if len(f.bus.topics) != len(want) {
		t.Fatalf("topics = %v", f.bus.topics)
	}
	for i := range want {
		if f.bus.topics[i] != want[i] {
			t.Fatalf("topics = %v", f.bus.topics)
		}
	}
}
