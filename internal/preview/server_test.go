package preview

import (
	"bufio"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Crys266/IoT-Project/internal/model"
	"github.com/Crys266/IoT-Project/internal/render"
	"github.com/Crys266/IoT-Project/internal/status"
)

type fakeFrames struct {
	mu   sync.Mutex
	img  *image.RGBA
	info render.FrameInfo
}

func (f *fakeFrames) Snapshot() (*image.RGBA, render.FrameInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.img, f.info
}

func (f *fakeFrames) Stats() render.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return render.Stats{Received: f.info.Seq, Rendered: f.info.Seq}
}

func (f *fakeFrames) put(seq uint64) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: 40, B: 90, A: 255})
		}
	}
	f.mu.Lock()
	f.img, f.info = img, render.FrameInfo{Seq: seq, SourceSize: image.Pt(32, 24)}
	f.mu.Unlock()
}

type fakeTelemetry struct {
	status  model.SystemStatus
	updated time.Time
}

func (f fakeTelemetry) Current() model.SystemStatus { return f.status }
func (f fakeTelemetry) Updated() time.Time          { return f.updated }

type fakeStatus status.Line

func (f fakeStatus) Current() status.Line { return status.Line(f) }

type fakeChannel model.ConnectionState

func (f fakeChannel) State() model.ConnectionState { return model.ConnectionState(f) }

var telemetryStamp = time.Date(2024, 1, 1, 12, 0, 5, 0, time.UTC)

func newTestServer(t *testing.T, frames *fakeFrames) *httptest.Server {
	t.Helper()
	src := Sources{
		Frames: frames,
		Telemetry: fakeTelemetry{
			status: model.SystemStatus{
				NegativeEffect: true,
				GPS:            model.GPSFix{Lat: model.Float(45.4642), Lon: model.Float(9.19)},
			},
			updated: telemetryStamp,
		},
		Status:  fakeStatus(status.Line{Text: "Connected to IoT system", Severity: model.SeveritySuccess}),
		Channel: fakeChannel(model.Open),
	}
	s := New(src, nil)
	s.streamPeriod = 5 * time.Millisecond
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestFrameUnavailableBeforeFirstRender(t *testing.T) {
	ts := newTestServer(t, &fakeFrames{})
	resp, err := http.Get(ts.URL + "/frame.jpg")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("missing request id")
	}
}

func TestFrameServesJPEG(t *testing.T) {
	frames := &fakeFrames{}
	frames.put(7)
	ts := newTestServer(t, frames)

	resp, err := http.Get(ts.URL + "/frame.jpg")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Frame-Seq"); got != "7" {
		t.Fatalf("seq header = %q", got)
	}
	img, err := jpeg.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 24 {
		t.Fatalf("bounds = %v", img.Bounds())
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	ts := newTestServer(t, &fakeFrames{})
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("request id = %q", got)
	}
}

func TestTelemetryAndStatusJSON(t *testing.T) {
	frames := &fakeFrames{}
	frames.put(3)
	ts := newTestServer(t, frames)

	resp, err := http.Get(ts.URL + "/api/telemetry")
	if err != nil {
		t.Fatal(err)
	}
	var tel telemetryResponse
	err = json.NewDecoder(resp.Body).Decode(&tel)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if !tel.SystemStatus.NegativeEffect || !strings.Contains(tel.GPS, "45.464200") {
		t.Fatalf("unexpected telemetry %+v", tel)
	}
	if tel.Updated == nil || !tel.Updated.Equal(telemetryStamp) {
		t.Fatalf("updated = %v, want %v", tel.Updated, telemetryStamp)
	}

	resp, err = http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	var st statusResponse
	err = json.NewDecoder(resp.Body).Decode(&st)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if st.Connection != "open" || st.Status.Severity != model.SeveritySuccess || st.Frames.Rendered != 3 {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestPostIsRejected(t *testing.T) {
	ts := newTestServer(t, &fakeFrames{})
	resp, err := http.Post(ts.URL+"/api/status", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestStreamSendsNewFrames(t *testing.T) {
	frames := &fakeFrames{}
	frames.put(1)
	ts := newTestServer(t, frames)

	resp, err := http.Get(ts.URL + "/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" {
		t.Fatalf("content type %q: %v", resp.Header.Get("Content-Type"), err)
	}
	mr := multipart.NewReader(bufio.NewReader(resp.Body), params["boundary"])

	part, err := mr.NextPart()
	if err != nil {
		t.Fatal(err)
	}
	if part.Header.Get("X-Frame-Seq") != "1" {
		t.Fatalf("first part seq %q", part.Header.Get("X-Frame-Seq"))
	}
	if _, err := jpeg.Decode(part); err != nil {
		t.Fatalf("decode part: %v", err)
	}

	frames.put(2)
	part, err = mr.NextPart()
	if err != nil {
		t.Fatal(err)
	}
	if part.Header.Get("X-Frame-Seq") != "2" {
		t.Fatalf("second part seq %q", part.Header.Get("X-Frame-Seq"))
	}
}
