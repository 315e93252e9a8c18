package preview

import (
	"encoding/json"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/Crys266/IoT-Project/internal/model"
	"github.com/Crys266/IoT-Project/internal/render"
	"github.com/Crys266/IoT-Project/internal/telemetry"
)

const jpegQuality = 80

// handleFrame serves the latest rendered surface as a JPEG.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	img, info := s.src.Frames.Snapshot()
	if img == nil {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(info.Seq, 10))
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		s.logger.Warn("encode frame", "error", err)
	}
}

// handleStream serves the surface as MJPEG, one part per newly rendered frame.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	mw := multipart.NewWriter(w)
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(s.streamPeriod)
	defer ticker.Stop()
	var last uint64
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
		img, info := s.src.Frames.Snapshot()
		if img == nil || info.Seq == last {
			continue
		}
		last = info.Seq
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type": {"image/jpeg"},
			"X-Frame-Seq":  {strconv.FormatUint(info.Seq, 10)},
		})
		if err != nil {
			return
		}
		if err := jpeg.Encode(part, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			s.logger.Debug("stream client gone", "error", err)
			return
		}
		flusher.Flush()
	}
}

type telemetryResponse struct {
	SystemStatus  model.SystemStatus `json:"system_status"`
	GPS           string             `json:"gps"`
	Environmental string             `json:"environmental"`
	Updated       *time.Time         `json:"updated,omitempty"` // absent until the first ack or sensor update
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	st := s.src.Telemetry.Current()
	resp := telemetryResponse{
		SystemStatus:  st,
		GPS:           telemetry.FormatGPS(st.GPS),
		Environmental: telemetry.FormatEnvironmental(st.Environmental),
	}
	if at := s.src.Telemetry.Updated(); !at.IsZero() {
		resp.Updated = &at
	}
	s.writeJSON(w, resp)
}

type statusResponse struct {
	Status struct {
		Text     string         `json:"text"`
		Severity model.Severity `json:"severity"`
		Dimmed   bool           `json:"dimmed"`
		Idle     bool           `json:"idle"`
	} `json:"status"`
	Connection string       `json:"connection"`
	Frames     render.Stats `json:"frames"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var resp statusResponse
	line := s.src.Status.Current()
	resp.Status.Text = line.Text
	resp.Status.Severity = line.Severity
	resp.Status.Dimmed = line.Dimmed
	resp.Status.Idle = line.Idle
	resp.Connection = s.src.Channel.State().String()
	resp.Frames = s.src.Frames.Stats()
	s.writeJSON(w, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write json", "error", err)
	}
}
