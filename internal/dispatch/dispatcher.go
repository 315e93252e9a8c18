// Package dispatch routes inbound controller envelopes to the component that owns them.
package dispatch

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Crys266/IoT-Project/internal/bus"
	"github.com/Crys266/IoT-Project/internal/model"
	"github.com/Crys266/IoT-Project/internal/parser"
)

// Telemetry is the cache written by the dispatcher.
type Telemetry interface {
	Replace(model.SystemStatus)
	Merge(model.SensorUpdate)
}

// FramePresenter receives encoded video frames.
type FramePresenter interface {
	Present(encoded string)
}

// Reporter shows status lines.
type Reporter interface {
	Report(message string, sev model.Severity)
}

// Publisher receives presentation events (effect flags, detections, camera link)
// for observers such as the terminal UI. It may be nil.
type Publisher interface {
	Publish(topic string, msg any)
}

// Dispatcher classifies and routes inbound envelopes. It must be fed from a single
// goroutine so envelopes are handled in arrival order.
type Dispatcher struct {
	codec     parser.Codec
	telemetry Telemetry
	frames    FramePresenter
	status    Reporter
	events    Publisher
	logger    *slog.Logger
}

// New returns a Dispatcher. events may be nil.
func New(codec parser.Codec, t Telemetry, f FramePresenter, r Reporter, events Publisher, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{codec: codec, telemetry: t, frames: f, status: r, events: events, logger: logger}
}

// Dispatch decodes raw and routes it. Malformed payloads are logged and dropped.
func (d *Dispatcher) Dispatch(raw []byte) {
	env, err := d.codec.DecodeInbound(raw)
	if err != nil {
		d.logger.Warn("discarding malformed envelope", "error", err, "bytes", len(raw))
		return
	}
	d.Route(env)
}

// Route handles one decoded envelope.
func (d *Dispatcher) Route(env model.Inbound) {
	switch m := env.(type) {
	case model.ConnectionAck:
		d.telemetry.Replace(m.SystemStatus)
		d.publish(bus.TopicTelemetry, m.SystemStatus)
		d.logger.Info("connection acknowledged")
	case model.VideoFrame:
		d.frames.Present(m.Frame)
	case model.SensorUpdate:
		d.telemetry.Merge(m)
		d.publish(bus.TopicTelemetry, m)
	case model.DetectionUpdate:
		d.publish(bus.TopicDetection, model.DetectionSummary{ObjectsCount: m.ObjectsCount})
		if m.ObjectsCount > 0 {
			d.status.Report(fmt.Sprintf("Detected %d objects", m.ObjectsCount), model.SeverityInfo)
		}
	case model.EffectToggled:
		d.publish(bus.TopicEffect, m)
		d.status.Report(effectMessage(m), model.SeveritySuccess)
	case model.SaveSuccess:
		d.status.Report(saveMessage(m.Image), model.SeveritySuccess)
	case model.SaveError:
		d.status.Report("Save failed: "+m.Reason, model.SeverityError)
	case model.ImageSaved:
		d.status.Report("New image saved by "+m.SavedBy, model.SeveritySuccess)
	case model.TelegramNotification:
		d.status.Report("Telegram notification sent: "+m.Message, model.SeveritySuccess)
	case model.ESP32Status:
		d.publish(bus.TopicCamera, m.Connected)
		if m.Connected {
			d.status.Report("ESP32 Connected", model.SeveritySuccess)
		} else {
			d.status.Report("ESP32 Disconnected", model.SeverityWarning)
		}
	case model.Unknown:
		d.logger.Debug("ignoring unknown envelope", "type", m.EnvelopeType())
	default:
		// a new model.Inbound implementation without a case here
		d.logger.Error("unhandled envelope", "type", fmt.Sprintf("%T", env))
	}
}

func (d *Dispatcher) publish(topic string, msg any) {
	if d.events != nil {
		d.events.Publish(topic, msg)
	}
}

func effectMessage(m model.EffectToggled) string {
	name := "Negative effect"
	if m.Effect == model.EffectDetection {
		name = "Object detection"
	}
	state := "disabled"
	if m.Enabled {
		state = "enabled"
	}
	return name + " " + state
}

func saveMessage(img model.SavedImage) string {
	msg := "Image saved: " + img.Filename
	if len(img.EffectsApplied) > 0 {
		msg += " (" + strings.Join(img.EffectsApplied, ", ") + ")"
	}
	return msg
}
