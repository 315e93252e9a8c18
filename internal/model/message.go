// Package model defines shared message structures exchanged with the rover controller.
package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Envelope types sent by the dashboard.
const (
	TypeHello          = "web_hello"
	TypeCommand        = "command"
	TypeControlCommand = "control_command"
	TypeToggleEffect   = "toggle_effect"
	TypeSaveImage      = "save_image"
)

// Envelope types sent by the controller.
const (
	TypeConnectionAck        = "connection_ack"
	TypeVideoFrame           = "video_frame"
	TypeESP32Status          = "esp32_status"
	TypeSensorUpdate         = "sensor_update"
	TypeDetectionUpdate      = "detection_update"
	TypeEffectToggled        = "effect_toggled"
	TypeSaveSuccess          = "save_success"
	TypeSaveError            = "save_error"
	TypeImageSaved           = "image_saved"
	TypeTelegramNotification = "telegram_notification"
)

// Direction is a movement command. Stop is the sentinel sent on release.
type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
	Left     Direction = "left"
	Right    Direction = "right"
	Stop     Direction = "stop"
)

// Valid reports whether d is one of the four movement directions.
func (d Direction) Valid() bool {
	switch d {
	case Forward, Backward, Left, Right:
		return true
	}
	return false
}

// ParseDirection accepts the four movement directions and stop.
func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	if d.Valid() || d == Stop {
		return d, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Effect is a camera-side image effect.
type Effect string

const (
	EffectNegative  Effect = "negative"
	EffectDetection Effect = "detection"
)

// ParseEffect accepts the effect names used on the wire.
func ParseEffect(s string) (Effect, error) {
	switch Effect(s) {
	case EffectNegative, EffectDetection:
		return Effect(s), nil
	}
	return "", fmt.Errorf("unknown effect %q", s)
}

// Envelope is the header shared by every wire message.
type Envelope struct {
	Type string `json:"type"`
}

// EnvelopeType returns the wire tag.
func (e Envelope) EnvelopeType() string { return e.Type }

// Outbound is a message the dashboard sends.
type Outbound interface {
	EnvelopeType() string
	outbound()
}

// Inbound is a message the controller sends. The set of implementations is closed.
type Inbound interface {
	EnvelopeType() string
	inbound()
}

// Hello announces the operator right after the channel opens.
type Hello struct {
	Envelope
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"`
}

// Command is a direction heartbeat or a stop.
type Command struct {
	Envelope
	Command   Direction `json:"command"`
	Timestamp int64     `json:"timestamp"`
	Speed     *int      `json:"speed,omitempty"`
}

// ControlCommand carries "<direction>:speed:<level>".
type ControlCommand struct {
	Envelope
	Command string `json:"command"`
}

// ToggleEffect asks the controller to flip a camera effect.
type ToggleEffect struct {
	Envelope
	Effect Effect `json:"effect"`
}

// SaveImage asks the controller to store the current frame.
type SaveImage struct {
	Envelope
}

func (Hello) outbound()          {}
func (Command) outbound()        {}
func (ControlCommand) outbound() {}
func (ToggleEffect) outbound()   {}
func (SaveImage) outbound()      {}

// NewHello builds a web_hello envelope.
func NewHello(username string, now time.Time) Hello {
	return Hello{Envelope: Envelope{Type: TypeHello}, Username: username, Timestamp: now.UnixMilli()}
}

// NewCommand builds a command envelope. speed may be nil.
func NewCommand(d Direction, speed *int, now time.Time) Command {
	return Command{Envelope: Envelope{Type: TypeCommand}, Command: d, Timestamp: now.UnixMilli(), Speed: speed}
}

// NewControlCommand builds a control_command envelope from an already formatted command.
func NewControlCommand(cmd string) ControlCommand {
	return ControlCommand{Envelope: Envelope{Type: TypeControlCommand}, Command: cmd}
}

// NewToggleEffect builds a toggle_effect envelope.
func NewToggleEffect(e Effect) ToggleEffect {
	return ToggleEffect{Envelope: Envelope{Type: TypeToggleEffect}, Effect: e}
}

// NewSaveImage builds a save_image envelope.
func NewSaveImage() SaveImage {
	return SaveImage{Envelope: Envelope{Type: TypeSaveImage}}
}

// ConnectionAck carries the full system snapshot after the hello.
type ConnectionAck struct {
	Envelope
	SystemStatus SystemStatus `json:"system_status"`
}

// VideoFrame carries one base64-encoded still image.
type VideoFrame struct {
	Envelope
	Frame string `json:"frame"`
}

// ESP32Status reports the camera board link.
type ESP32Status struct {
	Envelope
	Connected bool `json:"connected"`
}

// SensorUpdate is a partial telemetry update; nil parts are absent.
type SensorUpdate struct {
	Envelope
	GPS           *GPSFix        `json:"gps,omitempty"`
	Environmental *Environmental `json:"environmental,omitempty"`
}

// DetectionUpdate reports the objects found in the latest frame.
type DetectionUpdate struct {
	Envelope
	ObjectsCount int `json:"objects_count"`
}

// EffectToggled confirms an effect change.
type EffectToggled struct {
	Envelope
	Effect  Effect `json:"effect"`
	Enabled bool   `json:"enabled"`
}

// SavedImage describes a frame stored by the controller.
type SavedImage struct {
	ID             string     `json:"id,omitempty"`
	Filename       string     `json:"filename"`
	EffectsApplied EffectList `json:"effects_applied"`
}

// SaveSuccess confirms a save_image request.
type SaveSuccess struct {
	Envelope
	Image SavedImage `json:"image"`
}

// SaveError reports a failed save_image request.
type SaveError struct {
	Envelope
	Reason string `json:"error"`
}

// ImageSaved is broadcast when any operator saves a frame.
type ImageSaved struct {
	Envelope
	SavedBy string `json:"saved_by"`
}

// TelegramNotification reports an alert pushed to Telegram.
type TelegramNotification struct {
	Envelope
	Message string `json:"message"`
}

// Unknown is any envelope whose type this client does not handle.
type Unknown struct {
	Envelope
}

func (ConnectionAck) inbound()        {}
func (VideoFrame) inbound()           {}
func (ESP32Status) inbound()          {}
func (SensorUpdate) inbound()         {}
func (DetectionUpdate) inbound()      {}
func (EffectToggled) inbound()        {}
func (SaveSuccess) inbound()          {}
func (SaveError) inbound()            {}
func (ImageSaved) inbound()           {}
func (TelegramNotification) inbound() {}
func (Unknown) inbound()              {}

// EffectList is the set of effects applied to a saved image. The controller sends it
// either as a list of names or as an object of flags ({"negative": true, ...}).
type EffectList []string

// UnmarshalJSON accepts both encodings.
func (l *EffectList) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err == nil {
		*l = names
		return nil
	}
	var flags map[string]bool
	if err := json.Unmarshal(b, &flags); err != nil {
		return fmt.Errorf("effects_applied: %w", err)
	}
	*l = fromFlags(flags)
	return nil
}

// DecodeMsgpack accepts both encodings.
func (l *EffectList) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := dec.DecodeInterface()
	if err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*l = nil
	case []interface{}:
		names := make([]string, 0, len(t))
		for _, x := range t {
			s, ok := x.(string)
			if !ok {
				return fmt.Errorf("effects_applied: unexpected element %T", x)
			}
			names = append(names, s)
		}
		*l = names
	case map[string]interface{}:
		flags := make(map[string]bool, len(t))
		for k, x := range t {
			on, _ := x.(bool)
			flags[k] = on
		}
		*l = fromFlags(flags)
	default:
		return fmt.Errorf("effects_applied: unexpected %T", v)
	}
	return nil
}

func fromFlags(flags map[string]bool) EffectList {
	var out EffectList
	for name, on := range flags {
		if on {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
