// Package parser converts wire envelopes to model types and back.
//
// Two codecs are available: JSON text frames (the controller default) and
// MessagePack binary frames. Both carry the same {type, ...payload} shape.
package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Crys266/IoT-Project/internal/model"
)

// ErrMissingType is returned for an envelope without a type tag.
var ErrMissingType = errors.New("envelope has no type")

// Codec encodes and decodes envelopes for one wire format. The dashboard uses
// EncodeOutbound/DecodeInbound; the controller side (simulator) uses the other pair.
type Codec interface {
	Name() string
	// Binary reports whether frames must be sent as binary websocket messages.
	Binary() bool
	EncodeOutbound(env model.Outbound) ([]byte, error)
	DecodeInbound(b []byte) (model.Inbound, error)
	EncodeInbound(env model.Inbound) ([]byte, error)
	DecodeOutbound(b []byte) (model.Outbound, error)
}

// ForFormat returns the codec registered under name.
func ForFormat(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return NewJSONCodec(), nil
	case "msgpack":
		return NewMsgpackCodec(), nil
	default:
		return nil, fmt.Errorf("unsupported wire format %q", name)
	}
}

type unmarshalFunc func(v any) error

// decodeInbound selects the concrete inbound type for typ and fills it.
// Unknown tags decode to model.Unknown without error.
func decodeInbound(typ string, unmarshal unmarshalFunc) (model.Inbound, error) {
	var (
		env model.Inbound
		err error
	)
	switch typ {
	case "":
		return nil, ErrMissingType
	case model.TypeConnectionAck:
		var m model.ConnectionAck
		err = unmarshal(&m)
		env = m
	case model.TypeVideoFrame:
		var m model.VideoFrame
		err = unmarshal(&m)
		env = m
	case model.TypeESP32Status:
		var m model.ESP32Status
		err = unmarshal(&m)
		env = m
	case model.TypeSensorUpdate:
		var m model.SensorUpdate
		err = unmarshal(&m)
		env = m
	case model.TypeDetectionUpdate:
		var m model.DetectionUpdate
		err = unmarshal(&m)
		env = m
	case model.TypeEffectToggled:
		var m model.EffectToggled
		err = unmarshal(&m)
		env = m
	case model.TypeSaveSuccess:
		var m model.SaveSuccess
		err = unmarshal(&m)
		env = m
	case model.TypeSaveError:
		var m model.SaveError
		err = unmarshal(&m)
		env = m
	case model.TypeImageSaved:
		var m model.ImageSaved
		err = unmarshal(&m)
		env = m
	case model.TypeTelegramNotification:
		var m model.TelegramNotification
		err = unmarshal(&m)
		env = m
	default:
		return model.Unknown{Envelope: model.Envelope{Type: typ}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", typ, err)
	}
	return env, nil
}

// decodeOutbound is the controller-side counterpart of decodeInbound.
func decodeOutbound(typ string, unmarshal unmarshalFunc) (model.Outbound, error) {
	var (
		env model.Outbound
		err error
	)
	switch typ {
	case "":
		return nil, ErrMissingType
	case model.TypeHello:
		var m model.Hello
		err = unmarshal(&m)
		env = m
	case model.TypeCommand:
		var m model.Command
		err = unmarshal(&m)
		env = m
	case model.TypeControlCommand:
		var m model.ControlCommand
		err = unmarshal(&m)
		env = m
	case model.TypeToggleEffect:
		var m model.ToggleEffect
		err = unmarshal(&m)
		env = m
	case model.TypeSaveImage:
		var m model.SaveImage
		err = unmarshal(&m)
		env = m
	default:
		return nil, fmt.Errorf("unknown outbound type %q", typ)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", typ, err)
	}
	return env, nil
}

func checkType(t string) error {
	if t == "" {
		return ErrMissingType
	}
	return nil
}
