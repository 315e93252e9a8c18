// Package parser implements the JSONCodec which encodes and decodes envelopes
// as JSON text frames.
package parser

import (
	"encoding/json"

	"github.com/Crys266/IoT-Project/internal/model"
)

// JSONCodec implements Codec using JSON serialization.
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec.
func NewJSONCodec() *JSONCodec { return &JSONCodec{} }

// Name returns "json".
func (c *JSONCodec) Name() string { return "json" }

// Binary is false: JSON travels in text frames.
func (c *JSONCodec) Binary() bool { return false }

// EncodeOutbound encodes a dashboard envelope.
func (c *JSONCodec) EncodeOutbound(env model.Outbound) ([]byte, error) {
	if err := checkType(env.EnvelopeType()); err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// DecodeInbound decodes a controller envelope.
func (c *JSONCodec) DecodeInbound(b []byte) (model.Inbound, error) {
	var hdr model.Envelope
	if err := json.Unmarshal(b, &hdr); err != nil {
		return nil, err
	}
	return decodeInbound(hdr.Type, func(v any) error { return json.Unmarshal(b, v) })
}

// EncodeInbound encodes a controller envelope.
func (c *JSONCodec) EncodeInbound(env model.Inbound) ([]byte, error) {
	if err := checkType(env.EnvelopeType()); err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// DecodeOutbound decodes a dashboard envelope.
func (c *JSONCodec) DecodeOutbound(b []byte) (model.Outbound, error) {
	var hdr model.Envelope
	if err := json.Unmarshal(b, &hdr); err != nil {
		return nil, err
	}
	return decodeOutbound(hdr.Type, func(v any) error { return json.Unmarshal(b, v) })
}
