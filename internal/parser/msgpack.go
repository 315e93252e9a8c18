package parser

import (
	"bytes"

	"github.com/Crys266/IoT-Project/internal/model"
	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackCodec implements Codec using MessagePack. Field names follow the json tags,
// so both codecs produce the same keys.
type MsgpackCodec struct{}

// NewMsgpackCodec creates a new MessagePack codec.
func NewMsgpackCodec() *MsgpackCodec { return &MsgpackCodec{} }

// Name returns "msgpack".
func (c *MsgpackCodec) Name() string { return "msgpack" }

// Binary is true: MessagePack travels in binary frames.
func (c *MsgpackCodec) Binary() bool { return true }

func (c *MsgpackCodec) marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *MsgpackCodec) unmarshal(b []byte) unmarshalFunc {
	return func(v any) error {
		dec := msgpack.NewDecoder(bytes.NewReader(b))
		dec.SetCustomStructTag("json")
		return dec.Decode(v)
	}
}

// EncodeOutbound encodes a dashboard envelope.
func (c *MsgpackCodec) EncodeOutbound(env model.Outbound) ([]byte, error) {
	if err := checkType(env.EnvelopeType()); err != nil {
		return nil, err
	}
	return c.marshal(env)
}

// DecodeInbound decodes a controller envelope.
func (c *MsgpackCodec) DecodeInbound(b []byte) (model.Inbound, error) {
	var hdr model.Envelope
	if err := c.unmarshal(b)(&hdr); err != nil {
		return nil, err
	}
	return decodeInbound(hdr.Type, c.unmarshal(b))
}

// EncodeInbound encodes a controller envelope.
func (c *MsgpackCodec) EncodeInbound(env model.Inbound) ([]byte, error) {
	if err := checkType(env.EnvelopeType()); err != nil {
		return nil, err
	}
	return c.marshal(env)
}

// DecodeOutbound decodes a dashboard envelope.
func (c *MsgpackCodec) DecodeOutbound(b []byte) (model.Outbound, error) {
	var hdr model.Envelope
	if err := c.unmarshal(b)(&hdr); err != nil {
		return nil, err
	}
	return decodeOutbound(hdr.Type, c.unmarshal(b))
}
