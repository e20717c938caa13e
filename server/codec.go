package main

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

var errEmptyPayload = errors.New("empty payload")

// Codec converts envelopes to and from websocket frames
type Codec interface {
	Name() string
	FrameType() int
	Encode(env Envelope) ([]byte, error)
	Decode(raw []byte) (Inbound, error)
	unmarshal(data []byte, v any) error
}

// Inbound is a decoded client message whose payload is bound lazily
type Inbound struct {
	Event string
	Ack   uint64
	data  []byte
	codec Codec
}

// Bind decodes the payload into v
func (in Inbound) Bind(v any) error {
	if len(in.data) == 0 || in.codec == nil {
		return errEmptyPayload
	}
	return in.codec.unmarshal(in.data, v)
}

// NewInbound builds a message carrying a JSON payload. Used by tests and by
// callers that already hold a decoded event.
func NewInbound(event string, payload any) Inbound {
	in := Inbound{Event: event, codec: JSONCodec{}}
	if payload != nil {
		in.data, _ = json.Marshal(payload)
	}
	return in
}

// CodecByName selects the codec requested by the client; JSON is the default
func CodecByName(name string) Codec {
	if name == "msgpack" {
		return MsgpackCodec{}
	}
	return JSONCodec{}
}

// JSONCodec sends text frames
type JSONCodec struct{}

// inEnvelope avoids a double unmarshal by keeping the payload raw
type inEnvelope struct {
	T   string          `json:"t"`
	D   json.RawMessage `json:"d,omitempty"`
	Ack uint64          `json:"ack,omitempty"`
}

func (JSONCodec) Name() string   { return "json" }
func (JSONCodec) FrameType() int { return websocket.TextMessage }

func (JSONCodec) Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

func (c JSONCodec) Decode(raw []byte) (Inbound, error) {
	var env inEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Inbound{}, err
	}
	return Inbound{Event: env.T, Ack: env.Ack, data: env.D, codec: c}, nil
}

func (JSONCodec) unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// MsgpackCodec sends binary frames. Field names follow the json tags so both
// encodings carry the same keys.
type MsgpackCodec struct{}

type msgpackInEnvelope struct {
	T   string             `json:"t"`
	D   msgpack.RawMessage `json:"d,omitempty"`
	Ack uint64             `json:"ack,omitempty"`
}

func (MsgpackCodec) Name() string   { return "msgpack" }
func (MsgpackCodec) FrameType() int { return websocket.BinaryMessage }

func (MsgpackCodec) Encode(env Envelope) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(env); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c MsgpackCodec) Decode(raw []byte) (Inbound, error) {
	var env msgpackInEnvelope
	if err := c.unmarshal(raw, &env); err != nil {
		return Inbound{}, err
	}
	return Inbound{Event: env.T, Ack: env.Ack, data: env.D, codec: c}, nil
}

func (MsgpackCodec) unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
