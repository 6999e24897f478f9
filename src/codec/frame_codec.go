// Package codec encodes and classifies the MessagePack frames exchanged on
// the MarketStore stream endpoint.
//
// Inbound frames carry no type tag. Decode tries each known shape in a fixed
// priority order (data payload, subscribe echo, error notice) and the first
// structurally valid shape wins. A frame that fits an earlier shape is never
// tested against a later one.
package codec

import (
	"fmt"
	"reflect"

	"marketstore-client/src/models"

	"github.com/ugorji/go/codec"
)

// Kind is the classification of an inbound binary frame.
type Kind int

const (
	KindUndecodable Kind = iota
	KindDataPayload
	KindSubscribeEcho
	KindErrorNotice
)

func (k Kind) String() string {
	switch k {
	case KindDataPayload:
		return "data payload"
	case KindSubscribeEcho:
		return "subscribe echo"
	case KindErrorNotice:
		return "error notice"
	default:
		return "undecodable"
	}
}

// Message is the tagged result of Decode. Exactly one of the pointer fields
// is set unless Kind is KindUndecodable, in which case Err says why.
type Message struct {
	Kind    Kind
	Payload *models.MStreamPayload
	Echo    *models.MSubscribeMessage
	Notice  *models.MErrorMessage
	Err     error
}

// -----------------------------------------------------------------------------
// Handle
// -----------------------------------------------------------------------------

var mh = newHandle()

func newHandle() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{}
	h.WriteExt = true
	h.RawToString = true
	h.SignedInteger = true
	h.Canonical = true
	h.MapType = reflect.TypeOf(map[string]interface{}(nil))
	return h
}

// -----------------------------------------------------------------------------
// Encoding
// -----------------------------------------------------------------------------

// EncodeSubscribe builds the single subscribe frame for an ordered pattern
// list. A nil list is sent as an empty array.
func EncodeSubscribe(streams []string) ([]byte, error) {
	if streams == nil {
		streams = []string{}
	}
	return Encode(&models.MSubscribeMessage{Streams: streams})
}

// Encode writes any wire message as MessagePack. Structs are written as maps
// keyed by their codec tags; map keys are sorted.
func Encode(v interface{}) ([]byte, error) {
	var out []byte
	if err := codec.NewEncoderBytes(&out, mh).Encode(v); err != nil {
		return nil, fmt.Errorf("msgpack encode %T: %w", v, err)
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Decoding
// -----------------------------------------------------------------------------

type shapeDecoder struct {
	kind   Kind
	decode func(raw interface{}, msg *Message) bool
}

// Priority order matters: the data payload is the hot path.
var shapeDecoders = []shapeDecoder{
	{kind: KindDataPayload, decode: decodePayload},
	{kind: KindSubscribeEcho, decode: decodeEcho},
	{kind: KindErrorNotice, decode: decodeNotice},
}

// Decode classifies one binary frame.
func Decode(frame []byte) Message {
	if len(frame) == 0 {
		return Message{Kind: KindUndecodable, Err: fmt.Errorf("empty frame")}
	}

	var raw interface{}
	if err := codec.NewDecoderBytes(frame, mh).Decode(&raw); err != nil {
		return Message{Kind: KindUndecodable, Err: fmt.Errorf("msgpack decode: %w", err)}
	}

	for _, d := range shapeDecoders {
		msg := Message{Kind: d.kind}
		if d.decode(raw, &msg) {
			return msg
		}
	}
	return Message{Kind: KindUndecodable, Err: fmt.Errorf("frame matches no known message shape (%T)", raw)}
}

// -----------------------------------------------------------------------------

// fields returns the positional or named fields of a struct-shaped value.
// Structs may arrive as maps keyed by field name or as arrays in field order.
func fields(raw interface{}, names ...string) ([]interface{}, bool) {
	switch v := raw.(type) {
	case map[string]interface{}:
		out := make([]interface{}, len(names))
		for i, name := range names {
			f, ok := v[name]
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	case []interface{}:
		if len(v) != len(names) {
			return nil, false
		}
		return v, true
	default:
		return nil, false
	}
}

func decodePayload(raw interface{}, msg *Message) bool {
	f, ok := fields(raw, "key", "data")
	if !ok {
		return false
	}
	key, ok := f[0].(string)
	if !ok {
		return false
	}
	data, ok := f[1].(map[string]interface{})
	if !ok {
		return false
	}
	msg.Payload = &models.MStreamPayload{Key: key, Data: data}
	return true
}

func decodeEcho(raw interface{}, msg *Message) bool {
	f, ok := fields(raw, "streams")
	if !ok {
		return false
	}
	list, ok := f[0].([]interface{})
	if !ok {
		return false
	}
	streams := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return false
		}
		streams = append(streams, s)
	}
	msg.Echo = &models.MSubscribeMessage{Streams: streams}
	return true
}

func decodeNotice(raw interface{}, msg *Message) bool {
	f, ok := fields(raw, "error")
	if !ok {
		return false
	}
	text, ok := f[0].(string)
	if !ok {
		return false
	}
	msg.Notice = &models.MErrorMessage{Error: text}
	return true
}

// -----------------------------------------------------------------------------

// DecodeSubscribe parses a subscribe request as received by a stream server.
func DecodeSubscribe(frame []byte) (*models.MSubscribeMessage, error) {
	var raw interface{}
	if err := codec.NewDecoderBytes(frame, mh).Decode(&raw); err != nil {
		return nil, fmt.Errorf("msgpack decode: %w", err)
	}
	var msg Message
	if !decodeEcho(raw, &msg) {
		return nil, fmt.Errorf("frame is not a subscribe request (%T)", raw)
	}
	return msg.Echo, nil
}
