/*
Package protocol implements the warpvr wire format.

Every message is framed as

	KindTag(u32) | Length(u32) | Payload(Length bytes)

with all scalars encoded little-endian. The client sends Camera messages;
the server answers each one with a PointCloud message followed by a Colors
message, both holding one 4 x f32 record per viewport pixel.
*/
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// The message kind tag.
type Kind uint32

const (
	Camera Kind = iota + 1
	PointCloud
	Colors
)

const (
	// Size of the kind tag and length fields preceding every payload.
	HeaderSize = 8

	// Size of a single point or color record.
	SampleSize = 16

	// Default upper bound for payload lengths accepted by ReadMessage.
	DefaultPayloadLimit uint32 = 1 << 28
)

var byteOrder = binary.LittleEndian

func (k Kind) String() string {
	switch k {
	case Camera:
		return "Camera"
	case PointCloud:
		return "PointCloud"
	case Colors:
		return "Colors"
	}
	return fmt.Sprintf("Kind(%d)", uint32(k))
}

// Returns true if k is one of the defined message kinds.
func (k Kind) Valid() bool {
	return k >= Camera && k <= Colors
}

// A framed protocol message.
type Message struct {
	Kind    Kind
	Payload []byte
}

// Get the number of bytes occupied by the message on the wire.
func (m Message) WireSize() int {
	return HeaderSize + len(m.Payload)
}

// Serialize message into its wire representation.
func Encode(m Message) []byte {
	out := make([]byte, HeaderSize+len(m.Payload))
	byteOrder.PutUint32(out[0:4], uint32(m.Kind))
	byteOrder.PutUint32(out[4:8], uint32(len(m.Payload)))
	copy(out[HeaderSize:], m.Payload)
	return out
}

// Parse a single message from data. The declared length must match the
// number of bytes that follow the header exactly.
func Decode(data []byte) (Message, error) {
	if len(data) < HeaderSize {
		return Message{}, fmt.Errorf("%w: %d byte(s) is too short for a header", ErrMalformedMessage, len(data))
	}

	kind, length := parseHeader(data)
	if err := checkHeader(kind, length); err != nil {
		return Message{}, err
	}
	if int(length) != len(data)-HeaderSize {
		return Message{}, fmt.Errorf("%w: declared length %d but %d byte(s) follow the header", ErrMalformedMessage, length, len(data)-HeaderSize)
	}

	payload := make([]byte, length)
	copy(payload, data[HeaderSize:])
	return Message{Kind: kind, Payload: payload}, nil
}

// Write a framed message to w.
func WriteMessage(w io.Writer, m Message) error {
	_, err := w.Write(Encode(m))
	return err
}

// Read the next framed message from r. Payloads longer than limit are
// rejected before any allocation takes place; a zero limit selects
// DefaultPayloadLimit.
//
// If r is exhausted before the first header byte, io.EOF is returned as is.
func ReadMessage(r io.Reader, limit uint32) (Message, error) {
	if limit == 0 {
		limit = DefaultPayloadLimit
	}

	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Message{}, fmt.Errorf("%w: truncated header: %w", ErrMalformedMessage, err)
		}
		return Message{}, err
	}

	kind, length := parseHeader(header[:])
	if err := checkHeader(kind, length); err != nil {
		return Message{}, err
	}
	if length > limit {
		return Message{}, fmt.Errorf("%w: payload length %d exceeds limit %d", ErrMalformedMessage, length, limit)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Message{}, fmt.Errorf("%w: declared length %d but stream ended early: %w", ErrMalformedMessage, length, io.ErrUnexpectedEOF)
		}
		return Message{}, err
	}

	return Message{Kind: kind, Payload: payload}, nil
}

func parseHeader(header []byte) (Kind, uint32) {
	return Kind(byteOrder.Uint32(header[0:4])), byteOrder.Uint32(header[4:8])
}

// Framing checks that do not depend on the current viewport.
func checkHeader(kind Kind, length uint32) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: tag %d", ErrUnknownKind, uint32(kind))
	}
	if kind != Camera && length%SampleSize != 0 {
		return fmt.Errorf("%w: %s payload length %d is not a multiple of %d", ErrMalformedMessage, kind, length, SampleSize)
	}
	return nil
}
