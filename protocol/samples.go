package protocol

import (
	"fmt"
	"math"

	"github.com/szellmann/warpvr/scene"
	"github.com/szellmann/warpvr/types"
)

// Get the payload size of a PointCloud or Colors message for a w x h viewport.
func SampleBytes(w, h int) int {
	return w * h * SampleSize
}

// Build a PointCloud message.
func NewPointCloudMessage(points []types.Vec4) Message {
	return Message{Kind: PointCloud, Payload: MarshalSamples(points)}
}

// Build a Colors message.
func NewColorsMessage(colors []types.Vec4) Message {
	return Message{Kind: Colors, Payload: MarshalSamples(colors)}
}

// Serialize a sample array as consecutive 4 x f32 records.
func MarshalSamples(samples []types.Vec4) []byte {
	out := make([]byte, len(samples)*SampleSize)
	off := 0
	for _, s := range samples {
		byteOrder.PutUint32(out[off:], math.Float32bits(s[0]))
		byteOrder.PutUint32(out[off+4:], math.Float32bits(s[1]))
		byteOrder.PutUint32(out[off+8:], math.Float32bits(s[2]))
		byteOrder.PutUint32(out[off+12:], math.Float32bits(s[3]))
		off += SampleSize
	}
	return out
}

// Parse a sample array from consecutive 4 x f32 records.
func UnmarshalSamples(payload []byte) ([]types.Vec4, error) {
	if len(payload)%SampleSize != 0 {
		return nil, fmt.Errorf("%w: sample payload length %d is not a multiple of %d", ErrMalformedMessage, len(payload), SampleSize)
	}

	out := make([]types.Vec4, len(payload)/SampleSize)
	off := 0
	for i := range out {
		out[i] = types.Vec4{
			math.Float32frombits(byteOrder.Uint32(payload[off:])),
			math.Float32frombits(byteOrder.Uint32(payload[off+4:])),
			math.Float32frombits(byteOrder.Uint32(payload[off+8:])),
			math.Float32frombits(byteOrder.Uint32(payload[off+12:])),
		}
		off += SampleSize
	}
	return out, nil
}

// Decode the samples carried by a PointCloud or Colors message.
func (m Message) Samples() ([]types.Vec4, error) {
	if m.Kind != PointCloud && m.Kind != Colors {
		return nil, fmt.Errorf("%w: %s message does not carry samples", ErrMalformedMessage, m.Kind)
	}
	return UnmarshalSamples(m.Payload)
}

// Check that a PointCloud or Colors message holds exactly one record per
// pixel of vp.
func ValidateSamples(m Message, vp scene.Viewport) error {
	if !vp.Valid() {
		return fmt.Errorf("%w: invalid viewport %s", ErrSizeMismatch, vp)
	}
	exp := SampleBytes(int(vp.W), int(vp.H))
	if len(m.Payload) != exp {
		return fmt.Errorf("%w: %s payload is %d byte(s); expected %d for a %dx%d viewport", ErrSizeMismatch, m.Kind, len(m.Payload), exp, vp.W, vp.H)
	}
	return nil
}
