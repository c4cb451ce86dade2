package protocol

import (
	"fmt"
	"math"

	"github.com/szellmann/warpvr/scene"
)

// Size of a serialized camera: 9 x f32 (eye, center, up), 4 x i32
// (viewport) and 3 x f32 (fov, near, far).
const CameraSize = 16 * 4

// Build a Camera message.
func NewCameraMessage(cam scene.Camera) Message {
	return Message{Kind: Camera, Payload: MarshalCamera(cam)}
}

// Serialize camera into its fixed size wire representation.
func MarshalCamera(cam scene.Camera) []byte {
	out := make([]byte, CameraSize)
	off := 0
	putF32 := func(v float32) {
		byteOrder.PutUint32(out[off:], math.Float32bits(v))
		off += 4
	}
	putI32 := func(v int32) {
		byteOrder.PutUint32(out[off:], uint32(v))
		off += 4
	}

	for _, vec := range [...][3]float32{cam.Eye, cam.Center, cam.Up} {
		putF32(vec[0])
		putF32(vec[1])
		putF32(vec[2])
	}
	putI32(cam.Viewport.X)
	putI32(cam.Viewport.Y)
	putI32(cam.Viewport.W)
	putI32(cam.Viewport.H)
	putF32(cam.Projection.FOV)
	putF32(cam.Projection.Near)
	putF32(cam.Projection.Far)

	return out
}

// Parse a camera from its wire representation.
func UnmarshalCamera(payload []byte) (scene.Camera, error) {
	var cam scene.Camera
	if len(payload) != CameraSize {
		return cam, fmt.Errorf("%w: camera payload is %d byte(s); expected %d", ErrSizeMismatch, len(payload), CameraSize)
	}

	off := 0
	f32 := func() float32 {
		v := math.Float32frombits(byteOrder.Uint32(payload[off:]))
		off += 4
		return v
	}
	i32 := func() int32 {
		v := int32(byteOrder.Uint32(payload[off:]))
		off += 4
		return v
	}

	for _, vec := range [...]*[3]float32{(*[3]float32)(&cam.Eye), (*[3]float32)(&cam.Center), (*[3]float32)(&cam.Up)} {
		vec[0], vec[1], vec[2] = f32(), f32(), f32()
	}
	cam.Viewport.X, cam.Viewport.Y = i32(), i32()
	cam.Viewport.W, cam.Viewport.H = i32(), i32()
	cam.Projection.FOV = f32()
	cam.Projection.Near = f32()
	cam.Projection.Far = f32()

	return cam, nil
}

// Decode the camera carried by a Camera message.
func (m Message) Camera() (scene.Camera, error) {
	if m.Kind != Camera {
		return scene.Camera{}, fmt.Errorf("%w: expected %s message; got %s", ErrMalformedMessage, Camera, m.Kind)
	}
	return UnmarshalCamera(m.Payload)
}
