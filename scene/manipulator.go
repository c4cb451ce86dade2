package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/szellmann/warpvr/types"
)

// Coefficients for converting delta cursor movements to camera motion.
const (
	orbitSensitivity float32 = 0.005
	panSensitivity   float32 = 0.0015
	zoomSensitivity  float32 = 0.005

	// Zooming never moves the eye closer than this to the center.
	minZoomDistance float32 = 1e-3
)

// A Manipulator converts a pointer drag delta (in pixels) into a camera update.
type Manipulator interface {
	Drag(cam *Camera, dx, dy float32)
}

// Rotates the eye around the camera center. Horizontal drags yaw around
// the up vector and vertical drags pitch around the camera right vector.
type OrbitManipulator struct {
	Sensitivity float32
}

func (m OrbitManipulator) Drag(cam *Camera, dx, dy float32) {
	s := sensitivityOr(m.Sensitivity, orbitSensitivity)

	yawQuat := mgl32.QuatRotate(-dx*s, mgl32.Vec3(cam.Up.Normalize()))
	pitchQuat := mgl32.QuatRotate(-dy*s, mgl32.Vec3(cam.Right()))
	orientQuat := yawQuat.Mul(pitchQuat).Normalize()

	offset := orientQuat.Rotate(mgl32.Vec3(cam.Eye.Sub(cam.Center)))
	cam.Eye = cam.Center.Add(types.Vec3(offset))
	cam.Up = types.Vec3(orientQuat.Rotate(mgl32.Vec3(cam.Up))).Normalize()
}

// Translates eye and center in the image plane. Motion is scaled with the
// eye to center distance so panning feels the same at any zoom level.
type PanManipulator struct {
	Sensitivity float32
}

func (m PanManipulator) Drag(cam *Camera, dx, dy float32) {
	s := sensitivityOr(m.Sensitivity, panSensitivity) * cam.Distance()

	right := cam.Right()
	up := right.Cross(cam.Dir()).Normalize()
	delta := right.Mul(-dx * s).Add(up.Mul(dy * s))

	cam.Eye = cam.Eye.Add(delta)
	cam.Center = cam.Center.Add(delta)
}

// Moves the eye towards (positive dy) or away from the center.
type ZoomManipulator struct {
	Sensitivity float32
}

func (m ZoomManipulator) Drag(cam *Camera, dx, dy float32) {
	s := sensitivityOr(m.Sensitivity, zoomSensitivity)

	dist := cam.Distance() * float32(math.Exp(float64(-dy*s)))
	if dist < minZoomDistance {
		dist = minZoomDistance
	}
	cam.Eye = cam.Center.Sub(cam.Dir().Mul(dist))
}

func sensitivityOr(value, fallback float32) float32 {
	if value == 0 {
		return fallback
	}
	return value
}
