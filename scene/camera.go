package scene

import (
	"fmt"
	"math"

	"github.com/szellmann/warpvr/types"
)

// Default perspective projection parameters.
const (
	DefaultFOV  float32 = 45.0 * math.Pi / 180.0
	DefaultNear float32 = 0.001
	DefaultFar  float32 = 1000.0
)

// A viewport rectangle in pixels.
type Viewport struct {
	X, Y int32
	W, H int32
}

// Returns true if both viewport dimensions are positive.
func (vp Viewport) Valid() bool {
	return vp.W > 0 && vp.H > 0
}

// Get the number of pixels covered by the viewport.
func (vp Viewport) Samples() int {
	if !vp.Valid() {
		return 0
	}
	return int(vp.W) * int(vp.H)
}

// Get the viewport aspect ratio.
func (vp Viewport) Aspect() float32 {
	if vp.H == 0 {
		return 1
	}
	return float32(vp.W) / float32(vp.H)
}

// Returns true if both viewports cover the same number of columns and rows.
func (vp Viewport) SameSize(other Viewport) bool {
	return vp.W == other.W && vp.H == other.H
}

func (vp Viewport) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", vp.X, vp.Y, vp.W, vp.H)
}

// Perspective projection parameters. FOV is the vertical field of view in radians.
type Projection struct {
	FOV  float32
	Near float32
	Far  float32
}

// A pinhole camera. Cameras are passed around by value and copies never
// share state.
type Camera struct {
	Eye    types.Vec3
	Center types.Vec3
	Up     types.Vec3

	Viewport   Viewport
	Projection Projection
}

// Create a camera for a w x h viewport using the default perspective
// projection. The camera looks down the negative Z axis.
func NewCamera(w, h int) Camera {
	c := Camera{
		Eye:    types.XYZ(0, 0, 1),
		Center: types.XYZ(0, 0, 0),
		Up:     types.XYZ(0, 1, 0),
	}
	c.SetViewport(0, 0, w, h)
	c.Perspective(DefaultFOV, DefaultNear, DefaultFar)
	return c
}

// Set camera orientation.
func (c *Camera) LookAt(eye, center, up types.Vec3) {
	c.Eye = eye
	c.Center = center
	c.Up = up.Normalize()
}

// Set the camera viewport.
func (c *Camera) SetViewport(x, y, w, h int) {
	c.Viewport = Viewport{X: int32(x), Y: int32(y), W: int32(w), H: int32(h)}
}

// Set perspective projection parameters.
func (c *Camera) Perspective(fov, near, far float32) {
	c.Projection = Projection{FOV: fov, Near: near, Far: far}
}

// Get the normalized view direction.
func (c Camera) Dir() types.Vec3 {
	return c.Center.Sub(c.Eye).Normalize()
}

// Get the normalized right vector of the camera basis.
func (c Camera) Right() types.Vec3 {
	return c.Dir().Cross(c.Up).Normalize()
}

// Get the distance between eye and center.
func (c Camera) Distance() float32 {
	return c.Center.Sub(c.Eye).Len()
}

// Move the camera along its current view direction so that the bounding
// sphere of box fits into the vertical field of view.
func (c *Camera) ViewAll(box AABB) {
	center := box.Center()
	radius := box.Size().Len() * 0.5
	dist := radius / float32(math.Sin(float64(c.Projection.FOV)*0.5))

	dir := c.Dir()
	if dir.Len() == 0 {
		dir = types.XYZ(0, 0, -1)
	}

	c.Center = center
	c.Eye = center.Sub(dir.Mul(dist))
}

// Compare two cameras field by field. Floating point fields are compared
// through their bit patterns so a camera always equals its own copy.
func (c Camera) Equal(other Camera) bool {
	return vec3BitsEqual(c.Eye, other.Eye) &&
		vec3BitsEqual(c.Center, other.Center) &&
		vec3BitsEqual(c.Up, other.Up) &&
		c.Viewport == other.Viewport &&
		floatBitsEqual(c.Projection.FOV, other.Projection.FOV) &&
		floatBitsEqual(c.Projection.Near, other.Projection.Near) &&
		floatBitsEqual(c.Projection.Far, other.Projection.Far)
}

func (c Camera) String() string {
	return fmt.Sprintf(
		"eye (%3.3f, %3.3f, %3.3f) center (%3.3f, %3.3f, %3.3f) up (%3.3f, %3.3f, %3.3f) viewport %s",
		c.Eye[0], c.Eye[1], c.Eye[2],
		c.Center[0], c.Center[1], c.Center[2],
		c.Up[0], c.Up[1], c.Up[2],
		c.Viewport,
	)
}

func floatBitsEqual(a, b float32) bool {
	return math.Float32bits(a) == math.Float32bits(b)
}

func vec3BitsEqual(a, b types.Vec3) bool {
	return floatBitsEqual(a[0], b[0]) && floatBitsEqual(a[1], b[1]) && floatBitsEqual(a[2], b[2])
}
