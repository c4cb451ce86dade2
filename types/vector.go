// Package types defines the small vector types shared by the camera, the
// wire codec and both renderers. They are plain float32 arrays so they can
// be converted to and from mgl32 vectors without copying.
package types

import (
	"math"

	"golang.org/x/image/math/f32"
)

type Vec3 f32.Vec3

// A Vec4 holds a point sample (x, y, z, valid) or a color sample (r, g, b, a).
type Vec4 f32.Vec4

// Vectors whose length falls below this value are treated as zero length.
const floatCmpEpsilon float32 = 1e-6

// Define a 3 component vector.
func XYZ(x, y, z float32) Vec3 {
	return Vec3{x, y, z}
}

// Define a 4 component vector.
func XYZW(x, y, z, w float32) Vec4 {
	return Vec4{x, y, z, w}
}

// Expand a 3 component vector to a Vec4.
func (v Vec3) Vec4(w float32) Vec4 {
	return Vec4{v[0], v[1], v[2], w}
}

// Reduce a 4 component vector to a Vec3.
func (v Vec4) Vec3() Vec3 {
	return Vec3{v[0], v[1], v[2]}
}

func (v Vec3) Add(v2 Vec3) Vec3 {
	return Vec3{v[0] + v2[0], v[1] + v2[1], v[2] + v2[2]}
}

func (v Vec3) Sub(v2 Vec3) Vec3 {
	return Vec3{v[0] - v2[0], v[1] - v2[1], v[2] - v2[2]}
}

// Scale by s.
func (v Vec3) Mul(s float32) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

func (v Vec3) Dot(v2 Vec3) float32 {
	return v[0]*v2[0] + v[1]*v2[1] + v[2]*v2[2]
}

func (v Vec3) Cross(v2 Vec3) Vec3 {
	return Vec3{v[1]*v2[2] - v[2]*v2[1], v[2]*v2[0] - v[0]*v2[2], v[0]*v2[1] - v[1]*v2[0]}
}

func (v Vec3) Len() float32 {
	return float32(math.Sqrt(float64(v.Dot(v))))
}

// Get the unit vector pointing in the direction of v. Vectors shorter than
// floatCmpEpsilon normalize to the zero vector.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < floatCmpEpsilon {
		return Vec3{}
	}
	return v.Mul(1.0 / l)
}

// Get the component-wise minimum of two vectors.
func MinVec3(v1, v2 Vec3) Vec3 {
	out := v1
	for i := range out {
		if v2[i] < out[i] {
			out[i] = v2[i]
		}
	}
	return out
}

// Get the component-wise maximum of two vectors.
func MaxVec3(v1, v2 Vec3) Vec3 {
	out := v1
	for i := range out {
		if v2[i] > out[i] {
			out[i] = v2[i]
		}
	}
	return out
}
