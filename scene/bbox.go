package scene

import (
	"math"

	"github.com/szellmann/warpvr/types"
)

// An axis aligned bounding box.
type AABB struct {
	Min types.Vec3
	Max types.Vec3
}

func NewAABB(min, max types.Vec3) AABB {
	return AABB{Min: types.MinVec3(min, max), Max: types.MaxVec3(min, max)}
}

func (b AABB) Center() types.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b AABB) Size() types.Vec3 {
	return b.Max.Sub(b.Min)
}

// Intersect a ray with the box using the slab method. It returns the
// parametric entry and exit distances; ok is false if the ray misses the box
// or the box lies behind the ray origin.
func (b AABB) Intersect(origin, dir types.Vec3) (tNear, tFar float32, ok bool) {
	tNear = float32(math.Inf(-1))
	tFar = float32(math.Inf(1))

	for axis := 0; axis < 3; axis++ {
		if dir[axis] == 0 {
			if origin[axis] < b.Min[axis] || origin[axis] > b.Max[axis] {
				return 0, 0, false
			}
			continue
		}

		invD := 1.0 / dir[axis]
		t0 := (b.Min[axis] - origin[axis]) * invD
		t1 := (b.Max[axis] - origin[axis]) * invD
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tNear {
			tNear = t0
		}
		if t1 < tFar {
			tFar = t1
		}
		if tNear > tFar {
			return 0, 0, false
		}
	}

	if tFar < 0 {
		return 0, 0, false
	}
	if tNear < 0 {
		tNear = 0
	}
	return tNear, tFar, true
}
