package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/szellmann/warpvr/scene"
	"github.com/szellmann/warpvr/types"
)

var (
	ErrVolumeDims = errors.New("engine: invalid volume dimensions")
	ErrVolumeSize = errors.New("engine: volume data does not match its dimensions")
)

// Default world space extent of a volume.
var DefaultBounds = scene.NewAABB(types.XYZ(0, 0, 0), types.XYZ(256, 256, 128))

// A Volume is a structured grid of 8-bit voxels. Voxel (x, y, z) is stored at
// index x + y*Dims[0] + z*Dims[0]*Dims[1]. The grid is stretched to fill
// Bounds in world space.
type Volume struct {
	Dims   [3]int
	Data   []uint8
	Bounds scene.AABB
}

// Create a volume from voxel data.
func NewVolume(dims [3]int, data []uint8, bounds scene.AABB) (*Volume, error) {
	if dims[0] <= 0 || dims[1] <= 0 || dims[2] <= 0 {
		return nil, fmt.Errorf("%w: %dx%dx%d", ErrVolumeDims, dims[0], dims[1], dims[2])
	}
	if len(data) != dims[0]*dims[1]*dims[2] {
		return nil, fmt.Errorf("%w: expected %d voxels; got %d", ErrVolumeSize, dims[0]*dims[1]*dims[2], len(data))
	}
	return &Volume{Dims: dims, Data: data, Bounds: bounds}, nil
}

// Load a raw 8-bit volume from a local file or http(s) URL.
func LoadRaw(ctx context.Context, path string, dims [3]int, bounds scene.AABB) (*Volume, error) {
	res, err := OpenResource(ctx, path)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	return ReadRaw(res, dims, bounds)
}

// Read a raw 8-bit volume from a resource stream.
func ReadRaw(res *Resource, dims [3]int, bounds scene.AABB) (*Volume, error) {
	if dims[0] <= 0 || dims[1] <= 0 || dims[2] <= 0 {
		return nil, fmt.Errorf("%w: %dx%dx%d", ErrVolumeDims, dims[0], dims[1], dims[2])
	}

	numVoxels := dims[0] * dims[1] * dims[2]
	if size := res.Size(); size >= 0 && size != int64(numVoxels) {
		return nil, fmt.Errorf("%w: %s holds %d bytes; expected %d", ErrVolumeSize, res.Path(), size, numVoxels)
	}

	data := make([]uint8, numVoxels)
	if _, err := io.ReadFull(res, data); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %s ended early", ErrVolumeSize, res.Path())
		}
		return nil, fmt.Errorf("engine: could not read %s: %w", res.Path(), err)
	}

	return NewVolume(dims, data, bounds)
}

// Generate a synthetic volume: a set of concentric shells whose density
// falls off towards the edge of the grid.
func ProceduralVolume(dims [3]int, bounds scene.AABB) (*Volume, error) {
	if dims[0] <= 0 || dims[1] <= 0 || dims[2] <= 0 {
		return nil, fmt.Errorf("%w: %dx%dx%d", ErrVolumeDims, dims[0], dims[1], dims[2])
	}

	data := make([]uint8, dims[0]*dims[1]*dims[2])
	idx := 0
	for z := 0; z < dims[2]; z++ {
		for y := 0; y < dims[1]; y++ {
			for x := 0; x < dims[0]; x++ {
				// Normalized coordinates in [-1, 1]
				nx := (float64(x)+0.5)/float64(dims[0])*2 - 1
				ny := (float64(y)+0.5)/float64(dims[1])*2 - 1
				nz := (float64(z)+0.5)/float64(dims[2])*2 - 1
				r := math.Sqrt(nx*nx + ny*ny + nz*nz)

				density := 0.0
				if r < 1 {
					shell := 0.5 + 0.5*math.Cos(r*4*math.Pi)
					density = shell * (1 - r)
				}
				data[idx] = uint8(math.Round(density * 255))
				idx++
			}
		}
	}

	return &Volume{Dims: dims, Data: data, Bounds: bounds}, nil
}

// Get the voxel at grid coordinates (x, y, z) or 0 if they lie outside the grid.
func (v *Volume) Voxel(x, y, z int) uint8 {
	if x < 0 || y < 0 || z < 0 || x >= v.Dims[0] || y >= v.Dims[1] || z >= v.Dims[2] {
		return 0
	}
	return v.Data[x+y*v.Dims[0]+z*v.Dims[0]*v.Dims[1]]
}

// Sample the volume at world space position p using nearest neighbor
// lookup. Positions outside the bounds sample as 0.
func (v *Volume) Sample(p types.Vec3) uint8 {
	size := v.Bounds.Size()

	var coord [3]int
	for axis := 0; axis < 3; axis++ {
		if size[axis] <= 0 {
			return 0
		}
		rel := (p[axis] - v.Bounds.Min[axis]) / size[axis]
		if !(rel >= 0 && rel <= 1) {
			return 0
		}
		c := int(rel * float32(v.Dims[axis]))
		if c == v.Dims[axis] {
			c--
		}
		coord[axis] = c
	}
	return v.Voxel(coord[0], coord[1], coord[2])
}

// Get the world space extent of a single voxel along its smallest axis.
func (v *Volume) VoxelSize() float32 {
	size := v.Bounds.Size()
	minSize := float32(math.MaxFloat32)
	for axis := 0; axis < 3; axis++ {
		if s := size[axis] / float32(v.Dims[axis]); s < minSize {
			minSize = s
		}
	}
	return minSize
}
