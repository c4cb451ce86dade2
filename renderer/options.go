package renderer

import "github.com/szellmann/warpvr/types"

type Options struct {
	// Frame dims.
	FrameW uint32
	FrameH uint32

	// Edge length in pixels of the square drawn for each point.
	PointSize uint32

	// Color for pixels not covered by any point.
	Background types.Vec3
}

// Get the default options for a w x h frame.
func DefaultOptions(w, h uint32) Options {
	return Options{
		FrameW:     w,
		FrameH:     h,
		PointSize:  1,
		Background: types.XYZ(0.1, 0.1, 0.1),
	}
}
