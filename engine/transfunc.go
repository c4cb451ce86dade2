package engine

import "github.com/szellmann/warpvr/types"

// A TransferFunction maps 8-bit voxel values to RGBA. Alpha is the opacity
// contributed by a single ray marching step.
type TransferFunction [256]types.Vec4

// Build a lookup table that ramps from transparent blue for low densities to
// opaque red for high densities. Values below cutoff are fully transparent.
func RampTransferFunction(cutoff uint8, maxAlpha float32) TransferFunction {
	var tf TransferFunction
	for i := range tf {
		if i < int(cutoff) {
			continue
		}

		t := float32(i) / 255
		a := maxAlpha
		if cutoff < 255 {
			a = float32(i-int(cutoff)+1) / float32(256-int(cutoff)) * maxAlpha
		}
		tf[i] = types.XYZW(t, 1-abs32(2*t-1), 1-t, a)
	}
	return tf
}

// The default lookup table.
func DefaultTransferFunction() TransferFunction {
	return RampTransferFunction(24, 0.2)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
