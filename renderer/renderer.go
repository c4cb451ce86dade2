// Package renderer turns the point and color samples received from a
// server into images on the client and drives the client side display loop.
package renderer

import (
	"image"

	"github.com/szellmann/warpvr/scene"
	"github.com/szellmann/warpvr/types"
)

// A PointRenderer draws a set of world space point samples for a camera.
type PointRenderer interface {
	// Replace the drawn point set. Point samples whose fourth component is
	// zero are ignored.
	Reset(points, colors []types.Vec4)

	// Resize the output image.
	Resize(w, h int)

	// Draw the current point set as seen by cam.
	Render(cam scene.Camera) *image.RGBA
}
