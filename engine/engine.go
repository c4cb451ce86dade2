// Package engine contains the server side renderer that turns a camera into
// per-pixel point and color samples.
package engine

import (
	"context"

	"github.com/szellmann/warpvr/frame"
	"github.com/szellmann/warpvr/scene"
)

// A RenderEngine fills a frame buffer with one point sample and one color
// sample per pixel of the camera viewport. The buffer passed to Render has
// already been sized for cam.Viewport. Implementations must be deterministic
// for a given camera and dataset.
type RenderEngine interface {
	Render(ctx context.Context, cam scene.Camera, fb *frame.Buffer) error
}

// RenderFunc adapts a plain function to the RenderEngine interface.
type RenderFunc func(ctx context.Context, cam scene.Camera, fb *frame.Buffer) error

func (fn RenderFunc) Render(ctx context.Context, cam scene.Camera, fb *frame.Buffer) error {
	return fn(ctx, cam, fb)
}
