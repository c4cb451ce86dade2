package renderer

import (
	"image"
	"time"

	"github.com/szellmann/warpvr/log"
	"github.com/szellmann/warpvr/scene"
	"github.com/szellmann/warpvr/session"
)

// Pointer buttons reported by the windowing layer.
type Button uint8

const (
	LeftButton Button = iota
	MiddleButton
	RightButton
)

// Keyboard modifiers held during a pointer drag.
type Modifier uint8

const (
	NoModifier  Modifier = 0
	AltModifier Modifier = 1 << (iota - 1)
	ShiftModifier
	CtrlModifier
)

type binding struct {
	button Button
	mods   Modifier
}

// Viewer is the render thread side of a client: it turns input events into
// camera updates published to the shared state and draws the most recent
// frame on every display tick. Viewer methods must be called from a single
// goroutine.
type Viewer struct {
	logger   log.Logger
	state    *session.SharedState
	renderer PointRenderer

	// The render thread's copy of the camera.
	camera scene.Camera

	manipulators map[binding]scene.Manipulator

	lastImage *image.RGBA
	stats     FrameStats
}

// Create a viewer that publishes camera updates to state and draws frames
// with pr. The viewer starts from the camera currently held by state.
func NewViewer(state *session.SharedState, pr PointRenderer) *Viewer {
	v := &Viewer{
		logger:   log.New("renderer"),
		state:    state,
		renderer: pr,
		camera:   state.Camera(),
		manipulators: map[binding]scene.Manipulator{
			{LeftButton, NoModifier}:   scene.OrbitManipulator{},
			{MiddleButton, NoModifier}: scene.PanManipulator{},
			{RightButton, NoModifier}:  scene.ZoomManipulator{},
			// Pan for pointers without a middle button.
			{LeftButton, AltModifier}: scene.PanManipulator{},
		},
	}
	pr.Resize(int(v.camera.Viewport.W), int(v.camera.Viewport.H))
	return v
}

// Get the render thread's camera.
func (v *Viewer) Camera() scene.Camera {
	return v.camera
}

// Get the display statistics.
func (v *Viewer) Stats() FrameStats {
	return v.stats
}

// Apply the manipulator bound to button and mods and publish the updated
// camera. Modifier combinations without a binding of their own fall back to
// the plain button binding; drags with unbound buttons are ignored.
func (v *Viewer) OnPointerDrag(button Button, mods Modifier, dx, dy float32) {
	m, ok := v.manipulators[binding{button, mods}]
	if !ok {
		m, ok = v.manipulators[binding{button, NoModifier}]
	}
	if !ok {
		return
	}
	m.Drag(&v.camera, dx, dy)
	v.state.SetCamera(v.camera)
}

// Update the viewport and perspective projection for a w x h window, resize
// the point renderer and publish the updated camera.
func (v *Viewer) OnResize(w, h int) error {
	if w <= 0 || h <= 0 {
		return ErrInvalidSize
	}

	v.camera.SetViewport(0, 0, w, h)
	v.camera.Perspective(scene.DefaultFOV, scene.DefaultNear, scene.DefaultFar)
	v.renderer.Resize(w, h)
	v.state.SetCamera(v.camera)

	v.logger.Infof("viewport resized to %dx%d", w, h)
	return nil
}

// Upload the latest frame if a new one arrived and draw the point set for
// the current camera. The previous frame stays on display until a new one
// has been received.
func (v *Viewer) OnDisplayTick() (*image.RGBA, error) {
	if fb, ok := v.state.TakeFrameIfNew(); ok {
		start := time.Now()
		v.renderer.Reset(fb.Points, fb.Colors)
		v.stats.LastResetTime = time.Since(start)
		v.stats.FramesReceived++
		v.stats.Points = fb.ValidSamples()
		v.logger.Debugf("uploaded %dx%d frame with %d points", fb.Width, fb.Height, v.stats.Points)
	}

	start := time.Now()
	img := v.renderer.Render(v.camera)
	if img == nil {
		return nil, ErrNoImage
	}
	elapsed := time.Since(start)

	v.stats.FramesDrawn++
	v.stats.LastRenderTime = elapsed
	v.stats.RenderTime += elapsed
	v.lastImage = img
	return img, nil
}

// Get the image produced by the last display tick.
func (v *Viewer) LastImage() (*image.RGBA, error) {
	if v.lastImage == nil {
		return nil, ErrNoImage
	}
	return v.lastImage, nil
}
