package renderer

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/szellmann/warpvr/scene"
	"github.com/szellmann/warpvr/session"
	"github.com/szellmann/warpvr/types"
)

type recordingRenderer struct {
	resets  int
	renders int
	size    [2]int
	points  []types.Vec4
}

func (r *recordingRenderer) Reset(points, _ []types.Vec4) {
	r.resets++
	r.points = points
}

func (r *recordingRenderer) Resize(w, h int) {
	r.size = [2]int{w, h}
}

func (r *recordingRenderer) Render(scene.Camera) *image.RGBA {
	r.renders++
	return image.NewRGBA(image.Rect(0, 0, r.size[0], r.size[1]))
}

func newTestViewer() (*Viewer, *session.SharedState, *recordingRenderer) {
	cam := scene.NewCamera(4, 4)
	cam.LookAt(types.XYZ(0, 0, 10), types.XYZ(0, 0, 0), types.XYZ(0, 1, 0))
	state := session.NewSharedState(cam)
	pr := &recordingRenderer{}
	return NewViewer(state, pr), state, pr
}

func TestViewerPointerDrag(t *testing.T) {
	v, state, pr := newTestViewer()
	assert.Equal(t, [2]int{4, 4}, pr.size)

	initial := state.Camera()
	for _, button := range []Button{LeftButton, MiddleButton, RightButton} {
		before := state.Camera()
		v.OnPointerDrag(button, NoModifier, 10, 10)
		assert.False(t, state.Camera().Equal(before), "expected button %d to move the camera", button)
		assert.True(t, state.Camera().Equal(v.Camera()))
	}
	assert.False(t, state.Camera().Equal(initial))

	before := state.Camera()
	v.OnPointerDrag(Button(42), NoModifier, 10, 10)
	assert.True(t, state.Camera().Equal(before))
}

func TestViewerModifierBindings(t *testing.T) {
	type spec struct {
		mods         Modifier
		expCenterMov bool
	}
	specs := []spec{
		// Plain left drag orbits around a fixed center.
		{NoModifier, false},
		// Alt+left pans.
		{AltModifier, true},
		// Unbound combinations fall back to the plain binding.
		{ShiftModifier, false},
	}

	for index, s := range specs {
		v, state, _ := newTestViewer()
		before := state.Camera()
		v.OnPointerDrag(LeftButton, s.mods, 10, 0)

		after := state.Camera()
		if after.Equal(before) {
			t.Fatalf("[spec %d] expected drag to update the camera", index)
		}
		if moved := after.Center != before.Center; moved != s.expCenterMov {
			t.Fatalf("[spec %d] expected center moved to be %t; got %t", index, s.expCenterMov, moved)
		}
	}
}

func TestViewerResize(t *testing.T) {
	v, state, pr := newTestViewer()

	assert.ErrorIs(t, v.OnResize(0, 10), ErrInvalidSize)

	require.NoError(t, v.OnResize(20, 10))
	assert.Equal(t, [2]int{20, 10}, pr.size)

	cam := state.Camera()
	assert.Equal(t, scene.Viewport{X: 0, Y: 0, W: 20, H: 10}, cam.Viewport)
	assert.Equal(t, scene.Projection{FOV: scene.DefaultFOV, Near: scene.DefaultNear, Far: scene.DefaultFar}, cam.Projection)
}

func TestViewerDisplayTick(t *testing.T) {
	v, state, pr := newTestViewer()

	_, err := v.LastImage()
	assert.ErrorIs(t, err, ErrNoImage)

	points := make([]types.Vec4, 16)
	points[3] = types.XYZW(1, 2, 3, 1)
	require.NoError(t, state.CommitFrame(state.Camera().Viewport, points, make([]types.Vec4, 16)))

	img, err := v.OnDisplayTick()
	require.NoError(t, err)
	assert.Equal(t, 4, img.Rect.Dx())
	assert.Equal(t, 1, pr.resets)
	assert.Equal(t, types.XYZW(1, 2, 3, 1), pr.points[3])

	// No new frame: the previous point set is drawn again.
	_, err = v.OnDisplayTick()
	require.NoError(t, err)
	assert.Equal(t, 1, pr.resets)
	assert.Equal(t, 2, pr.renders)

	stats := v.Stats()
	assert.Equal(t, uint64(2), stats.FramesDrawn)
	assert.Equal(t, uint64(1), stats.FramesReceived)
	assert.Equal(t, 1, stats.Points)

	last, err := v.LastImage()
	require.NoError(t, err)
	assert.NotNil(t, last)
}
