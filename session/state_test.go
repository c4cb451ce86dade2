package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/szellmann/warpvr/scene"
	"github.com/szellmann/warpvr/types"
)

// Build a camera whose every field is derived from v so that a mix of two
// different cameras can be detected.
func cameraFromValue(v int) scene.Camera {
	f := float32(v)
	cam := scene.Camera{
		Eye:    types.XYZ(f, f, f),
		Center: types.XYZ(f, f, f),
		Up:     types.XYZ(f, f, f),
	}
	cam.SetViewport(v, v, 4, 4)
	cam.Perspective(f, f, f)
	return cam
}

func TestSetCameraNoTornReads(t *testing.T) {
	state := NewSharedState(cameraFromValue(0))

	const numWrites = 5000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= numWrites; i++ {
			state.SetCamera(cameraFromValue(i))
		}
	}()

	stop := make(chan struct{})
	errs := make(chan error, 4)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				cam := state.Camera()
				if !cam.Equal(cameraFromValue(int(cam.Viewport.X))) {
					errs <- errors.New("observed torn camera: " + cam.String())
					return
				}
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	assert.True(t, state.Camera().Equal(cameraFromValue(numWrites)))
}

func TestResizeInvalidatesFrame(t *testing.T) {
	cam := scene.NewCamera(2, 2)
	state := NewSharedState(cam)

	old := make([]types.Vec4, 4)
	require.NoError(t, state.CommitFrame(cam.Viewport, old, old))
	require.True(t, state.HasNewFrame())

	resized := cam
	resized.SetViewport(0, 0, 3, 1)
	state.SetCamera(resized)

	_, ok := state.TakeFrameIfNew()
	assert.False(t, ok, "resize must discard the unconsumed frame")

	err := state.CommitFrame(cam.Viewport, old, old)
	assert.ErrorIs(t, err, ErrStaleFrame)

	next := make([]types.Vec4, 3)
	require.NoError(t, state.CommitFrame(resized.Viewport, next, next))
	fb, ok := state.TakeFrameIfNew()
	require.True(t, ok)
	assert.Equal(t, 3, fb.Width)
	assert.Equal(t, 1, fb.Height)
	assert.Len(t, fb.Points, 3)
	assert.Len(t, fb.Colors, 3)
}

func TestCameraMoveKeepsFrame(t *testing.T) {
	cam := scene.NewCamera(2, 2)
	state := NewSharedState(cam)

	samples := make([]types.Vec4, 4)
	require.NoError(t, state.CommitFrame(cam.Viewport, samples, samples))

	moved := cam
	moved.Eye[0] += 1
	state.SetCamera(moved)

	_, ok := state.TakeFrameIfNew()
	assert.True(t, ok, "a camera change that keeps the viewport size must not discard the frame")
}

func TestTakeFrameIfNewOnce(t *testing.T) {
	cam := scene.NewCamera(2, 1)
	state := NewSharedState(cam)

	_, ok := state.TakeFrameIfNew()
	require.False(t, ok)

	points := []types.Vec4{types.XYZW(1, 2, 3, 1), types.XYZW(4, 5, 6, 0)}
	colors := []types.Vec4{types.XYZW(1, 0, 0, 1), types.XYZW(0, 1, 0, 1)}
	require.NoError(t, state.CommitFrame(cam.Viewport, points, colors))

	// Mutating the committed slices must not affect the shared copy.
	points[0] = types.Vec4{}

	fb, ok := state.TakeFrameIfNew()
	require.True(t, ok)
	assert.Equal(t, types.XYZW(1, 2, 3, 1), fb.Points[0])
	assert.Equal(t, colors, fb.Colors)

	_, ok = state.TakeFrameIfNew()
	assert.False(t, ok)
}

func TestWaitForCamera(t *testing.T) {
	cam := scene.NewCamera(4, 4)
	state := NewSharedState(cam)

	result := make(chan scene.Camera, 1)
	go func() {
		got, err := state.WaitForCamera(context.Background(), cam)
		assert.NoError(t, err)
		result <- got
	}()

	select {
	case <-result:
		t.Fatal("wait returned although the camera did not change")
	case <-time.After(50 * time.Millisecond):
	}

	// Re-publishing an identical camera does not wake the waiter.
	state.SetCamera(cam)
	select {
	case <-result:
		t.Fatal("wait returned for an unchanged camera")
	case <-time.After(20 * time.Millisecond):
	}

	moved := cam
	moved.Eye[2] = 5
	state.SetCamera(moved)

	select {
	case got := <-result:
		assert.True(t, got.Equal(moved))
	case <-time.After(time.Second):
		t.Fatal("wait did not return after the camera changed")
	}

	// A camera that already differs returns immediately.
	got, err := state.WaitForCamera(context.Background(), cam)
	require.NoError(t, err)
	assert.True(t, got.Equal(moved))
}

func TestWaitForCameraCancel(t *testing.T) {
	cam := scene.NewCamera(4, 4)
	state := NewSharedState(cam)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := state.WaitForCamera(ctx, cam)
		result <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("wait was not interrupted by cancellation")
	}
}
