package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/szellmann/warpvr/frame"
	"github.com/szellmann/warpvr/scene"
	"github.com/szellmann/warpvr/types"
)

// SharedState is the client structure shared between the render/input loop
// and the network loop. A single mutex guards every field and no method
// performs I/O or rendering while holding it.
type SharedState struct {
	mu sync.Mutex

	camera scene.Camera

	// Closed and replaced whenever the camera changes so that waiters can
	// select on it together with a context.
	changed chan struct{}

	// The most recently committed frame, sized for the camera viewport.
	frame   frame.Buffer
	newData bool
}

// Create shared state for an initial camera.
func NewSharedState(cam scene.Camera) *SharedState {
	s := &SharedState{
		camera:  cam,
		changed: make(chan struct{}),
	}
	s.frame.Resize(int(cam.Viewport.W), int(cam.Viewport.H))
	return s
}

// Publish a new camera. If the viewport dimensions change the buffered frame
// is reallocated and any unconsumed frame data is discarded. Waiters blocked
// in WaitForCamera are woken if the camera differs from the current one.
func (s *SharedState) SetCamera(cam scene.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.camera.Equal(cam) {
		return
	}

	if !s.camera.Viewport.SameSize(cam.Viewport) {
		s.frame.Resize(int(cam.Viewport.W), int(cam.Viewport.H))
		s.newData = false
	}

	s.camera = cam
	close(s.changed)
	s.changed = make(chan struct{})
}

// Get a copy of the current camera.
func (s *SharedState) Camera() scene.Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera
}

// Block until the shared camera differs from last and return it. The wait
// ends early with the context error if ctx is done.
func (s *SharedState) WaitForCamera(ctx context.Context, last scene.Camera) (scene.Camera, error) {
	for {
		s.mu.Lock()
		cam := s.camera
		changed := s.changed
		s.mu.Unlock()

		if !cam.Equal(last) {
			return cam, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return scene.Camera{}, context.Cause(ctx)
		}
	}
}

// Copy a complete frame into the shared buffers and flag it as new. Frames
// rendered for a viewport whose dimensions no longer match the current
// camera are rejected with ErrStaleFrame.
func (s *SharedState) CommitFrame(vp scene.Viewport, points, colors []types.Vec4) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.frame.HasSize(int(vp.W), int(vp.H)) {
		return fmt.Errorf("%w: frame is %dx%d; viewport is %dx%d", ErrStaleFrame, vp.W, vp.H, s.frame.Width, s.frame.Height)
	}
	if len(points) != s.frame.Len() || len(colors) != s.frame.Len() {
		return fmt.Errorf("%w: got %d points and %d colors for %d pixels", ErrStaleFrame, len(points), len(colors), s.frame.Len())
	}

	copy(s.frame.Points, points)
	copy(s.frame.Colors, colors)
	s.newData = true
	return nil
}

// Return a copy of the most recently committed frame if it has not been
// consumed yet. The new-data flag is cleared.
func (s *SharedState) TakeFrameIfNew() (frame.Buffer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.newData {
		return frame.Buffer{}, false
	}
	s.newData = false
	return s.frame.Clone(), true
}

// Returns true if a committed frame is waiting to be consumed.
func (s *SharedState) HasNewFrame() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newData
}
