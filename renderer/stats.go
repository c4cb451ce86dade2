package renderer

import "time"

type FrameStats struct {
	// Number of display ticks that produced an image.
	FramesDrawn uint64

	// Number of server frames uploaded to the point renderer.
	FramesReceived uint64

	// Number of valid points in the current point set.
	Points int

	// Time spent uploading the last server frame.
	LastResetTime time.Duration

	// Time spent drawing the last image and in total.
	LastRenderTime time.Duration
	RenderTime     time.Duration
}

// Get the average time spent drawing an image.
func (s FrameStats) AvgRenderTime() time.Duration {
	if s.FramesDrawn == 0 {
		return 0
	}
	return s.RenderTime / time.Duration(s.FramesDrawn)
}
