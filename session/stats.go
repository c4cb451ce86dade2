package session

import "time"

// Session statistics. Durations are totals across all completed frames.
type Stats struct {
	// Completed request/response cycles.
	Frames uint64

	// Server: cameras dropped because of a payload size mismatch.
	RejectedCameras uint64

	// Client: frames dropped because the viewport changed while they were in flight.
	StaleFrames uint64

	// Server: time spent inside the render engine and writing buffers.
	RenderTime time.Duration
	SendTime   time.Duration

	// Client: time between sending a camera and receiving its colors.
	RoundTripTime time.Duration

	// Duration of the last completed cycle.
	LastFrameTime time.Duration

	BytesIn  uint64
	BytesOut uint64
}

func avg(total time.Duration, count uint64) time.Duration {
	if count == 0 {
		return 0
	}
	return total / time.Duration(count)
}

func (s Stats) AvgRenderTime() time.Duration {
	return avg(s.RenderTime, s.Frames)
}

func (s Stats) AvgSendTime() time.Duration {
	return avg(s.SendTime, s.Frames)
}

func (s Stats) AvgRoundTripTime() time.Duration {
	return avg(s.RoundTripTime, s.Frames+s.StaleFrames)
}
