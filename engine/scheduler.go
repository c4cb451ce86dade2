package engine

import "math"

// Block timing statistics for the last frame rendered by a worker.
type BlockStats struct {
	// The rendered block height
	BlockH uint32

	// The time for rendering this block (in nanoseconds)
	BlockTime int64
}

// A Worker renders a horizontal block of frame rows.
type Worker interface {
	// Get the worker's computation speed estimate relative to a single
	// CPU core.
	SpeedEstimate() float32

	// Retrieve last frame statistics.
	Stats() BlockStats
}

// The BlockScheduler interface is implemented by all block scheduling algorithms.
type BlockScheduler interface {
	// Split frame into blocks of variable height and assign them to the
	// pool of workers.
	//
	// This function returns the block height assignment for each worker in
	// the input list. The assigned heights always add up to frameH.
	Schedule(workers []Worker, frameH uint32) []uint32
}

// The naive scheduler splits the frame according to the static speed
// estimate of each worker.
type naiveScheduler struct{}

// Create a new naive scheduler instance.
func NaiveScheduler() BlockScheduler {
	return naiveScheduler{}
}

func (naiveScheduler) Schedule(workers []Worker, frameH uint32) []uint32 {
	return speedAssignment(workers, frameH)
}

// The perfect scheduler assumes that the volume of work between two
// subsequent frames is approximately the same.
type perfectScheduler struct {
	blockAssignment []uint32
	frameH          uint32
}

// Create a new perfect scheduler instance.
func PerfectScheduler() BlockScheduler {
	return &perfectScheduler{}
}

// When previous frame information is available the scheduler uses the
// following formula for estimating the workload for worker w and frame i+1:
// w_i, f_i+1 = (blockH,w_i / time,w_i) / Σ(blockH_i-1 / time,i-1)
func (sch *perfectScheduler) Schedule(workers []Worker, frameH uint32) []uint32 {
	// Reset the block assignments on the first frame or whenever the
	// worker pool or frame height changes.
	if len(sch.blockAssignment) != len(workers) || sch.frameH != frameH || !hasTimings(workers) {
		sch.frameH = frameH
		sch.blockAssignment = speedAssignment(workers, frameH)
		return sch.blockAssignment
	}

	var total float64
	for _, w := range workers {
		stats := w.Stats()
		total += float64(stats.BlockH) / float64(stats.BlockTime)
	}

	scaler := float64(frameH) / total
	for idx, w := range workers {
		stats := w.Stats()
		sch.blockAssignment[idx] = uint32(math.Max(1.0, math.Floor(float64(stats.BlockH)/float64(stats.BlockTime)*scaler)))
	}

	fitRows(sch.blockAssignment, frameH)
	return sch.blockAssignment
}

// Distribute rows proportionally to each worker's speed estimate.
func speedAssignment(workers []Worker, frameH uint32) []uint32 {
	blockAssignment := make([]uint32, len(workers))
	if len(workers) == 0 {
		return blockAssignment
	}

	var total float64
	for _, w := range workers {
		total += speedOf(w)
	}
	scaler := float64(frameH) / total

	for idx, w := range workers {
		blockAssignment[idx] = uint32(math.Max(1.0, math.Floor(speedOf(w)*scaler)))
	}

	fitRows(blockAssignment, frameH)
	return blockAssignment
}

// Adjust block heights so they add up to frameH. Missing rows are appended
// to the first worker; excess rows are taken from the largest blocks.
func fitRows(blockAssignment []uint32, frameH uint32) {
	var scheduledRows uint32
	for _, rows := range blockAssignment {
		scheduledRows += rows
	}

	if scheduledRows < frameH {
		blockAssignment[0] += frameH - scheduledRows
		return
	}

	for ; scheduledRows > frameH; scheduledRows-- {
		largest := 0
		for idx, rows := range blockAssignment {
			if rows > blockAssignment[largest] {
				largest = idx
			}
		}
		blockAssignment[largest]--
	}
}

// Workers without a usable estimate are treated as baseline speed.
func speedOf(w Worker) float64 {
	if speed := float64(w.SpeedEstimate()); speed > 0 {
		return speed
	}
	return 1.0
}

// Returns true if every worker rendered a non-empty block last frame.
func hasTimings(workers []Worker) bool {
	for _, w := range workers {
		stats := w.Stats()
		if stats.BlockH == 0 || stats.BlockTime <= 0 {
			return false
		}
	}
	return true
}
