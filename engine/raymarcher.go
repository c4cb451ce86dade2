package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/szellmann/warpvr/frame"
	"github.com/szellmann/warpvr/log"
	"github.com/szellmann/warpvr/scene"
	"github.com/szellmann/warpvr/types"
	"golang.org/x/sync/errgroup"
)

var ErrBufferSize = errors.New("engine: frame buffer does not match the camera viewport")

const (
	// Rays stop compositing once their opacity reaches this value.
	earlyTerminationAlpha float32 = 0.99

	defaultStepSize  float32 = 0.5
	defaultThreshold float32 = 0.5
)

// RaymarcherOption configures a Raymarcher.
type RaymarcherOption func(*Raymarcher)

// Set the number of block workers. Values < 1 select one worker per CPU.
func WithWorkers(n int) RaymarcherOption {
	return func(r *Raymarcher) {
		if n < 1 {
			n = runtime.NumCPU()
		}
		r.workers = make([]*blockWorker, n)
	}
}

// Set the algorithm used for splitting frames into blocks.
func WithScheduler(sch BlockScheduler) RaymarcherOption {
	return func(r *Raymarcher) {
		r.scheduler = sch
	}
}

// Set the marching step size as a fraction of the smallest voxel extent.
func WithStepSize(step float32) RaymarcherOption {
	return func(r *Raymarcher) {
		if step > 0 {
			r.stepSize = step
		}
	}
}

// Set the accumulated opacity at which the point sample of a ray is emitted.
func WithOpacityThreshold(threshold float32) RaymarcherOption {
	return func(r *Raymarcher) {
		r.threshold = threshold
	}
}

// Set the transfer function.
func WithTransferFunction(tf TransferFunction) RaymarcherOption {
	return func(r *Raymarcher) {
		r.tf = tf
	}
}

// Raymarcher is a CPU RenderEngine that marches camera rays front to back
// through a volume. For each pixel it emits the world space position where
// the accumulated opacity first reaches the threshold together with the
// color composited along the whole ray. Rays that never reach the threshold
// produce an invalid point sample.
type Raymarcher struct {
	logger log.Logger

	volume    *Volume
	tf        TransferFunction
	stepSize  float32
	threshold float32

	scheduler BlockScheduler
	workers   []*blockWorker
}

// Create a new ray marcher for vol.
func NewRaymarcher(vol *Volume, opts ...RaymarcherOption) *Raymarcher {
	r := &Raymarcher{
		logger:    log.New("engine"),
		volume:    vol,
		tf:        DefaultTransferFunction(),
		stepSize:  defaultStepSize,
		threshold: defaultThreshold,
		scheduler: PerfectScheduler(),
	}
	WithWorkers(0)(r)
	for _, opt := range opts {
		opt(r)
	}
	for idx := range r.workers {
		r.workers[idx] = &blockWorker{}
	}
	return r
}

// Render one point and color sample per viewport pixel into fb. Rows are
// split into blocks and rendered in parallel; the result does not depend on
// the block layout.
func (r *Raymarcher) Render(ctx context.Context, cam scene.Camera, fb *frame.Buffer) error {
	w, h := int(cam.Viewport.W), int(cam.Viewport.H)
	if !cam.Viewport.Valid() || !fb.HasSize(w, h) || fb.Len() != w*h {
		return fmt.Errorf("%w: viewport %s; buffer %dx%d", ErrBufferSize, cam.Viewport, fb.Width, fb.Height)
	}

	rays := newRayGenerator(cam)

	workers := make([]Worker, len(r.workers))
	for idx, bw := range r.workers {
		workers[idx] = bw
	}
	blockAssignment := r.scheduler.Schedule(workers, uint32(h))

	start := time.Now()
	group, groupCtx := errgroup.WithContext(ctx)
	var blockY uint32
	for idx, blockH := range blockAssignment {
		blockH := blockH
		bw := r.workers[idx]
		y0, y1 := int(blockY), int(blockY+blockH)
		blockY += blockH

		group.Go(func() error {
			blockStart := time.Now()
			for y := y0; y < y1; y++ {
				if err := groupCtx.Err(); err != nil {
					return err
				}
				r.renderRow(rays, fb, y)
			}
			bw.record(blockH, time.Since(blockStart))
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return fmt.Errorf("engine: render interrupted: %w", err)
	}

	r.logger.Debugf("rendered %dx%d frame using %d blocks in %s", w, h, len(blockAssignment), time.Since(start))
	return nil
}

func (r *Raymarcher) renderRow(rays rayGenerator, fb *frame.Buffer, y int) {
	row := y * rays.width
	for x := 0; x < rays.width; x++ {
		origin, dir := rays.ray(x, y)
		fb.Points[row+x], fb.Colors[row+x] = r.march(origin, dir)
	}
}

// March a single ray through the volume.
func (r *Raymarcher) march(origin, dir types.Vec3) (point, color types.Vec4) {
	tNear, tFar, hit := r.volume.Bounds.Intersect(origin, dir)
	if !hit || math.IsInf(float64(tFar), 0) || math.IsNaN(float64(tFar)) {
		return
	}

	dt := r.stepSize * r.volume.VoxelSize()
	found := false
	for t := tNear + dt*0.5; t < tFar; t += dt {
		pos := origin.Add(dir.Mul(t))
		sample := r.tf[r.volume.Sample(pos)]
		if sample[3] <= 0 {
			continue
		}

		// Front to back compositing
		weight := (1 - color[3]) * sample[3]
		color[0] += weight * sample[0]
		color[1] += weight * sample[1]
		color[2] += weight * sample[2]
		color[3] += weight

		if !found && color[3] >= r.threshold {
			point = pos.Vec4(1)
			found = true
		}
		if color[3] >= earlyTerminationAlpha {
			break
		}
	}
	return point, color
}

// Generates primary rays for a camera through pixel centers.
type rayGenerator struct {
	width, height int
	eye           types.Vec3

	// Image plane extent at unit distance from the eye.
	scaleX, scaleY float32

	// Transforms view space directions to world space.
	invView mgl32.Mat4
}

func newRayGenerator(cam scene.Camera) rayGenerator {
	view := mgl32.LookAtV(mgl32.Vec3(cam.Eye), mgl32.Vec3(cam.Center), mgl32.Vec3(cam.Up))
	tanHalfFOV := float32(math.Tan(float64(cam.Projection.FOV) * 0.5))
	return rayGenerator{
		width:   int(cam.Viewport.W),
		height:  int(cam.Viewport.H),
		eye:     cam.Eye,
		scaleX:  tanHalfFOV * cam.Viewport.Aspect(),
		scaleY:  tanHalfFOV,
		invView: view.Inv(),
	}
}

// Get the ray through the center of pixel (x, y). Row 0 is the top row.
func (g rayGenerator) ray(x, y int) (origin, dir types.Vec3) {
	ndcX := (float32(x)+0.5)/float32(g.width)*2 - 1
	ndcY := 1 - (float32(y)+0.5)/float32(g.height)*2

	viewDir := mgl32.Vec4{ndcX * g.scaleX, ndcY * g.scaleY, -1, 0}
	worldDir := g.invView.Mul4x1(viewDir).Vec3()
	return g.eye, types.Vec3(worldDir).Normalize()
}

// A blockWorker tracks the timing of the block it rendered last frame.
type blockWorker struct {
	blockH    atomic.Uint32
	blockTime atomic.Int64
}

func (bw *blockWorker) SpeedEstimate() float32 {
	return 1.0
}

func (bw *blockWorker) Stats() BlockStats {
	return BlockStats{
		BlockH:    bw.blockH.Load(),
		BlockTime: bw.blockTime.Load(),
	}
}

func (bw *blockWorker) record(blockH uint32, elapsed time.Duration) {
	bw.blockH.Store(blockH)
	bw.blockTime.Store(max(elapsed.Nanoseconds(), 1))
}
