package renderer

import (
	"image"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/szellmann/warpvr/scene"
	"github.com/szellmann/warpvr/types"
)

// Splatter is a CPU PointRenderer that projects every valid point with the
// camera matrices and draws it as a small square, resolving overlaps with a
// depth buffer. Colors are treated as premultiplied and composited over the
// background.
type Splatter struct {
	options Options

	points []types.Vec4
	colors []types.Vec4

	img   *image.RGBA
	depth []float32
}

// Create a splatter with the specified options.
func NewSplatter(opts Options) *Splatter {
	if opts.PointSize == 0 {
		opts.PointSize = 1
	}
	s := &Splatter{options: opts}
	s.Resize(int(opts.FrameW), int(opts.FrameH))
	return s
}

func (s *Splatter) Reset(points, colors []types.Vec4) {
	n := len(points)
	if len(colors) < n {
		n = len(colors)
	}

	s.points = append(s.points[:0], points[:n]...)
	s.colors = append(s.colors[:0], colors[:n]...)
}

func (s *Splatter) Resize(w, h int) {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	if s.img != nil && s.img.Rect.Dx() == w && s.img.Rect.Dy() == h {
		return
	}

	s.options.FrameW, s.options.FrameH = uint32(w), uint32(h)
	s.img = image.NewRGBA(image.Rect(0, 0, w, h))
	s.depth = make([]float32, w*h)
}

// Get the number of valid points in the current point set.
func (s *Splatter) NumPoints() int {
	count := 0
	for _, p := range s.points {
		if p[3] != 0 {
			count++
		}
	}
	return count
}

func (s *Splatter) Render(cam scene.Camera) *image.RGBA {
	w, h := s.img.Rect.Dx(), s.img.Rect.Dy()

	bg := toRGBA(types.Vec4{}, s.options.Background)
	for i := range s.depth {
		s.depth[i] = float32(math.Inf(1))
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s.img.SetRGBA(x, y, bg)
		}
	}
	if w == 0 || h == 0 {
		return s.img
	}

	aspect := float32(w) / float32(h)
	view := mgl32.LookAtV(mgl32.Vec3(cam.Eye), mgl32.Vec3(cam.Center), mgl32.Vec3(cam.Up))
	proj := mgl32.Perspective(cam.Projection.FOV, aspect, cam.Projection.Near, cam.Projection.Far)
	viewProj := proj.Mul4(view)

	size := int(s.options.PointSize)
	for idx, p := range s.points {
		if p[3] == 0 {
			continue
		}

		clip := viewProj.Mul4x1(mgl32.Vec4{p[0], p[1], p[2], 1})
		if clip[3] <= 0 {
			continue
		}
		ndc := clip.Vec3().Mul(1 / clip[3])
		if ndc[0] < -1 || ndc[0] > 1 || ndc[1] < -1 || ndc[1] > 1 || ndc[2] < -1 || ndc[2] > 1 {
			continue
		}

		// Row 0 is the top of the image.
		px := int((ndc[0]+1)*0.5*float32(w)) - size/2
		py := int((1-ndc[1])*0.5*float32(h)) - size/2
		c := toRGBA(s.colors[idx], s.options.Background)

		// The clip space w component holds the view space distance.
		s.splat(px, py, size, clip[3], c)
	}

	return s.img
}

func (s *Splatter) splat(px, py, size int, depth float32, c color.RGBA) {
	w, h := s.img.Rect.Dx(), s.img.Rect.Dy()
	for y := py; y < py+size; y++ {
		if y < 0 || y >= h {
			continue
		}
		for x := px; x < px+size; x++ {
			if x < 0 || x >= w {
				continue
			}
			if depth >= s.depth[y*w+x] {
				continue
			}
			s.depth[y*w+x] = depth
			s.img.SetRGBA(x, y, c)
		}
	}
}

// Composite a premultiplied color over an opaque background.
func toRGBA(c types.Vec4, bg types.Vec3) color.RGBA {
	transmittance := 1 - clamp01(c[3])
	return color.RGBA{
		R: toByte(c[0] + transmittance*bg[0]),
		G: toByte(c[1] + transmittance*bg[1]),
		B: toByte(c[2] + transmittance*bg[2]),
		A: 255,
	}
}

func toByte(v float32) uint8 {
	return uint8(clamp01(v)*255 + 0.5)
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
