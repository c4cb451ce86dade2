package renderer

import (
	"image/color"
	"testing"

	"github.com/szellmann/warpvr/scene"
	"github.com/szellmann/warpvr/types"
)

func splatCamera() scene.Camera {
	cam := scene.NewCamera(9, 9)
	cam.LookAt(types.XYZ(0, 0, 5), types.XYZ(0, 0, 0), types.XYZ(0, 1, 0))
	return cam
}

var (
	red   = types.XYZW(1, 0, 0, 1)
	green = types.XYZW(0, 1, 0, 1)
)

func TestSplatSinglePoint(t *testing.T) {
	s := NewSplatter(DefaultOptions(9, 9))
	s.Reset([]types.Vec4{types.XYZW(0, 0, 0, 1)}, []types.Vec4{red})

	img := s.Render(splatCamera())

	if c := img.RGBAAt(4, 4); c != (color.RGBA{255, 0, 0, 255}) {
		t.Fatalf("expected center pixel to be red; got %v", c)
	}
	expBg := color.RGBA{26, 26, 26, 255}
	if c := img.RGBAAt(0, 0); c != expBg {
		t.Fatalf("expected corner pixel to be %v; got %v", expBg, c)
	}
	if s.NumPoints() != 1 {
		t.Fatalf("expected 1 point; got %d", s.NumPoints())
	}
}

func TestSplatDepthOrder(t *testing.T) {
	far := types.XYZW(0, 0, 0, 1)
	near := types.XYZW(0, 0, 1, 1)

	type spec struct {
		points []types.Vec4
		colors []types.Vec4
	}
	specs := []spec{
		{[]types.Vec4{far, near}, []types.Vec4{red, green}},
		{[]types.Vec4{near, far}, []types.Vec4{green, red}},
	}

	for index, sp := range specs {
		s := NewSplatter(DefaultOptions(9, 9))
		s.Reset(sp.points, sp.colors)
		img := s.Render(splatCamera())
		if c := img.RGBAAt(4, 4); c != (color.RGBA{0, 255, 0, 255}) {
			t.Fatalf("[spec %d] expected nearest point to win; got %v", index, c)
		}
	}
}

func TestSplatSkipsPoints(t *testing.T) {
	s := NewSplatter(DefaultOptions(9, 9))
	s.Reset(
		[]types.Vec4{
			// Invalid sample
			types.XYZW(0, 0, 0, 0),
			// Behind the camera
			types.XYZW(0, 0, 10, 1),
		},
		[]types.Vec4{red, red},
	)

	img := s.Render(splatCamera())
	for y := 0; y < 9; y++ {
		for x := 0; x < 9; x++ {
			if c := img.RGBAAt(x, y); c.R != c.G {
				t.Fatalf("expected pixel (%d, %d) to show the background; got %v", x, y, c)
			}
		}
	}
}

func TestSplatResetCopies(t *testing.T) {
	points := []types.Vec4{types.XYZW(0, 0, 0, 1)}
	colors := []types.Vec4{red}

	s := NewSplatter(DefaultOptions(9, 9))
	s.Reset(points, colors)
	colors[0] = green

	if c := s.Render(splatCamera()).RGBAAt(4, 4); c != (color.RGBA{255, 0, 0, 255}) {
		t.Fatalf("expected splatter to keep its own copy of the colors; got %v", c)
	}
}

func TestSplatResize(t *testing.T) {
	s := NewSplatter(DefaultOptions(9, 9))
	s.Resize(16, 8)

	img := s.Render(splatCamera())
	if img.Rect.Dx() != 16 || img.Rect.Dy() != 8 {
		t.Fatalf("expected a 16x8 image; got %v", img.Rect)
	}
}

func TestCompositeOverBackground(t *testing.T) {
	c := toRGBA(types.XYZW(0.5, 0, 0, 0.5), types.XYZ(0, 0, 1))
	if exp := (color.RGBA{128, 0, 128, 255}); c != exp {
		t.Fatalf("expected %v; got %v", exp, c)
	}
}
