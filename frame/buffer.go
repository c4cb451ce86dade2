// Package frame holds the matched point and color sample arrays produced for
// a single viewport.
package frame

import "github.com/szellmann/warpvr/types"

// A Buffer stores one point sample and one color sample per pixel. The
// fourth component of a point sample is non-zero iff the pixel received a
// traced point.
type Buffer struct {
	Width  int
	Height int

	Points []types.Vec4
	Colors []types.Vec4
}

// Allocate a buffer for a w x h viewport.
func New(w, h int) *Buffer {
	b := &Buffer{}
	b.Resize(w, h)
	return b
}

// Get the number of samples in each array.
func (b *Buffer) Len() int {
	return len(b.Points)
}

// Resize both sample arrays to w*h entries. If the dimensions change the
// previous contents are discarded; resizing to the current dimensions is a
// no-op. It returns true if the arrays were reallocated.
func (b *Buffer) Resize(w, h int) bool {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	if w == b.Width && h == b.Height && b.Points != nil {
		return false
	}

	b.Width, b.Height = w, h
	b.Points = make([]types.Vec4, w*h)
	b.Colors = make([]types.Vec4, w*h)
	return true
}

// Returns true if the buffer holds w x h samples.
func (b *Buffer) HasSize(w, h int) bool {
	return b.Width == w && b.Height == h
}

// Create a deep copy of the buffer.
func (b *Buffer) Clone() Buffer {
	out := Buffer{
		Width:  b.Width,
		Height: b.Height,
		Points: make([]types.Vec4, len(b.Points)),
		Colors: make([]types.Vec4, len(b.Colors)),
	}
	copy(out.Points, b.Points)
	copy(out.Colors, b.Colors)
	return out
}

// Count the samples whose valid component is set.
func (b *Buffer) ValidSamples() int {
	count := 0
	for _, p := range b.Points {
		if p[3] != 0 {
			count++
		}
	}
	return count
}
