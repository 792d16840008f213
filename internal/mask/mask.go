// Package mask holds binary instance masks and converts them to and from
// annotation segmentations.
//
// Encode traces the pixel-edge boundary of a mask into polygon rings (or a
// run-length encoding for crowd instances) and computes its bounding box and
// area. Decode rasterizes polygons with draw2d or expands run lengths back into
// a mask, substituting an all-ones mask when a run-length record was computed
// against a different reference size.
package mask

import (
	"image"

	"github.com/model-collapse/maskcoco/internal/rle"
)

// Mask is a row-major binary raster with values 0 and 1.
type Mask struct {
	Width  int
	Height int
	Pix    []uint8
}

// New returns an all-zero mask.
func New(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// Ones returns an all-one mask.
func Ones(width, height int) *Mask {
	m := New(width, height)
	for i := range m.Pix {
		m.Pix[i] = 1
	}
	return m
}

// FromRLE expands an encoding at its own reference size.
func FromRLE(r rle.RLE) (*Mask, error) {
	pix, err := r.Decode()
	if err != nil {
		return nil, err
	}
	return &Mask{Width: r.Width, Height: r.Height, Pix: pix}, nil
}

// At reports the pixel at x, y. Coordinates outside the mask read as 0.
func (m *Mask) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return 0
	}
	return m.Pix[y*m.Width+x]
}

// Set marks the pixel at x, y as foreground or background.
func (m *Mask) Set(x, y int, on bool) {
	var v uint8
	if on {
		v = 1
	}
	m.Pix[y*m.Width+x] = v
}

// Fill sets every pixel inside r (clipped to the mask) to foreground.
func (m *Mask) Fill(r image.Rectangle) {
	r = r.Intersect(image.Rect(0, 0, m.Width, m.Height))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.Pix[y*m.Width+x] = 1
		}
	}
}

// Area returns the foreground pixel count.
func (m *Mask) Area() int {
	n := 0
	for _, p := range m.Pix {
		if p != 0 {
			n++
		}
	}
	return n
}

// Empty reports whether the mask has no foreground.
func (m *Mask) Empty() bool {
	for _, p := range m.Pix {
		if p != 0 {
			return false
		}
	}
	return true
}

// Equal reports whether both masks have the same size and pixels.
func (m *Mask) Equal(o *Mask) bool {
	if m.Width != o.Width || m.Height != o.Height {
		return false
	}
	for i := range m.Pix {
		if (m.Pix[i] != 0) != (o.Pix[i] != 0) {
			return false
		}
	}
	return true
}

// RLE returns the run-length encoding of the mask.
func (m *Mask) RLE() rle.RLE {
	return rle.Encode(m.Pix, m.Height, m.Width)
}
