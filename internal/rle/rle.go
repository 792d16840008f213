// Package rle implements row-major run-length encoding of binary masks.
//
// Counts alternate background and foreground runs over the flattened pixel
// order (row by row), always starting with a background run that may be
// zero-length. The package also provides the compact string form used in
// annotation documents and a run-level union of several encodings.
package rle

import (
	"errors"
	"fmt"
	"sort"
)

// ErrSizeMismatch is returned when encodings of different sizes are combined.
var ErrSizeMismatch = errors.New("rle: size mismatch")

// RLE is a run-length encoded binary mask.
type RLE struct {
	Height int
	Width  int
	Counts []uint32
}

// Encode builds an RLE from row-major pixels. Any non-zero pixel is foreground.
func Encode(pix []uint8, height, width int) RLE {
	r := RLE{Height: height, Width: width}
	var run uint32
	var fg bool
	for _, p := range pix[:height*width] {
		if (p != 0) != fg {
			r.Counts = append(r.Counts, run)
			run = 0
			fg = !fg
		}
		run++
	}
	r.Counts = append(r.Counts, run)
	return r
}

// Validate checks that the runs cover exactly Height*Width pixels.
func (r RLE) Validate() error {
	if r.Height < 0 || r.Width < 0 {
		return fmt.Errorf("rle: invalid size %dx%d", r.Height, r.Width)
	}
	var total uint64
	for _, c := range r.Counts {
		total += uint64(c)
	}
	if want := uint64(r.Height) * uint64(r.Width); total != want {
		return fmt.Errorf("rle: counts cover %d pixels, size %dx%d needs %d", total, r.Height, r.Width, want)
	}
	return nil
}

// Decode expands the runs into row-major 0/1 pixels.
func (r RLE) Decode() ([]uint8, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	pix := make([]uint8, r.Height*r.Width)
	pos := 0
	for i, c := range r.Counts {
		n := int(c)
		if i%2 == 1 {
			for j := pos; j < pos+n; j++ {
				pix[j] = 1
			}
		}
		pos += n
	}
	return pix, nil
}

// Area returns the number of foreground pixels.
func (r RLE) Area() int {
	area := 0
	for i := 1; i < len(r.Counts); i += 2 {
		area += int(r.Counts[i])
	}
	return area
}

// BBox returns the foreground bounding box as x, y, width, height. An empty
// encoding yields all zeros.
func (r RLE) BBox() (x, y, w, h int) {
	if r.Width == 0 {
		return 0, 0, 0, 0
	}
	xMin, yMin := r.Width, r.Height
	xMax, yMax := -1, -1
	pos := 0
	for i, c := range r.Counts {
		n := int(c)
		if i%2 == 1 && n > 0 {
			first, last := pos, pos+n-1
			y0, y1 := first/r.Width, last/r.Width
			x0, x1 := first%r.Width, last%r.Width
			if y0 != y1 {
				x0, x1 = 0, r.Width-1
			}
			yMin = min(yMin, y0)
			yMax = max(yMax, y1)
			xMin = min(xMin, x0)
			xMax = max(xMax, x1)
		}
		pos += n
	}
	if xMax < 0 {
		return 0, 0, 0, 0
	}
	return xMin, yMin, xMax - xMin + 1, yMax - yMin + 1
}

type span struct {
	start, end int
}

func (r RLE) spans() []span {
	var out []span
	pos := 0
	for i, c := range r.Counts {
		n := int(c)
		if i%2 == 1 && n > 0 {
			out = append(out, span{start: pos, end: pos + n})
		}
		pos += n
	}
	return out
}

// Merge returns the union of the given encodings. All inputs must share the
// same size.
func Merge(rs ...RLE) (RLE, error) {
	if len(rs) == 0 {
		return RLE{}, errors.New("rle: nothing to merge")
	}
	h, w := rs[0].Height, rs[0].Width
	var all []span
	for _, r := range rs {
		if r.Height != h || r.Width != w {
			return RLE{}, fmt.Errorf("%w: %dx%d vs %dx%d", ErrSizeMismatch, r.Height, r.Width, h, w)
		}
		if err := r.Validate(); err != nil {
			return RLE{}, err
		}
		all = append(all, r.spans()...)
	}
	if len(rs) == 1 {
		return RLE{Height: h, Width: w, Counts: append([]uint32(nil), rs[0].Counts...)}, nil
	}

	sort.Slice(all, func(i, j int) bool { return all[i].start < all[j].start })

	out := RLE{Height: h, Width: w}
	pos := 0
	for i := 0; i < len(all); {
		cur := all[i]
		i++
		for i < len(all) && all[i].start <= cur.end {
			cur.end = max(cur.end, all[i].end)
			i++
		}
		out.Counts = append(out.Counts, uint32(cur.start-pos), uint32(cur.end-cur.start))
		pos = cur.end
	}
	out.Counts = append(out.Counts, uint32(h*w-pos))
	return out, nil
}
