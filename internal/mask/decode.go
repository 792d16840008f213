package mask

import (
	"errors"
	"fmt"

	"github.com/model-collapse/maskcoco/internal/coco"
)

// MaxPixels bounds the canvas size Decode will allocate.
const MaxPixels = 1 << 28

// ErrInvalidSize is returned for negative or oversized canvases.
var ErrInvalidSize = errors.New("mask: invalid size")

func checkSize(height, width int) error {
	if height < 0 || width < 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if height > 0 && width > MaxPixels/height {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidSize, width, height, MaxPixels)
	}
	return nil
}

// Decode reconstructs a height x width mask from a segmentation.
//
// Polygon rings are rasterized and unioned. Run-length records are expanded at
// their own reference size; when that size differs from height x width the
// result is replaced by an all-ones mask and the second return value is true.
// The fallback keeps crowd regions usable but loses their per-pixel extent;
// callers decide whether it is acceptable for the record at hand.
func Decode(seg coco.Segmentation, height, width int) (*Mask, bool, error) {
	if err := checkSize(height, width); err != nil {
		return nil, false, err
	}
	switch seg.Kind {
	case coco.KindPolygons:
		m, err := rasterize(seg.Polygons, height, width)
		if err != nil {
			return nil, false, fmt.Errorf("rasterize polygons: %w", err)
		}
		return m, false, nil
	case coco.KindCompressedRLE, coco.KindRawRLE:
		if err := checkSize(seg.Height, seg.Width); err != nil {
			return nil, false, fmt.Errorf("rle size: %w", err)
		}
		enc, err := seg.RLE()
		if err != nil {
			return nil, false, err
		}
		m, err := FromRLE(enc)
		if err != nil {
			return nil, false, err
		}
		if m.Height != height || m.Width != width {
			return Ones(width, height), true, nil
		}
		return m, false, nil
	default:
		return nil, false, fmt.Errorf("decode %s segmentation: unsupported kind", seg.Kind)
	}
}
