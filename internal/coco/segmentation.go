package coco

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/model-collapse/maskcoco/internal/rle"
)

// SegmentationKind tags the representation held by a Segmentation.
type SegmentationKind int

const (
	KindNone SegmentationKind = iota
	// KindPolygons is a list of closed rings, each a flat x,y sequence.
	KindPolygons
	// KindCompressedRLE is a run-length encoding with string-packed counts.
	KindCompressedRLE
	// KindRawRLE is a run-length encoding with plain integer counts.
	KindRawRLE
)

func (k SegmentationKind) String() string {
	switch k {
	case KindPolygons:
		return "polygons"
	case KindCompressedRLE:
		return "compressed_rle"
	case KindRawRLE:
		return "raw_rle"
	default:
		return "none"
	}
}

// Segmentation is the tagged union stored on an annotation. Only the fields
// belonging to Kind are meaningful.
type Segmentation struct {
	Kind     SegmentationKind
	Polygons [][]float64
	// Packed holds the compressed counts string for KindCompressedRLE.
	Packed string
	// Counts holds the run lengths for KindRawRLE.
	Counts []uint32
	// Height and Width are the RLE reference size.
	Height int
	Width  int
}

// Polygons wraps a list of flat x,y rings.
func Polygons(rings [][]float64) Segmentation {
	return Segmentation{Kind: KindPolygons, Polygons: rings}
}

// RawRLE wraps an encoding with plain counts.
func RawRLE(r rle.RLE) Segmentation {
	return Segmentation{Kind: KindRawRLE, Counts: r.Counts, Height: r.Height, Width: r.Width}
}

// CompressedRLE wraps an encoding, packing its counts into the string form.
func CompressedRLE(r rle.RLE) Segmentation {
	return Segmentation{Kind: KindCompressedRLE, Packed: rle.Compress(r.Counts), Height: r.Height, Width: r.Width}
}

// RLE returns the run-length encoding of an RLE segmentation.
func (s Segmentation) RLE() (rle.RLE, error) {
	switch s.Kind {
	case KindRawRLE:
		return rle.RLE{Height: s.Height, Width: s.Width, Counts: s.Counts}, nil
	case KindCompressedRLE:
		counts, err := rle.Decompress(s.Packed)
		if err != nil {
			return rle.RLE{}, err
		}
		return rle.RLE{Height: s.Height, Width: s.Width, Counts: counts}, nil
	default:
		return rle.RLE{}, fmt.Errorf("coco: %s segmentation has no run-length form", s.Kind)
	}
}

type rleJSON struct {
	Counts json.RawMessage `json:"counts"`
	Size   []int           `json:"size"`
}

func (s Segmentation) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case KindPolygons:
		rings := s.Polygons
		if rings == nil {
			rings = [][]float64{}
		}
		return json.Marshal(rings)
	case KindCompressedRLE:
		counts, err := json.Marshal(s.Packed)
		if err != nil {
			return nil, err
		}
		return json.Marshal(rleJSON{Counts: counts, Size: []int{s.Height, s.Width}})
	case KindRawRLE:
		list := s.Counts
		if list == nil {
			list = []uint32{}
		}
		counts, err := json.Marshal(list)
		if err != nil {
			return nil, err
		}
		return json.Marshal(rleJSON{Counts: counts, Size: []int{s.Height, s.Width}})
	default:
		return nil, errors.New("coco: cannot marshal empty segmentation")
	}
}

func (s *Segmentation) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("coco: empty segmentation")
	}
	switch data[0] {
	case '[':
		var rings [][]float64
		if err := json.Unmarshal(data, &rings); err != nil {
			return fmt.Errorf("coco: polygon segmentation: %w", err)
		}
		*s = Polygons(rings)
		return nil
	case '{':
		var raw rleJSON
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("coco: rle segmentation: %w", err)
		}
		if len(raw.Size) != 2 {
			return fmt.Errorf("coco: rle size must be [height, width], got %v", raw.Size)
		}
		counts := bytes.TrimSpace(raw.Counts)
		if len(counts) == 0 {
			return errors.New("coco: rle segmentation without counts")
		}
		if counts[0] == '"' {
			var packed string
			if err := json.Unmarshal(counts, &packed); err != nil {
				return fmt.Errorf("coco: rle counts: %w", err)
			}
			*s = Segmentation{Kind: KindCompressedRLE, Packed: packed, Height: raw.Size[0], Width: raw.Size[1]}
			return nil
		}
		var list []uint32
		if err := json.Unmarshal(counts, &list); err != nil {
			return fmt.Errorf("coco: rle counts: %w", err)
		}
		*s = Segmentation{Kind: KindRawRLE, Counts: list, Height: raw.Size[0], Width: raw.Size[1]}
		return nil
	default:
		return fmt.Errorf("coco: unrecognised segmentation %.20s", data)
	}
}
