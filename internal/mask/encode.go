package mask

import (
	"fmt"

	"github.com/model-collapse/maskcoco/internal/coco"
	"github.com/model-collapse/maskcoco/internal/rle"
)

// Rejection reasons reported on Outcome.Reason.
const (
	ReasonNoRegions    = "no mask regions"
	ReasonSizeMismatch = "mask size does not match image"
	ReasonEmpty        = "mask has no foreground"
	ReasonNoContours   = "mask has no usable contour"
)

// EncodeRequest describes one instance to encode.
type EncodeRequest struct {
	// ID is the annotation id; zero leaves assignment to the document builder.
	ID         int64
	ImageID    int64
	CategoryID int64
	Crowd      bool
	// Regions are the binary areas making up the instance. More than one
	// region is merged by run-length union.
	Regions []*Mask
	Width   int
	Height  int
	// Tolerance bounds the polygon simplification error in pixels.
	Tolerance float64
	// CompressRLE stores crowd encodings with string-packed counts.
	CompressRLE bool
}

// Outcome is the result of Encode. A rejected outcome carries no annotation.
type Outcome struct {
	Annotation coco.Annotation
	Rejected   bool
	Reason     string
}

func rejected(reason string) Outcome {
	return Outcome{Rejected: true, Reason: reason}
}

// Encode converts an instance mask into an annotation record. Degenerate
// input is reported through a rejected Outcome rather than an error.
func Encode(req EncodeRequest) Outcome {
	if len(req.Regions) == 0 {
		return rejected(ReasonNoRegions)
	}
	for _, r := range req.Regions {
		if r == nil || r.Width != req.Width || r.Height != req.Height {
			return rejected(ReasonSizeMismatch)
		}
	}

	m, enc, err := union(req.Regions)
	if err != nil {
		return rejected(fmt.Sprintf("%s: %v", ReasonSizeMismatch, err))
	}

	area := enc.Area()
	if area == 0 {
		return rejected(ReasonEmpty)
	}
	x, y, w, h := enc.BBox()

	ann := coco.Annotation{
		ID:         req.ID,
		ImageID:    req.ImageID,
		CategoryID: req.CategoryID,
		IsCrowd:    coco.Flag(req.Crowd),
		BBox:       [4]float64{float64(x), float64(y), float64(w), float64(h)},
		Area:       float64(area),
	}

	if req.Crowd {
		if req.CompressRLE {
			ann.Segmentation = coco.CompressedRLE(enc)
		} else {
			ann.Segmentation = coco.RawRLE(enc)
		}
		return Outcome{Annotation: ann}
	}

	var rings [][]float64
	for _, contour := range Contours(m) {
		ring := simplify(contour, req.Tolerance)
		if len(ring) < 3 {
			continue
		}
		rings = append(rings, flatten(ring))
	}
	if len(rings) == 0 {
		return rejected(ReasonNoContours)
	}
	ann.Segmentation = coco.Polygons(rings)
	return Outcome{Annotation: ann}
}

// union merges regions, returning the combined mask and its encoding.
func union(regions []*Mask) (*Mask, rle.RLE, error) {
	if len(regions) == 1 {
		return regions[0], regions[0].RLE(), nil
	}
	encs := make([]rle.RLE, len(regions))
	for i, r := range regions {
		encs[i] = r.RLE()
	}
	merged, err := rle.Merge(encs...)
	if err != nil {
		return nil, rle.RLE{}, err
	}
	m, err := FromRLE(merged)
	if err != nil {
		return nil, rle.RLE{}, err
	}
	return m, merged, nil
}
