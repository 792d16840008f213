package dataset

import "github.com/model-collapse/maskcoco/internal/mask"

// Instances are the decoded object masks of one image. The zero value means
// the image has no instances.
type Instances struct {
	ImageID  int64
	Height   int
	Width    int
	Masks    []*mask.Mask
	ClassIDs []int32
}

// Empty reports whether there are no instances.
func (in Instances) Empty() bool {
	return len(in.Masks) == 0
}

// Len returns the number of instances.
func (in Instances) Len() int {
	return len(in.Masks)
}

// Stacked returns the masks as one [H, W, N] array in row-major order.
func (in Instances) Stacked() []uint8 {
	n := len(in.Masks)
	if n == 0 {
		return nil
	}
	out := make([]uint8, in.Height*in.Width*n)
	for k, m := range in.Masks {
		for i, p := range m.Pix {
			out[i*n+k] = p
		}
	}
	return out
}
