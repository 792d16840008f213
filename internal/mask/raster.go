package mask

import (
	"fmt"
	"image"
	"image/color"

	"github.com/llgcode/draw2d"
	"github.com/llgcode/draw2d/draw2dimg"
)

// coverage is the minimum alpha for a rasterized pixel to count as
// foreground; half coverage approximates sampling at the pixel centre.
const coverage = 0x80

// rasterize fills every ring onto a height x width canvas and returns the
// union of the filled areas.
func rasterize(rings [][]float64, height, width int) (*Mask, error) {
	m := New(width, height)
	if width == 0 || height == 0 {
		return m, nil
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	gc := draw2dimg.NewGraphicContext(canvas)
	gc.SetFillColor(color.RGBA{255, 255, 255, 255})
	gc.SetFillRule(draw2d.FillRuleWinding)

	for i, ring := range rings {
		if len(ring)%2 != 0 {
			return nil, fmt.Errorf("polygon %d has an odd number of coordinates (%d)", i, len(ring))
		}
		if len(ring) < 6 {
			continue
		}
		// Each ring is filled on its own so overlapping parts union rather
		// than cancel.
		gc.BeginPath()
		gc.MoveTo(ring[0], ring[1])
		for j := 2; j < len(ring); j += 2 {
			gc.LineTo(ring[j], ring[j+1])
		}
		gc.Close()
		gc.Fill()
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if canvas.Pix[y*canvas.Stride+x*4+3] >= coverage {
				m.Pix[y*width+x] = 1
			}
		}
	}
	return m, nil
}
