package mask

import (
	"image"
	"math"
)

type fpoint struct {
	X, Y float64
}

func toFloat(ring []image.Point) []fpoint {
	out := make([]fpoint, len(ring))
	for i, p := range ring {
		out[i] = fpoint{X: float64(p.X), Y: float64(p.Y)}
	}
	return out
}

// simplify reduces a closed ring with the Douglas-Peucker algorithm so that
// no dropped vertex lies farther than tolerance pixels from the result. A
// tolerance of zero returns the ring unchanged.
func simplify(ring []image.Point, tolerance float64) []fpoint {
	pts := toFloat(ring)
	if tolerance <= 0 || len(pts) <= 3 {
		return pts
	}

	// Split the ring at the vertex farthest from the first one and simplify
	// both open halves.
	far, farDist := 0, -1.0
	for i, p := range pts {
		if d := dist(p, pts[0]); d > farDist {
			far, farDist = i, d
		}
	}

	keep := make([]bool, len(pts))
	keep[0], keep[far] = true, true
	closed := append(pts[:len(pts):len(pts)], pts[0])
	douglasPeucker(closed, 0, far, tolerance, keep)
	douglasPeucker(closed, far, len(pts), tolerance, keep)

	out := make([]fpoint, 0, len(pts))
	for i, k := range keep {
		if k {
			out = append(out, pts[i])
		}
	}
	return out
}

func douglasPeucker(pts []fpoint, first, last int, tolerance float64, keep []bool) {
	if last-first < 2 {
		return
	}
	idx, maxDist := -1, 0.0
	for i := first + 1; i < last; i++ {
		if d := segmentDist(pts[i], pts[first], pts[last]); d > maxDist {
			idx, maxDist = i, d
		}
	}
	if idx < 0 || maxDist <= tolerance {
		return
	}
	keep[idx] = true
	douglasPeucker(pts, first, idx, tolerance, keep)
	douglasPeucker(pts, idx, last, tolerance, keep)
}

func dist(a, b fpoint) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func segmentDist(p, a, b fpoint) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return dist(p, a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return dist(p, fpoint{X: a.X + t*dx, Y: a.Y + t*dy})
}

// flatten converts a ring to the flat x0,y0,x1,y1,... form.
func flatten(ring []fpoint) []float64 {
	out := make([]float64, 0, 2*len(ring))
	for _, p := range ring {
		out = append(out, p.X, p.Y)
	}
	return out
}
