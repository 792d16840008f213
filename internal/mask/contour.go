package mask

import "image"

// Boundary directions, clockwise on screen (y grows downwards).
const (
	dirRight = iota
	dirDown
	dirLeft
	dirUp
)

var steps = [4]image.Point{
	dirRight: {X: 1},
	dirDown:  {Y: 1},
	dirLeft:  {X: -1},
	dirUp:    {Y: -1},
}

// Contours traces the outer boundaries of the mask's foreground along pixel
// edges. Vertices sit on pixel corners, so a ring around the pixels
// (x0..x1, y0..y1) has corners (x0, y0) and (x1+1, y1+1). Rings run clockwise
// on screen. Hole boundaries are not returned, and diagonally touching pixels
// produce separate rings. Only corners where the boundary turns are kept.
func Contours(m *Mask) [][]image.Point {
	// One pixel of virtual background on every side lets foreground touching
	// the border close its ring like any other.
	pw, ph := m.Width+2, m.Height+2
	padded := func(x, y int) bool {
		return m.At(x-1, y-1) != 0
	}

	// Outgoing edge directions per corner vertex, as bits.
	cw := pw + 1
	out := make([]uint8, cw*(ph+1))
	for y := 1; y < ph-1; y++ {
		for x := 1; x < pw-1; x++ {
			if !padded(x, y) {
				continue
			}
			if !padded(x, y-1) {
				out[y*cw+x] |= 1 << dirRight
			}
			if !padded(x+1, y) {
				out[y*cw+x+1] |= 1 << dirDown
			}
			if !padded(x, y+1) {
				out[(y+1)*cw+x+1] |= 1 << dirLeft
			}
			if !padded(x-1, y) {
				out[(y+1)*cw+x] |= 1 << dirUp
			}
		}
	}

	var rings [][]image.Point
	for v := range out {
		for out[v] != 0 {
			start := image.Point{X: v % cw, Y: v / cw}
			ring := traceRing(out, cw, start)
			if signedArea2(ring) <= 0 {
				continue
			}
			for i := range ring {
				ring[i] = ring[i].Sub(image.Point{X: 1, Y: 1})
			}
			rings = append(rings, ring)
		}
	}
	return rings
}

// traceRing follows unused edges from start until it returns there, consuming
// them. At a saddle corner it turns right, which keeps diagonal neighbours in
// separate rings.
func traceRing(out []uint8, cw int, start image.Point) []image.Point {
	var ring []image.Point
	cur := start
	dir := -1
	for {
		bits := out[cur.Y*cw+cur.X]
		next := -1
		switch {
		case dir < 0:
			for d := dirRight; d <= dirUp; d++ {
				if bits&(1<<d) != 0 {
					next = d
					break
				}
			}
		case bits&(1<<((dir+1)%4)) != 0:
			next = (dir + 1) % 4
		case bits&(1<<dir) != 0:
			next = dir
		default:
			next = (dir + 3) % 4
		}
		out[cur.Y*cw+cur.X] &^= 1 << next
		if next != dir {
			ring = append(ring, cur)
		}
		dir = next
		cur = cur.Add(steps[dir])
		if cur == start {
			break
		}
	}
	if len(ring) > 1 && startIsStraight(ring, dir) {
		ring = ring[1:]
	}
	return ring
}

// startIsStraight reports whether the ring enters its first vertex travelling
// the same way it leaves it, which makes that vertex redundant.
func startIsStraight(ring []image.Point, lastDir int) bool {
	first := ring[1].Sub(ring[0])
	return sign(first) == steps[lastDir]
}

func sign(p image.Point) image.Point {
	s := func(v int) int {
		switch {
		case v > 0:
			return 1
		case v < 0:
			return -1
		}
		return 0
	}
	return image.Point{X: s(p.X), Y: s(p.Y)}
}

// signedArea2 returns twice the shoelace area; clockwise rings on screen are
// positive.
func signedArea2(ring []image.Point) int {
	a := 0
	for i, p := range ring {
		q := ring[(i+1)%len(ring)]
		a += p.X*q.Y - q.X*p.Y
	}
	return a
}
