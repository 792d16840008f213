package rle

import (
	"fmt"
	"math"
)

// Compress packs counts into the compact ASCII form used by annotation
// documents: each value (delta-coded against the count two positions back,
// from the fourth value on) is written as 5-bit groups with a continuation bit,
// offset into the printable range starting at '0'.
func Compress(counts []uint32) string {
	buf := make([]byte, 0, len(counts)*2)
	for i, c := range counts {
		x := int64(c)
		if i > 2 {
			x -= int64(counts[i-2])
		}
		for more := true; more; {
			b := byte(x & 0x1f)
			x >>= 5
			if b&0x10 != 0 {
				more = x != -1
			} else {
				more = x != 0
			}
			if more {
				b |= 0x20
			}
			buf = append(buf, b+48)
		}
	}
	return string(buf)
}

// Decompress reverses Compress.
func Decompress(s string) ([]uint32, error) {
	var counts []uint32
	for p := 0; p < len(s); {
		var x int64
		k := 0
		for more := true; more; {
			if p >= len(s) {
				return nil, fmt.Errorf("rle: truncated compressed counts at byte %d", p)
			}
			c := int64(s[p]) - 48
			if c < 0 || c > 0x3f {
				return nil, fmt.Errorf("rle: invalid compressed byte %q at %d", s[p], p)
			}
			if k >= 12 {
				return nil, fmt.Errorf("rle: compressed value too long at byte %d", p)
			}
			x |= (c & 0x1f) << (5 * k)
			more = c&0x20 != 0
			p++
			k++
			if !more && c&0x10 != 0 {
				x |= -1 << (5 * k)
			}
		}
		if m := len(counts); m > 2 {
			x += int64(counts[m-2])
		}
		if x < 0 || x > math.MaxUint32 {
			return nil, fmt.Errorf("rle: compressed count %d out of range", x)
		}
		counts = append(counts, uint32(x))
	}
	return counts, nil
}
