package mask

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
)

// DefaultThreshold is the luminance at or above which a pixel is foreground.
const DefaultThreshold = 128

// FromImage binarizes img by luminance.
func FromImage(img image.Image, threshold uint8) *Mask {
	b := img.Bounds()
	m := New(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if g.Y >= threshold {
				m.Pix[(y-b.Min.Y)*m.Width+(x-b.Min.X)] = 1
			}
		}
	}
	return m
}

// Load decodes the image at path and binarizes it.
func Load(path string, threshold uint8) (*Mask, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mask: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode mask %s: %w", path, err)
	}
	return FromImage(img, threshold), nil
}

// Image renders the mask as an 8-bit grayscale image with foreground at 255.
func (m *Mask) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, p := range m.Pix {
		if p != 0 {
			img.Pix[i] = 255
		}
	}
	return img
}

// WritePNG encodes the mask as a grayscale PNG.
func (m *Mask) WritePNG(w io.Writer) error {
	return png.Encode(w, m.Image())
}

// Save writes the mask as a PNG file.
func (m *Mask) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := m.WritePNG(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
