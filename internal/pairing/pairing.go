// Package pairing matches source images with their instance mask files.
//
// A mask belongs to an image when its extensionless base name starts with the
// image's extensionless base name; one image may own several masks, one per
// object instance. Names are compared in Unicode NFC so files written by tools
// that decompose accented characters still pair.
package pairing

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/model-collapse/maskcoco/internal/coco"
)

var errStop = errors.New("stop walk")

// Resolver finds images and the masks paired with them.
type Resolver struct {
	ImageDir  string
	MaskDir   string
	ImageExts []string
	MaskExts  []string
}

// Images returns the image files directly inside ImageDir, sorted by name.
func (r *Resolver) Images() ([]string, error) {
	entries, err := os.ReadDir(r.ImageDir)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !hasExt(e.Name(), r.ImageExts) {
			continue
		}
		out = append(out, filepath.Join(r.ImageDir, e.Name()))
	}
	slices.Sort(out)
	return out, nil
}

// Walk lazily yields every mask below MaskDir paired with image, in lexical
// walk order. A walk failure is yielded once as a non-nil error and ends the
// sequence. Each range walks the tree again.
func (r *Resolver) Walk(image string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		prefix := Stem(image)
		err := filepath.WalkDir(r.MaskDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !hasExt(d.Name(), r.MaskExts) {
				return nil
			}
			if !strings.HasPrefix(Stem(path), prefix) {
				return nil
			}
			if !yield(path, nil) {
				return errStop
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			yield("", fmt.Errorf("walk masks for %s: %w", filepath.Base(image), err))
		}
	}
}

// Masks is Walk without errors: a walk failure silently ends the sequence.
func (r *Resolver) Masks(image string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for path, err := range r.Walk(image) {
			if err != nil || !yield(path) {
				return
			}
		}
	}
}

// CollectMasks drains Walk, reporting walk errors.
func (r *Resolver) CollectMasks(image string) ([]string, error) {
	var out []string
	for path, err := range r.Walk(image) {
		if err != nil {
			return nil, err
		}
		out = append(out, path)
	}
	return out, nil
}

// Stem returns the NFC-normalized base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return norm.NFC.String(strings.TrimSuffix(base, filepath.Ext(base)))
}

func hasExt(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return slices.Contains(exts, ext)
}

// IsCrowd reports whether any of the paths carries marker in its base name.
func IsCrowd(marker string, paths ...string) bool {
	if marker == "" {
		return false
	}
	for _, p := range paths {
		if strings.Contains(norm.NFC.String(filepath.Base(p)), marker) {
			return true
		}
	}
	return false
}

// Category returns the first category, in catalog order, whose name occurs in
// the mask's base name.
func Category(maskPath string, categories []coco.Category) (coco.Category, bool) {
	base := norm.NFC.String(filepath.Base(maskPath))
	for _, c := range categories {
		if c.Name != "" && strings.Contains(base, c.Name) {
			return c, true
		}
	}
	return coco.Category{}, false
}
