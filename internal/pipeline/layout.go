package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/model-collapse/maskcoco/internal/coco"
	"github.com/model-collapse/maskcoco/internal/config"
)

// ErrLayout is returned when the dataset root is missing required directories.
var ErrLayout = errors.New("pipeline: dataset layout incomplete")

// Layout holds the resolved directories of one dataset root.
type Layout struct {
	Root          string
	ImagesDir     string
	MasksDir      string
	QuarantineDir string
	Dataset       string
	Subset        string
}

// ResolveLayout applies the dataset settings to root.
func ResolveLayout(root string, ds config.Dataset) Layout {
	root = filepath.Clean(root)
	subset := ds.Subset
	if subset == "" {
		subset = filepath.Base(root)
	}
	return Layout{
		Root:          root,
		ImagesDir:     filepath.Join(root, ds.ImagesDir),
		MasksDir:      filepath.Join(root, ds.MasksDir),
		QuarantineDir: filepath.Join(root, ds.QuarantineDir),
		Dataset:       ds.Name,
		Subset:        subset,
	}
}

// DocumentPath is where the finalized document is written.
func (l Layout) DocumentPath() string {
	return filepath.Join(l.Root, coco.FileName(l.Dataset, l.Subset))
}

// LockPath is the run lock file guarding the root.
func (l Layout) LockPath() string {
	return filepath.Join(l.Root, ".maskcoco.lock")
}

// Check verifies that the root and its image and mask directories exist.
func (l Layout) Check() error {
	for _, dir := range []string{l.Root, l.ImagesDir, l.MasksDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrLayout, dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: %s is not a directory", ErrLayout, dir)
		}
	}
	return nil
}

// Explain describes the expected layout for the pre-flight prompt.
func (l Layout) Explain() string {
	return fmt.Sprintf(`Dataset root: %s
  images:      %s
  masks:       %s (searched recursively; a mask belongs to an image when its
               name starts with the image name, one file per instance)
  quarantine:  %s (images with any unusable mask are moved here together
               with all of their masks)
  document:    %s
`, l.Root, l.ImagesDir, l.MasksDir, l.QuarantineDir, l.DocumentPath())
}
