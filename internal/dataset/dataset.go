// Package dataset serves decoded instance masks from an annotation document
// for model consumption.
package dataset

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/model-collapse/maskcoco/internal/coco"
	"github.com/model-collapse/maskcoco/internal/logging"
	"github.com/model-collapse/maskcoco/internal/mask"
)

// ErrUnknownImage is returned for image ids absent from the document.
var ErrUnknownImage = errors.New("dataset: unknown image id")

// ImageInfo summarizes one indexed image.
type ImageInfo struct {
	ID          int64  `json:"id"`
	FileName    string `json:"file_name"`
	Path        string `json:"path"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Annotations int    `json:"annotations"`
}

// Dataset indexes a document by image.
type Dataset struct {
	doc      *coco.Document
	imageDir string
	logger   *slog.Logger

	images  map[int64]coco.ImageRecord
	byImage map[int64][]coco.Annotation
	classes map[int64]int32
	ordered []coco.Category
}

// DefaultImageDir is the image folder Load assumes below the dataset root.
const DefaultImageDir = "Images"

// Load reads annotations_<name>_<subset>.json from root using the default
// layout, with image files under root/Images. Use LoadFile when the images
// live elsewhere.
func Load(root, name, subset string) (*Dataset, error) {
	return LoadFile(filepath.Join(root, coco.FileName(name, subset)), filepath.Join(root, DefaultImageDir))
}

// LoadFile reads the document at docPath and resolves image paths against
// imageDir.
func LoadFile(docPath, imageDir string) (*Dataset, error) {
	doc, err := coco.Load(docPath)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc, imageDir), nil
}

// FromDocument indexes doc. imageDir is only used to report image paths.
func FromDocument(doc *coco.Document, imageDir string) *Dataset {
	d := &Dataset{
		doc:      doc,
		imageDir: imageDir,
		logger:   logging.NewNop(),
		images:   buildImageIndex(doc.Images),
		byImage:  make(map[int64][]coco.Annotation),
	}
	for _, ann := range doc.Annotations {
		d.byImage[ann.ImageID] = append(d.byImage[ann.ImageID], ann)
	}
	d.ordered, d.classes = classMapping(doc.Categories)
	return d
}

// WithLogger sets the logger used for decode warnings and returns d.
func (d *Dataset) WithLogger(logger *slog.Logger) *Dataset {
	d.logger = logging.NewComponentLogger(logger, "dataset")
	return d
}

func buildImageIndex(imgs []coco.ImageRecord) map[int64]coco.ImageRecord {
	ret := make(map[int64]coco.ImageRecord, len(imgs))
	for _, img := range imgs {
		ret[img.ID] = img
	}
	return ret
}

// classMapping assigns local class ids 1..K to categories sorted by id; 0 is
// background.
func classMapping(categories []coco.Category) ([]coco.Category, map[int64]int32) {
	ordered := slices.Clone(categories)
	slices.SortFunc(ordered, func(a, b coco.Category) int {
		return cmp.Compare(a.ID, b.ID)
	})
	classes := make(map[int64]int32, len(ordered))
	for i, c := range ordered {
		classes[c.ID] = int32(i + 1)
	}
	return ordered, classes
}

// Document returns the underlying document.
func (d *Dataset) Document() *coco.Document {
	return d.doc
}

// Classes returns the categories in local class order; class id i+1 is
// Classes()[i].
func (d *Dataset) Classes() []coco.Category {
	return slices.Clone(d.ordered)
}

// ClassID returns the local class id of a document category.
func (d *Dataset) ClassID(categoryID int64) (int32, bool) {
	c, ok := d.classes[categoryID]
	return c, ok
}

// Images returns every indexed image in id order.
func (d *Dataset) Images() []ImageInfo {
	out := make([]ImageInfo, 0, len(d.images))
	for _, img := range d.images {
		out = append(out, d.info(img))
	}
	slices.SortFunc(out, func(a, b ImageInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Image returns the info for one image.
func (d *Dataset) Image(id int64) (ImageInfo, error) {
	img, ok := d.images[id]
	if !ok {
		return ImageInfo{}, fmt.Errorf("%w: %d", ErrUnknownImage, id)
	}
	return d.info(img), nil
}

func (d *Dataset) info(img coco.ImageRecord) ImageInfo {
	return ImageInfo{
		ID:          img.ID,
		FileName:    img.FileName,
		Path:        filepath.Join(d.imageDir, img.FileName),
		Width:       img.Width,
		Height:      img.Height,
		Annotations: len(d.byImage[img.ID]),
	}
}

// InstanceMasks decodes every annotation of an image. Masks without
// foreground are skipped; crowd instances carry negated class ids. A crowd
// RLE whose size differs from the image becomes a full-frame mask; the same
// mismatch on a non-crowd record is an error.
func (d *Dataset) InstanceMasks(imageID int64) (Instances, error) {
	img, ok := d.images[imageID]
	if !ok {
		return Instances{}, fmt.Errorf("%w: %d", ErrUnknownImage, imageID)
	}
	anns := d.byImage[imageID]
	if len(anns) == 0 {
		return Instances{}, nil
	}

	out := Instances{ImageID: imageID, Height: img.Height, Width: img.Width}
	for _, ann := range anns {
		class, ok := d.classes[ann.CategoryID]
		if !ok {
			return Instances{}, fmt.Errorf("annotation %d: unknown category %d", ann.ID, ann.CategoryID)
		}
		m, fallback, err := mask.Decode(ann.Segmentation, img.Height, img.Width)
		if err != nil {
			return Instances{}, fmt.Errorf("annotation %d: %w", ann.ID, err)
		}
		if fallback && !bool(ann.IsCrowd) {
			return Instances{}, fmt.Errorf("annotation %d: rle size %dx%d does not match image %dx%d",
				ann.ID, ann.Segmentation.Width, ann.Segmentation.Height, img.Width, img.Height)
		}
		if fallback {
			d.logger.Warn("crowd mask size mismatch, using full-frame mask",
				"annotation_id", ann.ID,
				"image_id", imageID,
				"size", fmt.Sprintf("%dx%d", ann.Segmentation.Width, ann.Segmentation.Height),
			)
		}
		if m.Empty() {
			d.logger.Debug("skipping empty instance", "annotation_id", ann.ID)
			continue
		}
		if ann.IsCrowd {
			class = -class
		}
		out.Masks = append(out.Masks, m)
		out.ClassIDs = append(out.ClassIDs, class)
	}
	if len(out.Masks) == 0 {
		return Instances{}, nil
	}
	return out, nil
}
