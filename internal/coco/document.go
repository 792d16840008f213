// Package coco defines the persisted annotation document: dataset metadata,
// categories, image records and per-instance annotation records, together with
// the builder that assigns their identifiers during an encode pass.
package coco

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Info is the dataset metadata block.
type Info struct {
	Description string `json:"description"`
	URL         string `json:"url"`
	Version     string `json:"version"`
	Year        int    `json:"year"`
	Contributor string `json:"contributor"`
	DateCreated string `json:"date_created"`
}

type License struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Category struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory"`
}

// ImageRecord describes one accepted source image.
type ImageRecord struct {
	ID       int64  `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Annotation describes one object instance on an image.
type Annotation struct {
	ID           int64        `json:"id"`
	ImageID      int64        `json:"image_id"`
	CategoryID   int64        `json:"category_id"`
	IsCrowd      Flag         `json:"iscrowd"`
	Segmentation Segmentation `json:"segmentation"`
	BBox         [4]float64   `json:"bbox"`
	Area         float64      `json:"area"`
}

// Flag is a boolean persisted as 0/1.
type Flag bool

func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "1", "true":
		*f = true
	case "0", "false", "null":
		*f = false
	default:
		return fmt.Errorf("coco: invalid flag %s", data)
	}
	return nil
}

// Document is the full dataset description.
type Document struct {
	Info        Info          `json:"info"`
	Licenses    []License     `json:"licenses"`
	Categories  []Category    `json:"categories"`
	Images      []ImageRecord `json:"images"`
	Annotations []Annotation  `json:"annotations"`
}

// Category looks up a category by id.
func (d *Document) Category(id int64) (Category, bool) {
	for _, c := range d.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// FileName returns the document file name for a dataset and subset, e.g.
// annotations_isic_Train.json.
func FileName(dataset, subset string) string {
	return fmt.Sprintf("annotations_%s_%s.json", dataset, subset)
}

// Decode reads a document from r.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode annotation document: %w", err)
	}
	return &doc, nil
}

// Load reads the document stored at path.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open annotation document: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Write persists doc at path. The file is written next to its destination and
// renamed into place so readers never observe a partial document.
func Write(path string, doc *Document) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".annotations-*.json")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp document: %w", err)
	}
	if err := json.NewEncoder(tmp).Encode(doc); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode annotation document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp document: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move annotation document into place: %w", err)
	}
	return nil
}
