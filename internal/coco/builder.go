package coco

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrFinalized is returned when records are added after Finalize.
	ErrFinalized = errors.New("coco: document already finalized")
	// ErrUnknownImage is returned when an annotation references an image that
	// was never added.
	ErrUnknownImage = errors.New("coco: unknown image id")
)

// DuplicateKeyError reports a caller-supplied id that does not match the next
// id the allocator would assign.
type DuplicateKeyError struct {
	Kind string
	ID   int64
	Next int64
}

func (e *DuplicateKeyError) Error() string {
	if e.ID < e.Next {
		return fmt.Sprintf("coco: duplicate %s id %d (next is %d)", e.Kind, e.ID, e.Next)
	}
	return fmt.Sprintf("coco: %s id %d out of sequence (next is %d)", e.Kind, e.ID, e.Next)
}

// Allocator hands out strictly increasing identifiers starting at 1.
type Allocator struct {
	mu   sync.Mutex
	last int64
}

// Next reserves and returns the next identifier.
func (a *Allocator) Next() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last++
	return a.last
}

// Peek returns the identifier Next would return without reserving it.
func (a *Allocator) Peek() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last + 1
}

// Claim reserves id when it is exactly the next identifier. Zero claims the
// next identifier. The reserved id is returned.
func (a *Allocator) Claim(kind string, id int64) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.last + 1
	if id != 0 && id != next {
		return 0, &DuplicateKeyError{Kind: kind, ID: id, Next: next}
	}
	a.last = next
	return next, nil
}

// Builder accumulates image and annotation records for one document. It owns
// the image and annotation allocators; records passed with a zero id receive
// the next identifier.
type Builder struct {
	mu          sync.Mutex
	doc         Document
	images      Allocator
	annotations Allocator
	known       map[int64]struct{}
	final       *Document
}

// NewBuilder starts a document with the given metadata and category catalog.
func NewBuilder(info Info, licenses []License, categories []Category) *Builder {
	return &Builder{
		doc: Document{
			Info:        info,
			Licenses:    append([]License{}, licenses...),
			Categories:  append([]Category{}, categories...),
			Images:      []ImageRecord{},
			Annotations: []Annotation{},
		},
		known: make(map[int64]struct{}),
	}
}

// AddImage appends an image record and returns it with its assigned id.
func (b *Builder) AddImage(img ImageRecord) (ImageRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.final != nil {
		return ImageRecord{}, ErrFinalized
	}
	return b.addImageLocked(img)
}

func (b *Builder) addImageLocked(img ImageRecord) (ImageRecord, error) {
	id, err := b.images.Claim("image", img.ID)
	if err != nil {
		return ImageRecord{}, err
	}
	img.ID = id
	b.known[id] = struct{}{}
	b.doc.Images = append(b.doc.Images, img)
	return img, nil
}

// AddAnnotation appends an annotation record and returns it with its assigned
// id. The referenced image must already be part of the document.
func (b *Builder) AddAnnotation(ann Annotation) (Annotation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.final != nil {
		return Annotation{}, ErrFinalized
	}
	if err := b.checkAnnotationLocked(ann); err != nil {
		return Annotation{}, err
	}
	return b.addAnnotationLocked(ann)
}

func (b *Builder) checkAnnotationLocked(ann Annotation) error {
	if _, ok := b.known[ann.ImageID]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownImage, ann.ImageID)
	}
	if _, ok := b.doc.Category(ann.CategoryID); !ok {
		return fmt.Errorf("coco: unknown category id %d", ann.CategoryID)
	}
	return nil
}

func (b *Builder) addAnnotationLocked(ann Annotation) (Annotation, error) {
	id, err := b.annotations.Claim("annotation", ann.ID)
	if err != nil {
		return Annotation{}, err
	}
	ann.ID = id
	b.doc.Annotations = append(b.doc.Annotations, ann)
	return ann, nil
}

// Commit adds an image together with all of its annotations, or nothing at
// all. Annotation ImageIDs are overwritten with the image's assigned id.
func (b *Builder) Commit(img ImageRecord, anns []Annotation) (ImageRecord, []Annotation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.final != nil {
		return ImageRecord{}, nil, ErrFinalized
	}

	if next := b.images.Peek(); img.ID != 0 && img.ID != next {
		return ImageRecord{}, nil, &DuplicateKeyError{Kind: "image", ID: img.ID, Next: next}
	}
	nextAnn := b.annotations.Peek()
	for i, ann := range anns {
		if want := nextAnn + int64(i); ann.ID != 0 && ann.ID != want {
			return ImageRecord{}, nil, &DuplicateKeyError{Kind: "annotation", ID: ann.ID, Next: want}
		}
		if _, ok := b.doc.Category(ann.CategoryID); !ok {
			return ImageRecord{}, nil, fmt.Errorf("coco: unknown category id %d", ann.CategoryID)
		}
	}

	img, err := b.addImageLocked(img)
	if err != nil {
		return ImageRecord{}, nil, err
	}
	out := make([]Annotation, 0, len(anns))
	for _, ann := range anns {
		ann.ImageID = img.ID
		added, err := b.addAnnotationLocked(ann)
		if err != nil {
			// Unreachable after the checks above while the lock is held.
			return ImageRecord{}, nil, err
		}
		out = append(out, added)
	}
	return img, out, nil
}

// Finalize freezes the builder and returns the document. Repeated calls
// return the same document.
func (b *Builder) Finalize() *Document {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.final == nil {
		doc := b.doc
		b.final = &doc
	}
	return b.final
}

// Counts returns the number of images and annotations added so far.
func (b *Builder) Counts() (images, annotations int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.doc.Images), len(b.doc.Annotations)
}
