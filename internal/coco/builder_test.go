package coco

import (
	"errors"
	"sync"
	"testing"
)

var testCategories = []Category{{ID: 1, Name: "lesion", Supercategory: "segmentation"}}

func newTestBuilder() *Builder {
	return NewBuilder(Info{Description: "test"}, nil, testCategories)
}

func TestBuilderAssignsSequentialIDs(t *testing.T) {
	b := newTestBuilder()
	for i := 1; i <= 3; i++ {
		img, err := b.AddImage(ImageRecord{FileName: "img.jpg", Width: 4, Height: 4})
		if err != nil {
			t.Fatalf("AddImage: %v", err)
		}
		if img.ID != int64(i) {
			t.Fatalf("image id = %d, want %d", img.ID, i)
		}
		ann, err := b.AddAnnotation(Annotation{ImageID: img.ID, CategoryID: 1})
		if err != nil {
			t.Fatalf("AddAnnotation: %v", err)
		}
		if ann.ID != int64(i) {
			t.Fatalf("annotation id = %d, want %d", ann.ID, i)
		}
	}
}

func TestBuilderRejectsOutOfSequenceIDs(t *testing.T) {
	b := newTestBuilder()
	if _, err := b.AddImage(ImageRecord{ID: 1}); err != nil {
		t.Fatalf("AddImage with next id: %v", err)
	}

	_, err := b.AddImage(ImageRecord{ID: 1})
	var dup *DuplicateKeyError
	if !errors.As(err, &dup) {
		t.Fatalf("AddImage duplicate error = %v, want DuplicateKeyError", err)
	}
	if dup.ID != 1 || dup.Next != 2 {
		t.Fatalf("unexpected duplicate error fields: %+v", dup)
	}

	if _, err := b.AddImage(ImageRecord{ID: 7}); !errors.As(err, &dup) {
		t.Fatalf("AddImage gap error = %v, want DuplicateKeyError", err)
	}
	if img, err := b.AddImage(ImageRecord{}); err != nil || img.ID != 2 {
		t.Fatalf("AddImage after rejection = %+v, %v; want id 2", img, err)
	}
}

func TestBuilderRejectsDanglingAnnotation(t *testing.T) {
	b := newTestBuilder()
	if _, err := b.AddAnnotation(Annotation{ImageID: 3, CategoryID: 1}); !errors.Is(err, ErrUnknownImage) {
		t.Fatalf("AddAnnotation error = %v, want ErrUnknownImage", err)
	}
	if _, n := b.Counts(); n != 0 {
		t.Fatalf("annotations = %d, want 0", n)
	}
}

func TestBuilderCommitIsAtomic(t *testing.T) {
	b := newTestBuilder()
	anns := []Annotation{
		{CategoryID: 1},
		{CategoryID: 99},
	}
	if _, _, err := b.Commit(ImageRecord{FileName: "a.jpg"}, anns); err == nil {
		t.Fatal("expected commit with unknown category to fail")
	}
	if imgs, n := b.Counts(); imgs != 0 || n != 0 {
		t.Fatalf("counts after failed commit = %d images, %d annotations; want none", imgs, n)
	}

	img, added, err := b.Commit(ImageRecord{FileName: "a.jpg"}, []Annotation{{CategoryID: 1}, {CategoryID: 1}})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if img.ID != 1 {
		t.Fatalf("image id = %d, want 1", img.ID)
	}
	for i, ann := range added {
		if ann.ID != int64(i+1) || ann.ImageID != img.ID {
			t.Fatalf("annotation %d = %+v", i, ann)
		}
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	b := newTestBuilder()
	if _, _, err := b.Commit(ImageRecord{FileName: "a.jpg"}, nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	first := b.Finalize()
	second := b.Finalize()
	if first != second {
		t.Fatal("Finalize returned different documents")
	}
	if _, err := b.AddImage(ImageRecord{}); !errors.Is(err, ErrFinalized) {
		t.Fatalf("AddImage after Finalize = %v, want ErrFinalized", err)
	}
	if len(first.Images) != 1 {
		t.Fatalf("images = %d, want 1", len(first.Images))
	}
}

func TestAllocatorConcurrentNextIsUnique(t *testing.T) {
	var a Allocator
	const n = 200
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- a.Next()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, n)
	for id := range ids {
		if seen[id] {
			t.Fatalf("id %d handed out twice", id)
		}
		seen[id] = true
	}
	for i := int64(1); i <= n; i++ {
		if !seen[i] {
			t.Fatalf("id %d missing", i)
		}
	}
}
