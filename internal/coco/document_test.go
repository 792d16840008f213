package coco

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/model-collapse/maskcoco/internal/rle"
)

func TestSegmentationJSONShapes(t *testing.T) {
	r := rle.RLE{Height: 2, Width: 3, Counts: []uint32{1, 2, 3}}
	tests := []struct {
		name string
		seg  Segmentation
		want string
	}{
		{"polygons", Polygons([][]float64{{0, 0, 2, 0, 2, 2}}), `[[0,0,2,0,2,2]]`},
		{"raw rle", RawRLE(r), `{"counts":[1,2,3],"size":[2,3]}`},
		{"compressed rle", CompressedRLE(r), `{"counts":"123","size":[2,3]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.seg)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(data) != tt.want {
				t.Fatalf("Marshal = %s, want %s", data, tt.want)
			}
			var back Segmentation
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if back.Kind != tt.seg.Kind {
				t.Fatalf("kind = %v, want %v", back.Kind, tt.seg.Kind)
			}
			got, err := back.RLE()
			if tt.seg.Kind == KindPolygons {
				if err == nil {
					t.Fatal("polygon segmentation should have no RLE form")
				}
				return
			}
			if err != nil {
				t.Fatalf("RLE: %v", err)
			}
			if diff := cmp.Diff(r, got); diff != "" {
				t.Fatalf("RLE mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSegmentationRejectsUnknownShapes(t *testing.T) {
	for _, in := range []string{`42`, `{"counts":[1],"size":[1]}`, `{"size":[1,1]}`} {
		var seg Segmentation
		if err := json.Unmarshal([]byte(in), &seg); err == nil {
			t.Fatalf("Unmarshal(%s) expected error", in)
		}
	}
}

func TestAnnotationCrowdFlag(t *testing.T) {
	ann := Annotation{ID: 1, ImageID: 1, CategoryID: 1, IsCrowd: true, Segmentation: Polygons(nil)}
	data, err := json.Marshal(ann)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"iscrowd":1`) {
		t.Fatalf("expected iscrowd 1 in %s", data)
	}
}

func TestWriteAndLoad(t *testing.T) {
	b := NewBuilder(Info{Description: "ISIC Dataset", Year: 2018}, []License{{ID: 1, Name: "CC"}}, testCategories)
	_, _, err := b.Commit(ImageRecord{FileName: "ISIC_0000000.jpg", Width: 4, Height: 3}, []Annotation{{
		CategoryID:   1,
		Segmentation: Polygons([][]float64{{1, 1, 3, 1, 3, 2, 1, 2}}),
		BBox:         [4]float64{1, 1, 2, 1},
		Area:         2,
	}})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	doc := b.Finalize()

	path := filepath.Join(t.TempDir(), FileName("isic", "Train"))
	if err := Write(path, doc); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(doc, got); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
}
