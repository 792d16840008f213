package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/valyala/fasthttp"

	"github.com/model-collapse/maskcoco/internal/coco"
	"github.com/model-collapse/maskcoco/internal/dataset"
	"github.com/model-collapse/maskcoco/internal/logging"
	"github.com/model-collapse/maskcoco/internal/mask"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	b := coco.NewBuilder(coco.Info{}, nil, []coco.Category{{ID: 1, Name: "lesion"}})
	m := mask.New(40, 30)
	m.Fill(image.Rect(5, 5, 15, 12))
	out := mask.Encode(mask.EncodeRequest{CategoryID: 1, Regions: []*mask.Mask{m}, Width: 40, Height: 30})
	if out.Rejected {
		t.Fatalf("Encode rejected: %s", out.Reason)
	}
	if _, _, err := b.Commit(coco.ImageRecord{FileName: "a.jpg", Width: 40, Height: 30}, []coco.Annotation{out.Annotation}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := b.Commit(coco.ImageRecord{FileName: "b.jpg", Width: 8, Height: 8}, nil); err != nil {
		t.Fatal(err)
	}
	ds := dataset.FromDocument(b.Finalize(), "/data/Images")
	return New(ds, logging.NewNop())
}

func do(s *Server, method, uri string) *fasthttp.RequestCtx {
	var c fasthttp.RequestCtx
	c.Request.Header.SetMethod(method)
	c.Request.SetRequestURI(uri)
	s.Handle(&c)
	return &c
}

func TestHealthz(t *testing.T) {
	c := do(newTestServer(t), "GET", "/healthz")
	if c.Response.StatusCode() != fasthttp.StatusOK || string(c.Response.Body()) != "ok" {
		t.Fatalf("healthz = %d %q", c.Response.StatusCode(), c.Response.Body())
	}
}

func TestImages(t *testing.T) {
	c := do(newTestServer(t), "GET", "/images")
	var got []dataset.ImageInfo
	if err := json.Unmarshal(c.Response.Body(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(got) != 2 || got[0].ID != 1 || got[0].Annotations != 1 || got[1].FileName != "b.jpg" {
		t.Fatalf("images = %+v", got)
	}
}

func TestInstances(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		uri  string
		want instancesResponse
	}{
		{"/instances?image_id=1", instancesResponse{ImageID: 1, Height: 30, Width: 40, ClassIDs: []int32{1}}},
		{"/instances?image_id=2", instancesResponse{ImageID: 2, Height: 8, Width: 8, ClassIDs: []int32{}}},
	}
	for _, tt := range tests {
		c := do(s, "GET", tt.uri)
		if c.Response.StatusCode() != fasthttp.StatusOK {
			t.Fatalf("%s: status %d", tt.uri, c.Response.StatusCode())
		}
		var got instancesResponse
		if err := json.Unmarshal(c.Response.Body(), &got); err != nil {
			t.Fatalf("%s: decode body: %v", tt.uri, err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Fatalf("%s mismatch (-want +got):\n%s", tt.uri, diff)
		}
	}
}

func TestMaskPNG(t *testing.T) {
	c := do(newTestServer(t), "GET", "/mask?image_id=1&index=0")
	if c.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status %d: %s", c.Response.StatusCode(), c.Response.Body())
	}
	if ct := string(c.Response.Header.ContentType()); ct != "image/png" {
		t.Fatalf("content type = %q", ct)
	}
	img, err := png.Decode(bytes.NewReader(c.Response.Body()))
	if err != nil {
		t.Fatalf("png decode: %v", err)
	}
	m := mask.FromImage(img, mask.DefaultThreshold)
	if m.Area() != 70 {
		t.Fatalf("mask area = %d, want 70", m.Area())
	}
}

func TestErrors(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		method string
		uri    string
		status int
	}{
		{"POST", "/images", fasthttp.StatusMethodNotAllowed},
		{"GET", "/nope", fasthttp.StatusNotFound},
		{"GET", "/instances", fasthttp.StatusBadRequest},
		{"GET", "/instances?image_id=abc", fasthttp.StatusBadRequest},
		{"GET", "/instances?image_id=9", fasthttp.StatusNotFound},
		{"GET", "/mask?image_id=1", fasthttp.StatusBadRequest},
		{"GET", "/mask?image_id=1&index=1", fasthttp.StatusNotFound},
		{"GET", "/mask?image_id=2&index=0", fasthttp.StatusNotFound},
	}
	for _, tt := range tests {
		c := do(s, tt.method, tt.uri)
		if got := c.Response.StatusCode(); got != tt.status {
			t.Errorf("%s %s: status %d, want %d", tt.method, tt.uri, got, tt.status)
		}
	}
}

func TestInstancesInvalidImageSize(t *testing.T) {
	doc := &coco.Document{
		Images:     []coco.ImageRecord{{ID: 1, FileName: "a.jpg", Width: 10, Height: -1}},
		Categories: []coco.Category{{ID: 1, Name: "lesion"}},
		Annotations: []coco.Annotation{{
			ID: 1, ImageID: 1, CategoryID: 1,
			Segmentation: coco.Polygons([][]float64{{1, 1, 4, 1, 4, 4, 1, 4}}),
		}},
	}
	s := New(dataset.FromDocument(doc, "/data/Images"), logging.NewNop())
	for _, uri := range []string{"/instances?image_id=1", "/mask?image_id=1&index=0"} {
		c := do(s, "GET", uri)
		if got := c.Response.StatusCode(); got != fasthttp.StatusInternalServerError {
			t.Errorf("GET %s: status %d, want %d", uri, got, fasthttp.StatusInternalServerError)
		}
	}
}
