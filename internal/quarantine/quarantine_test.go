package quarantine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	h := &Handler{Dir: filepath.Join(t.TempDir(), "Blacks")}
	for i := 0; i < 2; i++ {
		if err := h.Ensure(); err != nil {
			t.Fatalf("Ensure #%d: %v", i, err)
		}
	}
	if info, err := os.Stat(h.Dir); err != nil || !info.IsDir() {
		t.Fatalf("expected directory at %s", h.Dir)
	}
}

func TestQuarantineMovesFilesAndRecordsLedger(t *testing.T) {
	root := t.TempDir()
	img := filepath.Join(root, "Images", "ISIC_1.jpg")
	msk := filepath.Join(root, "Segmentation", "sub", "ISIC_1_lesion.png")
	writeFile(t, img, "image")
	writeFile(t, msk, "mask")

	h := &Handler{Dir: filepath.Join(root, "Blacks"), RunID: "run-1"}
	if err := h.Ensure(); err != nil {
		t.Fatal(err)
	}
	ledger, err := OpenLedger(LedgerPath(h.Dir))
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	defer ledger.Close()
	h.Ledger = ledger

	if errs := h.Quarantine(context.Background(), "empty", img, msk); len(errs) != 0 {
		t.Fatalf("Quarantine errors: %v", errs)
	}
	for _, p := range []string{img, msk} {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("source %s still present", p)
		}
	}
	got, err := os.ReadFile(filepath.Join(h.Dir, "ISIC_1_lesion.png"))
	if err != nil || string(got) != "mask" {
		t.Fatalf("moved mask = %q, %v", got, err)
	}

	entries, err := ledger.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v, want 2", entries)
	}
	if entries[0].Source != img || entries[0].Reason != "empty" || entries[0].RunID != "run-1" {
		t.Fatalf("first entry = %+v", entries[0])
	}
	if entries[1].Dest != filepath.Join(h.Dir, "ISIC_1_lesion.png") || entries[1].MovedAt.IsZero() {
		t.Fatalf("second entry = %+v", entries[1])
	}
}

func TestQuarantineCollisionKeepsBothFiles(t *testing.T) {
	root := t.TempDir()
	h := &Handler{Dir: filepath.Join(root, "Blacks")}
	src := filepath.Join(root, "Images", "a.jpg")
	other := filepath.Join(root, "Images", "b.jpg")
	writeFile(t, src, "new")
	writeFile(t, other, "other")
	writeFile(t, filepath.Join(h.Dir, "a.jpg"), "old")

	errs := h.Quarantine(context.Background(), "empty", src, other)
	if len(errs) != 1 {
		t.Fatalf("errors = %v, want exactly one", errs)
	}
	var collision *CollisionError
	if !errors.As(errs[0], &collision) {
		t.Fatalf("error = %v, want *CollisionError", errs[0])
	}
	if collision.Source != src {
		t.Fatalf("collision source = %q", collision.Source)
	}
	if got, _ := os.ReadFile(filepath.Join(h.Dir, "a.jpg")); string(got) != "old" {
		t.Fatalf("destination overwritten: %q", got)
	}
	if got, _ := os.ReadFile(src); string(got) != "new" {
		t.Fatalf("source lost: %q", got)
	}
	if _, err := os.Stat(filepath.Join(h.Dir, "b.jpg")); err != nil {
		t.Fatalf("second item not moved: %v", err)
	}
}

func TestLinkMoveCollision(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	dst := filepath.Join(dir, "dst.png")
	writeFile(t, src, "a")
	writeFile(t, dst, "b")
	var collision *CollisionError
	if err := linkMove(src, dst); !errors.As(err, &collision) {
		t.Fatalf("linkMove = %v, want *CollisionError", err)
	}
	if err := copyMove(src, dst); !errors.As(err, &collision) {
		t.Fatalf("copyMove = %v, want *CollisionError", err)
	}
}

func TestQuarantineMissingSource(t *testing.T) {
	h := &Handler{Dir: filepath.Join(t.TempDir(), "Blacks")}
	errs := h.Quarantine(context.Background(), "empty", filepath.Join(t.TempDir(), "gone.png"))
	if len(errs) != 1 {
		t.Fatalf("errors = %v, want one", errs)
	}
	var collision *CollisionError
	if errors.As(errs[0], &collision) {
		t.Fatal("missing source must not be reported as a collision")
	}
}
