package main

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/model-collapse/maskcoco/internal/coco"
	"github.com/model-collapse/maskcoco/internal/mask"
)

func runCLI(t *testing.T, args []string, stdin string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	configPath := filepath.Join(t.TempDir(), "absent.toml")
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func newTestRoot(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "val")
	for _, dir := range []string{"Images", "Segmentation"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	for i, name := range []string{"ISIC_0000001", "ISIC_0000002"} {
		f, err := os.Create(filepath.Join(root, "Images", name+".jpg"))
		if err != nil {
			t.Fatal(err)
		}
		if err := jpeg.Encode(f, image.NewGray(image.Rect(0, 0, 50, 40)), nil); err != nil {
			t.Fatal(err)
		}
		f.Close()

		m := mask.New(50, 40)
		if i == 0 {
			m.Fill(image.Rect(10, 10, 20, 25))
		}
		if err := m.Save(filepath.Join(root, "Segmentation", name+"_lesion.png")); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestEncodeInspectAndQuarantineList(t *testing.T) {
	root := newTestRoot(t)

	out, _, err := runCLI(t, []string{"encode", "--yes", "--workers", "2", root}, "")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	requireContains(t, out, "Images accepted")
	requireContains(t, out, "annotations_isic_val.json")

	doc, err := coco.Load(filepath.Join(root, "annotations_isic_val.json"))
	if err != nil {
		t.Fatalf("load document: %v", err)
	}
	if len(doc.Images) != 1 || len(doc.Annotations) != 1 {
		t.Fatalf("document has %d images, %d annotations", len(doc.Images), len(doc.Annotations))
	}
	if doc.Annotations[0].BBox != [4]float64{10, 10, 10, 15} {
		t.Fatalf("bbox = %v", doc.Annotations[0].BBox)
	}

	out, _, err = runCLI(t, []string{"inspect", root}, "")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	requireContains(t, out, "1 images, 1 annotations")
	requireContains(t, out, "lesion")

	out, _, err = runCLI(t, []string{"quarantine", "list", root}, "")
	if err != nil {
		t.Fatalf("quarantine list: %v", err)
	}
	requireContains(t, out, "mask has no foreground")
	requireContains(t, out, filepath.Join("Images", "ISIC_0000002.jpg"))
}

func TestEncodePromptDeclined(t *testing.T) {
	root := newTestRoot(t)
	out, _, err := runCLI(t, []string{"encode", root}, "n\n")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	requireContains(t, out, "Is this correct? (y/n)")
	requireContains(t, out, "Aborted")
	if _, err := os.Stat(filepath.Join(root, "annotations_isic_val.json")); !os.IsNotExist(err) {
		t.Fatal("document written after decline")
	}
}

func TestEncodePromptAccepted(t *testing.T) {
	root := newTestRoot(t)
	out, _, err := runCLI(t, []string{"encode", "--subset", "holdout", root}, "maybe\ny\n")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Count(out, "Is this correct?") != 2 {
		t.Fatalf("expected the question to repeat after an invalid answer:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(root, "annotations_isic_holdout.json")); err != nil {
		t.Fatalf("document missing: %v", err)
	}
}

func TestEncodeMissingLayout(t *testing.T) {
	root := t.TempDir()
	if _, _, err := runCLI(t, []string{"encode", "--yes", root}, ""); err == nil {
		t.Fatal("expected error for missing Images/Segmentation")
	}
}

func TestEncodeRejectsInvalidOverride(t *testing.T) {
	root := newTestRoot(t)
	if _, _, err := runCLI(t, []string{"encode", "--yes", "--tolerance", "-1", root}, ""); err == nil {
		t.Fatal("expected error for negative tolerance")
	}
}

func TestQuarantineListEmpty(t *testing.T) {
	out, _, err := runCLI(t, []string{"quarantine", "list", t.TempDir()}, "")
	if err != nil {
		t.Fatalf("quarantine list: %v", err)
	}
	requireContains(t, out, "No quarantined files")
}

func TestConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "conf", "maskcoco.toml")
	out, _, err := runCLI(t, []string{"config", "init", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, _, err := runCLI(t, []string{"config", "init", target}, ""); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--overwrite", target}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfirmEOFIsNo(t *testing.T) {
	var out bytes.Buffer
	ok, err := confirm(strings.NewReader(""), &out, "Proceed?")
	if err != nil || ok {
		t.Fatalf("confirm = %v, %v; want false, nil", ok, err)
	}
	ok, err = confirm(strings.NewReader("YES"), &out, "Proceed?")
	if err != nil || !ok {
		t.Fatalf("confirm = %v, %v; want true without trailing newline", ok, err)
	}
}
