package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/model-collapse/maskcoco/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if diff := cmp.Diff(config.Default(), *cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maskcoco.toml")
	body := `
[dataset]
name = " ham "
subset = "Val"

[encode]
tolerance = 0.5
workers = 4
image_extensions = ["JPG", ".png", "jpg"]

[[categories]]
id = 2
name = "nevus"
supercategory = "segmentation"

[[categories]]
id = 3
name = "melanoma"
supercategory = "segmentation"

[logging]
format = "JSON"
level = "Debug"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Dataset.Name != "ham" || cfg.Dataset.Subset != "Val" {
		t.Fatalf("dataset = %+v", cfg.Dataset)
	}
	if diff := cmp.Diff([]string{".jpg", ".png"}, cfg.Encode.ImageExtensions); diff != "" {
		t.Fatalf("image extensions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{".png"}, cfg.Encode.MaskExtensions); diff != "" {
		t.Fatalf("mask extensions mismatch (-want +got):\n%s", diff)
	}
	if len(cfg.Categories) != 2 || cfg.Categories[0].Name != "nevus" {
		t.Fatalf("categories = %+v, want the two configured entries only", cfg.Categories)
	}
	if cfg.Encode.Workers != 4 || cfg.Encode.Tolerance != 0.5 {
		t.Fatalf("encode = %+v", cfg.Encode)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if len(cfg.Licenses) != 1 {
		t.Fatalf("licenses = %+v, want default license", cfg.Licenses)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"negative tolerance":  "[encode]\ntolerance = -1.0\n",
		"threshold too large": "[encode]\nthreshold = 300\n",
		"absolute images dir": "[dataset]\nimages_dir = \"/tmp/images\"\n",
		"duplicate category":  "[[categories]]\nid = 1\nname = \"a\"\n[[categories]]\nid = 1\nname = \"b\"\n",
		"unknown format":      "[logging]\nformat = \"xml\"\n",
		"unknown field":       "[encode]\nspeed = 3\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.toml")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, _, _, err := config.Load(path); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestCreateSampleLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("sample not found after CreateSample")
	}
	if diff := cmp.Diff(config.Default(), *cfg); diff != "" {
		t.Fatalf("sample differs from defaults (-want +got):\n%s", diff)
	}
}

func TestExpandPathHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := config.ExpandPath("~/datasets")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if !strings.HasPrefix(got, home) {
		t.Fatalf("ExpandPath = %q, want prefix %q", got, home)
	}
}
