// Package config loads, normalizes, and validates maskcoco configuration.
//
// Settings come from repository defaults overlaid with an optional TOML file.
// Commands apply their flag overrides on top of the loaded Config and call
// Validate again before use.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Dataset describes the on-disk layout below a dataset root.
type Dataset struct {
	Name          string `toml:"name"`
	ImagesDir     string `toml:"images_dir"`
	MasksDir      string `toml:"masks_dir"`
	QuarantineDir string `toml:"quarantine_dir"`
	// Subset names the document; empty means the root directory's base name.
	Subset string `toml:"subset"`
}

// Encode contains mask encoding settings.
type Encode struct {
	Tolerance        float64  `toml:"tolerance"`
	Workers          int      `toml:"workers"`
	Threshold        int      `toml:"threshold"`
	ImageExtensions  []string `toml:"image_extensions"`
	MaskExtensions   []string `toml:"mask_extensions"`
	CrowdMarker      string   `toml:"crowd_marker"`
	CompressCrowdRLE bool     `toml:"compress_crowd_rle"`
}

// Info is the dataset metadata written into every document.
type Info struct {
	Description string `toml:"description"`
	URL         string `toml:"url"`
	Version     string `toml:"version"`
	Year        int    `toml:"year"`
	Contributor string `toml:"contributor"`
}

type License struct {
	ID   int64  `toml:"id"`
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

type Category struct {
	ID            int64  `toml:"id"`
	Name          string `toml:"name"`
	Supercategory string `toml:"supercategory"`
}

// Server contains settings for the mask server.
type Server struct {
	Bind string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for maskcoco.
type Config struct {
	Dataset    Dataset    `toml:"dataset"`
	Encode     Encode     `toml:"encode"`
	Info       Info       `toml:"info"`
	Licenses   []License  `toml:"licenses"`
	Categories []Category `toml:"categories"`
	Server     Server     `toml:"server"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path of the per-user config file.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/maskcoco/config.toml")
}

// Load locates, parses, and validates a configuration file. A missing file
// yields the defaults. The resolved path and whether it existed are returned
// alongside the config.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()
	// List defaults are restored by normalize when the file leaves them out,
	// so file entries replace rather than extend them.
	cfg.Encode.ImageExtensions = nil
	cfg.Encode.MaskExtensions = nil
	cfg.Licenses = nil
	cfg.Categories = nil

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("maskcoco.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// ExpandPath resolves ~ and returns an absolute, cleaned path.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
