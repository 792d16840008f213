package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDataset(); err != nil {
		return err
	}
	if err := c.validateEncode(); err != nil {
		return err
	}
	if err := c.validateCategories(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDataset() error {
	if c.Dataset.Name == "" {
		return errors.New("dataset.name must be set")
	}
	dirs := map[string]string{
		"dataset.images_dir":     c.Dataset.ImagesDir,
		"dataset.masks_dir":      c.Dataset.MasksDir,
		"dataset.quarantine_dir": c.Dataset.QuarantineDir,
	}
	for key, dir := range dirs {
		if dir == "" {
			return fmt.Errorf("%s must be set", key)
		}
		if filepath.IsAbs(dir) || strings.Contains(filepath.ToSlash(dir), "..") {
			return fmt.Errorf("%s must be relative to the dataset root, got %q", key, dir)
		}
	}
	if strings.ContainsAny(c.Dataset.Subset, `/\`) {
		return fmt.Errorf("dataset.subset must not contain path separators, got %q", c.Dataset.Subset)
	}
	return nil
}

func (c *Config) validateEncode() error {
	if c.Encode.Tolerance < 0 {
		return errors.New("encode.tolerance must be >= 0")
	}
	if c.Encode.Workers < 1 {
		return errors.New("encode.workers must be >= 1")
	}
	if c.Encode.Threshold < 1 || c.Encode.Threshold > 255 {
		return errors.New("encode.threshold must be between 1 and 255")
	}
	if len(c.Encode.ImageExtensions) == 0 {
		return errors.New("encode.image_extensions must list at least one extension")
	}
	if len(c.Encode.MaskExtensions) == 0 {
		return errors.New("encode.mask_extensions must list at least one extension")
	}
	if c.Encode.CrowdMarker == "" {
		return errors.New("encode.crowd_marker must be set")
	}
	return nil
}

func (c *Config) validateCategories() error {
	if len(c.Categories) == 0 {
		return errors.New("at least one [[categories]] entry is required")
	}
	ids := make(map[int64]struct{}, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.ID <= 0 {
			return fmt.Errorf("category %q: id must be positive", cat.Name)
		}
		if cat.Name == "" {
			return fmt.Errorf("category %d: name must be set", cat.ID)
		}
		if _, ok := ids[cat.ID]; ok {
			return fmt.Errorf("category id %d is used more than once", cat.ID)
		}
		ids[cat.ID] = struct{}{}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
