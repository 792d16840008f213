package config

import "strings"

func (c *Config) normalize() {
	defaults := Default()
	if len(c.Encode.ImageExtensions) == 0 {
		c.Encode.ImageExtensions = defaults.Encode.ImageExtensions
	}
	if len(c.Encode.MaskExtensions) == 0 {
		c.Encode.MaskExtensions = defaults.Encode.MaskExtensions
	}
	if c.Licenses == nil {
		c.Licenses = defaults.Licenses
	}
	if len(c.Categories) == 0 {
		c.Categories = defaults.Categories
	}

	c.Dataset.Name = strings.TrimSpace(c.Dataset.Name)
	c.Dataset.ImagesDir = strings.TrimSpace(c.Dataset.ImagesDir)
	c.Dataset.MasksDir = strings.TrimSpace(c.Dataset.MasksDir)
	c.Dataset.QuarantineDir = strings.TrimSpace(c.Dataset.QuarantineDir)
	c.Dataset.Subset = strings.TrimSpace(c.Dataset.Subset)

	c.Encode.ImageExtensions = normalizeExtensions(c.Encode.ImageExtensions)
	c.Encode.MaskExtensions = normalizeExtensions(c.Encode.MaskExtensions)
	c.Encode.CrowdMarker = strings.TrimSpace(c.Encode.CrowdMarker)
	if c.Encode.Workers == 0 {
		c.Encode.Workers = defaultWorkers
	}

	for i := range c.Categories {
		c.Categories[i].Name = strings.TrimSpace(c.Categories[i].Name)
	}

	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// normalizeExtensions lower-cases extensions, adds the leading dot and drops
// duplicates.
func normalizeExtensions(exts []string) []string {
	seen := make(map[string]struct{}, len(exts))
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	return out
}
