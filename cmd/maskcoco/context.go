package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/model-collapse/maskcoco/internal/config"
	"github.com/model-collapse/maskcoco/internal/logging"
	"github.com/model-collapse/maskcoco/internal/pipeline"
)

type globalFlags struct {
	config    string
	logLevel  string
	logFormat string
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		if v := strings.TrimSpace(c.flags.logLevel); v != "" {
			cfg.Logging.Level = strings.ToLower(v)
		}
		if v := strings.TrimSpace(c.flags.logFormat); v != "" {
			cfg.Logging.Format = strings.ToLower(v)
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(w io.Writer) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg, w)
}

// layout resolves the dataset root argument against the configured layout.
func (c *commandContext) layout(root string) (pipeline.Layout, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return pipeline.Layout{}, err
	}
	expanded, err := config.ExpandPath(root)
	if err != nil {
		return pipeline.Layout{}, fmt.Errorf("resolve dataset root: %w", err)
	}
	return pipeline.ResolveLayout(expanded, cfg.Dataset), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
