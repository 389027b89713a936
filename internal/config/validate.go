package config

import (
	"errors"
	"fmt"
)

var allowedHardwareAccel = map[string]struct{}{
	"auto":         {},
	"none":         {},
	"nvenc":        {},
	"vaapi":        {},
	"qsv":          {},
	"videotoolbox": {},
}

var allowedLogFormats = map[string]struct{}{
	"console": {},
	"json":    {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.WorkDir == "" {
		return errors.New("paths.work_dir must be set")
	}
	return nil
}

func (c *Config) validateRender() error {
	if c.Render.MaxActiveJobs < 1 {
		return errors.New("render.max_active_jobs must be at least 1")
	}
	if c.Render.DefaultFPS <= 0 {
		return errors.New("render.default_fps must be positive")
	}
	return nil
}

func (c *Config) validateEncoder() error {
	if _, ok := allowedHardwareAccel[c.Encoder.HardwareAccel]; !ok {
		return fmt.Errorf("encoder.hardware_accel %q is not supported", c.Encoder.HardwareAccel)
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.MaxPreviewEntries < 1 || c.Cache.MaxMetadataEntries < 1 || c.Cache.MaxRenderEntries < 1 {
		return errors.New("cache entry limits must be at least 1")
	}
	if c.Cache.MemoryBudgetMB < 1 {
		return errors.New("cache.memory_budget_mb must be at least 1")
	}
	if c.Cache.PreviewTTLMinutes < 1 || c.Cache.MetadataTTLMinutes < 1 || c.Cache.RenderTTLMinutes < 1 {
		return errors.New("cache TTLs must be at least 1 minute")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, ok := allowedLogFormats[c.Logging.Format]; !ok {
		return fmt.Errorf("logging.format %q is not supported (console or json)", c.Logging.Format)
	}
	return nil
}
