package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
}

// Render contains renderer and job registry settings.
type Render struct {
	MaxActiveJobs   int     `toml:"max_active_jobs"`
	DefaultFPS      float64 `toml:"default_fps"`
	ProgressBucket  float64 `toml:"progress_log_bucket"`
	KeepWorkspaces  bool    `toml:"keep_workspaces"`
	HistoryRetained int     `toml:"history_retained"`
}

// Encoder contains external encoder settings.
type Encoder struct {
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
	HardwareAccel  string `toml:"hardware_accel"`
	HardwareDevice string `toml:"hardware_device"`
}

// Cache contains artifact cache bounds.
type Cache struct {
	MaxPreviewEntries  int   `toml:"max_preview_entries"`
	MaxMetadataEntries int   `toml:"max_metadata_entries"`
	MaxRenderEntries   int   `toml:"max_render_entries"`
	MemoryBudgetMB     int64 `toml:"memory_budget_mb"`
	PreviewTTLMinutes  int   `toml:"preview_ttl_minutes"`
	MetadataTTLMinutes int   `toml:"metadata_ttl_minutes"`
	RenderTTLMinutes   int   `toml:"render_ttl_minutes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completion     bool   `toml:"completion"`
	Failure        bool   `toml:"failure"`
}

// Config encapsulates all configuration values for splice.
//
// Configuration sections by subsystem:
//   - Paths: data, log, workspace, and output directories
//   - Render: job concurrency and progress reporting
//   - Encoder: ffmpeg/ffprobe binaries and hardware acceleration
//   - Cache: artifact cache entry counts, memory budget, and TTLs
//   - Logging: log format, level, and retention
//   - Notifications: ntfy push notification settings
type Config struct {
	Paths         Paths         `toml:"paths"`
	Render        Render        `toml:"render"`
	Encoder       Encoder       `toml:"encoder"`
	Cache         Cache         `toml:"cache"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/splice/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

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
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

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

	projectPath, err := filepath.Abs("splice.toml")
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

// EnsureDirectories creates required directories for daemon operation.
// OutputDir is created on a best-effort basis so the daemon can run when the
// destination volume is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.WorkDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		_ = os.MkdirAll(c.Paths.OutputDir, 0o755)
	}
	return nil
}

// LogFilePath returns the daemon's active log file.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "spliced.log")
}

// DatabasePath returns the render history database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "splice.db")
}

// SocketPath returns the IPC unix socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "spliced.sock")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "spliced.lock")
}

// MemoryBudgetBytes converts the configured cache budget to bytes.
func (c *Config) MemoryBudgetBytes() int64 {
	return c.Cache.MemoryBudgetMB * 1024 * 1024
}

// PreviewTTL returns the preview cache time-to-live.
func (c *Config) PreviewTTL() time.Duration {
	return time.Duration(c.Cache.PreviewTTLMinutes) * time.Minute
}

// MetadataTTL returns the metadata cache time-to-live.
func (c *Config) MetadataTTL() time.Duration {
	return time.Duration(c.Cache.MetadataTTLMinutes) * time.Minute
}

// RenderTTL returns the render output cache time-to-live.
func (c *Config) RenderTTL() time.Duration {
	return time.Duration(c.Cache.RenderTTLMinutes) * time.Minute
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

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
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
