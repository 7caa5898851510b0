// Package config loads .timeline/config.yaml.
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/timeline/internal/errors"
	"github.com/felixgeelhaar/timeline/internal/log"
)

const (
	// Dir is the per-project settings directory.
	Dir = ".timeline"
	// FileName is the settings file inside Dir.
	FileName = "config.yaml"

	defaultMaxDepth        = 10
	defaultMaxSettleRounds = 8
	defaultHistoryKeep     = 50
	defaultSampleRate      = 1.0
)

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HistoryConfig controls on-disk checkpoints.
type HistoryConfig struct {
	Dir  string `yaml:"dir"`
	Keep int    `yaml:"keep"`
}

// StoreConfig points at the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// TelemetryConfig toggles command tracing.
type TelemetryConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate float64 `yaml:"sample_rate"`
}

// Config models .timeline/config.yaml.
type Config struct {
	MaxDepth        int             `yaml:"max_depth"`
	MaxSettleRounds int             `yaml:"max_settle_rounds"`
	ViolationPolicy string          `yaml:"violation_policy"`
	Log             LogConfig       `yaml:"log"`
	History         HistoryConfig   `yaml:"history"`
	Store           StoreConfig     `yaml:"store"`
	Telemetry       TelemetryConfig `yaml:"telemetry"`

	// path is where the file was read from, empty for defaults.
	path string
}

// Default returns the configuration used when no file exists, with paths
// resolved under base.
func Default(base string) *Config {
	c := &Config{}
	c.applyDefaults()
	c.normalize(base)
	return c
}

// DefaultPath returns the settings path for a project rooted at base.
func DefaultPath(base string) string {
	return filepath.Join(base, Dir, FileName)
}

// Load reads path. A missing file yields defaults rooted at the file's
// project directory (the parent of .timeline).
func Load(path string) (*Config, error) {
	base := projectRoot(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return Default(base), nil
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("read %s", path), err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.NewFileUnmarshalError(path, "YAML", err)
	}
	c.applyDefaults()
	c.normalize(base)
	if err := c.validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, fmt.Sprintf("invalid config %s", path), err)
	}
	c.path = path
	return &c, nil
}

// Save writes c to path, creating the directory.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "encode config", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "create config directory", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("write %s", path), err)
	}
	c.path = path
	return nil
}

// Path returns the file the config was loaded from, or "".
func (c *Config) Path() string {
	return c.path
}

// LoggerConfig builds the logger configuration.
func (c *Config) LoggerConfig() log.Config {
	return log.ConfigFor(c.Log.Level, c.Log.Format)
}

func (c *Config) applyDefaults() {
	if c.MaxDepth == 0 {
		c.MaxDepth = defaultMaxDepth
	}
	if c.MaxSettleRounds == 0 {
		c.MaxSettleRounds = defaultMaxSettleRounds
	}
	if c.ViolationPolicy == "" {
		c.ViolationPolicy = "reject"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.History.Dir == "" {
		c.History.Dir = filepath.Join(Dir, "history")
	}
	if c.History.Keep == 0 {
		c.History.Keep = defaultHistoryKeep
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(Dir, "timeline.db")
	}
	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = defaultSampleRate
	}
}

func (c *Config) normalize(base string) {
	c.ViolationPolicy = strings.ToLower(strings.TrimSpace(c.ViolationPolicy))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.History.Dir = resolvePath(base, c.History.Dir)
	c.Store.Path = resolvePath(base, c.Store.Path)
}

func (c *Config) validate() error {
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be >= 0")
	}
	if c.MaxSettleRounds < 1 {
		return fmt.Errorf("max_settle_rounds must be >= 1")
	}
	switch c.ViolationPolicy {
	case "reject", "delete-violated", "force":
	default:
		return fmt.Errorf("violation_policy must be reject, delete-violated or force")
	}
	if _, err := log.ParseLevelStrict(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "json", "text", "console":
	default:
		return fmt.Errorf("log.format must be json or text")
	}
	if c.History.Keep < 0 {
		return fmt.Errorf("history.keep must be >= 0")
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be within [0, 1]")
	}
	return nil
}

// projectRoot returns the directory that owns path: the parent of a
// .timeline directory, or the file's own directory otherwise.
func projectRoot(path string) string {
	dir := filepath.Dir(path)
	if filepath.Base(dir) == Dir {
		return filepath.Dir(dir)
	}
	return dir
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}
