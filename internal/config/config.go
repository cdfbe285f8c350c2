// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultProductName = "HostBridge App"
	DefaultVersion     = "0.1.0"
	DefaultDistDir     = "../dist"
	DefaultDevPath     = "http://localhost:4000"
	DefaultEngine      = EngineHeadless
	DefaultWorkers     = 4
	DefaultSaltTTL     = Duration(0)
)

// Engine names accepted by [runtime] engine.
const (
	EngineHeadless = "headless"
	EngineWebview  = "webview"
)

// Config represents the hostbridge application configuration.
type Config struct {
	Package  PackageConfig  `toml:"package" yaml:"package"`
	Build    BuildConfig    `toml:"build" yaml:"build"`
	Runtime  RuntimeConfig  `toml:"runtime" yaml:"runtime"`
	Security SecurityConfig `toml:"security" yaml:"security"`
	Control  ControlConfig  `toml:"control" yaml:"control"`
	Windows  []WindowConfig `toml:"windows" yaml:"windows"`

	// Plugins holds per-plugin settings keyed by plugin name.
	Plugins map[string]map[string]any `toml:"plugins,omitempty" yaml:"plugins,omitempty"`
}

// PackageConfig identifies the application.
type PackageConfig struct {
	ProductName string `toml:"product_name" yaml:"product_name"`
	Version     string `toml:"version" yaml:"version"`
}

// BuildConfig locates the frontend assets.
type BuildConfig struct {
	DistDir string `toml:"dist_dir" yaml:"dist_dir"` // Relative to the config file
	DevPath string `toml:"dev_path" yaml:"dev_path"` // Used instead of dist_dir when dev mode is on
	Watch   bool   `toml:"watch" yaml:"watch"`       // Reload windows when dist_dir changes
}

// RuntimeConfig selects the engine and handler concurrency.
type RuntimeConfig struct {
	Engine  string `toml:"engine" yaml:"engine"`   // headless, webview
	Workers int    `toml:"workers" yaml:"workers"` // Concurrent invoke handlers
	Debug   bool   `toml:"debug" yaml:"debug"`     // Enable engine devtools
}

// SecurityConfig holds invoke protocol settings.
type SecurityConfig struct {
	SaltTTL Duration `toml:"salt_ttl" yaml:"salt_ttl"` // 0 = salts never expire
}

// ControlConfig configures the out-of-process control plane.
type ControlConfig struct {
	DBus        bool   `toml:"dbus" yaml:"dbus"`
	MetricsAddr string `toml:"metrics_addr" yaml:"metrics_addr"` // Empty disables /metrics
	Journal     bool   `toml:"journal" yaml:"journal"`
	JournalPath string `toml:"journal_path" yaml:"journal_path"` // Empty = JournalPath()
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Package: PackageConfig{
			ProductName: DefaultProductName,
			Version:     DefaultVersion,
		},
		Build: BuildConfig{
			DistDir: DefaultDistDir,
			DevPath: DefaultDevPath,
		},
		Runtime: RuntimeConfig{
			Engine:  DefaultEngine,
			Workers: DefaultWorkers,
		},
		Security: SecurityConfig{
			SaltTTL: DefaultSaltTTL,
		},
		Control: ControlConfig{
			DBus: true,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "hostbridge", "hostbridge.toml")
}

// DataPath returns the path to the data directory.
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share.
func DataPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "hostbridge")
}

// JournalPath returns the default path of the event journal.
func JournalPath() string {
	return filepath.Join(DataPath(), "events.jsonl")
}

// Load loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if the file doesn't exist.
// Files ending in .yaml or .yml are parsed as YAML, everything else as TOML.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.finalize()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.finalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration atomically in the format implied by path.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = toml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// finalize applies defaults that depend on other fields.
func (c *Config) finalize() {
	if len(c.Windows) == 0 {
		c.Windows = []WindowConfig{DefaultWindowConfig()}
	}
	for i := range c.Windows {
		c.Windows[i].ApplyDefaults()
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Runtime.Engine {
	case EngineHeadless, EngineWebview:
	default:
		return fmt.Errorf("invalid engine %q, must be one of: %v", c.Runtime.Engine, []string{EngineHeadless, EngineWebview})
	}

	if c.Runtime.Workers < 1 || c.Runtime.Workers > 256 {
		return fmt.Errorf("workers must be between 1 and 256, got %d", c.Runtime.Workers)
	}

	if c.Security.SaltTTL.Duration() < 0 {
		return fmt.Errorf("salt_ttl must not be negative, got %s", time.Duration(c.Security.SaltTTL))
	}

	seen := make(map[string]bool, len(c.Windows))
	for _, w := range c.Windows {
		if err := w.Validate(); err != nil {
			return err
		}
		if seen[w.Label] {
			return fmt.Errorf("duplicate window label %q", w.Label)
		}
		seen[w.Label] = true
	}

	return nil
}

// Window returns the configured window with the given label.
func (c *Config) Window(label string) (WindowConfig, bool) {
	for _, w := range c.Windows {
		if w.Label == label {
			return w, true
		}
	}
	return WindowConfig{}, false
}

// ResolveDistDir returns dist_dir made absolute against the directory of the config file.
func (c *Config) ResolveDistDir(configPath string) string {
	dir := expandPath(c.Build.DistDir)
	if filepath.IsAbs(dir) || configPath == "" {
		return dir
	}
	return filepath.Join(filepath.Dir(configPath), dir)
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	path := DataPath()
	if path == "" {
		return errors.New("unable to determine data directory")
	}
	return os.MkdirAll(path, 0o755)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
