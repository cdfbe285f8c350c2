package config

import (
	"fmt"
	"strings"
)

// Default window values.
const (
	DefaultWindowLabel  = "main"
	DefaultWindowURL    = "index.html"
	DefaultWindowTitle  = "HostBridge"
	DefaultWindowWidth  = 800
	DefaultWindowHeight = 600
)

// WindowConfig describes one window created at startup.
// Boolean settings that default to true are pointers so an absent key keeps the default.
type WindowConfig struct {
	Label       string   `toml:"label" yaml:"label" json:"label,omitempty"`
	URL         string   `toml:"url" yaml:"url" json:"url,omitempty"`    // App route or remote URL
	HTML        string   `toml:"html" yaml:"html" json:"html,omitempty"` // Inline document, mutually exclusive with URL
	Title       string   `toml:"title" yaml:"title" json:"title,omitempty"`
	Width       int      `toml:"width" yaml:"width" json:"width,omitempty"`
	Height      int      `toml:"height" yaml:"height" json:"height,omitempty"`
	MinWidth    int      `toml:"min_width" yaml:"min_width" json:"min_width,omitempty"`
	MinHeight   int      `toml:"min_height" yaml:"min_height" json:"min_height,omitempty"`
	MaxWidth    int      `toml:"max_width" yaml:"max_width" json:"max_width,omitempty"`
	MaxHeight   int      `toml:"max_height" yaml:"max_height" json:"max_height,omitempty"`
	X           *int     `toml:"x" yaml:"x" json:"x,omitempty"`
	Y           *int     `toml:"y" yaml:"y" json:"y,omitempty"`
	Resizable   *bool    `toml:"resizable" yaml:"resizable" json:"resizable,omitempty"`
	Visible     *bool    `toml:"visible" yaml:"visible" json:"visible,omitempty"`
	Decorations *bool    `toml:"decorations" yaml:"decorations" json:"decorations,omitempty"`
	Fullscreen  bool     `toml:"fullscreen" yaml:"fullscreen" json:"fullscreen,omitempty"`
	Maximized   bool     `toml:"maximized" yaml:"maximized" json:"maximized,omitempty"`
	Transparent bool     `toml:"transparent" yaml:"transparent" json:"transparent,omitempty"`
	AlwaysOnTop bool     `toml:"always_on_top" yaml:"always_on_top" json:"always_on_top,omitempty"`
	Icon        string   `toml:"icon" yaml:"icon" json:"icon,omitempty"` // Path to a PNG or JPEG
	InitScripts []string `toml:"init_scripts" yaml:"init_scripts" json:"init_scripts,omitempty"`
	UserData    string   `toml:"user_data_path" yaml:"user_data_path" json:"user_data_path,omitempty"`
}

// DefaultWindowConfig returns the window created when no windows are configured.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		Label:  DefaultWindowLabel,
		URL:    DefaultWindowURL,
		Title:  DefaultWindowTitle,
		Width:  DefaultWindowWidth,
		Height: DefaultWindowHeight,
	}
}

// IsResizable reports the resizable flag, defaulting to true.
func (w WindowConfig) IsResizable() bool { return boolOr(w.Resizable, true) }

// IsVisible reports the visible flag, defaulting to true.
func (w WindowConfig) IsVisible() bool { return boolOr(w.Visible, true) }

// HasDecorations reports the decorations flag, defaulting to true.
func (w WindowConfig) HasDecorations() bool { return boolOr(w.Decorations, true) }

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// ApplyDefaults fills zero geometry with the default size.
func (w *WindowConfig) ApplyDefaults() {
	if w.Width == 0 {
		w.Width = DefaultWindowWidth
	}
	if w.Height == 0 {
		w.Height = DefaultWindowHeight
	}
	if w.URL == "" && w.HTML == "" {
		w.URL = DefaultWindowURL
	}
}

// Validate checks a single window entry.
func (w WindowConfig) Validate() error {
	if strings.TrimSpace(w.Label) == "" {
		return fmt.Errorf("window label must not be empty")
	}
	if w.URL != "" && w.HTML != "" {
		return fmt.Errorf("window %q: url and html are mutually exclusive", w.Label)
	}
	if w.Width <= 0 || w.Height <= 0 {
		return fmt.Errorf("window %q: width and height must be positive, got %dx%d", w.Label, w.Width, w.Height)
	}
	if w.MinWidth < 0 || w.MinHeight < 0 || w.MaxWidth < 0 || w.MaxHeight < 0 {
		return fmt.Errorf("window %q: size limits must not be negative", w.Label)
	}
	if w.MaxWidth > 0 && w.MinWidth > w.MaxWidth {
		return fmt.Errorf("window %q: min_width %d exceeds max_width %d", w.Label, w.MinWidth, w.MaxWidth)
	}
	if w.MaxHeight > 0 && w.MinHeight > w.MaxHeight {
		return fmt.Errorf("window %q: min_height %d exceeds max_height %d", w.Label, w.MinHeight, w.MaxHeight)
	}
	return nil
}
