package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultProductName, cfg.Package.ProductName)
	assert.Equal(t, DefaultVersion, cfg.Package.Version)
	assert.Equal(t, "../dist", cfg.Build.DistDir)
	assert.Equal(t, "http://localhost:4000", cfg.Build.DevPath)
	assert.Equal(t, EngineHeadless, cfg.Runtime.Engine)
	assert.Equal(t, 4, cfg.Runtime.Workers)
	assert.True(t, cfg.Control.DBus)
	assert.Empty(t, cfg.Windows)
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/hostbridge.toml")
	require.NoError(t, err)

	require.Len(t, cfg.Windows, 1)
	w := cfg.Windows[0]
	assert.Equal(t, "main", w.Label)
	assert.Equal(t, "index.html", w.URL)
	assert.Equal(t, 800, w.Width)
	assert.Equal(t, 600, w.Height)
	assert.True(t, w.IsResizable())
	assert.True(t, w.IsVisible())
	assert.True(t, w.HasDecorations())
}

func TestLoad_ParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hostbridge.toml")

	content := `
[package]
product_name = "Demo"
version = "1.2.3"

[runtime]
workers = 2

[security]
salt_ttl = "30s"

[[windows]]
label = "main"
title = "Main"
width = 1024
height = 768
resizable = false
init_scripts = ["console.log('hi')"]

[[windows]]
label = "about"
html = "<p>about</p>"
x = 10
y = 20

[plugins.greeter]
greeting = "hi"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Demo", cfg.Package.ProductName)
	assert.Equal(t, "1.2.3", cfg.Package.Version)
	assert.Equal(t, 2, cfg.Runtime.Workers)
	assert.Equal(t, 30*time.Second, cfg.Security.SaltTTL.Duration())

	require.Len(t, cfg.Windows, 2)
	main := cfg.Windows[0]
	assert.Equal(t, 1024, main.Width)
	assert.False(t, main.IsResizable())
	assert.Equal(t, []string{"console.log('hi')"}, main.InitScripts)

	about, ok := cfg.Window("about")
	require.True(t, ok)
	assert.Empty(t, about.URL)
	assert.Equal(t, "<p>about</p>", about.HTML)
	assert.Equal(t, 800, about.Width)
	require.NotNil(t, about.X)
	assert.Equal(t, 10, *about.X)
	assert.Equal(t, 20, *about.Y)

	assert.Equal(t, "hi", cfg.Plugins["greeter"]["greeting"])
}

func TestLoad_ParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hostbridge.yaml")

	content := `
package:
  product_name: Demo
runtime:
  engine: headless
security:
  salt_ttl: 1m
windows:
  - label: main
    url: https://example.com
    always_on_top: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Demo", cfg.Package.ProductName)
	assert.Equal(t, time.Minute, cfg.Security.SaltTTL.Duration())
	require.Len(t, cfg.Windows, 1)
	assert.Equal(t, "https://example.com", cfg.Windows[0].URL)
	assert.True(t, cfg.Windows[0].AlwaysOnTop)
}

func TestLoad_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hostbridge.toml")
	require.NoError(t, os.WriteFile(path, []byte("this is not [valid toml"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown engine",
			mutate:  func(c *Config) { c.Runtime.Engine = "gtk" },
			wantErr: "invalid engine",
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Runtime.Workers = 0 },
			wantErr: "workers",
		},
		{
			name:    "negative ttl",
			mutate:  func(c *Config) { c.Security.SaltTTL = Duration(-time.Second) },
			wantErr: "salt_ttl",
		},
		{
			name: "duplicate label",
			mutate: func(c *Config) {
				c.Windows = append(c.Windows, DefaultWindowConfig())
			},
			wantErr: "duplicate window label",
		},
		{
			name:    "empty label",
			mutate:  func(c *Config) { c.Windows[0].Label = " " },
			wantErr: "label must not be empty",
		},
		{
			name: "url and html",
			mutate: func(c *Config) {
				c.Windows[0].HTML = "<p></p>"
			},
			wantErr: "mutually exclusive",
		},
		{
			name: "min exceeds max",
			mutate: func(c *Config) {
				c.Windows[0].MinWidth = 500
				c.Windows[0].MaxWidth = 400
			},
			wantErr: "min_width",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.finalize()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"hostbridge.toml", "hostbridge.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "nested", name)

			cfg := DefaultConfig()
			cfg.Package.ProductName = "Saved"
			cfg.Security.SaltTTL = Duration(5 * time.Second)
			cfg.Windows = []WindowConfig{DefaultWindowConfig()}

			require.NoError(t, cfg.Save(path))

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, "Saved", loaded.Package.ProductName)
			assert.Equal(t, 5*time.Second, loaded.Security.SaltTTL.Duration())
			assert.Equal(t, "main", loaded.Windows[0].Label)
		})
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"5s", 5 * time.Second},
		{"1h30m", 90 * time.Minute},
		{"250", 250 * time.Millisecond},
		{"0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var d Duration
			require.NoError(t, d.UnmarshalText([]byte(tt.in)))
			assert.Equal(t, tt.want, d.Duration())
		})
	}

	var d Duration
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestResolveDistDir(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, filepath.Join("/srv/app", "../dist"), cfg.ResolveDistDir("/srv/app/hostbridge.toml"))

	cfg.Build.DistDir = "/abs/dist"
	assert.Equal(t, "/abs/dist", cfg.ResolveDistDir("/srv/app/hostbridge.toml"))
}

func TestPaths_UseXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/cfg")
	t.Setenv("XDG_DATA_HOME", "/tmp/data")

	assert.Equal(t, "/tmp/cfg/hostbridge/hostbridge.toml", ConfigPath())
	assert.Equal(t, "/tmp/data/hostbridge", DataPath())
	assert.Equal(t, "/tmp/data/hostbridge/events.jsonl", JournalPath())
}
