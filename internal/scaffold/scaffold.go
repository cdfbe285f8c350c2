// Package scaffold generates the host side of a new application.
package scaffold

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"github.com/jmylchreest/hostbridge/internal/config"
)

//go:embed templates
var templates embed.FS

// TargetDir is the directory created inside the project directory.
const TargetDir = "src-hostbridge"

// Default template values.
const (
	DefaultAppName     = config.DefaultProductName
	DefaultWindowTitle = "HostBridge"
)

// ErrTargetExists is returned when the target directory exists and Force is
// not set.
var ErrTargetExists = errors.New("target directory already exists")

// Options configures Init. Empty strings take defaults.
type Options struct {
	Directory   string // Project directory, defaults to the working directory
	AppName     string
	WindowTitle string
	DistDir     string
	DevPath     string
	Force       bool // Replace an existing target directory
	Logger      *slog.Logger
}

type templateData struct {
	AppName     string
	WindowTitle string
	DistDir     string
	DevPath     string
}

// Init renders the templates into <Directory>/src-hostbridge and returns that
// path.
func Init(opts Options) (string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dir := opts.Directory
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to read working directory: %w", err)
		}
		dir = wd
	}
	target := filepath.Join(dir, TargetDir)

	if _, err := os.Stat(target); err == nil {
		if !opts.Force {
			logger.Warn("target directory not empty, use --force to overwrite", "path", target)
			return target, fmt.Errorf("%w: %s", ErrTargetExists, target)
		}
		if err := os.RemoveAll(target); err != nil {
			return target, fmt.Errorf("failed to remove %s: %w", target, err)
		}
	}

	data := templateData{
		AppName:     orDefault(opts.AppName, DefaultAppName),
		WindowTitle: orDefault(opts.WindowTitle, DefaultWindowTitle),
		DistDir:     orDefault(opts.DistDir, config.DefaultDistDir),
		DevPath:     orDefault(opts.DevPath, config.DefaultDevPath),
	}
	if err := render(target, data); err != nil {
		return target, err
	}

	logger.Info("project initialized", "path", target)
	return target, nil
}

// render writes every embedded template under target, dropping the .tmpl
// extension.
func render(target string, data templateData) error {
	funcs := template.FuncMap{"quote": strconv.Quote}

	return fs.WalkDir(templates, "templates", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(name, "templates"), "/")
		out := filepath.Join(target, filepath.FromSlash(strings.TrimSuffix(rel, ".tmpl")))
		if d.IsDir() {
			return os.MkdirAll(out, 0o755)
		}

		src, err := templates.ReadFile(name)
		if err != nil {
			return err
		}
		tmpl, err := template.New(path.Base(name)).Funcs(funcs).Parse(string(src))
		if err != nil {
			return fmt.Errorf("failed to parse template %s: %w", rel, err)
		}

		f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", out, err)
		}
		if err := tmpl.Execute(f, data); err != nil {
			f.Close()
			return fmt.Errorf("failed to render %s: %w", rel, err)
		}
		return f.Close()
	})
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
