package theme

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// importRegex matches @import "file.css"; or @import 'file.css'; or @import url("file.css");
var importRegex = regexp.MustCompile(`@import\s+(?:url\s*\(\s*)?["']([^"']+)["']\s*\)?;?`)

// validName rejects names that could escape the themes directory.
var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ErrNotFound is returned when no bundled or user theme has the given name.
var ErrNotFound = errors.New("theme not found")

// Theme is a resolved stylesheet.
type Theme struct {
	Name      string    // Theme name (without .css extension)
	Path      string    // Full path to the CSS file (empty when bundled)
	CSS       string    // Stylesheet with imports inlined
	ModTime   time.Time // Last modification time of Path
	IsBundled bool
}

// IsDefault reports whether t is the bundled default theme.
func (t *Theme) IsDefault() bool {
	return t.IsBundled && t.Name == DefaultThemeName
}

// NewTheme loads a theme from a CSS file. @import statements are resolved
// relative to the file and inlined.
func NewTheme(name, path string) (*Theme, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	css, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return &Theme{
		Name:    name,
		Path:    path,
		CSS:     ProcessImports(string(css), filepath.Dir(path), nil),
		ModTime: info.ModTime(),
	}, nil
}

// NewBundledTheme loads an embedded theme with its imports inlined.
func NewBundledTheme(name string) (*Theme, error) {
	css, found := GetEmbeddedTheme(name)
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return &Theme{
		Name:      name,
		CSS:       ProcessImports(css, "", nil),
		IsBundled: true,
	}, nil
}

// NewDefaultTheme returns the bundled default theme.
func NewDefaultTheme() *Theme {
	t, err := NewBundledTheme(DefaultThemeName)
	if err != nil {
		return &Theme{Name: DefaultThemeName, IsBundled: true}
	}
	return t
}

// Resolve finds a theme by name. A CSS file in dir shadows the bundled theme
// of the same name. An empty name selects the default theme.
func Resolve(name, dir string) (*Theme, error) {
	if name == "" {
		name = DefaultThemeName
	}
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("invalid theme name %q", name)
	}

	if dir != "" {
		path := filepath.Join(dir, name+".css")
		if _, err := os.Stat(path); err == nil {
			t, err := NewTheme(name, path)
			if err != nil {
				return nil, fmt.Errorf("failed to load theme %q: %w", name, err)
			}
			return t, nil
		}
	}

	return NewBundledTheme(name)
}

// ProcessImports resolves and inlines @import statements in CSS.
// Imports are resolved relative to baseDir; an empty baseDir resolves only
// against bundled files. The seen map prevents circular imports.
func ProcessImports(css string, baseDir string, seen map[string]bool) string {
	if seen == nil {
		seen = make(map[string]bool)
	}

	return importRegex.ReplaceAllStringFunc(css, func(match string) string {
		submatch := importRegex.FindStringSubmatch(match)
		if len(submatch) < 2 {
			return match
		}
		importPath := submatch[1]

		// Remote stylesheets are left for the page to fetch.
		if strings.Contains(importPath, "://") {
			return match
		}

		fullPath := importPath
		if baseDir != "" && !filepath.IsAbs(importPath) {
			fullPath = filepath.Join(baseDir, importPath)
		}
		if baseDir == "" {
			fullPath = "embedded:" + importPath
		}

		if seen[fullPath] {
			return "/* circular import prevented: " + importPath + " */"
		}
		seen[fullPath] = true

		if baseDir != "" {
			data, err := os.ReadFile(fullPath)
			if err == nil {
				return "/* imported: " + importPath + " */\n" +
					ProcessImports(string(data), filepath.Dir(fullPath), seen)
			}
			if embedded, ok := embeddedImport(importPath, seen); ok {
				return embedded
			}
			return "/* import failed: " + importPath + " - " + err.Error() + " */"
		}

		if embedded, ok := embeddedImport(importPath, seen); ok {
			return embedded
		}
		return "/* import failed: " + importPath + " - not bundled */"
	})
}

// embeddedImport resolves an import against bundled partials, then themes.
func embeddedImport(importPath string, seen map[string]bool) (string, bool) {
	baseName := filepath.Base(importPath)

	css, found := "", false
	if strings.HasPrefix(baseName, "_") {
		css, found = GetEmbeddedPartial(baseName)
	}
	if !found {
		css, found = GetEmbeddedTheme(strings.TrimSuffix(baseName, ".css"))
	}
	if !found {
		return "", false
	}
	return "/* imported (embedded): " + importPath + " */\n" + ProcessImports(css, "", seen), true
}

// Reload re-reads the theme from disk when its file changed.
// Returns true if the content changed.
func (t *Theme) Reload() (bool, error) {
	if t.IsBundled {
		return false, nil
	}

	info, err := os.Stat(t.Path)
	if err != nil {
		return false, err
	}
	if !info.ModTime().After(t.ModTime) {
		return false, nil
	}

	css, err := os.ReadFile(t.Path)
	if err != nil {
		return false, err
	}

	processed := ProcessImports(string(css), filepath.Dir(t.Path), nil)
	changed := processed != t.CSS
	t.CSS = processed
	t.ModTime = info.ModTime()
	return changed, nil
}

// ThemeInfo provides basic theme information for listing.
type ThemeInfo struct {
	Name      string `json:"name"`
	Path      string `json:"path,omitempty"`
	IsDefault bool   `json:"default"`
	IsBundled bool   `json:"bundled"`
}

// ListAvailableThemes lists bundled themes followed by user themes in dir.
// A user theme that shadows a bundled one is listed once, with its path.
func ListAvailableThemes(dir string) ([]ThemeInfo, error) {
	var themes []ThemeInfo
	index := make(map[string]int)

	for _, name := range ListEmbeddedThemes() {
		index[name] = len(themes)
		themes = append(themes, ThemeInfo{
			Name:      name,
			IsDefault: name == DefaultThemeName,
			IsBundled: true,
		})
	}

	if dir == "" {
		return themes, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return themes, nil
		}
		return themes, err
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".css" || strings.HasPrefix(name, "_") {
			continue
		}
		info := ThemeInfo{
			Name: strings.TrimSuffix(name, ".css"),
			Path: filepath.Join(dir, name),
		}
		if i, ok := index[info.Name]; ok {
			themes[i].Path = info.Path
			themes[i].IsBundled = false
			continue
		}
		index[info.Name] = len(themes)
		themes = append(themes, info)
	}
	return themes, nil
}

// ThemesDir returns the path to the user's themes directory.
func ThemesDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "hostbridge", "themes"), nil
}

