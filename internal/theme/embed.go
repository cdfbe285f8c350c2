package theme

import (
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// EmbeddedThemes contains the bundled stylesheets. Files starting with an
// underscore are partials, only reachable through @import.
//
//go:embed themes/*.css
var EmbeddedThemes embed.FS

// DefaultThemeName is the name of the built-in default theme.
const DefaultThemeName = "default"

// BundledThemes lists all embedded theme names.
var BundledThemes = []string{"dark", "default", "minimal"}

func readBundled(file string) (string, bool) {
	data, err := fs.ReadFile(EmbeddedThemes, path.Join("themes", file))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// GetEmbeddedTheme returns the raw CSS of a bundled theme. Imports are not
// processed; use Resolve for a ready-to-inject stylesheet.
func GetEmbeddedTheme(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	return readBundled(name + ".css")
}

// GetEmbeddedPartial returns a bundled partial. The leading underscore and
// .css extension are optional.
func GetEmbeddedPartial(name string) (string, bool) {
	name = "_" + strings.TrimPrefix(strings.TrimSuffix(name, ".css"), "_")
	return readBundled(name + ".css")
}

// ListEmbeddedThemes returns the sorted names of bundled themes.
func ListEmbeddedThemes() []string {
	matches, err := fs.Glob(EmbeddedThemes, "themes/*.css")
	if err != nil {
		return BundledThemes
	}

	var names []string
	for _, m := range matches {
		base := path.Base(m)
		if strings.HasPrefix(base, "_") {
			continue
		}
		names = append(names, strings.TrimSuffix(base, ".css"))
	}
	sort.Strings(names)
	return names
}

// IsEmbeddedTheme checks if a theme name is bundled.
func IsEmbeddedTheme(name string) bool {
	_, found := GetEmbeddedTheme(name)
	return found
}
