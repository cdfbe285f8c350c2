package runtime

import (
	"github.com/jmylchreest/hostbridge/internal/config"
)

// Attributes are the engine-neutral geometry and chrome of a window.
// Zero min/max values mean no bound; nil X/Y lets the engine place the window.
type Attributes struct {
	Title       string
	Width       int
	Height      int
	MinWidth    int
	MinHeight   int
	MaxWidth    int
	MaxHeight   int
	X           *int
	Y           *int
	Resizable   bool
	Visible     bool
	Decorations bool
	Maximized   bool
	Fullscreen  bool
	Transparent bool
	AlwaysOnTop bool
	Icon        *Icon

	// InitScripts run in order at the start of every new script context,
	// before any page script.
	InitScripts []string

	UserDataPath string
}

// DefaultAttributes returns a visible, resizable, decorated 800x600 window.
func DefaultAttributes() Attributes {
	return Attributes{
		Title:       config.DefaultWindowTitle,
		Width:       config.DefaultWindowWidth,
		Height:      config.DefaultWindowHeight,
		Resizable:   true,
		Visible:     true,
		Decorations: true,
	}
}

// AttributesFromConfig converts a validated window config.
func AttributesFromConfig(w config.WindowConfig) Attributes {
	attrs := Attributes{
		Title:        w.Title,
		Width:        w.Width,
		Height:       w.Height,
		MinWidth:     w.MinWidth,
		MinHeight:    w.MinHeight,
		MaxWidth:     w.MaxWidth,
		MaxHeight:    w.MaxHeight,
		X:            w.X,
		Y:            w.Y,
		Resizable:    w.IsResizable(),
		Visible:      w.IsVisible(),
		Decorations:  w.HasDecorations(),
		Maximized:    w.Maximized,
		Fullscreen:   w.Fullscreen,
		Transparent:  w.Transparent,
		AlwaysOnTop:  w.AlwaysOnTop,
		InitScripts:  append([]string(nil), w.InitScripts...),
		UserDataPath: w.UserData,
	}
	if w.Icon != "" {
		icon := IconFromFile(w.Icon)
		attrs.Icon = &icon
	}
	return attrs
}

// URLFromConfig returns the initial content of a configured window.
func URLFromConfig(w config.WindowConfig) WindowURL {
	if w.HTML != "" {
		return HTMLContent(w.HTML)
	}
	return ParseWindowURL(w.URL)
}

// WithInitScript returns a copy with script appended to the init scripts.
func (a Attributes) WithInitScript(script string) Attributes {
	a.InitScripts = append(append([]string(nil), a.InitScripts...), script)
	return a
}

// WithInitScriptsFirst returns a copy with scripts run before existing ones.
func (a Attributes) WithInitScriptsFirst(scripts ...string) Attributes {
	a.InitScripts = append(append([]string(nil), scripts...), a.InitScripts...)
	return a
}
