package runtime

import (
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
)

// URLKind says where a window's initial document comes from.
type URLKind int

const (
	// URLApp is a route inside the application's own assets.
	URLApp URLKind = iota
	// URLExternal is a remote URL loaded as-is.
	URLExternal
	// URLHTML is a raw HTML document.
	URLHTML
)

// String returns a human-readable name for the kind.
func (k URLKind) String() string {
	switch k {
	case URLApp:
		return "app"
	case URLExternal:
		return "external"
	case URLHTML:
		return "html"
	default:
		return "unknown"
	}
}

// WindowURL is the initial content of a window.
type WindowURL struct {
	Kind  URLKind
	Value string
}

// AppURL points at a route inside the application assets.
func AppURL(path string) WindowURL {
	return WindowURL{Kind: URLApp, Value: strings.TrimPrefix(path, "/")}
}

// ExternalURL points at a remote document.
func ExternalURL(u string) WindowURL {
	return WindowURL{Kind: URLExternal, Value: u}
}

// HTMLContent loads a raw HTML document.
func HTMLContent(html string) WindowURL {
	return WindowURL{Kind: URLHTML, Value: html}
}

// ParseWindowURL classifies s as external when it carries a scheme and host,
// and as an app route otherwise.
func ParseWindowURL(s string) WindowURL {
	if u, err := url.Parse(s); err == nil && u.Scheme != "" && (u.Host != "" || u.Scheme == "data") {
		return ExternalURL(s)
	}
	return AppURL(s)
}

// String returns the URL value, or a placeholder for inline HTML.
func (u WindowURL) String() string {
	if u.Kind == URLHTML {
		return "about:blank"
	}
	return u.Value
}

// PendingWindow is a fully specified window that no engine has realized yet.
// It is consumed by exactly one CreateWindow call.
type PendingWindow struct {
	Label      string
	URL        WindowURL
	Attributes Attributes

	InvokeHandler   InvokeHandler
	FileDropHandler FileDropHandler
	Protocol        *CustomProtocol
	CloseHandler    CloseHandler

	consumed atomic.Bool
}

// NewPendingWindow creates a pending window with the given attributes.
func NewPendingWindow(label string, url WindowURL, attrs Attributes) *PendingWindow {
	return &PendingWindow{
		Label:      label,
		URL:        url,
		Attributes: attrs,
	}
}

// Consume marks the window as handed to an engine. Engines call it first in
// CreateWindow; a second call fails.
func (p *PendingWindow) Consume() error {
	if p == nil {
		return fmt.Errorf("%w: nil pending window", ErrCreateWindow)
	}
	if !p.consumed.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %q", ErrPendingConsumed, p.Label)
	}
	return nil
}

// Consumed reports whether Consume has been called.
func (p *PendingWindow) Consumed() bool {
	return p.consumed.Load()
}
