package runtime

import (
	"github.com/jmylchreest/hostbridge/internal/ipc"
)

// InvokeHandler receives every inbound call from a window's page script.
// It is called on the engine's event loop and must not block.
type InvokeHandler interface {
	HandleInvoke(window DetachedWindow, payload ipc.InvokePayload)
}

// InvokeHandlerFunc adapts a function to InvokeHandler.
type InvokeHandlerFunc func(window DetachedWindow, payload ipc.InvokePayload)

// HandleInvoke calls f.
func (f InvokeHandlerFunc) HandleInvoke(window DetachedWindow, payload ipc.InvokePayload) {
	f(window, payload)
}

// FileDropKind classifies a file drop notification.
type FileDropKind int

const (
	FileDropHovered FileDropKind = iota
	FileDropDropped
	FileDropCancelled
)

// String returns a human-readable name for the kind.
func (k FileDropKind) String() string {
	switch k {
	case FileDropHovered:
		return "hovered"
	case FileDropDropped:
		return "dropped"
	case FileDropCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// FileDropEvent is an OS-level file hover, drop or cancel.
type FileDropEvent struct {
	Kind  FileDropKind
	Paths []string
}

// FileDropHandler receives file drop notifications. Returning true tells the
// engine the drop was consumed and suppresses its default behaviour.
type FileDropHandler interface {
	HandleFileDrop(window DetachedWindow, event FileDropEvent) bool
}

// FileDropHandlerFunc adapts a function to FileDropHandler.
type FileDropHandlerFunc func(window DetachedWindow, event FileDropEvent) bool

// HandleFileDrop calls f.
func (f FileDropHandlerFunc) HandleFileDrop(window DetachedWindow, event FileDropEvent) bool {
	return f(window, event)
}

// ProtocolHandler serves requests for a reserved URL scheme. It returns
// ErrNotHandled to decline.
type ProtocolHandler interface {
	HandleProtocol(url string) ([]byte, error)
}

// ProtocolHandlerFunc adapts a function to ProtocolHandler.
type ProtocolHandlerFunc func(url string) ([]byte, error)

// HandleProtocol calls f.
func (f ProtocolHandlerFunc) HandleProtocol(url string) ([]byte, error) {
	return f(url)
}

// CustomProtocol binds a handler to a URL scheme.
type CustomProtocol struct {
	Scheme  string
	Handler ProtocolHandler
}

// CloseHandler is told once when a window is destroyed.
type CloseHandler interface {
	WindowClosed(label string)
}

// CloseHandlerFunc adapts a function to CloseHandler.
type CloseHandlerFunc func(label string)

// WindowClosed calls f.
func (f CloseHandlerFunc) WindowClosed(label string) {
	f(label)
}

// DeliverInvoke decodes a raw message posted by page script and passes it to
// the window's invoke hook. Messages that fail to decode are reported back
// to the page console.
func DeliverInvoke(window DetachedWindow, handler InvokeHandler, raw string) error {
	if handler == nil {
		return nil
	}
	payload, err := ipc.ParsePayload(raw)
	if err != nil {
		if evalErr := window.Dispatcher.EvalScript(ipc.ConsoleErrorScript(err.Error())); evalErr != nil {
			return evalErr
		}
		return err
	}
	handler.HandleInvoke(window, payload)
	return nil
}
