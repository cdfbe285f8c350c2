// Package output provides output formatters for event records and windows.
package output

import (
	"io"
	"strings"

	"github.com/jmylchreest/hostbridge/internal/model"
)

// Formatter formats event records for output.
type Formatter interface {
	// Format writes formatted records to the writer.
	Format(w io.Writer, records []model.EventRecord) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatLine  FormatType = "line"
	FormatJSON  FormatType = "json"
	FormatPlain FormatType = "plain"
	FormatIDs   FormatType = "ids"
)

// ParseFormat maps a flag value to a format. Unknown values select the line
// format. "dmenu" is accepted for line.
func ParseFormat(s string) FormatType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	case "plain":
		return FormatPlain
	case "ids", "id":
		return FormatIDs
	default:
		return FormatLine
	}
}

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(opts)
	case FormatPlain:
		return NewPlainFormatter(opts)
	case FormatIDs:
		return NewIDsFormatter()
	case FormatLine:
		fallthrough
	default:
		return NewLineFormatter(opts)
	}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template      string // Custom template for line/plain format
	ShowIndex     bool   // Show 1-based index prefix
	ShowTime      bool   // Show relative time
	ShowSource    bool   // Show event source
	PayloadMaxLen int    // Maximum payload length (0 = unlimited)
	Separator     string // Field separator for line format
}

// DefaultFormatterOptions returns sensible defaults for line output.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		ShowIndex:     true,
		ShowTime:      true,
		ShowSource:    true,
		PayloadMaxLen: 80,
		Separator:     " | ",
	}
}
