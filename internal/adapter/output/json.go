package output

import (
	"encoding/json"
	"io"

	"github.com/jmylchreest/hostbridge/internal/model"
)

// JSONFormatter formats records as JSON.
type JSONFormatter struct {
	opts FormatterOptions
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(opts FormatterOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Format writes records as a JSON array. An empty input writes [].
func (f *JSONFormatter) Format(w io.Writer, records []model.EventRecord) error {
	if records == nil {
		records = []model.EventRecord{}
	}
	return encodeIndented(w, records)
}

// FormatSingle writes a single record as JSON.
func (f *JSONFormatter) FormatSingle(w io.Writer, r *model.EventRecord) error {
	return encodeIndented(w, r)
}

func encodeIndented(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
