package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/jmylchreest/hostbridge/internal/model"
)

// LineFormatter formats one record per line, for fzf/dmenu pickers.
type LineFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewLineFormatter creates a new line formatter.
func NewLineFormatter(opts FormatterOptions) *LineFormatter {
	f := &LineFormatter{opts: opts}

	if opts.Template != "" {
		tmpl, err := template.New("line").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// Format writes records in line format.
func (f *LineFormatter) Format(w io.Writer, records []model.EventRecord) error {
	for i := range records {
		line := f.formatLine(i+1, &records[i])
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// formatLine formats a single record line.
func (f *LineFormatter) formatLine(index int, r *model.EventRecord) string {
	if f.template != nil {
		var buf strings.Builder
		if err := f.template.Execute(&buf, newTemplateData(index, r)); err == nil {
			return buf.String()
		}
	}

	// Default format: index | time | source | window | event: payload
	var parts []string
	sep := f.opts.Separator
	if sep == "" {
		sep = " | "
	}

	if f.opts.ShowIndex {
		parts = append(parts, fmt.Sprintf("%d", index))
	}
	if f.opts.ShowTime {
		parts = append(parts, relativeTime(r.Timestamp))
	}
	if f.opts.ShowSource {
		parts = append(parts, r.Source)
	}
	parts = append(parts, windowName(r))

	content := r.Event
	if len(r.Payload) > 0 && string(r.Payload) != "null" {
		content += ": " + sanitizePayload(string(r.Payload), f.opts.PayloadMaxLen)
	}
	parts = append(parts, content)

	return strings.Join(parts, sep)
}

// templateData provides data for custom templates.
type templateData struct {
	Index        int
	Record       *model.EventRecord
	Payload      string
	RelativeTime string
}

func newTemplateData(index int, r *model.EventRecord) templateData {
	return templateData{
		Index:        index,
		Record:       r,
		Payload:      r.PayloadString(),
		RelativeTime: relativeTime(r.Timestamp),
	}
}

// templateFuncs returns template helper functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"truncate": truncate,
		"reltime":  relativeTime,
		"targets": func(ts []string) string {
			return strings.Join(ts, ",")
		},
	}
}

// windowName names the window a record belongs to, or its targets for
// broadcasts.
func windowName(r *model.EventRecord) string {
	switch {
	case r.Window != "":
		return r.Window
	case len(r.Targets) > 0:
		return "*" + strings.Join(r.Targets, ",")
	default:
		return "-"
	}
}

// relativeTime returns a compact relative time for a millisecond timestamp.
func relativeTime(timestamp int64) string {
	if timestamp == 0 {
		return "unknown"
	}

	d := time.Since(time.UnixMilli(timestamp))

	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw", int(d.Hours()/24/7))
	}
}

// sanitizePayload flattens payload JSON onto one line.
func sanitizePayload(payload string, maxLen int) string {
	payload = strings.ReplaceAll(payload, "\n", " ")
	payload = strings.ReplaceAll(payload, "\r", "")

	for strings.Contains(payload, "  ") {
		payload = strings.ReplaceAll(payload, "  ", " ")
	}

	return truncate(strings.TrimSpace(payload), maxLen)
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
