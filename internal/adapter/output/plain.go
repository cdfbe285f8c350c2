package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/hostbridge/internal/model"
)

// PlainFormatter formats records as readable blocks.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	f := &PlainFormatter{opts: opts}

	if opts.Template != "" {
		tmpl, err := template.New("plain").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// Format writes records as plain text.
func (f *PlainFormatter) Format(w io.Writer, records []model.EventRecord) error {
	for i := range records {
		if err := f.formatRecord(w, i+1, &records[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *PlainFormatter) formatRecord(w io.Writer, index int, r *model.EventRecord) error {
	if f.template != nil {
		return f.template.Execute(w, newTemplateData(index, r))
	}

	var sb strings.Builder

	if f.opts.ShowIndex {
		sb.WriteString(fmt.Sprintf("[%d] ", index))
	}
	if f.opts.ShowSource && r.Source != "" {
		sb.WriteString(fmt.Sprintf("<%s> ", r.Source))
	}

	sb.WriteString(r.Event)
	sb.WriteString(" @ " + windowName(r))

	if f.opts.ShowTime && r.Timestamp > 0 {
		sb.WriteString(fmt.Sprintf(" (%s)", humanize.Time(r.Time())))
	}
	sb.WriteString("\n")

	if len(r.Payload) > 0 && string(r.Payload) != "null" {
		sb.WriteString("    " + truncate(string(r.Payload), f.opts.PayloadMaxLen) + "\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// FormatField outputs a specific field from a record.
func FormatField(r *model.EventRecord, field string) string {
	switch strings.ToLower(field) {
	case "id":
		return r.ID
	case "event", "name":
		return r.Event
	case "window", "label":
		return r.Window
	case "targets", "target":
		return strings.Join(r.Targets, ",")
	case "source":
		return r.Source
	case "payload", "data":
		return r.PayloadString()
	case "all", "full":
		return fmt.Sprintf("%s\n%s", r.Event, r.PayloadString())
	default:
		return r.Event
	}
}
