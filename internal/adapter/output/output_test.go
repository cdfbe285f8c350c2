package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hostbridge/internal/model"
)

func testRecords() []model.EventRecord {
	now := time.Now()
	return []model.EventRecord{
		{
			ID:        "01HXA",
			Event:     "saved",
			Window:    "editor",
			Payload:   json.RawMessage(`{"file":"report.txt"}`),
			Source:    model.SourcePage,
			Timestamp: now.Add(-5 * time.Minute).UnixMilli(),
		},
		{
			ID:        "01HXB",
			Event:     "tick",
			Targets:   []string{"editor", "main"},
			Source:    model.SourceHost,
			Timestamp: now.Add(-2 * time.Hour).UnixMilli(),
		},
	}
}

func TestLineFormatter_Format(t *testing.T) {
	var buf bytes.Buffer

	err := NewLineFormatter(DefaultFormatterOptions()).Format(&buf, testRecords())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `1 | 5m | page | editor | saved: {"file":"report.txt"}`, lines[0])
	assert.Equal(t, "2 | 2h | host | *editor,main | tick", lines[1])
}

func TestLineFormatter_NoIndex(t *testing.T) {
	var buf bytes.Buffer

	opts := DefaultFormatterOptions()
	opts.ShowIndex = false
	opts.ShowTime = false
	err := NewLineFormatter(opts).Format(&buf, testRecords())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(buf.String(), "page | editor | saved"))
}

func TestLineFormatter_CustomTemplate(t *testing.T) {
	var buf bytes.Buffer

	opts := DefaultFormatterOptions()
	opts.Template = "{{.Index}}: {{.Record.Event}} -> {{targets .Record.Targets}} {{.Payload}}"
	err := NewLineFormatter(opts).Format(&buf, testRecords())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, `1: saved ->  {"file":"report.txt"}`, lines[0])
	assert.Equal(t, "2: tick -> editor,main null", lines[1])
}

func TestLineFormatter_BadTemplateFallsBack(t *testing.T) {
	var buf bytes.Buffer

	opts := DefaultFormatterOptions()
	opts.Template = "{{.Nope"
	err := NewLineFormatter(opts).Format(&buf, testRecords()[:1])
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "saved")
}

func TestLineFormatter_TruncatePayload(t *testing.T) {
	records := []model.EventRecord{{
		ID:        "x",
		Event:     "big",
		Payload:   json.RawMessage(`{"text":"this payload is far too long to show on a single picker line"}`),
		Source:    model.SourceHost,
		Timestamp: time.Now().UnixMilli(),
	}}
	var buf bytes.Buffer

	opts := DefaultFormatterOptions()
	opts.PayloadMaxLen = 20
	require.NoError(t, NewLineFormatter(opts).Format(&buf, records))

	assert.Contains(t, buf.String(), "...")
	assert.NotContains(t, buf.String(), "single picker line")
}

func TestJSONFormatter_Format(t *testing.T) {
	var buf bytes.Buffer

	err := NewJSONFormatter(DefaultFormatterOptions()).Format(&buf, testRecords())
	require.NoError(t, err)

	var result []model.EventRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	require.Len(t, result, 2)
	assert.Equal(t, "saved", result[0].Event)
	assert.JSONEq(t, `{"file":"report.txt"}`, string(result[0].Payload))
	assert.Equal(t, []string{"editor", "main"}, result[1].Targets)
}

func TestJSONFormatter_Empty(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewJSONFormatter(FormatterOptions{}).Format(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestJSONFormatter_FormatSingle(t *testing.T) {
	r := testRecords()[0]
	var buf bytes.Buffer

	require.NoError(t, NewJSONFormatter(DefaultFormatterOptions()).FormatSingle(&buf, &r))

	var result model.EventRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	assert.Equal(t, "01HXA", result.ID)
}

func TestPlainFormatter_Format(t *testing.T) {
	var buf bytes.Buffer

	err := NewPlainFormatter(DefaultFormatterOptions()).Format(&buf, testRecords())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "[1] <page> saved @ editor (5 minutes ago)")
	assert.Contains(t, out, `    {"file":"report.txt"}`)
	assert.Contains(t, out, "[2] <host> tick @ *editor,main (2 hours ago)")
}

func TestIDsFormatter_Format(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewIDsFormatter().Format(&buf, testRecords()))
	assert.Equal(t, "01HXA\n01HXB\n", buf.String())
}

func TestFormatField(t *testing.T) {
	r := &testRecords()[1]
	r.Payload = json.RawMessage(`[1,2]`)

	tests := []struct {
		field    string
		expected string
	}{
		{"id", "01HXB"},
		{"event", "tick"},
		{"window", ""},
		{"targets", "editor,main"},
		{"source", "host"},
		{"payload", "[1,2]"},
		{"all", "tick\n[1,2]"},
		{"unknown", "tick"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatField(r, tt.field))
		})
	}
}

func TestNewFormatter(t *testing.T) {
	opts := DefaultFormatterOptions()

	assert.IsType(t, &LineFormatter{}, NewFormatter(FormatLine, opts))
	assert.IsType(t, &JSONFormatter{}, NewFormatter(FormatJSON, opts))
	assert.IsType(t, &PlainFormatter{}, NewFormatter(FormatPlain, opts))
	assert.IsType(t, &IDsFormatter{}, NewFormatter(FormatIDs, opts))
	assert.IsType(t, &LineFormatter{}, NewFormatter("unknown", opts))
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatPlain, ParseFormat("plain"))
	assert.Equal(t, FormatIDs, ParseFormat("id"))
	assert.Equal(t, FormatLine, ParseFormat("dmenu"))
	assert.Equal(t, FormatLine, ParseFormat(""))
}

func TestSanitizePayload(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		maxLen   int
		expected string
	}{
		{"simple", `{"a":1}`, 0, `{"a":1}`},
		{"with newlines", "{\n  \"a\": 1\n}", 0, `{ "a": 1 }`},
		{"truncate", `{"hello":"world"}`, 8, `{"hel...`},
		{"short limit", "abcdef", 2, "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizePayload(tt.payload, tt.maxLen))
		})
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		ts       int64
		expected string
	}{
		{"zero", 0, "unknown"},
		{"now", now.UnixMilli(), "now"},
		{"30 seconds", now.Add(-30 * time.Second).UnixMilli(), "now"},
		{"5 minutes", now.Add(-5 * time.Minute).UnixMilli(), "5m"},
		{"2 hours", now.Add(-2 * time.Hour).UnixMilli(), "2h"},
		{"3 days", now.Add(-72 * time.Hour).UnixMilli(), "3d"},
		{"2 weeks", now.Add(-14 * 24 * time.Hour).UnixMilli(), "2w"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, relativeTime(tt.ts))
		})
	}
}

func TestFormatWindows(t *testing.T) {
	windows := []model.WindowInfo{
		{Label: "main", Title: "Demo", URL: "app://localhost/index.html", CreatedAt: time.Now().Add(-3 * time.Minute).UnixMilli(), Loads: 2},
		{Label: "settings", Title: "Settings", URL: "about:blank"},
	}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatWindows(&buf, windows, FormatLine))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 3)
		assert.True(t, strings.HasPrefix(lines[0], "LABEL"))
		assert.Contains(t, lines[1], "3 minutes ago")
		assert.True(t, strings.HasPrefix(lines[2], "settings"))
		assert.True(t, strings.HasSuffix(lines[2], "-"))
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatWindows(&buf, nil, FormatJSON))
		assert.Equal(t, "[]\n", buf.String())
	})

	t.Run("ids", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatWindows(&buf, windows, FormatIDs))
		assert.Equal(t, "main\nsettings\n", buf.String())
	})
}
