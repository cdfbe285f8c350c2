package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hostbridge/internal/model"
)

func TestIsFilterExpression(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected bool
	}{
		// Valid filter expressions
		{"event_equal", "event=ping", true},
		{"window_not_equal", "window!=main", true},
		{"payload_contains", "payload~ready", true},
		{"event_regex", "event~=^app:", true},
		{"timestamp_age", "timestamp<1h", true},
		{"target", "target=settings", true},
		{"source_alias", "src=page", true},
		{"multiple", "event=ping,window=main", true},
		{"trailing_comma", "event=ping,", true},

		// Not filter expressions (plain text search)
		{"plain_word", "ping", false},
		{"plain_phrase", "window ready", false},
		{"email_address", "user@example.com", false},
		{"url", "https://example.com/?a=b", false},
		{"unknown_field", "urgency=low", false},
		{"just_equals", "=value", false},
		{"mixed", "event=ping,hello", false},
		{"empty", "", false},

		// Edge cases
		{"partial_field", "even=ping", false},
		{"case_insensitive_field", "EVENT=ping", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isFilterExpression(tt.query)
			assert.Equal(t, tt.expected, result, "query: %q", tt.query)
		})
	}
}

func TestApplyQuery(t *testing.T) {
	records := []model.EventRecord{
		{ID: "1", Event: "ping", Window: "main", Source: model.SourceHost, Timestamp: 1},
		{ID: "2", Event: "pong", Window: "main", Source: model.SourcePage, Timestamp: 2},
		{ID: "3", Event: "ping", Window: "settings", Source: model.SourcePage, Timestamp: 3},
	}

	got, err := applyQuery(records, "")
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = applyQuery(records, "settings")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].ID)

	got, err = applyQuery(records, "event=ping,source=page")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].ID)

	got, err = applyQuery(records, "event~=(")
	assert.Error(t, err)
	assert.Empty(t, got)
}

func TestNewestFirst(t *testing.T) {
	records := []model.EventRecord{{ID: "1"}, {ID: "2"}, {ID: "3"}}

	out := newestFirst(records)
	assert.Equal(t, "3", out[0].ID)
	assert.Equal(t, "1", out[2].ID)
	assert.Equal(t, "1", records[0].ID, "input must not be reordered")
}
