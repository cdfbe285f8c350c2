package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventRecord(t *testing.T) {
	r, err := NewEventRecord("ping", SourceHost, json.RawMessage(`{"n":1}`))
	require.NoError(t, err)

	_, err = ulid.Parse(r.ID)
	assert.NoError(t, err)
	assert.Equal(t, "ping", r.Event)
	assert.Equal(t, SourceHost, r.Source)
	assert.WithinDuration(t, time.Now(), r.Time(), 5*time.Second)
	assert.NoError(t, r.Validate())
}

func TestEventRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*EventRecord)
		wantErr error
	}{
		{"valid", func(*EventRecord) {}, nil},
		{"empty id", func(r *EventRecord) { r.ID = "" }, ErrEmptyID},
		{"empty event", func(r *EventRecord) { r.Event = "" }, ErrEmptyEvent},
		{"empty source", func(r *EventRecord) { r.Source = "" }, ErrEmptySource},
		{"zero timestamp", func(r *EventRecord) { r.Timestamp = 0 }, ErrInvalidTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewEventRecord("e", SourcePage, nil)
			require.NoError(t, err)
			tt.modify(r)
			assert.ErrorIs(t, r.Validate(), tt.wantErr)
		})
	}
}

func TestEventRecord_PayloadString(t *testing.T) {
	r := &EventRecord{}
	assert.Equal(t, "null", r.PayloadString())
	r.Payload = json.RawMessage(`[1,2]`)
	assert.Equal(t, "[1,2]", r.PayloadString())
}

func TestNewID_Sortable(t *testing.T) {
	a, err := NewID()
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	b, err := NewID()
	require.NoError(t, err)

	assert.Len(t, a, 26)
	assert.Less(t, a, b)
}
