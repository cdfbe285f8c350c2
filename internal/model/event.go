// Package model defines the records shared by the journal, the control
// service and the CLI.
package model

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event sources.
const (
	SourceHost    = "host"    // Emitted by host code
	SourcePage    = "page"    // Emitted by page script through the Event module
	SourceControl = "control" // Emitted through the control service
)

// Validation errors.
var (
	ErrEmptyID          = errors.New("id must not be empty")
	ErrEmptyEvent       = errors.New("event name must not be empty")
	ErrEmptySource      = errors.New("source must not be empty")
	ErrInvalidTimestamp = errors.New("timestamp must be greater than 0")
)

// EventRecord is one emitted event as recorded in the journal.
type EventRecord struct {
	ID        string          `json:"id"`
	Event     string          `json:"event"`
	Window    string          `json:"window,omitempty"` // Empty for broadcasts with no target
	Targets   []string        `json:"targets,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Source    string          `json:"source"`
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
}

// NewEventRecord creates a record with a generated ULID.
func NewEventRecord(event, source string, payload json.RawMessage) (*EventRecord, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	return &EventRecord{
		ID:        id,
		Event:     event,
		Payload:   payload,
		Source:    source,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// NewID returns a fresh ULID string.
func NewID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate ULID: %w", err)
	}
	return id.String(), nil
}

// Validate checks that the record has all required fields.
func (r *EventRecord) Validate() error {
	if r.ID == "" {
		return ErrEmptyID
	}
	if r.Event == "" {
		return ErrEmptyEvent
	}
	if r.Source == "" {
		return ErrEmptySource
	}
	if r.Timestamp <= 0 {
		return ErrInvalidTimestamp
	}
	return nil
}

// Time returns the timestamp as time.Time.
func (r *EventRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// PayloadString returns the payload JSON, or "null".
func (r *EventRecord) PayloadString() string {
	if len(r.Payload) == 0 {
		return "null"
	}
	return string(r.Payload)
}

// WindowInfo describes a registered window.
type WindowInfo struct {
	Label     string `json:"label"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"created_at"` // Unix milliseconds
	Loads     int    `json:"loads"`      // Completed page loads
}

// CreatedTime returns CreatedAt as time.Time.
func (w WindowInfo) CreatedTime() time.Time {
	return time.UnixMilli(w.CreatedAt)
}
