package core

import (
	"sort"
	"strings"

	"github.com/jmylchreest/hostbridge/internal/model"
)

// LookupByID finds a record by its ID, or by a unique ID prefix.
// Returns nil if not found or ambiguous.
func LookupByID(records []model.EventRecord, id string) *model.EventRecord {
	if id == "" {
		return nil
	}
	var match *model.EventRecord
	for i := range records {
		if records[i].ID == id {
			return &records[i]
		}
		if strings.HasPrefix(records[i].ID, id) {
			if match != nil {
				return nil
			}
			match = &records[i]
		}
	}
	return match
}

// Search finds records whose event name, window, source or payload contains
// term. Case-insensitive.
func Search(records []model.EventRecord, term string) []model.EventRecord {
	if term == "" {
		return records
	}

	term = strings.ToLower(term)
	var result []model.EventRecord

	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Event), term) ||
			strings.Contains(strings.ToLower(r.Window), term) ||
			strings.Contains(strings.ToLower(r.Source), term) ||
			strings.Contains(strings.ToLower(r.PayloadString()), term) {
			result = append(result, r)
		}
	}

	return result
}

// UniqueEvents returns the sorted distinct event names.
func UniqueEvents(records []model.EventRecord) []string {
	seen := make(map[string]bool)
	var names []string

	for _, r := range records {
		if r.Event != "" && !seen[r.Event] {
			seen[r.Event] = true
			names = append(names, r.Event)
		}
	}

	sort.Strings(names)
	return names
}
