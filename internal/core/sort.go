package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jmylchreest/hostbridge/internal/model"
)

// SortField represents a field to sort by.
type SortField string

const (
	SortByTimestamp SortField = "timestamp"
	SortByEvent     SortField = "event"
	SortByWindow    SortField = "window"
)

// SortOrder represents ascending or descending order.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SortOptions specifies sorting criteria.
type SortOptions struct {
	Field SortField // Field to sort by
	Order SortOrder // Sort order (asc/desc)
}

// DefaultSortOptions returns default sort options (newest first).
func DefaultSortOptions() SortOptions {
	return SortOptions{
		Field: SortByTimestamp,
		Order: SortDesc,
	}
}

// Sort sorts records in place. Records with equal keys keep their relative
// order, which for the journal is emission order.
func Sort(records []model.EventRecord, opts SortOptions) {
	if len(records) == 0 {
		return
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if opts.Order == SortDesc {
			a, b = b, a
		}

		switch opts.Field {
		case SortByEvent:
			return strings.ToLower(a.Event) < strings.ToLower(b.Event)
		case SortByWindow:
			return strings.ToLower(a.Window) < strings.ToLower(b.Window)
		default:
			return a.Timestamp < b.Timestamp
		}
	})
}

// ParseSortField parses a sort field string.
func ParseSortField(s string) (SortField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "timestamp", "time", "t", "":
		return SortByTimestamp, nil
	case "event", "name", "e":
		return SortByEvent, nil
	case "window", "label", "w":
		return SortByWindow, nil
	default:
		return SortByTimestamp, fmt.Errorf("invalid sort field: %s (use timestamp, event, or window)", s)
	}
}

// ParseSortOrder parses a sort order string.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending", "a":
		return SortAsc, nil
	case "desc", "descending", "d", "":
		return SortDesc, nil
	default:
		return SortDesc, fmt.Errorf("invalid sort order: %s (use asc or desc)", s)
	}
}
