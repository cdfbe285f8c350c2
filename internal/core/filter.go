// Package core provides filtering, sorting, and lookup over event records.
package core

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/hostbridge/internal/model"
)

// FilterOp represents a comparison operator.
type FilterOp string

const (
	FilterOpEqual     FilterOp = "="  // Exact match
	FilterOpNotEqual  FilterOp = "!=" // Not equal
	FilterOpContains  FilterOp = "~"  // Contains substring
	FilterOpRegex     FilterOp = "~=" // Regex match
	FilterOpGreater   FilterOp = ">"  // Newer than
	FilterOpLess      FilterOp = "<"  // Older than
	FilterOpGreaterEq FilterOp = ">=" // Newer than or equal
	FilterOpLessEq    FilterOp = "<=" // Older than or equal
)

// Canonical filter field names.
const (
	FieldEvent     = "event"
	FieldWindow    = "window"
	FieldTarget    = "target"
	FieldSource    = "source"
	FieldPayload   = "payload"
	FieldTimestamp = "timestamp"
)

// fieldAliases maps accepted spellings to canonical field names.
var fieldAliases = map[string]string{
	"event":     FieldEvent,
	"name":      FieldEvent,
	"window":    FieldWindow,
	"label":     FieldWindow,
	"target":    FieldTarget,
	"targets":   FieldTarget,
	"source":    FieldSource,
	"src":       FieldSource,
	"payload":   FieldPayload,
	"data":      FieldPayload,
	"timestamp": FieldTimestamp,
	"time":      FieldTimestamp,
	"ts":        FieldTimestamp,
}

// FilterCondition represents a single filter condition.
type FilterCondition struct {
	Field    string   // Canonical field name
	Operator FilterOp // Comparison operator
	Value    string   // Value to compare against

	regex  *regexp.Regexp // Compiled for ~=
	cutoff time.Time      // Parsed for timestamp comparisons
}

// FilterExpr represents a compound filter expression.
// Multiple conditions are ANDed together.
type FilterExpr struct {
	Conditions []FilterCondition
}

// FilterOptions specifies simple criteria for filtering records.
type FilterOptions struct {
	Since  time.Duration // Records newer than now-since (0=all)
	Event  string        // Exact event name
	Window string        // Exact window label or target
	Source string        // Exact source
	Limit  int           // Maximum results, newest kept (0=unlimited)
}

// Filter filters records based on the provided options. Input order is
// preserved; the limit keeps the last records.
func Filter(records []model.EventRecord, opts FilterOptions) []model.EventRecord {
	now := time.Now()
	result := make([]model.EventRecord, 0, len(records))

	for _, r := range records {
		if opts.Since > 0 && r.Time().Before(now.Add(-opts.Since)) {
			continue
		}
		if opts.Event != "" && r.Event != opts.Event {
			continue
		}
		if opts.Window != "" && !addressedTo(r, opts.Window) {
			continue
		}
		if opts.Source != "" && r.Source != opts.Source {
			continue
		}
		result = append(result, r)
	}

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[len(result)-opts.Limit:]
	}
	return result
}

// addressedTo reports whether r was emitted from or delivered to label.
func addressedTo(r model.EventRecord, label string) bool {
	return r.Window == label || slices.Contains(r.Targets, label)
}

// ParseDuration parses a duration string with extended formats.
// Supports: 48h, 7d, 1w, 0 (all time)
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if s == "0" || s == "" {
		return 0, nil
	}

	if daysStr, found := strings.CutSuffix(s, "d"); found {
		days, err := strconv.Atoi(daysStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	if weeksStr, found := strings.CutSuffix(s, "w"); found {
		weeks, err := strconv.Atoi(weeksStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(weeks) * 7 * 24 * time.Hour, nil
	}

	return time.ParseDuration(s)
}

// IsFieldName reports whether s names a filter field.
func IsFieldName(s string) bool {
	_, ok := fieldAliases[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// ParseFilter parses a filter expression string into a FilterExpr.
// Format: "field=value,field2~value2,field3>value3"
// Multiple conditions are comma-separated and ANDed together.
//
// Supported fields: event, window, target, source, payload, timestamp
// Supported operators: = (equal), != (not equal), ~ (contains), ~= (regex),
// and >, <, >=, <= for timestamp, where the value is an age.
//
// Examples:
//   - "event=ping" - exact event name
//   - "window=main,source=page" - page events from the main window
//   - "payload~\"id\":7" - payload JSON contains a substring
//   - "event~=^app:" - event name matches a regex
//   - "timestamp>10m" - events from the last ten minutes
func ParseFilter(expr string) (*FilterExpr, error) {
	if expr == "" {
		return &FilterExpr{}, nil
	}

	filter := &FilterExpr{
		Conditions: make([]FilterCondition, 0),
	}

	for part := range strings.SplitSeq(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		cond, err := parseCondition(part)
		if err != nil {
			return nil, err
		}
		filter.Conditions = append(filter.Conditions, cond)
	}

	return filter, nil
}

// parseCondition parses a single condition like "event=ping" or "payload~id".
func parseCondition(s string) (FilterCondition, error) {
	// Longest operators first so "!=" is not read as "=".
	operators := []FilterOp{
		FilterOpNotEqual,
		FilterOpGreaterEq,
		FilterOpLessEq,
		FilterOpRegex,
		FilterOpEqual,
		FilterOpContains,
		FilterOpGreater,
		FilterOpLess,
	}

	// The operator must be the first one to appear, so values may contain
	// operator characters.
	best, bestIdx := FilterOp(""), -1
	for _, op := range operators {
		idx := strings.Index(s, string(op))
		if idx > 0 && (bestIdx < 0 || idx < bestIdx) {
			best, bestIdx = op, idx
		}
	}
	if bestIdx < 0 {
		return FilterCondition{}, fmt.Errorf("invalid filter condition: %s (missing operator)", s)
	}

	cond := FilterCondition{
		Field:    strings.ToLower(strings.TrimSpace(s[:bestIdx])),
		Operator: best,
		Value:    strings.TrimSpace(s[bestIdx+len(best):]),
	}
	if err := cond.init(); err != nil {
		return FilterCondition{}, err
	}
	return cond, nil
}

// init normalizes the field and pre-parses the value.
func (c *FilterCondition) init() error {
	field, ok := fieldAliases[c.Field]
	if !ok {
		return fmt.Errorf("unknown filter field: %s", c.Field)
	}
	c.Field = field

	if c.Field == FieldTimestamp {
		switch c.Operator {
		case FilterOpGreater, FilterOpLess, FilterOpGreaterEq, FilterOpLessEq:
		default:
			return fmt.Errorf("timestamp supports only >, <, >= and <=")
		}
		dur, err := ParseDuration(c.Value)
		if err != nil {
			return fmt.Errorf("invalid timestamp value: %w", err)
		}
		c.cutoff = time.Now().Add(-dur)
		return nil
	}

	switch c.Operator {
	case FilterOpGreater, FilterOpLess, FilterOpGreaterEq, FilterOpLessEq:
		return fmt.Errorf("operator %s is only valid for timestamp", c.Operator)
	case FilterOpRegex:
		re, err := regexp.Compile(c.Value)
		if err != nil {
			return fmt.Errorf("invalid regex: %w", err)
		}
		c.regex = re
	}
	return nil
}

// Match tests if a record matches the filter expression.
// All conditions must match (AND logic).
func (f *FilterExpr) Match(r model.EventRecord) bool {
	for _, cond := range f.Conditions {
		if !cond.Match(r) {
			return false
		}
	}
	return true
}

// Match tests if a record matches this single condition.
func (c *FilterCondition) Match(r model.EventRecord) bool {
	switch c.Field {
	case FieldEvent:
		return c.matchString(r.Event)
	case FieldWindow:
		return c.matchString(r.Window)
	case FieldTarget:
		return c.matchAny(r.Targets)
	case FieldSource:
		return c.matchString(r.Source)
	case FieldPayload:
		return c.matchString(r.PayloadString())
	case FieldTimestamp:
		return c.matchTimestamp(r.Time())
	default:
		return false
	}
}

// matchAny matches when any value matches, or for != when none equals.
func (c *FilterCondition) matchAny(values []string) bool {
	if c.Operator == FilterOpNotEqual {
		return !slices.Contains(values, c.Value)
	}
	return slices.ContainsFunc(values, c.matchString)
}

func (c *FilterCondition) matchString(fieldValue string) bool {
	switch c.Operator {
	case FilterOpEqual:
		return fieldValue == c.Value
	case FilterOpNotEqual:
		return fieldValue != c.Value
	case FilterOpContains:
		return strings.Contains(strings.ToLower(fieldValue), strings.ToLower(c.Value))
	case FilterOpRegex:
		return c.regex != nil && c.regex.MatchString(fieldValue)
	default:
		return false
	}
}

func (c *FilterCondition) matchTimestamp(fieldValue time.Time) bool {
	switch c.Operator {
	case FilterOpGreater:
		return fieldValue.After(c.cutoff)
	case FilterOpLess:
		return fieldValue.Before(c.cutoff)
	case FilterOpGreaterEq:
		return !fieldValue.Before(c.cutoff)
	case FilterOpLessEq:
		return !fieldValue.After(c.cutoff)
	default:
		return false
	}
}

// FilterWithExpr filters records using a filter expression.
func FilterWithExpr(records []model.EventRecord, expr *FilterExpr) []model.EventRecord {
	if expr == nil || len(expr.Conditions) == 0 {
		return records
	}

	result := make([]model.EventRecord, 0, len(records))
	for _, r := range records {
		if expr.Match(r) {
			result = append(result, r)
		}
	}
	return result
}
