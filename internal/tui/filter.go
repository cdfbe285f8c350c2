package tui

import (
	"slices"
	"strings"

	"github.com/jmylchreest/hostbridge/internal/core"
	"github.com/jmylchreest/hostbridge/internal/model"
)

// filterOperators are checked longest first.
var filterOperators = []string{"!=", ">=", "<=", "~=", "=", "~", ">", "<"}

// isFilterExpression reports whether query should be parsed as a field filter
// such as "event=ping,window=main" rather than used as plain search text.
// Every comma-separated part must start with a known field and an operator.
func isFilterExpression(query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return false
	}
	for part := range strings.SplitSeq(query, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx := firstOperator(part)
		if idx <= 0 || !core.IsFieldName(part[:idx]) {
			return false
		}
	}
	return true
}

func firstOperator(s string) int {
	best := -1
	for _, op := range filterOperators {
		if i := strings.Index(s, op); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	return best
}

// applyQuery narrows records by a filter expression or a plain search. An
// expression that fails to parse matches nothing and returns the error.
func applyQuery(records []model.EventRecord, query string) ([]model.EventRecord, error) {
	if query == "" {
		return records, nil
	}
	if !isFilterExpression(query) {
		return core.Search(records, query), nil
	}
	expr, err := core.ParseFilter(query)
	if err != nil {
		return nil, err
	}
	return core.FilterWithExpr(records, expr), nil
}

// newestFirst returns a copy of records, which arrive oldest first, in
// reverse.
func newestFirst(records []model.EventRecord) []model.EventRecord {
	out := slices.Clone(records)
	slices.Reverse(out)
	return out
}
