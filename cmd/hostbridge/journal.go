package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/hostbridge/internal/adapter/output"
	"github.com/jmylchreest/hostbridge/internal/config"
	"github.com/jmylchreest/hostbridge/internal/core"
	"github.com/jmylchreest/hostbridge/internal/model"
	"github.com/jmylchreest/hostbridge/internal/store"
)

var journalOpts struct {
	// Input options
	file  string
	local bool

	// Filter options
	since  string
	event  string
	window string
	source string
	filter string
	search string
	limit  int

	// Sort options
	sortBy    string
	sortOrder string

	// Output options
	format   string
	field    string
	template string
}

var journalCmd = &cobra.Command{
	Use:   "journal [id]",
	Short: "Query recorded events",
	Long: `Query events recorded by the running application, or read an event
journal file directly with --file or --local.

With an ID argument (or a unique ID prefix), outputs that event.

Filter expressions combine field conditions with commas:
  event=app:save           exact match
  window!=main             not equal
  payload~"draft"          contains (case-insensitive)
  event~=^app:             regular expression
  timestamp>10m            newer than ten minutes

Examples:
  # Recent events, newest first
  hostbridge journal

  # Page events from one window in the last hour
  hostbridge journal --window main --source page --since 1h

  # Compound filter, as JSON
  hostbridge journal --filter 'event~=^app:,payload~saved' --format json

  # One payload, straight from the journal file
  hostbridge journal --local 01J9Z3 --field payload`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJournal,
}

func init() {
	rootCmd.AddCommand(journalCmd)

	// Input flags
	journalCmd.Flags().StringVar(&journalOpts.file, "file", "",
		"Read this journal file instead of asking hostbridged")
	journalCmd.Flags().BoolVar(&journalOpts.local, "local", false,
		"Read the configured journal file instead of asking hostbridged")

	// Filter flags
	journalCmd.Flags().StringVar(&journalOpts.since, "since", "",
		"Show events from the last duration (e.g., 10m, 1h, 7d, 1w)")
	journalCmd.Flags().StringVarP(&journalOpts.event, "event", "e", "",
		"Filter by event name (exact match)")
	journalCmd.Flags().StringVarP(&journalOpts.window, "window", "w", "",
		"Filter by source or target window")
	journalCmd.Flags().StringVar(&journalOpts.source, "source", "",
		"Filter by origin (host, page, control)")
	journalCmd.Flags().StringVar(&journalOpts.filter, "filter", "",
		"Filter expression (e.g., 'event~=^app:,window=main')")
	journalCmd.Flags().StringVarP(&journalOpts.search, "search", "s", "",
		"Search event, window, source and payload")
	journalCmd.Flags().IntVarP(&journalOpts.limit, "limit", "n", 0,
		"Maximum number of events, most recent kept (0=unlimited)")

	// Sort flags
	journalCmd.Flags().StringVar(&journalOpts.sortBy, "sort", "timestamp",
		"Sort by field (timestamp, event, window)")
	journalCmd.Flags().StringVar(&journalOpts.sortOrder, "order", "desc",
		"Sort order (asc, desc)")

	// Output flags
	journalCmd.Flags().StringVarP(&journalOpts.format, "format", "f", "line",
		"Output format (line, json, plain, ids)")
	journalCmd.Flags().StringVar(&journalOpts.field, "field", "",
		"Output single field (id, event, window, targets, source, payload, all)")
	journalCmd.Flags().StringVar(&journalOpts.template, "template", "",
		"Custom Go template for line output")
}

func runJournal(cmd *cobra.Command, args []string) error {
	records, err := fetchRecords()
	if err != nil {
		return err
	}
	logger.Debug("fetched records", "count", len(records))

	if len(args) > 0 {
		return outputRecord(cmd, records, args[0])
	}

	records, err = applyJournalFilters(records)
	if err != nil {
		return err
	}
	if err := applyJournalSort(records); err != nil {
		return err
	}

	if len(records) == 0 {
		logger.Debug("no events to output")
		if output.ParseFormat(journalOpts.format) != output.FormatJSON {
			return nil
		}
	}

	opts := output.DefaultFormatterOptions()
	opts.Template = journalOpts.template
	return output.NewFormatter(output.ParseFormat(journalOpts.format), opts).Format(cmd.OutOrStdout(), records)
}

// fetchRecords reads events from a journal file or the running application.
func fetchRecords() ([]model.EventRecord, error) {
	path := journalOpts.file
	if path == "" && journalOpts.local {
		path = cfg.Control.JournalPath
		if path == "" {
			path = config.JournalPath()
		}
	}
	if path != "" {
		records, err := store.ReadJournal(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read journal %s: %w", path, err)
		}
		return records, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := controlClient()
	if err != nil {
		return nil, err
	}
	return client.RecentEvents(ctx, 0)
}

// applyJournalFilters applies filter options to records.
func applyJournalFilters(records []model.EventRecord) ([]model.EventRecord, error) {
	opts := core.FilterOptions{
		Event:  journalOpts.event,
		Window: journalOpts.window,
		Source: journalOpts.source,
	}
	if journalOpts.since != "" {
		d, err := core.ParseDuration(journalOpts.since)
		if err != nil {
			return nil, fmt.Errorf("invalid --since: %w", err)
		}
		opts.Since = d
	}
	records = core.Filter(records, opts)

	if journalOpts.filter != "" {
		expr, err := core.ParseFilter(journalOpts.filter)
		if err != nil {
			return nil, fmt.Errorf("invalid --filter: %w", err)
		}
		records = core.FilterWithExpr(records, expr)
	}
	if journalOpts.search != "" {
		records = core.Search(records, journalOpts.search)
	}

	// The limit applies last so it keeps the most recent matches.
	if journalOpts.limit > 0 && len(records) > journalOpts.limit {
		records = records[len(records)-journalOpts.limit:]
	}
	return records, nil
}

// applyJournalSort sorts records based on options.
func applyJournalSort(records []model.EventRecord) error {
	field, err := core.ParseSortField(journalOpts.sortBy)
	if err != nil {
		return err
	}
	order, err := core.ParseSortOrder(journalOpts.sortOrder)
	if err != nil {
		return err
	}
	core.Sort(records, core.SortOptions{Field: field, Order: order})
	return nil
}

// outputRecord prints the record selected by id, or one of its fields.
func outputRecord(cmd *cobra.Command, records []model.EventRecord, selection string) error {
	id := parseLineSelection(selection)
	r := core.LookupByID(records, id)
	if r == nil {
		return fmt.Errorf("event %s not found or ambiguous", id)
	}

	if journalOpts.field != "" {
		fmt.Fprintln(cmd.OutOrStdout(), output.FormatField(r, journalOpts.field))
		return nil
	}
	return output.NewJSONFormatter(output.DefaultFormatterOptions()).FormatSingle(cmd.OutOrStdout(), r)
}

// parseLineSelection accepts a bare ID or a line picked from --format ids
// output piped through a launcher.
func parseLineSelection(selection string) string {
	selection = strings.TrimSpace(selection)
	if fields := strings.Fields(selection); len(fields) > 0 {
		return fields[0]
	}
	return selection
}
