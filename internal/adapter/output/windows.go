package output

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/hostbridge/internal/model"
)

// FormatWindows writes window descriptions as JSON, one label per line for
// "ids", or an aligned table otherwise.
func FormatWindows(w io.Writer, windows []model.WindowInfo, format FormatType) error {
	switch format {
	case FormatJSON:
		if windows == nil {
			windows = []model.WindowInfo{}
		}
		return encodeIndented(w, windows)
	case FormatIDs:
		for _, info := range windows {
			if _, err := fmt.Fprintln(w, info.Label); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tTITLE\tURL\tLOADS\tCREATED")
	for _, info := range windows {
		created := "-"
		if info.CreatedAt > 0 {
			created = humanize.Time(info.CreatedTime())
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", info.Label, info.Title, info.URL, info.Loads, created)
	}
	return tw.Flush()
}
