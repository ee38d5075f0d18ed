package ops

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"clusterops/internal/units"
)

var (
	warnColor  = color.New(color.FgYellow, color.Bold)
	errorColor = color.New(color.FgRed)
	okColor    = color.New(color.FgGreen)
)

func warnf(w io.Writer, format string, args ...interface{}) {
	warnColor.Fprintf(w, format, args...)
}

func errorf(w io.Writer, format string, args ...interface{}) {
	errorColor.Fprintf(w, format, args...)
}

func okf(w io.Writer, format string, args ...interface{}) {
	okColor.Fprintf(w, format, args...)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	return table
}

// printTally writes one line per node then the total. Failed nodes show
// their error and are left out of the total, which is flagged as partial.
func (r *Runner) printTally(t Tally, column, totalLabel, suffix string) {
	total := units.FormatThousands(t.Total) + suffix
	partialNote := ""
	if t.Failed > 0 {
		partialNote = fmt.Sprintf(" (partial: %d of %d nodes failed)", t.Failed, len(t.Results))
	}

	if r.opts.Table {
		table := newTable(r.out, "Node", column)
		table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
		for _, res := range t.Results {
			value := units.FormatThousands(res.Value)
			if res.Err != nil {
				value = "error: " + res.Err.Error()
			}
			table.Append([]string{r.label(res.Node), value})
		}
		table.Append([]string{"total", units.FormatThousands(t.Total)})
		table.Render()
		if partialNote != "" {
			warnf(r.out, "%s%s\n", totalLabel, partialNote)
		}
		return
	}

	for _, res := range t.Results {
		if res.Err != nil {
			errorf(r.out, "%s: error: %v\n", r.label(res.Node), res.Err)
			continue
		}
		fmt.Fprintf(r.out, "%s: %s%s\n", r.label(res.Node), units.FormatThousands(res.Value), suffix)
	}
	if partialNote != "" {
		warnf(r.out, "%s: %s%s\n", totalLabel, total, partialNote)
		return
	}
	fmt.Fprintf(r.out, "%s: %s\n", totalLabel, total)
}

func (r *Runner) printDuplicates(dups []Duplicate, scanned int) {
	if len(dups) == 0 {
		okf(r.out, "No duplicate keys found across %d primaries\n", scanned)
		return
	}

	if r.opts.Table {
		table := newTable(r.out, "Key", "Nodes")
		for _, d := range dups {
			table.Append([]string{d.Key, strings.Join(d.Nodes, ", ")})
		}
		table.Render()
	} else {
		warnf(r.out, "Duplicate keys found (%d):\n", len(dups))
		for _, d := range dups {
			fmt.Fprintln(r.out, d.Key)
		}
	}
}
