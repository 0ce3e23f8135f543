package ui

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"harvester/pkg/sweep"
)

// ProgressText is the one-line progress summary of a sweep
func ProgressText(st sweep.Status) string {
	switch {
	case st.Corrupt:
		return "checkpoint unreadable, next run restarts"
	case st.Ceiling > 0:
		return fmt.Sprintf("%s / %s (%.1f%%)", Count(min(st.Cursor, st.Ceiling)), Count(st.Ceiling), st.Percent)
	default:
		return fmt.Sprintf("%s rows scanned", Count(st.Cursor))
	}
}

// RemainingText describes how much work is left
func RemainingText(st sweep.Status) string {
	switch {
	case st.Exhausted:
		return "complete"
	case st.RemainingRuns > 0:
		return fmt.Sprintf("~%s runs remaining", humanize.Comma(st.RemainingRuns))
	case st.Ceiling > 0 && st.Next == nil:
		return "complete"
	default:
		return "unknown"
	}
}

// NextRunText describes what the next invocation will fetch
func NextRunText(st sweep.Status) string {
	if st.Exhausted || st.Next == nil {
		return "nothing, sweep complete"
	}

	if st.Kind == "page" {
		// rows are numbered from 1 for people
		return fmt.Sprintf("rows %s–%s", Count(st.Next.Start+1), Count(st.Next.End+1))
	}
	return fmt.Sprintf("IDs %s–%s (%d batches)", Count(st.Next.Start), Count(st.Next.End), st.UnitsNextRun)
}

// RenderStatus writes a status table for one or more sweeps
func RenderStatus(w io.Writer, statuses []sweep.Status) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Source", "Progress", "", "Remaining", "Next run", "Est."})

	for _, st := range statuses {
		bar := ""
		if st.Ceiling > 0 {
			bar = Bar(st.Percent, 20)
		} else if st.Exhausted {
			bar = Bar(100, 20)
		}

		est := "-"
		if !st.Exhausted && st.Next != nil {
			est = "~" + Duration(st.Estimate)
		}

		tbl.AppendRow(table.Row{
			Bold(st.Source),
			ProgressText(st),
			bar,
			RemainingText(st),
			NextRunText(st),
			est,
		})
	}

	tbl.Render()

	for _, st := range statuses {
		if !st.UpdatedAt.IsZero() {
			fmt.Fprintf(w, "%s last checkpoint %s\n", Dim(st.Source+":"), humanize.Time(st.UpdatedAt))
		}
		if st.Corrupt {
			fmt.Fprintf(w, "%s %s\n", Yellow(st.Source+":"), "checkpoint file is corrupt; the next sweep moves it aside")
		}
	}
}

// RenderReport writes the summary of one invocation
func RenderReport(w io.Writer, r sweep.Report) {
	var state string
	switch r.State {
	case sweep.StateExhausted:
		state = Green("exhausted")
	case sweep.StatePaused:
		state = Cyan("paused")
	default:
		state = string(r.State)
	}

	fmt.Fprintf(w, "%s %s %s\n", Green("✓"), Bold(r.Source), state)
	fmt.Fprintf(w, "  %s %s units, %s records in %s\n",
		Dim("•"), humanize.Comma(int64(r.Units)), humanize.Comma(int64(r.Records)), Duration(r.Elapsed))
	fmt.Fprintf(w, "  %s cursor %s → %s\n", Dim("•"), Count(r.StartCursor), Count(r.EndCursor))
	if r.Skipped > 0 {
		fmt.Fprintf(w, "  %s %s\n", Dim("•"), Yellow(fmt.Sprintf("%d units skipped after retries", r.Skipped)))
	}
}
