package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/editor"
	"github.com/felixgeelhaar/timeline/internal/model"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func date(t time.Time) string {
	return t.Format(time.DateOnly)
}

// outlineRow is the JSON shape of one `show` row.
type outlineRow struct {
	ID       domain.TaskID   `json:"id"`
	Name     string          `json:"name,omitempty"`
	Parent   domain.TaskID   `json:"parent,omitempty"`
	Level    int             `json:"level"`
	Kind     domain.TaskKind `json:"kind"`
	Start    string          `json:"start"`
	End      string          `json:"end"`
	Progress int             `json:"progress"`
	Critical bool            `json:"critical"`
}

func outlineRows(ed *editor.Editor, tasks []model.Task) []outlineRow {
	critical := make(map[domain.TaskID]bool)
	for _, id := range ed.GetCriticalPathIDs() {
		critical[id] = true
	}
	rows := make([]outlineRow, len(tasks))
	for i, t := range tasks {
		rows[i] = outlineRow{
			ID: t.ID, Name: t.Name, Parent: t.ParentID, Level: t.Level, Kind: t.Kind,
			Start: date(t.Start), End: date(t.End), Progress: t.Progress, Critical: critical[t.ID],
		}
	}
	return rows
}

func printOutline(w io.Writer, ed *editor.Editor, rows []outlineRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  \tTASK\tKIND\tSTART\tEND\tPROGRESS")
	for _, r := range rows {
		marker := " "
		if r.Critical {
			marker = "*"
		}
		fold := "  "
		if len(ed.GetChildren(r.ID)) > 0 {
			fold = "- "
			if !ed.Expanded(r.ID) {
				fold = "+ "
			}
		}
		label := string(r.ID)
		if r.Name != "" {
			label = fmt.Sprintf("%s (%s)", r.Name, r.ID)
		}
		fmt.Fprintf(tw, "%s\t%s%s%s\t%s\t%s\t%s\t%d%%\n",
			marker, strings.Repeat("  ", r.Level), fold, label, r.Kind, r.Start, r.End, r.Progress)
	}
	return tw.Flush()
}

func printCommit(w io.Writer, c *editor.Commit) {
	fmt.Fprintf(w, "✓ %s: %d task(s) changed", c.Operation, len(c.Changed))
	if c.Passes > 0 {
		fmt.Fprintf(w, ", %d propagation pass(es), %d edge(s) visited", c.Passes, c.EdgesVisited)
	}
	fmt.Fprintln(w)
	if len(c.Changed) > 0 {
		fmt.Fprintf(w, "  changed:   %s\n", joinIDs(c.Changed))
	}
	if len(c.Removed) > 0 {
		fmt.Fprintf(w, "  removed:   %s\n", joinIDs(c.Removed))
	}
	for _, d := range c.RemovedDependencies {
		fmt.Fprintf(w, "  unlinked:  %s %s -> %s\n", d.Type, d.PredecessorID, d.SuccessorID)
	}
	if len(c.Blocked) > 0 {
		fmt.Fprintf(w, "  ⚠ held by hard locks: %s\n", joinIDs(c.Blocked))
	}
	if len(c.Conflicts) > 0 {
		fmt.Fprintf(w, "  ⚠ lock conflicts: %s\n", joinIDs(c.Conflicts))
	}
	for _, an := range c.Anomalies {
		fmt.Fprintf(w, "  ⚠ %s on %s: %s\n", an.Kind, an.TaskID, an.Detail)
	}
}

func joinIDs(ids []domain.TaskID) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = string(id)
	}
	return strings.Join(s, ", ")
}
