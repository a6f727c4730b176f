package reconciler

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/rodaine/table"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/provider"
)

// Reporter prints dry-run results as a table.
type Reporter struct {
	out     io.Writer
	noColor bool
}

// ReporterOption is a functional option for configuring the Reporter.
type ReporterOption func(*Reporter)

// WithoutColor disables ANSI colors in the output.
func WithoutColor() ReporterOption {
	return func(r *Reporter) {
		r.noColor = true
	}
}

// NewReporter creates a Reporter writing to out, or stdout when out is nil.
func NewReporter(out io.Writer, opts ...ReporterOption) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	r := &Reporter{out: out}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reporter) colorFunc(attrs ...color.Attribute) func(format string, a ...interface{}) string {
	c := color.New(attrs...)
	if r.noColor {
		c.DisableColor()
	}
	return c.SprintfFunc()
}

// Report prints the planned, dropped and skipped entries of a cycle.
func (r *Reporter) Report(result *Result) {
	headerFmt := r.colorFunc(color.FgGreen, color.Underline)
	columnFmt := r.colorFunc(color.FgYellow)

	_, _ = fmt.Fprintf(r.out, "Target %s via %s (cycle %s)\n", result.Target, result.Provider, result.CycleID)

	if len(result.Actions) == 0 && len(result.Skipped) == 0 {
		_, _ = fmt.Fprintln(r.out, "No changes.")
		return
	}

	if len(result.Actions) > 0 {
		tbl := table.New("ACTION", "NAME", "TYPE", "VALUE", "PREVIOUS", "STATUS")
		tbl.WithWriter(r.out)
		tbl.WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt)
		for _, a := range result.Actions {
			tbl.AddRow(a.Kind, a.Name, a.Type, a.Value, a.Previous, a.Status)
		}
		tbl.Print()
	}

	if len(result.Skipped) > 0 {
		_, _ = fmt.Fprintln(r.out)
		tbl := table.New("SKIPPED", "REASON", "OWNER")
		tbl.WithWriter(r.out)
		tbl.WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt)
		for _, s := range result.Skipped {
			owner := s.Owner
			if owner == "" {
				owner = "-"
			}
			tbl.AddRow(s.Name, s.Reason, owner)
		}
		tbl.Print()
	}

	_, _ = fmt.Fprintf(r.out, "\n%d to create, %d to update, %d to delete, %d dropped by policy\n",
		countKind(result.Planned(), provider.ActionCreate),
		countKind(result.Planned(), provider.ActionUpdate),
		countKind(result.Planned(), provider.ActionDelete),
		len(result.Dropped()),
	)
}

func countKind(actions []Action, kind provider.ActionKind) int {
	n := 0
	for _, a := range actions {
		if a.Kind == kind {
			n++
		}
	}
	return n
}
