package formatting

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	pkgstrings "pluginrunner/pkg/strings"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(options Options) Formatter {
	return &TableFormatter{
		options: options,
	}
}

// FormatPlan prints the stop and start steps in execution order, followed
// by the components that cannot start.
func (f *TableFormatter) FormatPlan(v PlanView) error {
	if len(v.Stops) == 0 && len(v.Starts) == 0 {
		f.formatMessage(text.FgGreen, "✅", "Nothing to do, every component is in its desired state")
	} else {
		t := f.createTable()
		t.AppendHeader(f.header("#", "ACTION", "COMPONENT", "ID"))
		step := 1
		for _, c := range v.Stops {
			t.AppendRow(table.Row{step, f.paint(text.FgYellow, "stop"), c.Name, c.ID})
			step++
		}
		for _, c := range v.Starts {
			t.AppendRow(table.Row{step, f.paint(text.FgGreen, "start"), c.Name, c.ID})
			step++
		}
		t.Render()
	}
	return f.formatProblems("Unsatisfiable", v.Unsatisfiable)
}

// FormatReport prints every transition of an apply and its result.
func (f *TableFormatter) FormatReport(v ReportView) error {
	if len(v.Transitions) > 0 {
		t := f.createTable()
		t.AppendHeader(f.header("COMPONENT", "OP", "OUTCOME", "DURATION", "ERROR"))
		for _, tr := range v.Transitions {
			t.AppendRow(table.Row{
				tr.Name,
				tr.Op,
				f.outcome(tr.Outcome),
				tr.Duration,
				pkgstrings.TruncateDescription(tr.Error, pkgstrings.DefaultDescriptionMaxLen),
			})
		}
		t.Render()
	}

	if err := f.formatProblems("Unsatisfiable", v.Plan.Unsatisfiable); err != nil {
		return err
	}

	summary := fmt.Sprintf("%d started, %d stopped, %d failed in %s",
		len(v.Started), len(v.Stopped), len(v.Failures), v.Duration)
	if v.Success {
		f.formatMessage(text.FgGreen, "✅", "Apply succeeded: "+summary)
	} else {
		f.formatMessage(text.FgRed, "❌", "Apply failed: "+summary)
	}
	return nil
}

// FormatStatus prints one row per catalog component.
func (f *TableFormatter) FormatStatus(v StatusView) error {
	if len(v.Components) == 0 {
		f.formatMessage(text.FgYellow, "📋", "No components found")
		return nil
	}

	t := f.createTable()
	t.AppendHeader(f.header("NAME", "VERSION", "INTENT", "STATE", "PROVIDES", "REQUIRES", "REQUIRED BY", "DESCRIPTION", "PROBLEM"))
	for _, c := range v.Components {
		state := c.State
		if state == "Started" {
			state = f.paint(text.FgGreen, state)
		}
		t.AppendRow(table.Row{
			c.Name,
			c.Version,
			c.Intent,
			state,
			strings.Join(c.Provides, ", "),
			strings.Join(c.Requires, "\n"),
			strings.Join(c.RequiredBy, ", "),
			pkgstrings.TruncateDescription(c.Description, pkgstrings.DefaultDescriptionMaxLen),
			f.paint(text.FgRed, pkgstrings.TruncateDescription(c.Problem, pkgstrings.DefaultDescriptionMaxLen)),
		})
	}
	t.Render()
	return nil
}

// Helper methods

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.options.Writer)
	t.SetStyle(table.StyleRounded)
	return t
}

func (f *TableFormatter) header(names ...string) table.Row {
	row := make(table.Row, 0, len(names))
	for _, n := range names {
		row = append(row, f.paint(text.FgHiCyan, n))
	}
	return row
}

func (f *TableFormatter) formatProblems(title string, problems []ProblemView) error {
	if len(problems) == 0 {
		return nil
	}
	f.formatMessage(text.FgYellow, "⚠️", title)
	t := f.createTable()
	t.AppendHeader(f.header("COMPONENT", "KIND", "REASON"))
	for _, p := range problems {
		t.AppendRow(table.Row{p.Name, p.Kind, p.Reason})
	}
	t.Render()
	return nil
}

func (f *TableFormatter) outcome(o string) string {
	switch o {
	case "ok":
		return f.paint(text.FgGreen, o)
	case "failed":
		return f.paint(text.FgRed, o)
	default:
		return f.paint(text.FgYellow, o)
	}
}

// paint colors s when colors are enabled.
func (f *TableFormatter) paint(c text.Color, s string) string {
	if !f.options.Color || s == "" {
		return s
	}
	return c.Sprint(s)
}

// formatMessage prints a one-line status message
func (f *TableFormatter) formatMessage(c text.Color, icon, message string) {
	fmt.Fprintf(f.options.Writer, "%s %s\n", f.paint(c, icon), f.paint(c, message))
}
