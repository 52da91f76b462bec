// Package formatting renders plans, apply reports and component status for
// the command line, as tables, JSON or YAML.
//
// Every formatter works on the view types of this package, so the three
// output formats always carry the same information.
package formatting

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// ParseFormat validates an --output value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use table, json or yaml)", s)
	}
}

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Writer io.Writer // Defaults to os.Stdout
	Color  bool      // Enable colored output
}

// Formatter writes the views in one output format.
type Formatter interface {
	FormatPlan(v PlanView) error
	FormatReport(v ReportView) error
	FormatStatus(v StatusView) error
}

// New creates the formatter for options.Format.
func New(options Options) (Formatter, error) {
	if options.Writer == nil {
		options.Writer = os.Stdout
	}
	switch options.Format {
	case FormatJSON:
		return NewJSONFormatter(options), nil
	case FormatYAML:
		return NewYAMLFormatter(options), nil
	case FormatTable, "":
		return NewTableFormatter(options), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", options.Format)
	}
}
