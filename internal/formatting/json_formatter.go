package formatting

import (
	"encoding/json"
	"fmt"
)

// JSONFormatter provides structured JSON output formatting
type JSONFormatter struct {
	options Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(options Options) Formatter {
	return &JSONFormatter{
		options: options,
	}
}

// FormatPlan writes the plan as JSON.
func (f *JSONFormatter) FormatPlan(v PlanView) error { return f.write(v) }

// FormatReport writes the apply report as JSON.
func (f *JSONFormatter) FormatReport(v ReportView) error { return f.write(v) }

// FormatStatus writes the component status as JSON.
func (f *JSONFormatter) FormatStatus(v StatusView) error { return f.write(v) }

func (f *JSONFormatter) write(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format JSON: %w", err)
	}
	_, err = fmt.Fprintln(f.options.Writer, string(b))
	return err
}
