package formatting

import (
	"fmt"

	"sigs.k8s.io/yaml"
)

// YAMLFormatter provides YAML output formatting. It marshals through the
// json tags of the views, so YAML and JSON keys always match.
type YAMLFormatter struct {
	options Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(options Options) Formatter {
	return &YAMLFormatter{
		options: options,
	}
}

// FormatPlan writes the plan as YAML.
func (f *YAMLFormatter) FormatPlan(v PlanView) error { return f.write(v) }

// FormatReport writes the apply report as YAML.
func (f *YAMLFormatter) FormatReport(v ReportView) error { return f.write(v) }

// FormatStatus writes the component status as YAML.
func (f *YAMLFormatter) FormatStatus(v StatusView) error { return f.write(v) }

func (f *YAMLFormatter) write(v interface{}) error {
	yamlBytes, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to format YAML: %w", err)
	}
	_, err = f.options.Writer.Write(yamlBytes)
	return err
}
