package hooks

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"pluginrunner/internal/catalog"
)

// TemplateData is what hook command templates can reference.
type TemplateData struct {
	ID       string
	Name     string
	Version  string
	Provides []string
}

func newTemplateData(d *catalog.ComponentDescriptor) TemplateData {
	data := TemplateData{
		ID:      d.ID.String(),
		Name:    d.DisplayName(),
		Version: d.Version,
	}
	for _, s := range d.Provides {
		data.Provides = append(data.Provides, string(s))
	}
	return data
}

// Engine renders hook commands with text/template and the sprig functions.
// Parsed templates are cached by source text.
type Engine struct {
	mu    sync.Mutex
	cache map[string]*template.Template
}

// NewEngine creates a new template engine.
func NewEngine() *Engine {
	return &Engine{cache: make(map[string]*template.Template)}
}

// Render executes the command template. Referencing an unknown field is an
// error rather than an empty string.
func (e *Engine) Render(command string, data TemplateData) (string, error) {
	tmpl, err := e.parse(command)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render hook %q: %w", command, err)
	}
	return buf.String(), nil
}

func (e *Engine) parse(command string) (*template.Template, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if tmpl, ok := e.cache[command]; ok {
		return tmpl, nil
	}
	tmpl, err := template.New("hook").
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		Parse(command)
	if err != nil {
		return nil, fmt.Errorf("invalid hook template %q: %w", command, err)
	}
	e.cache[command] = tmpl
	return tmpl, nil
}
