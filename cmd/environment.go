package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"pluginrunner/internal/catalog"
	"pluginrunner/internal/config"
	"pluginrunner/internal/discovery"
	"pluginrunner/internal/formatting"
	"pluginrunner/internal/hooks"
	"pluginrunner/internal/intent"
	"pluginrunner/internal/metrics"
	"pluginrunner/internal/orchestrator"
	"pluginrunner/pkg/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// environment is everything a command needs to plan or apply: the loaded
// configuration, the discovered catalog, the intent layers and an
// orchestrator driving the hook activator.
type environment struct {
	config       config.RunnerConfig
	catalog      *catalog.Memory
	user         *intent.Store
	system       *intent.SystemConfig
	intents      *intent.Layered
	metrics      *metrics.Metrics
	orchestrator *orchestrator.Orchestrator
}

// loadEnvironment loads config.yaml, sets up logging, discovers manifests and
// reads both intent files.
func loadEnvironment(ctx context.Context) (*environment, error) {
	logging.InitForCLI(logging.LevelWarn, os.Stderr)

	dir := configPath
	if dir == "" {
		var err error
		if dir, err = config.GetDefaultConfigPath(); err != nil {
			return nil, err
		}
	}

	cfg, err := config.LoadConfig(dir)
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if debug {
		level = logging.LevelDebug
	}
	logging.Init(level, logging.Format(cfg.LogFormat), os.Stderr)

	cat, err := catalog.NewMemory()
	if err != nil {
		return nil, err
	}
	env := &environment{
		config:  cfg,
		catalog: cat,
		intents: intent.NewLayered(nil, nil),
		metrics: metrics.New(prometheus.NewRegistry()),
	}

	if err := env.reload(ctx); err != nil {
		return nil, err
	}

	env.orchestrator, err = orchestrator.New(orchestrator.Config{
		Catalog:   env.catalog,
		Intents:   env.intents,
		Activator: hooks.New(env.catalog, hooks.Options{Timeout: cfg.HookTimeout.Std()}),
		Metrics:   env.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	return env, nil
}

// reload re-discovers the manifests and re-reads both intent files. Nothing
// is committed unless all of them load, so on error the previous catalog and
// intents stay in effect. Invalid manifests are reported and skipped.
func (e *environment) reload(ctx context.Context) error {
	logging.Debug("Discovery", "Reloading from %s", e.config.BaseDir())

	discovered, err := discovery.LoadDir(ctx, e.config.ManifestPath(), discovery.Options{
		MinVersion: e.config.MinComponentVersion,
	})
	var invalid *config.ConfigurationErrorCollection
	switch {
	case errors.As(err, &invalid):
		logging.Warn("Discovery", "Skipping invalid manifests:\n%s", invalid.GetDetailedReport())
		if outdated := invalid.GetErrorsByType("version"); len(outdated) > 0 {
			logging.Warn("Discovery", "%d manifests are below minComponentVersion %s", len(outdated), e.config.MinComponentVersion)
		}
	case err != nil:
		return err
	}

	system := intent.NewSystemConfig()
	if err := intent.LoadSystemFile(e.config.SystemPath(), system, discovered.Lookup); err != nil {
		return fmt.Errorf("failed to load system statuses: %w", err)
	}
	user := intent.NewStore()
	if err := intent.LoadUserFile(e.config.IntentsPath(), user, discovered.Lookup); err != nil {
		return fmt.Errorf("failed to load intents: %w", err)
	}

	e.catalog.Replace(discovered)
	e.system, e.user = system, user
	e.intents.System, e.intents.User = system, user
	return nil
}

// componentName is the key intents are written back under: the name when
// it resolves back to the same component, the id otherwise.
func (e *environment) componentName(id catalog.ComponentID) string {
	if d, ok := e.catalog.GetComponent(id); ok && d.Name != "" {
		if found, ok := e.catalog.Lookup(d.Name); ok && found == id {
			return d.Name
		}
	}
	return id.String()
}

// newFormatter builds the formatter selected by --output. Colors are only
// used for tables on a terminal.
func newFormatter(cmd *cobra.Command) (formatting.Formatter, error) {
	format, err := formatting.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return formatting.New(formatting.Options{
		Format: format,
		Writer: cmd.OutOrStdout(),
		Color:  format == formatting.FormatTable && isTerminal(cmd.OutOrStdout()),
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
