package hooks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"pluginrunner/internal/catalog"
	"pluginrunner/pkg/logging"
	pkgstrings "pluginrunner/pkg/strings"
)

// DefaultTimeout bounds a single hook command.
const DefaultTimeout = 30 * time.Second

// Runner runs a rendered command and returns its combined output.
type Runner func(ctx context.Context, command string, env []string) ([]byte, error)

// execCommandContext is a variable to allow mocking in tests
var execCommandContext = exec.CommandContext

// ShellRunner runs the command with sh -c.
func ShellRunner(ctx context.Context, command string, env []string) ([]byte, error) {
	cmd := execCommandContext(ctx, "sh", "-c", command)
	cmd.Env = append(os.Environ(), env...)
	// Children of sh may hold the output pipe after sh is killed
	cmd.WaitDelay = time.Second
	return cmd.CombinedOutput()
}

// Options tunes the Activator.
type Options struct {
	// Timeout bounds each hook; zero means DefaultTimeout.
	Timeout time.Duration
	// Runner replaces ShellRunner, mainly for tests.
	Runner Runner
}

// Activator starts and stops components by running the start and stop hooks
// of their manifests. A component without a hook starts and stops trivially.
// The descriptor a component was started from is remembered so its stop hook
// still runs after the manifest leaves the catalog.
type Activator struct {
	catalog catalog.Catalog
	engine  *Engine
	timeout time.Duration
	run     Runner

	mu      sync.Mutex
	started map[catalog.ComponentID]catalog.ComponentDescriptor
}

// New creates a hook Activator reading hooks from c.
func New(c catalog.Catalog, opts Options) *Activator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Runner == nil {
		opts.Runner = ShellRunner
	}
	return &Activator{
		catalog: c,
		engine:  NewEngine(),
		timeout: opts.Timeout,
		run:     opts.Runner,
		started: make(map[catalog.ComponentID]catalog.ComponentDescriptor),
	}
}

// TryStart runs the start hook. It returns true when the hook exits 0.
func (a *Activator) TryStart(ctx context.Context, id catalog.ComponentID) (bool, error) {
	d, ok := a.catalog.GetComponent(id)
	if !ok {
		return false, fmt.Errorf("component %s is not in the catalog", id)
	}
	if err := a.runHook(ctx, d, "start", d.Hooks.Start); err != nil {
		return false, err
	}

	a.mu.Lock()
	a.started[id] = *d
	a.mu.Unlock()
	return true, nil
}

// Stop runs the stop hook. An orphan, no longer in the catalog, is stopped
// with the hook it was started from.
func (a *Activator) Stop(ctx context.Context, id catalog.ComponentID) error {
	a.mu.Lock()
	remembered, wasStarted := a.started[id]
	delete(a.started, id)
	a.mu.Unlock()

	d, ok := a.catalog.GetComponent(id)
	if !ok {
		if !wasStarted {
			logging.Debug("Hooks", "No manifest for %s, nothing to run on stop", id)
			return nil
		}
		d = &remembered
	}
	return a.runHook(ctx, d, "stop", d.Hooks.Stop)
}

func (a *Activator) runHook(ctx context.Context, d *catalog.ComponentDescriptor, kind, command string) error {
	if strings.TrimSpace(command) == "" {
		return nil
	}

	data := newTemplateData(d)
	rendered, err := a.engine.Render(command, data)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	env := []string{
		"PLUGINRUNNER_COMPONENT_ID=" + data.ID,
		"PLUGINRUNNER_COMPONENT_NAME=" + data.Name,
		"PLUGINRUNNER_HOOK=" + kind,
	}

	logging.Debug("Hooks", "Running %s hook of %s: %s", kind, data.Name, rendered)
	begin := time.Now()
	output, err := a.run(ctx, rendered, env)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s hook of %s timed out after %s", kind, data.Name, a.timeout)
		}
		return fmt.Errorf("%s hook of %s failed: %w (output: %s)", kind, data.Name, err,
			pkgstrings.TruncateTail(string(output), 200))
	}

	logging.Info("Hooks", "%s hook of %s completed in %s", kind, data.Name, time.Since(begin).Round(time.Millisecond))
	return nil
}
