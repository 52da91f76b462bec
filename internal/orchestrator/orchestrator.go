package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pluginrunner/internal/catalog"
	"pluginrunner/internal/dependency"
	"pluginrunner/internal/executor"
	"pluginrunner/internal/intent"
	"pluginrunner/internal/metrics"
	"pluginrunner/internal/planner"
	"pluginrunner/internal/state"
	"pluginrunner/pkg/logging"
)

// Config holds the collaborators of an Orchestrator.
type Config struct {
	Catalog   catalog.Catalog    // Required
	Intents   intent.Source      // Required
	Activator executor.Activator // Required
	States    *state.Store       // Optional: a fresh store is created when nil
	Metrics   *metrics.Metrics   // Optional
}

// Orchestrator realizes intents: each Apply builds the requirement graph,
// plans, executes and records a Report.
type Orchestrator struct {
	catalog  catalog.Catalog
	intents  intent.Source
	states   *state.Store
	executor *executor.Executor
	metrics  *metrics.Metrics

	// applyMu serializes Apply and Plan.
	applyMu sync.Mutex

	mu   sync.RWMutex
	last *Report
}

// New creates a new orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("orchestrator requires a catalog")
	}
	if cfg.Intents == nil {
		return nil, fmt.Errorf("orchestrator requires an intent source")
	}
	if cfg.Activator == nil {
		return nil, fmt.Errorf("orchestrator requires an activator")
	}

	states := cfg.States
	if states == nil {
		states = state.NewStore()
	}

	// Avoid a typed nil interface when no metrics are configured.
	var observer executor.TransitionObserver
	if cfg.Metrics != nil {
		observer = cfg.Metrics
	}

	return &Orchestrator{
		catalog:  cfg.Catalog,
		intents:  cfg.Intents,
		states:   states,
		executor: executor.New(cfg.Activator, states, observer),
		metrics:  cfg.Metrics,
	}, nil
}

// Apply runs one reconciliation and reports whether every component asked
// to start is running with its MustExistAndRun providers.
func (o *Orchestrator) Apply(ctx context.Context) bool {
	return o.ApplyWithReport(ctx).Success
}

// ApplyWithReport is Apply returning the full Report.
func (o *Orchestrator) ApplyWithReport(ctx context.Context) *Report {
	o.applyMu.Lock()
	defer o.applyMu.Unlock()

	begin := time.Now()
	g := dependency.Build(o.catalog)
	snapshot := intent.Snapshot(o.intents, g.Nodes())

	plan := planner.Compute(g, snapshot, o.states)
	if plan.IsEmpty() {
		logging.Debug("Orchestrator", "Nothing to start or stop, %d unsatisfiable", len(plan.Unsatisfiable))
	} else {
		logging.Info("Orchestrator", "Applying plan: %d stops, %d starts, %d unsatisfiable",
			len(plan.Stops), len(plan.Starts), len(plan.Unsatisfiable))
	}

	res := o.executor.Execute(ctx, g, plan)

	// Orphans left the catalog, so their stopped entries are of no further use
	for _, id := range plan.Orphans {
		o.states.Forget(id)
	}

	report := &Report{
		StartedAt: begin,
		Started:   res.Started,
		Stopped:   res.Stopped,
		Failures:  make(map[catalog.ComponentID]error),
		Plan:      plan,
		Graph:     g,
		Intents:   snapshot,
	}
	for id, err := range plan.Unsatisfiable {
		if planner.IsKind(err, planner.UnresolvedCycle) {
			logging.Warn("Orchestrator", "%s cannot start: %v", g.Get(id).FriendlyName, err)
		}
		report.Failures[id] = err
	}
	for id, err := range res.Failures {
		report.Failures[id] = err
	}
	report.Transitions = res.Transitions
	report.Success = o.evaluate(g, snapshot, report)
	report.Duration = time.Since(begin)

	if report.Success {
		logging.Info("Orchestrator", "Apply succeeded in %s (running: %d)", report.Duration, len(o.states.Running()))
	} else {
		logging.Warn("Orchestrator", "Apply failed in %s (%d failures)", report.Duration, len(report.Failures))
	}

	if o.metrics != nil {
		o.metrics.ObserveApply(report.Success, report.Duration, len(o.states.Running()), len(plan.Unsatisfiable))
	}

	o.mu.Lock()
	o.last = report
	o.mu.Unlock()
	return report
}

// evaluate checks the outcome of an Apply. A component asked to start that is
// not running gets a failure entry when the executor left none.
func (o *Orchestrator) evaluate(g *dependency.Graph, snapshot map[catalog.ComponentID]intent.Intent, report *Report) bool {
	success := true
	for _, id := range g.Nodes() {
		if snapshot[id] == intent.Start && !o.states.IsRunning(id) {
			success = false
			if _, known := report.Failures[id]; !known {
				report.Failures[id] = fmt.Errorf("component %s is not running", g.Get(id).FriendlyName)
			}
		}
		if !o.states.IsRunning(id) {
			continue
		}
		for _, e := range g.Get(id).Edges {
			if e.Resolved && e.Level.RequiresRunning() && !o.states.IsRunning(e.Provider) {
				success = false
				report.Failures[id] = &executor.ProviderFailedError{
					Component:     id,
					Service:       e.Service,
					Provider:      e.Provider,
					ComponentName: g.Get(id).FriendlyName,
					ProviderName:  g.Get(e.Provider).FriendlyName,
				}
			}
		}
	}
	return success
}

// Plan computes what Apply would do now, without executing anything.
func (o *Orchestrator) Plan() (*planner.Plan, *dependency.Graph) {
	o.applyMu.Lock()
	defer o.applyMu.Unlock()

	g := dependency.Build(o.catalog)
	return planner.Compute(g, intent.Snapshot(o.intents, g.Nodes()), o.states), g
}

// IsRunning reports whether the component is running. It is safe to call at
// any time, including during an Apply.
func (o *Orchestrator) IsRunning(id catalog.ComponentID) bool {
	return o.states.IsRunning(id)
}

// States returns the runtime state store.
func (o *Orchestrator) States() *state.Store {
	return o.states
}

// LastReport returns the report of the most recent Apply, or nil.
func (o *Orchestrator) LastReport() *Report {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.last
}

// SubscribeToStateChanges returns a channel for state change events.
func (o *Orchestrator) SubscribeToStateChanges() <-chan state.ChangeEvent {
	return o.states.Subscribe()
}

// UnsubscribeFromStateChanges closes a channel from SubscribeToStateChanges.
func (o *Orchestrator) UnsubscribeFromStateChanges(ch <-chan state.ChangeEvent) {
	o.states.Unsubscribe(ch)
}

// Report describes one Apply.
type Report struct {
	Success     bool
	StartedAt   time.Time
	Duration    time.Duration
	Started     []catalog.ComponentID
	Stopped     []catalog.ComponentID
	Failures    map[catalog.ComponentID]error
	Transitions []executor.Transition
	Plan        *planner.Plan
	// Graph and Intents are the snapshots the Apply worked with.
	Graph   *dependency.Graph
	Intents map[catalog.ComponentID]intent.Intent
}

// Name returns the display name of a component of the Apply snapshot.
func (r *Report) Name(id catalog.ComponentID) string {
	if r.Graph != nil {
		if n := r.Graph.Get(id); n != nil {
			return n.FriendlyName
		}
	}
	return id.String()
}
