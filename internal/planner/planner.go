package planner

import (
	"pluginrunner/internal/catalog"
	"pluginrunner/internal/dependency"
	"pluginrunner/internal/intent"
	"pluginrunner/pkg/logging"
)

// StateReader is the view of the runtime state the planner needs.
type StateReader interface {
	IsRunning(id catalog.ComponentID) bool
	Running() []catalog.ComponentID
}

// Plan is the outcome of one planning run.
type Plan struct {
	// Stops run first: orphans, then dependents before their providers.
	Stops []catalog.ComponentID
	// Starts run after the stops, providers before their dependents.
	Starts []catalog.ComponentID
	// Wanted lists, in discovery order, every component expected to run
	// once the plan is executed.
	Wanted []catalog.ComponentID
	// Orphans are running components no longer in the catalog.
	Orphans []catalog.ComponentID
	// Unsatisfiable maps each component that cannot start to the reason.
	Unsatisfiable map[catalog.ComponentID]*RequirementError
	// Passes is the number of propagation passes performed.
	Passes int
}

// IsEmpty reports whether the plan changes nothing.
func (p *Plan) IsEmpty() bool {
	return len(p.Stops) == 0 && len(p.Starts) == 0
}

// planner holds the working sets of a single Compute call.
type planner struct {
	g       *dependency.Graph
	intents map[catalog.ComponentID]intent.Intent
	current StateReader

	seeds  []catalog.ComponentID
	wanted map[catalog.ComponentID]bool
	unsat  map[catalog.ComponentID]*RequirementError
}

// Compute plans the transitions that bring the current state in line with
// the intents. It never fails: components that cannot start are reported in
// Plan.Unsatisfiable.
//
// Demand starts from components with a Start intent and from running
// components that are not asked to stop. Each pass recomputes the demand
// closure along TryStart edges, skipping unsatisfiable components, then
// checks every demanded component. The unsatisfiable set only grows, so the
// number of passes is bounded by the number of components plus one.
func Compute(g *dependency.Graph, intents map[catalog.ComponentID]intent.Intent, current StateReader) *Plan {
	p := &planner{
		g:       g,
		intents: intents,
		current: current,
		unsat:   make(map[catalog.ComponentID]*RequirementError),
	}

	for _, id := range g.Nodes() {
		switch {
		case intents[id] == intent.Start:
			p.seeds = append(p.seeds, id)
		case intents[id] != intent.Stop && current.IsRunning(id):
			p.seeds = append(p.seeds, id)
		}
	}

	passes := 0
	limit := g.Len() + 1
	for passes < limit {
		passes++
		p.propagate()
		if !p.checkWanted() {
			break
		}
	}
	// The last check may have demoted components whose demand is now gone.
	p.propagate()

	plan := &Plan{
		Unsatisfiable: p.unsat,
		Passes:        passes,
	}
	for _, id := range g.Nodes() {
		if p.wanted[id] {
			plan.Wanted = append(plan.Wanted, id)
		}
	}

	var toStop []catalog.ComponentID
	for _, id := range current.Running() {
		switch {
		case !g.Contains(id):
			plan.Orphans = append(plan.Orphans, id)
		case intents[id] == intent.Stop, p.unsat[id] != nil:
			toStop = append(toStop, id)
		}
	}
	plan.Stops = append(plan.Stops, plan.Orphans...)
	plan.Stops = append(plan.Stops, g.ReverseTopologicalOrder(toStop, dependency.ActivationEdges)...)

	var toStart []catalog.ComponentID
	for _, id := range plan.Wanted {
		if !current.IsRunning(id) {
			toStart = append(toStart, id)
		}
	}
	plan.Starts = g.TopologicalOrder(toStart, dependency.ActivationEdges)

	logging.Debug("Planner", "Planned %d stops, %d starts, %d unsatisfiable in %d passes",
		len(plan.Stops), len(plan.Starts), len(plan.Unsatisfiable), passes)
	return plan
}

// propagate recomputes the demanded set from the seeds. Unsatisfiable
// components neither join it nor pull their providers in, and providers with
// a Stop intent are never pulled in.
func (p *planner) propagate() {
	p.wanted = make(map[catalog.ComponentID]bool, len(p.seeds))
	worklist := make([]catalog.ComponentID, 0, len(p.seeds))
	for _, id := range p.seeds {
		if p.unsat[id] == nil && !p.wanted[id] {
			p.wanted[id] = true
			worklist = append(worklist, id)
		}
	}

	for len(worklist) > 0 {
		id := worklist[0]
		worklist = worklist[1:]
		for _, e := range p.g.Get(id).Edges {
			if !e.Resolved || !e.Level.StartsProvider() {
				continue
			}
			provider := e.Provider
			if p.wanted[provider] || p.unsat[provider] != nil || p.intents[provider] == intent.Stop {
				continue
			}
			p.wanted[provider] = true
			worklist = append(worklist, provider)
		}
	}
}

// checkWanted marks newly unsatisfiable components, in discovery order. It
// reports whether anything changed.
func (p *planner) checkWanted() bool {
	changed := false
	for _, id := range p.g.Nodes() {
		if !p.wanted[id] || p.unsat[id] != nil {
			continue
		}
		if err := p.check(id); err != nil {
			logging.Debug("Planner", "%s is unsatisfiable: %s (%s)", p.g.Get(id).FriendlyName, err.Kind, err.Service)
			p.unsat[id] = err
			changed = true
		}
	}
	return changed
}

func (p *planner) check(id catalog.ComponentID) *RequirementError {
	node := p.g.Get(id)
	for _, e := range node.Edges {
		if !e.Level.RequiresProvider() {
			continue
		}
		if !e.Resolved {
			return &RequirementError{Kind: MissingProvider, Component: id, ComponentName: node.FriendlyName, Service: e.Service, Level: e.Level}
		}
		if !e.Level.RequiresRunning() || e.Provider == id {
			continue
		}
		newErr := func(kind Kind) *RequirementError {
			return &RequirementError{
				Kind:          kind,
				Component:     id,
				ComponentName: node.FriendlyName,
				Service:       e.Service,
				Level:         e.Level,
				Provider:      e.Provider,
				ProviderName:  p.g.Get(e.Provider).FriendlyName,
			}
		}
		if p.intents[e.Provider] == intent.Stop {
			return newErr(ProviderStopped)
		}
		if p.unsat[e.Provider] != nil {
			if p.g.Reaches(e.Provider, id, dependency.RunEdges) {
				return newErr(UnresolvedCycle)
			}
			return newErr(ProviderUnsatisfiable)
		}
	}
	return nil
}
