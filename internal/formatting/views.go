package formatting

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"pluginrunner/internal/catalog"
	"pluginrunner/internal/dependency"
	"pluginrunner/internal/executor"
	"pluginrunner/internal/intent"
	"pluginrunner/internal/orchestrator"
	"pluginrunner/internal/planner"
	"pluginrunner/internal/state"
)

// ComponentRef names a component in a view.
type ComponentRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProblemView is a reason a component could not reach its desired state.
type ProblemView struct {
	ComponentRef
	Kind         string `json:"kind"`
	Reason       string `json:"reason"`
}

// PlanView is the serializable form of planner.Plan.
type PlanView struct {
	Stops         []ComponentRef `json:"stops"`
	Starts        []ComponentRef `json:"starts"`
	Orphans       []ComponentRef `json:"orphans,omitempty"`
	Unsatisfiable []ProblemView  `json:"unsatisfiable,omitempty"`
	Passes        int            `json:"passes"`
}

// TransitionView is one executed or skipped step.
type TransitionView struct {
	ComponentRef
	Op           string `json:"op"`
	Outcome      string `json:"outcome"`
	Duration     string `json:"duration"`
	Error        string `json:"error,omitempty"`
}

// ReportView is the serializable form of orchestrator.Report.
type ReportView struct {
	Success     bool             `json:"success"`
	StartedAt   time.Time        `json:"startedAt"`
	Duration    string           `json:"duration"`
	Started     []ComponentRef   `json:"started"`
	Stopped     []ComponentRef   `json:"stopped"`
	Failures    []ProblemView    `json:"failures,omitempty"`
	Transitions []TransitionView `json:"transitions"`
	Plan        PlanView         `json:"plan"`
}

// ComponentStatus is one row of the status view.
type ComponentStatus struct {
	ComponentRef
	Version      string   `json:"version,omitempty"`
	Description  string   `json:"description,omitempty"`
	Provides     []string `json:"provides,omitempty"`
	Requires     []string `json:"requires,omitempty"`
	RequiredBy   []string `json:"requiredBy,omitempty"`
	Intent       string   `json:"intent"`
	State        string   `json:"state"`
	Problem      string   `json:"problem,omitempty"`
}

// StatusView lists every catalog component with its intent and state.
type StatusView struct {
	Components []ComponentStatus `json:"components"`
}

func refs(g *dependency.Graph, ids []catalog.ComponentID) []ComponentRef {
	out := make([]ComponentRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, ref(g, id))
	}
	return out
}

func ref(g *dependency.Graph, id catalog.ComponentID) ComponentRef {
	r := ComponentRef{ID: id.String(), Name: id.String()}
	if g != nil {
		if n := g.Get(id); n != nil {
			r.Name = n.FriendlyName
		}
	}
	return r
}

// sortedIDs orders map keys by discovery order, unknown ids last by string.
func sortedIDs[V any](g *dependency.Graph, m map[catalog.ComponentID]V) []catalog.ComponentID {
	ids := make([]catalog.ComponentID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	order := func(id catalog.ComponentID) int {
		if g != nil {
			if n := g.Get(id); n != nil {
				return n.Order
			}
		}
		return int(^uint(0) >> 1)
	}
	sort.Slice(ids, func(i, j int) bool {
		oi, oj := order(ids[i]), order(ids[j])
		if oi != oj {
			return oi < oj
		}
		return ids[i].String() < ids[j].String()
	})
	return ids
}

// NewPlanView converts a plan computed against g.
func NewPlanView(p *planner.Plan, g *dependency.Graph) PlanView {
	if p == nil {
		return PlanView{Stops: []ComponentRef{}, Starts: []ComponentRef{}}
	}
	v := PlanView{
		Stops:   refs(g, p.Stops),
		Starts:  refs(g, p.Starts),
		Orphans: refs(g, p.Orphans),
		Passes:  p.Passes,
	}
	for _, id := range sortedIDs(g, p.Unsatisfiable) {
		reason := p.Unsatisfiable[id]
		v.Unsatisfiable = append(v.Unsatisfiable, ProblemView{
			ComponentRef: ref(g, id),
			Kind:         reason.Kind.String(),
			Reason:       reason.Error(),
		})
	}
	return v
}

// NewReportView converts an apply report.
func NewReportView(r *orchestrator.Report) ReportView {
	v := ReportView{
		Success:   r.Success,
		StartedAt: r.StartedAt,
		Duration:  r.Duration.Round(time.Millisecond).String(),
		Started:   refs(r.Graph, r.Started),
		Stopped:   refs(r.Graph, r.Stopped),
		Plan:      NewPlanView(r.Plan, r.Graph),
	}
	for _, id := range sortedIDs(r.Graph, r.Failures) {
		v.Failures = append(v.Failures, ProblemView{
			ComponentRef: ref(r.Graph, id),
			Kind:         failureKind(r.Failures[id]),
			Reason:       r.Failures[id].Error(),
		})
	}
	v.Transitions = make([]TransitionView, 0, len(r.Transitions))
	for _, t := range r.Transitions {
		v.Transitions = append(v.Transitions, TransitionView{
			ComponentRef: ref(r.Graph, t.Component),
			Op:           string(t.Op),
			Outcome:      string(t.Outcome),
			Duration:     t.Duration.Round(time.Millisecond).String(),
			Error:        t.Error,
		})
	}
	return v
}

func failureKind(err error) string {
	var re *planner.RequirementError
	if errors.As(err, &re) && re != nil {
		return re.Kind.String()
	}
	var pf *executor.ProviderFailedError
	if errors.As(err, &pf) {
		return "ProviderFailed"
	}
	return "ActivationFailed"
}

// NewStatusView lists the catalog components in discovery order together
// with their resolved intent, runtime state and any planning problem. g may
// be nil, in which case no dependents are listed.
func NewStatusView(cat catalog.Catalog, g *dependency.Graph, intents map[catalog.ComponentID]intent.Intent, states *state.Store, p *planner.Plan) StatusView {
	v := StatusView{Components: []ComponentStatus{}}
	for _, d := range cat.AllComponents() {
		row := ComponentStatus{
			ComponentRef: ComponentRef{ID: d.ID.String(), Name: d.DisplayName()},
			Version:      d.Version,
			Description:  d.Description,
			Intent:       intents[d.ID].String(),
			State:        string(state.Stopped),
		}
		for _, s := range d.Provides {
			row.Provides = append(row.Provides, string(s))
		}
		for _, r := range d.Requirements {
			row.Requires = append(row.Requires, fmt.Sprintf("%s (%s)", r.Service, r.Level))
		}
		if g != nil {
			for _, dep := range g.Dependents(d.ID, dependency.AllEdges) {
				row.RequiredBy = append(row.RequiredBy, ref(g, dep).Name)
			}
		}
		if states != nil {
			entry := states.Get(d.ID)
			row.State = string(entry.State)
			if entry.LastError != nil {
				row.Problem = entry.LastError.Error()
			}
		}
		if p != nil {
			if reason, ok := p.Unsatisfiable[d.ID]; ok {
				row.Problem = reason.Error()
			}
		}
		v.Components = append(v.Components, row)
	}
	return v
}
