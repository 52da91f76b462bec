package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pluginrunner/internal/catalog"
	"pluginrunner/internal/dependency"
	"pluginrunner/internal/planner"
	"pluginrunner/internal/state"
	"pluginrunner/pkg/logging"
)

// Activator starts and stops components on behalf of the host. Both calls
// block until the transition is complete.
type Activator interface {
	// TryStart returns false (or an error) when the component did not start.
	TryStart(ctx context.Context, id catalog.ComponentID) (bool, error)
	Stop(ctx context.Context, id catalog.ComponentID) error
}

// TransitionObserver receives one observation per executed transition.
type TransitionObserver interface {
	ObserveTransition(op, outcome string, d time.Duration)
}

// ErrStartRefused is the cause recorded when TryStart returns false.
var ErrStartRefused = errors.New("activator refused to start the component")

// ActivationError reports a start that did not happen because the activator
// refused, failed or panicked.
type ActivationError struct {
	Component catalog.ComponentID
	// Name is shown in the message instead of the id when set.
	Name string
	Err  error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("failed to start component %s: %v", label(e.Name, e.Component), e.Err)
}

func (e *ActivationError) Unwrap() error { return e.Err }

// ProviderFailedError reports a component that could not be started, or had
// to be stopped again, because a MustExistAndRun provider is not running.
type ProviderFailedError struct {
	Component catalog.ComponentID
	Service   catalog.ServiceID
	Provider  catalog.ComponentID
	// ComponentName and ProviderName replace the ids in the message when set.
	ComponentName string
	ProviderName  string
}

func (e *ProviderFailedError) Error() string {
	return fmt.Sprintf("component %s: provider %s of service %s is not running",
		label(e.ComponentName, e.Component), label(e.ProviderName, e.Provider), e.Service)
}

// Op is the kind of transition.
type Op string

const (
	OpStart Op = "start"
	OpStop  Op = "stop"
)

// Outcome is the result of a transition.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Transition records one executed (or skipped) plan step.
type Transition struct {
	Component catalog.ComponentID `json:"component"`
	Op        Op                  `json:"op"`
	Outcome   Outcome             `json:"outcome"`
	Error     string              `json:"error,omitempty"`
	Duration  time.Duration       `json:"duration"`
}

// Result summarizes one execution.
type Result struct {
	Started     []catalog.ComponentID
	Stopped     []catalog.ComponentID
	Failures    map[catalog.ComponentID]error
	Transitions []Transition
}

// Executor walks plans. It is the only writer of the state store it is
// given; callers serialize Execute calls.
type Executor struct {
	activator Activator
	states    *state.Store
	observer  TransitionObserver
}

// New creates an Executor. observer may be nil.
func New(activator Activator, states *state.Store, observer TransitionObserver) *Executor {
	return &Executor{activator: activator, states: states, observer: observer}
}

// Execute runs the stops, then the starts, of the plan and finally stops any
// started component whose MustExistAndRun provider did not end up running.
// Failures never abort the execution; they are collected in the result.
func (e *Executor) Execute(ctx context.Context, g *dependency.Graph, plan *planner.Plan) *Result {
	res := &Result{Failures: make(map[catalog.ComponentID]error)}

	for _, id := range plan.Stops {
		var cause error
		if re, ok := plan.Unsatisfiable[id]; ok {
			cause = re
		}
		e.stop(ctx, g, id, cause, res)
	}

	pending := make(map[catalog.ComponentID]bool, len(plan.Starts))
	for _, id := range plan.Starts {
		pending[id] = true
	}

	for _, id := range plan.Starts {
		delete(pending, id)

		if err := ctx.Err(); err != nil {
			e.skip(id, &ActivationError{Component: id, Name: friendly(g, id), Err: err}, res)
			continue
		}
		if err := e.missingRunProvider(g, id, pending); err != nil {
			e.skip(id, err, res)
			continue
		}
		e.start(ctx, g, id, res)
	}

	e.settle(ctx, g, res)
	return res
}

// missingRunProvider returns an error when a MustExistAndRun provider of id is
// neither running nor still to be started by the plan.
func (e *Executor) missingRunProvider(g *dependency.Graph, id catalog.ComponentID, pending map[catalog.ComponentID]bool) error {
	node := g.Get(id)
	if node == nil {
		return nil
	}
	for _, edge := range node.Edges {
		if !edge.Resolved || !edge.Level.RequiresRunning() || edge.Provider == id {
			continue
		}
		if e.states.IsRunning(edge.Provider) || pending[edge.Provider] {
			continue
		}
		return &ProviderFailedError{
			Component:     id,
			Service:       edge.Service,
			Provider:      edge.Provider,
			ComponentName: node.FriendlyName,
			ProviderName:  friendly(g, edge.Provider),
		}
	}
	return nil
}

// settle stops started components whose MustExistAndRun providers are not
// running, until no such component is left. Each round stops at least one
// component, so it ends after at most one round per component.
func (e *Executor) settle(ctx context.Context, g *dependency.Graph, res *Result) {
	for {
		changed := false
		for _, id := range g.Nodes() {
			if !e.states.IsRunning(id) {
				continue
			}
			if err := e.missingRunProvider(g, id, nil); err != nil {
				logging.Warn("Executor", "Stopping %s: %v", friendly(g, id), err)
				e.stop(ctx, g, id, err, res)
				res.Failures[id] = err
				res.Started = remove(res.Started, id)
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

func (e *Executor) start(ctx context.Context, g *dependency.Graph, id catalog.ComponentID, res *Result) {
	name := friendly(g, id)
	logging.Info("Executor", "Starting %s", name)

	begin := time.Now()
	ok, err := e.tryStart(ctx, id)
	elapsed := time.Since(begin)

	if err == nil && !ok {
		err = ErrStartRefused
	}
	if err != nil {
		activationErr := &ActivationError{Component: id, Name: name, Err: err}
		logging.Error("Executor", err, "Failed to start %s", name)
		e.states.Set(id, state.Stopped, activationErr)
		res.Failures[id] = activationErr
		e.record(res, Transition{Component: id, Op: OpStart, Outcome: OutcomeFailed, Error: activationErr.Error(), Duration: elapsed})
		return
	}

	e.states.Set(id, state.Started, nil)
	res.Started = append(res.Started, id)
	e.record(res, Transition{Component: id, Op: OpStart, Outcome: OutcomeOK, Duration: elapsed})
}

// stop always leaves the component Stopped: a failing Stop is reported but
// the component is no longer considered running.
func (e *Executor) stop(ctx context.Context, g *dependency.Graph, id catalog.ComponentID, cause error, res *Result) {
	name := friendly(g, id)
	logging.Info("Executor", "Stopping %s", name)

	begin := time.Now()
	err := e.tryStop(ctx, id)
	elapsed := time.Since(begin)

	t := Transition{Component: id, Op: OpStop, Outcome: OutcomeOK, Duration: elapsed}
	if err != nil {
		logging.Error("Executor", err, "Stop hook of %s failed", name)
		t.Outcome = OutcomeFailed
		t.Error = err.Error()
		cause = err
	}
	e.states.Set(id, state.Stopped, cause)
	res.Stopped = append(res.Stopped, id)
	e.record(res, t)
}

func (e *Executor) skip(id catalog.ComponentID, err error, res *Result) {
	logging.Debug("Executor", "Not starting %s: %v", id, err)
	res.Failures[id] = err
	e.record(res, Transition{Component: id, Op: OpStart, Outcome: OutcomeSkipped, Error: err.Error()})
}

func (e *Executor) record(res *Result, t Transition) {
	res.Transitions = append(res.Transitions, t)
	if e.observer != nil {
		e.observer.ObserveTransition(string(t.Op), string(t.Outcome), t.Duration)
	}
}

func (e *Executor) tryStart(ctx context.Context, id catalog.ComponentID) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("panic in start: %v", r)
		}
	}()
	return e.activator.TryStart(ctx, id)
}

func (e *Executor) tryStop(ctx context.Context, id catalog.ComponentID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in stop: %v", r)
		}
	}()
	return e.activator.Stop(ctx, id)
}

func friendly(g *dependency.Graph, id catalog.ComponentID) string {
	if n := g.Get(id); n != nil {
		return n.FriendlyName
	}
	return id.String()
}

func label(name string, id catalog.ComponentID) string {
	if name != "" {
		return name
	}
	return id.String()
}

func remove(ids []catalog.ComponentID, id catalog.ComponentID) []catalog.ComponentID {
	for i, existing := range ids {
		if existing == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
