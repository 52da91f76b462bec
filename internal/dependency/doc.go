// Package dependency builds the requirement graph of a catalog snapshot.
//
// Every requirement of every component is resolved to the component that
// provides the required service. Resolution is a lookup over the provided
// service sets of all components; when a service is provided more than once
// the first provider in discovery order wins. A requirement whose service has
// no provider stays in the graph as an unresolved edge: absence is a normal
// outcome here, and it is up to the planner to decide what it means for the
// requirement level involved.
//
// # Core Concepts
//
// Graph: the immutable snapshot built by Build. It is rebuilt at the start of
// every Apply and can be read concurrently.
//
// Node: a component, its discovery order and its resolved edges.
//
// Edge: one requirement (service, level) and its provider, if resolved.
//
// # Cycles
//
// Requirement graphs may be cyclic (two components that optionally start each
// other are legal). Unlike a classic DAG, nothing here rejects cycles.
// TopologicalOrder keeps providers before dependents wherever the graph allows
// it and falls back to discovery order inside a cycle, so the result is
// always complete and deterministic.
//
// # Usage Example
//
//	g := dependency.Build(cat)
//
//	provider, ok := g.Resolve("ServiceC")
//	users := g.Dependents(provider, dependency.AllEdges)
//
//	// Startup order for a set of components
//	order := g.TopologicalOrder(toStart, dependency.ActivationEdges)
//
// # Thread Safety
//
// A Graph is never modified after Build returns.
package dependency
