// Package planner computes activation plans.
//
// Compute takes a requirement graph, an intent snapshot and the current
// runtime state and returns the ordered transitions that realize the
// intents: stops first (orphans, then dependents before providers) and
// starts in provider-first order. Components that cannot start are listed
// in Plan.Unsatisfiable with a *RequirementError giving the reason.
//
// The planner is pure: it reads its inputs and never calls an activator.
package planner
