// Package orchestrator provides Apply, the reconciliation of component
// intents into running components.
//
// # Apply
//
// Each Apply call runs to completion under a single lock:
//
//  1. Build the requirement graph from a catalog snapshot
//  2. Read the intents of every catalog component once
//  3. Compute the plan (see package planner)
//  4. Execute the plan through the Activator (see package executor)
//  5. Evaluate the outcome and store it as the last Report
//
// Apply returns true when every component with a Start intent is running and
// every running component has its MustExistAndRun providers running.
// Failures never escape as errors; they are listed per component in the
// Report.
//
// # Queries
//
// IsRunning reads the runtime state store and may be called concurrently
// with Apply. SubscribeToStateChanges streams state transitions; slow
// subscribers miss events instead of blocking Apply.
//
// # Usage
//
//	orch, err := orchestrator.New(orchestrator.Config{
//		Catalog:   cat,
//		Intents:   intent.NewLayered(system, user),
//		Activator: hooks.New(cat, hooks.Options{}),
//	})
//	if err != nil {
//		return err
//	}
//	if !orch.Apply(ctx) {
//		report := orch.LastReport()
//		// inspect report.Failures
//	}
package orchestrator
