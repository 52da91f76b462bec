// Package catalog describes the components known to the plugin runner: their
// identifiers, the services they provide and the services they require.
//
// A Catalog is read-only from the engine's point of view. The engine builds a
// requirement graph from a snapshot of AllComponents at the start of every
// Apply, so the requirement set of a component is fixed for that cycle.
// Memory is the in-process implementation used by discovery and tests.
//
// # Requirement levels
//
//	Level              provider exists                 provider missing
//	Optional           requirer starts, provider kept  requirer starts
//	OptionalTryStart   provider auto-started           requirer starts
//	MustExist          provider kept                   requirer fails
//	MustExistTryStart  provider auto-started           requirer fails
//	MustExistAndRun    provider must end running       requirer fails
package catalog
