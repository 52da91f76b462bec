// Package intent holds what users and the system want to happen to each
// component.
//
// Store keeps the user action per component (Start, Stop or Unset). Changes
// go through OnChanging hooks that may cancel them and are reported to
// OnChanged listeners afterwards.
//
// SystemConfig keeps the system-level status (manual, automaticStart,
// disabled). Layered merges both into the intent the engine reads:
//
//	disabled                    -> Stop
//	user intent set             -> user intent
//	automaticStart, no intent   -> Start
//	otherwise                   -> Unset
//
// The engine reads intents once per Apply through Snapshot. LoadUserFile and
// LoadSystemFile synchronize the stores with intents.yaml and system.yaml.
package intent
