// Package logging provides the structured logging used across pluginrunner.
//
// It is a thin layer over Go's log/slog: every record carries a subsystem
// attribute and messages are printf-style, so call sites stay short.
//
// # Log Levels
//   - **Debug**: planner decisions, skipped transitions, watcher noise
//   - **Info**: component transitions and Apply summaries
//   - **Warn**: recoverable problems (bad manifest, unknown intent key)
//   - **Error**: activation failures and hook errors
//
// # Usage
//
//	logging.Init(logging.LevelInfo, logging.FormatText, os.Stderr)
//
//	logging.Info("Executor", "Started component %s", id)
//	logging.Error("Hooks", err, "Stop hook failed for %s", name)
//
// # Subsystems
//
//   - **Planner**: activation planning
//   - **Executor**: start/stop transitions
//   - **Orchestrator**: Apply cycles
//   - **Discovery**: manifest loading
//   - **Watcher**: manifest and intent file watching
//   - **Intent**: intent persistence
//   - **Hooks**: host start/stop commands
//   - **Config**: configuration loading
//
// Before Init is called only WARN and ERROR records are emitted, through
// slog's default logger. Init may be called more than once; the last call
// wins. All functions are safe for concurrent use.
package logging
