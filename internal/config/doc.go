// Package config loads the pluginrunner configuration.
//
// The configuration lives in a single directory, ~/.config/pluginrunner by
// default, overridable with --config-path:
//
//	~/.config/pluginrunner/
//	├── config.yaml     # this package
//	├── plugins/        # component manifests (package discovery)
//	├── intents.yaml    # user intents (package intent)
//	└── system.yaml     # system statuses (package intent)
//
// A missing config.yaml yields GetDefaultConfig. Relative paths are resolved
// against the configuration directory.
//
// # Example config.yaml
//
//	logLevel: debug
//	logFormat: json
//	manifestDir: /opt/plugins
//	minComponentVersion: 1.0.0
//	hookTimeout: 10s
//	watchDebounce: 1s
//
// # Errors
//
// File problems are reported as ConfigurationError values, grouped in a
// ConfigurationErrorCollection when several files are involved. Semantic
// problems are reported by Validate as ValidationErrors.
package config
