package config

import "time"

const (
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultManifestDir   = "plugins"
	DefaultIntentsFile   = "intents.yaml"
	DefaultSystemFile    = "system.yaml"
	DefaultHookTimeout   = 30 * time.Second
	DefaultWatchDebounce = 500 * time.Millisecond
)

// GetDefaultConfig returns the default configuration, rooted at baseDir.
func GetDefaultConfig(baseDir string) RunnerConfig {
	return RunnerConfig{
		LogLevel:      DefaultLogLevel,
		LogFormat:     DefaultLogFormat,
		ManifestDir:   DefaultManifestDir,
		IntentsFile:   DefaultIntentsFile,
		SystemFile:    DefaultSystemFile,
		HookTimeout:   Duration(DefaultHookTimeout),
		WatchDebounce: Duration(DefaultWatchDebounce),
		baseDir:       baseDir,
	}
}
