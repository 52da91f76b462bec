package config

import (
	"path/filepath"
	"time"
)

// RunnerConfig is the top-level configuration structure for pluginrunner.
type RunnerConfig struct {
	LogLevel  string `yaml:"logLevel,omitempty"`  // debug|info|warn|error (default: info)
	LogFormat string `yaml:"logFormat,omitempty"` // text|json (default: text)

	ManifestDir string `yaml:"manifestDir,omitempty"` // Component manifests (default: plugins)
	IntentsFile string `yaml:"intentsFile,omitempty"` // User intents (default: intents.yaml)
	SystemFile  string `yaml:"systemFile,omitempty"`  // System statuses (default: system.yaml)

	// MinComponentVersion rejects manifests whose version is lower. Empty
	// accepts every version.
	MinComponentVersion string `yaml:"minComponentVersion,omitempty"`

	HookTimeout   Duration `yaml:"hookTimeout,omitempty"`   // Per start/stop hook (default: 30s)
	WatchDebounce Duration `yaml:"watchDebounce,omitempty"` // Delay before re-applying on change (default: 500ms)

	// baseDir is the directory the configuration was loaded from.
	baseDir string
}

// Duration is a time.Duration read from and written as "30s" style strings.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// BaseDir returns the directory relative paths are resolved against.
func (c RunnerConfig) BaseDir() string {
	return c.baseDir
}

// ManifestPath returns the manifest directory, resolved against BaseDir.
func (c RunnerConfig) ManifestPath() string {
	return c.resolve(c.ManifestDir)
}

// IntentsPath returns the user intents file, resolved against BaseDir.
func (c RunnerConfig) IntentsPath() string {
	return c.resolve(c.IntentsFile)
}

// SystemPath returns the system status file, resolved against BaseDir.
func (c RunnerConfig) SystemPath() string {
	return c.resolve(c.SystemFile)
}

func (c RunnerConfig) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.baseDir, p)
}
