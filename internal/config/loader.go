package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"pluginrunner/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/pluginrunner"
	configFileName = "config.yaml"
)

// osUserHomeDir is replaced in tests.
var osUserHomeDir = os.UserHomeDir

// GetDefaultConfigPath returns ~/.config/pluginrunner.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig loads config.yaml from the given directory. A missing file
// yields the defaults. Relative paths in the result resolve against
// configPath. The loaded configuration is validated.
func LoadConfig(configPath string) (RunnerConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig(configPath)

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("Config", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		return RunnerConfig{}, NewConfigurationError(configFilePath, configFileName, "io", err.Error())
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		cfgErr := NewConfigurationError(configFilePath, configFileName, "parse", err.Error())
		cfgErr.Suggestions = []string{"Check the YAML syntax of " + configFileName}
		return RunnerConfig{}, cfgErr
	}
	config.baseDir = configPath

	if errs := config.Validate(); errs.HasErrors() {
		return RunnerConfig{}, fmt.Errorf("invalid configuration in %s: %w", configFilePath, errs)
	}

	logging.Info("Config", "Loaded configuration from %s", configFilePath)
	return config, nil
}
