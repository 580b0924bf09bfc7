// Package config_manager loads, versions and persists the service
// configuration file.
package config_manager

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// CurrentConfigVersion is the latest version of the config file format.
const CurrentConfigVersion = "v0.1.0"

const (
	ConfigPathEnv     = "SIGNAL_ANALYZER_CONFIG_PATH"
	LogLevelEnv       = "SIGNAL_ANALYZER_LOG_LEVEL"
	DefaultConfigPath = "/etc/signal-analyzer/config.json"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported config file format")
	ErrInvalidConfig     = errors.New("invalid config file")
)

type format int

const (
	formatJSON format = iota
	formatYAML
)

func formatFor(filePath string) (format, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".json":
		return formatJSON, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filePath))
	}
}

// ConfigPath returns the config location from the environment, or the default.
func ConfigPath() string {
	if p := os.Getenv(ConfigPathEnv); p != "" {
		return p
	}
	return DefaultConfigPath
}

// ApplyEnvOverrides applies environment overrides on top of a loaded config.
func ApplyEnvOverrides(config *Config) {
	if level := os.Getenv(LogLevelEnv); level != "" {
		config.LogLevel = level
	}
}

// LoadConfig loads and parses the config file. Fields absent from the file
// keep their defaults. A missing or empty file yields a nil config.
func LoadConfig(filePath string) (*Config, error) {
	f, err := formatFor(filePath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	config := NewDefaultConfig()
	config.ConfigVersion = ""
	switch f {
	case formatYAML:
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrInvalidConfig, filePath, err)
	}
	return config, nil
}

// SaveConfig writes the config in the format implied by the file extension.
func SaveConfig(filePath string, config *Config) error {
	f, err := formatFor(filePath)
	if err != nil {
		return err
	}
	var data []byte
	switch f {
	case formatYAML:
		data, err = yaml.Marshal(config)
	default:
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}

// EnsureDefaultConfig loads the config file, creating it with defaults when
// missing. A file that cannot be parsed, or whose config_version is older
// than CurrentConfigVersion or not a version at all, is backed up and
// replaced by defaults.
func EnsureDefaultConfig(filePath string) (*Config, error) {
	defaultConfig := NewDefaultConfig()
	config, err := LoadConfig(filePath)
	if err != nil && !errors.Is(err, ErrInvalidConfig) {
		return nil, err
	}
	if err == nil && config == nil {
		logger.WithField("path", filePath).Info("Config file not found, writing defaults")
		return defaultConfig, SaveConfig(filePath, defaultConfig)
	}

	if err == nil {
		switch compareVersion(config.ConfigVersion) {
		case 0:
			return config, nil
		case 1:
			logger.WithFields(logrus.Fields{
				"found":   config.ConfigVersion,
				"current": CurrentConfigVersion,
			}).Warn("Config file is newer than this build, using it as-is")
			return config, nil
		}
	}

	found := "invalid"
	if config != nil && config.ConfigVersion != "" {
		found = config.ConfigVersion
	}
	log := logger.WithFields(logrus.Fields{
		"path":    filePath,
		"found":   found,
		"current": CurrentConfigVersion,
	})
	if err != nil {
		log = log.WithError(err)
	}
	log.Warn("Config file is outdated or invalid, replacing with defaults")

	if backupErr := backupConfig(filePath, found); backupErr != nil {
		logger.WithError(backupErr).Error("Failed to back up config file")
		return nil, backupErr
	}
	return defaultConfig, SaveConfig(filePath, defaultConfig)
}

// compareVersion returns -1, 0 or 1 comparing v with CurrentConfigVersion.
// An unparseable version compares as older.
func compareVersion(v string) int {
	found, err := version.NewVersion(v)
	if err != nil {
		return -1
	}
	current := version.Must(version.NewVersion(CurrentConfigVersion))
	return found.Compare(current)
}

// backupConfig renames the file to <name>.<version>.bak next to it.
func backupConfig(filePath, found string) error {
	backupPath := fmt.Sprintf("%s.%s.bak", filePath, found)
	if err := os.Rename(filePath, backupPath); err != nil {
		return fmt.Errorf("failed to back up %s: %w", filePath, err)
	}
	logger.WithField("backup", backupPath).Info("Backed up old config file")
	return nil
}
