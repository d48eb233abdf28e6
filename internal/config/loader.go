package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Loader reads the platform configuration from the Arion settings file.
type Loader struct {
	configPath string
}

// NewLoader creates a loader. An empty path falls back to
// ~/.arion/plugins.json.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// Load reads the configuration file. A missing file is not an error and
// yields the defaults; read or unmarshal failures are returned so the caller
// can degrade to defaults with a diagnostic.
func (l *Loader) Load() (*PlatformConfig, error) {
	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".arion", "plugins.json")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultPlatformConfig(), nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("ARION")
	v.AutomaticEnv()

	v.SetDefault("enabled", true)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultPlatformConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}
