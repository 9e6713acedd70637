package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir string
}

// NewLoader creates a configuration loader for the given root directory.
func NewLoader(rootDir string) Loader {
	return &loader{rootDir: rootDir}
}

// LoadConfigFromDir loads configuration for a scan root. A missing config
// file is fine; defaults plus environment variables apply.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}

func (l *loader) Load() (*Config, error) {
	v := viper.New()

	configDir := filepath.Join(l.rootDir, ".dicomdir")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("DICOMDIR")
	v.AutomaticEnv()
	// DICOMDIR_SCAN_MODE overrides scan.mode, and so on.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("scan.mode")
	v.BindEnv("scan.duplicates")
	v.BindEnv("scan.label")
	v.BindEnv("scan.workers")
	v.BindEnv("export.database")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("scan.mode", d.Scan.Mode)
	v.SetDefault("scan.duplicates", d.Scan.Duplicates)
	v.SetDefault("scan.label", d.Scan.Label)
	v.SetDefault("scan.ignore", d.Scan.Ignore)
	v.SetDefault("scan.workers", d.Scan.Workers)
	v.SetDefault("export.database", d.Export.Database)
}
