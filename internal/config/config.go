// Package config loads dicomdir configuration with layered priority:
// defaults, then .dicomdir/config.yml, then DICOMDIR_* environment
// variables.
package config

import (
	"fmt"

	"github.com/opencmr/dicomdir/internal/catalog"
	"github.com/opencmr/dicomdir/internal/scanner"
)

// Config is the complete dicomdir configuration.
type Config struct {
	Scan   ScanConfig   `yaml:"scan" mapstructure:"scan"`
	Export ExportConfig `yaml:"export" mapstructure:"export"`
}

// ScanConfig parameterizes folder scans.
type ScanConfig struct {
	Mode       string   `yaml:"mode" mapstructure:"mode"`             // "multi" or "single"
	Duplicates string   `yaml:"duplicates" mapstructure:"duplicates"` // "fail", "skip", or empty for the mode default
	Label      string   `yaml:"label" mapstructure:"label"`           // catalog label; empty uses the folder name
	Ignore     []string `yaml:"ignore" mapstructure:"ignore"`         // glob patterns relative to the scan root
	Workers    int      `yaml:"workers" mapstructure:"workers"`       // parallel extraction; 0 means GOMAXPROCS
}

// ExportConfig parameterizes the SQLite export.
type ExportConfig struct {
	Database string `yaml:"database" mapstructure:"database"`
}

// Default returns a configuration with sensible defaults: lenient
// multi-study scanning that skips standard DICOMDIR index files and
// previously written snapshots.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Mode: string(catalog.ModeMulti),
			Ignore: []string{
				"DICOMDIR",
				"**/DICOMDIR",
				"**/*.json",
			},
		},
		Export: ExportConfig{
			Database: "dicomdir.db",
		},
	}
}

// Validate rejects unknown mode and duplicate-policy values.
func (c *Config) Validate() error {
	switch catalog.Mode(c.Scan.Mode) {
	case catalog.ModeMulti, catalog.ModeSingle:
	default:
		return fmt.Errorf("invalid scan.mode %q (want %q or %q)", c.Scan.Mode, catalog.ModeMulti, catalog.ModeSingle)
	}
	switch scanner.DuplicatePolicy(c.Scan.Duplicates) {
	case scanner.DuplicateFail, scanner.DuplicateSkip, "":
	default:
		return fmt.Errorf("invalid scan.duplicates %q (want %q or %q)", c.Scan.Duplicates, scanner.DuplicateFail, scanner.DuplicateSkip)
	}
	if c.Scan.Workers < 0 {
		return fmt.Errorf("invalid scan.workers %d", c.Scan.Workers)
	}
	return nil
}

// ToScanOptions converts the configuration into scanner options. The
// reporter is left nil for the caller to inject.
func (c *Config) ToScanOptions() scanner.Options {
	return scanner.Options{
		Mode:       catalog.Mode(c.Scan.Mode),
		Duplicates: scanner.DuplicatePolicy(c.Scan.Duplicates),
		Label:      c.Scan.Label,
		Ignore:     c.Scan.Ignore,
		Workers:    c.Scan.Workers,
	}
}
