// Package config holds the global cordage configuration: where experiment
// output lives, how identifiers and output directories are named, and
// whether metadata is mirrored to a central store.
package config

import (
	"os"
	"path/filepath"

	"github.com/plonerma/cordage/bind"
	"github.com/plonerma/cordage/codec"
	"github.com/plonerma/cordage/internal/errors"
	"github.com/plonerma/cordage/internal/tmpl"
)

// Well-known keys in configuration files.
const (
	// SeriesSpecKey marks the series specification inside a config file.
	SeriesSpecKey = "__series__"

	// SeriesSkipKey optionally carries the number of leading trials to
	// skip inside a config file.
	SeriesSkipKey = "__series-skip__"

	// SeriesCommentKey optionally carries a comment inside a config file.
	SeriesCommentKey = "__series-comment__"
)

// Config lookup locations, in precedence order.
const (
	ProjectConfigPath = "cordage.json"
	userConfigPath    = ".config/cordage.json"
)

// CentralMetadata configures the optional central metadata mirror.
type CentralMetadata struct {
	Use  bool   `json:"use"`
	Path string `json:"path"`
}

// FileTree bounds the file-tree snapshot written to the central mirror.
type FileTree struct {
	MaxLevel int `json:"max_level"`
	MaxFiles int `json:"max_files"`
}

// GlobalConfig holds the configuration for cordage itself (as opposed to
// the configuration of the experiment under study).
type GlobalConfig struct {
	BaseOutputDir string `json:"base_output_dir"`

	ExperimentIDFormat string `json:"experiment_id_format"`
	OutputDirFormat    string `json:"output_dir_format"`

	// StrictMode rejects unrecognized keys when binding configurations.
	StrictMode bool `json:"strict_mode"`

	FileTree        FileTree        `json:"file_tree"`
	CentralMetadata CentralMetadata `json:"central_metadata"`
}

// Default returns the default global configuration.
func Default() *GlobalConfig {
	home, _ := os.UserHomeDir()
	return &GlobalConfig{
		BaseOutputDir:      "results",
		ExperimentIDFormat: "{start_time:%Y-%m-%d_%H-%M-%S}",
		OutputDirFormat:    "{start_time:%Y-%m}/{experiment_id}",
		StrictMode:         true,
		FileTree:           FileTree{MaxLevel: 3, MaxFiles: 1000},
		CentralMetadata:    CentralMetadata{Use: false, Path: filepath.Join(home, ".cordage")},
	}
}

// Validate checks the format templates against a dummy context so that
// malformed templates fail at construction time rather than mid-run.
func (g *GlobalConfig) Validate() error {
	if err := tmpl.Validate(g.ExperimentIDFormat, "start_time", "function"); err != nil {
		return err
	}
	return tmpl.Validate(g.OutputDirFormat, "start_time", "function", "experiment_id")
}

// FromMap builds a GlobalConfig from a nested or flat mapping, applying
// defaults for absent fields, and validates it.
func FromMap(data map[string]any) (*GlobalConfig, error) {
	g := Default()
	if err := bind.Bind(g, data, true); err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// FromFile reads a GlobalConfig from a config file and validates it.
func FromFile(path string) (*GlobalConfig, error) {
	data, err := codec.Read(path)
	if err != nil {
		return nil, err
	}
	return FromMap(data)
}

// Load resolves the global configuration: an explicit path wins, then a
// project-specific ./cordage.json, then ~/.config/cordage.json, then the
// defaults.
func Load(explicitPath string) (*GlobalConfig, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return nil, errors.WrapWithDetails(errors.EUsage,
				"given cordage configuration path does not exist", err,
				map[string]string{"path": explicitPath})
		}
		return FromFile(explicitPath)
	}

	if _, err := os.Stat(ProjectConfigPath); err == nil {
		return FromFile(ProjectConfigPath)
	}

	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, userConfigPath)
		if _, err := os.Stat(userPath); err == nil {
			return FromFile(userPath)
		}
	}

	g := Default()
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
