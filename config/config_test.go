package config

import (
	"path/filepath"
	"testing"

	"github.com/plonerma/cordage/codec"
	"github.com/plonerma/cordage/internal/errors"
)

func TestDefaultValidates(t *testing.T) {
	g := Default()
	if err := g.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v, want nil", err)
	}
	if g.BaseOutputDir != "results" {
		t.Errorf("BaseOutputDir = %q, want %q", g.BaseOutputDir, "results")
	}
}

func TestFromMapOverridesDefaults(t *testing.T) {
	g, err := FromMap(map[string]any{
		"base_output_dir":   "out",
		"output_dir_format": "{experiment_id}",
	})
	if err != nil {
		t.Fatalf("FromMap() error = %v", err)
	}
	if g.BaseOutputDir != "out" {
		t.Errorf("BaseOutputDir = %q, want %q", g.BaseOutputDir, "out")
	}
	// untouched fields keep their defaults
	if g.FileTree.MaxFiles != 1000 {
		t.Errorf("FileTree.MaxFiles = %d, want 1000", g.FileTree.MaxFiles)
	}
}

func TestFromMapRejectsBadTemplateEagerly(t *testing.T) {
	_, err := FromMap(map[string]any{"experiment_id_format": "{no_such_field}"})
	if errors.GetCode(err) != errors.ETemplate {
		t.Errorf("GetCode() = %q, want E_TEMPLATE", errors.GetCode(err))
	}
}

func TestFromMapRejectsUnknownKey(t *testing.T) {
	_, err := FromMap(map[string]any{"base_output_dirr": "typo"})
	if errors.GetCode(err) != errors.EBinding {
		t.Errorf("GetCode() = %q, want E_BINDING", errors.GetCode(err))
	}
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cordage.yaml")
	err := codec.Write(path, map[string]any{
		"base_output_dir":      filepath.Join(dir, "results"),
		"experiment_id_format": "experiment",
	})
	if err != nil {
		t.Fatal(err)
	}

	g, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile() error = %v", err)
	}
	if g.ExperimentIDFormat != "experiment" {
		t.Errorf("ExperimentIDFormat = %q, want %q", g.ExperimentIDFormat, "experiment")
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if errors.GetCode(err) != errors.EUsage {
		t.Errorf("GetCode() = %q, want E_USAGE", errors.GetCode(err))
	}
}
