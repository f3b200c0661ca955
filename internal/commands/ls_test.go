package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/plonerma/cordage/config"
	"github.com/plonerma/cordage/experiment"
)

func testGlobal(t *testing.T) *config.GlobalConfig {
	t.Helper()
	g := config.Default()
	g.BaseOutputDir = t.TempDir()
	g.OutputDirFormat = "{experiment_id}"
	g.ExperimentIDFormat = "{function}"
	return g
}

func completeTrial(t *testing.T, g *config.GlobalConfig, function, comment string) *experiment.Trial {
	t.Helper()
	trial, err := experiment.NewTrial(experiment.TrialParams{
		Function: function,
		Config:   map[string]any{"lr": 0.1},
		Global:   g,
		Comment:  comment,
	})
	if err != nil {
		t.Fatal(err)
	}
	err = trial.Run(context.Background(), func(ctx context.Context, tr *experiment.Trial) error {
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return trial
}

func TestLSHumanOutput(t *testing.T) {
	g := testGlobal(t)
	completeTrial(t, g, "train", "see #baseline")
	completeTrial(t, g, "eval", "")

	var out bytes.Buffer
	if err := LS(g, LSOpts{}, &out); err != nil {
		t.Fatalf("LS() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{"ID", "FUNCTION", "STATUS", "train", "eval", "complete", "baseline"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestLSEmptyTree(t *testing.T) {
	g := testGlobal(t)

	var out bytes.Buffer
	if err := LS(g, LSOpts{}, &out); err != nil {
		t.Fatalf("LS() error = %v", err)
	}
	if !strings.Contains(out.String(), "no experiments found") {
		t.Errorf("empty listing output = %q", out.String())
	}
}

func TestLSStatusAndTagFilters(t *testing.T) {
	g := testGlobal(t)
	completeTrial(t, g, "train", "see #baseline")

	failing, err := experiment.NewTrial(experiment.TrialParams{Function: "eval", Global: g})
	if err != nil {
		t.Fatal(err)
	}
	if err := failing.Start(); err != nil {
		t.Fatal(err)
	}
	if err := failing.End(experiment.StatusFailed); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := LS(g, LSOpts{Statuses: []string{"failed"}, JSON: true}, &out); err != nil {
		t.Fatal(err)
	}
	var entries []map[string]any
	if err := json.Unmarshal(out.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0]["function"] != "eval" {
		t.Errorf("status filter returned %v", entries)
	}

	out.Reset()
	if err := LS(g, LSOpts{Tags: []string{"baseline"}, JSON: true}, &out); err != nil {
		t.Fatal(err)
	}
	entries = nil
	if err := json.Unmarshal(out.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0]["function"] != "train" {
		t.Errorf("tag filter returned %v", entries)
	}
}

func TestLSJSONShape(t *testing.T) {
	g := testGlobal(t)
	trial := completeTrial(t, g, "train", "")

	var out bytes.Buffer
	if err := LS(g, LSOpts{JSON: true}, &out); err != nil {
		t.Fatal(err)
	}

	var entries []lsEntry
	if err := json.Unmarshal(out.Bytes(), &entries); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.ExperimentID != trial.ID() || e.Status != "complete" || e.IsSeries {
		t.Errorf("entry = %+v", e)
	}
	if e.OutputDir != trial.OutputDir() {
		t.Errorf("output_dir = %q, want %q", e.OutputDir, trial.OutputDir())
	}
	if e.Tags == nil {
		t.Error("tags must serialize as an empty list, not null")
	}
}

func TestLSExplicitRoot(t *testing.T) {
	g := testGlobal(t)
	other := testGlobal(t)
	completeTrial(t, other, "train", "")

	var out bytes.Buffer
	if err := LS(g, LSOpts{Root: other.BaseOutputDir, JSON: true}, &out); err != nil {
		t.Fatal(err)
	}
	var entries []lsEntry
	if err := json.Unmarshal(out.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("len(entries) = %d, want the experiment under the explicit root", len(entries))
	}
}
