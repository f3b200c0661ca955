package cordage

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/plonerma/cordage/config"
	"github.com/plonerma/cordage/experiment"
	"github.com/plonerma/cordage/internal/errors"
)

type trainConfig struct {
	A int    `json:"a"`
	B string `json:"b"`
}

func testGlobal(t *testing.T) *config.GlobalConfig {
	t.Helper()
	g := config.Default()
	g.BaseOutputDir = t.TempDir()
	g.OutputDirFormat = "{experiment_id}"
	return g
}

func TestRunExpandsSeries(t *testing.T) {
	g := testGlobal(t)

	spec, err := experiment.SpecFromValue(map[string]any{"a": []any{1, 2}}, []string{"a"})
	if err != nil {
		t.Fatal(err)
	}

	var seen []trainConfig
	exp, err := Run(context.Background(), func(ctx context.Context, trial *experiment.Trial, cfg trainConfig) error {
		seen = append(seen, cfg)
		return nil
	}, Options{
		FunctionName: "train",
		BaseConfig:   map[string]any{"a": 0, "b": "x"},
		Spec:         spec,
		Global:       g,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	s, ok := exp.(*experiment.Series)
	if !ok {
		t.Fatalf("Run() returned %T, want *experiment.Series", exp)
	}
	if s.Status() != experiment.StatusComplete {
		t.Errorf("series status = %s, want complete", s.Status())
	}

	wantCfgs := []trainConfig{{A: 1, B: "x"}, {A: 2, B: "x"}}
	if len(seen) != 2 || seen[0] != wantCfgs[0] || seen[1] != wantCfgs[1] {
		t.Errorf("executed configs = %v, want %v", seen, wantCfgs)
	}

	for i, trial := range s.All() {
		if trial.Status() != experiment.StatusComplete {
			t.Errorf("trial %d status = %s", i+1, trial.Status())
		}
		if want := fmt.Sprintf("%s/%d", s.ID(), i+1); trial.ID() != want {
			t.Errorf("trial %d id = %q, want %q", i+1, trial.ID(), want)
		}
		if _, err := os.Stat(filepath.Join(trial.OutputDir(), experiment.MetadataFileName)); err != nil {
			t.Errorf("trial %d metadata missing: %v", i+1, err)
		}
	}
	if _, ok := s.Metadata().Info("invocation_id"); !ok {
		t.Error("series invocation_id not recorded")
	}
}

func TestRunSingularReturnsTrial(t *testing.T) {
	g := testGlobal(t)

	exp, err := Run(context.Background(), func(ctx context.Context, trial *experiment.Trial, cfg trainConfig) error {
		trial.SetResult(cfg.A * 2)
		return nil
	}, Options{
		FunctionName: "train",
		BaseConfig:   map[string]any{"a": 21, "b": "x"},
		Global:       g,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	trial, ok := exp.(*experiment.Trial)
	if !ok {
		t.Fatalf("Run() returned %T, want *experiment.Trial", exp)
	}
	if trial.Status() != experiment.StatusComplete {
		t.Errorf("status = %s, want complete", trial.Status())
	}
	if trial.Metadata().Result != 42 {
		t.Errorf("result = %v, want 42", trial.Metadata().Result)
	}

	// no series directory exists, only the trial's own
	entries, err := os.ReadDir(g.BaseOutputDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("base output dir has %d entries, want the trial only", len(entries))
	}
}

func TestRunFromConfigFile(t *testing.T) {
	g := testGlobal(t)

	path := filepath.Join(t.TempDir(), "experiment.json")
	doc := `{
  "b": "x",
  "__series-comment__": "sweep #lr",
  "__series__": {"a": [2, 1]}
}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	var seen []int
	exp, err := Run(context.Background(), func(ctx context.Context, trial *experiment.Trial, cfg trainConfig) error {
		seen = append(seen, cfg.A)
		return nil
	}, Options{
		FunctionName: "train",
		ConfigPath:   path,
		Global:       g,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// document order of the series values is preserved
	if len(seen) != 2 || seen[0] != 2 || seen[1] != 1 {
		t.Errorf("executed order = %v, want [2 1]", seen)
	}

	s := exp.(*experiment.Series)
	if s.Comment() != "sweep #lr" {
		t.Errorf("series comment = %q", s.Comment())
	}
	if !s.HasTag("lr") {
		t.Error("comment-derived tag missing")
	}
}

func TestRunConfigFileSkip(t *testing.T) {
	g := testGlobal(t)

	path := filepath.Join(t.TempDir(), "experiment.json")
	doc := `{"b": "x", "__series__": {"a": [1, 2, 3]}, "__series-skip__": 2}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	var seen []int
	exp, err := Run(context.Background(), func(ctx context.Context, trial *experiment.Trial, cfg trainConfig) error {
		seen = append(seen, cfg.A)
		return nil
	}, Options{FunctionName: "train", ConfigPath: path, Global: g})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(seen) != 1 || seen[0] != 3 {
		t.Errorf("executed values = %v, want [3]", seen)
	}
	s := exp.(*experiment.Series)
	if s.All()[0].Status() != experiment.StatusSkipped {
		t.Errorf("first trial status = %s, want skipped", s.All()[0].Status())
	}
}

func TestRunOverridesWinOverConfigFile(t *testing.T) {
	g := testGlobal(t)

	path := filepath.Join(t.TempDir(), "experiment.json")
	if err := os.WriteFile(path, []byte(`{"a": 1, "b": "x"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	var got trainConfig
	_, err := Run(context.Background(), func(ctx context.Context, trial *experiment.Trial, cfg trainConfig) error {
		got = cfg
		return nil
	}, Options{
		FunctionName: "train",
		ConfigPath:   path,
		Overrides:    map[string]any{"a": 7},
		Global:       g,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.A != 7 || got.B != "x" {
		t.Errorf("bound config = %+v, want a=7 b=x", got)
	}
}

func TestRunFailureHaltsSeries(t *testing.T) {
	g := testGlobal(t)

	spec, err := experiment.SpecFromValue(map[string]any{"a": []any{1, 2, 3}}, []string{"a"})
	if err != nil {
		t.Fatal(err)
	}

	boom := fmt.Errorf("diverged")
	var executed int
	exp, err := Run(context.Background(), func(ctx context.Context, trial *experiment.Trial, cfg trainConfig) error {
		executed++
		if cfg.A == 2 {
			return boom
		}
		return nil
	}, Options{FunctionName: "train", BaseConfig: map[string]any{"b": "x"}, Spec: spec, Global: g})

	if !stderrors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want the trial failure propagated", err)
	}
	if executed != 2 {
		t.Errorf("executed %d trials, want the failure to halt after 2", executed)
	}

	s := exp.(*experiment.Series)
	if s.Status() != experiment.StatusFailed {
		t.Errorf("series status = %s, want failed", s.Status())
	}
	trials := s.All()
	if trials[1].Status() != experiment.StatusFailed {
		t.Errorf("failing trial status = %s", trials[1].Status())
	}
	if trials[2].Status() != experiment.StatusPending {
		t.Errorf("unreached trial status = %s, want pending", trials[2].Status())
	}
}

func TestRunCancellationAborts(t *testing.T) {
	g := testGlobal(t)

	spec, err := experiment.SpecFromValue(map[string]any{"a": []any{1, 2, 3}}, []string{"a"})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	exp, err := Run(ctx, func(ctx context.Context, trial *experiment.Trial, cfg trainConfig) error {
		if cfg.A == 1 {
			cancel()
		}
		return nil
	}, Options{FunctionName: "train", BaseConfig: map[string]any{"b": "x"}, Spec: spec, Global: g})

	if !stderrors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	s := exp.(*experiment.Series)
	if s.Status() != experiment.StatusAborted {
		t.Errorf("series status = %s, want aborted", s.Status())
	}
}

func TestRunBindingErrorBeforeAnyDirectory(t *testing.T) {
	g := testGlobal(t)

	spec, err := experiment.SpecFromValue(map[string]any{"a": []any{1, 2}}, []string{"a"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = Run(context.Background(), func(ctx context.Context, trial *experiment.Trial, cfg trainConfig) error {
		t.Fatal("user function must not run")
		return nil
	}, Options{
		FunctionName: "train",
		BaseConfig:   map[string]any{"b": "x", "unknown_field": true},
		Spec:         spec,
		Global:       g,
	})
	if errors.GetCode(err) != errors.EBinding {
		t.Fatalf("Run() error = %v, want %s", err, errors.EBinding)
	}

	entries, readErr := os.ReadDir(g.BaseOutputDir)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		t.Errorf("binding failure created %d directories, want none", len(entries))
	}
}

func TestRunRejectsAmbiguousInputs(t *testing.T) {
	g := testGlobal(t)

	path := filepath.Join(t.TempDir(), "experiment.json")
	if err := os.WriteFile(path, []byte(`{"a": 1}`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Run(context.Background(), func(ctx context.Context, trial *experiment.Trial, cfg trainConfig) error {
		return nil
	}, Options{
		FunctionName: "train",
		ConfigPath:   path,
		BaseConfig:   map[string]any{"a": 2},
		Global:       g,
	})
	if errors.GetCode(err) != errors.EUsage {
		t.Errorf("Run() error = %v, want %s", err, errors.EUsage)
	}
}

func TestRunNestedViaParent(t *testing.T) {
	g := testGlobal(t)

	_, err := Run(context.Background(), func(ctx context.Context, outer *experiment.Trial, cfg trainConfig) error {
		inner, err := Run(ctx, func(ctx context.Context, trial *experiment.Trial, cfg trainConfig) error {
			return nil
		}, Options{
			FunctionName: "inner",
			BaseConfig:   map[string]any{"a": 1, "b": "y"},
			Global:       g,
			Parent:       outer,
		})
		if err != nil {
			return err
		}
		parent, _ := inner.Metadata().Info("parent_id")
		if parent != outer.ID() {
			t.Errorf("inner parent_id = %v, want %q", parent, outer.ID())
		}
		return nil
	}, Options{FunctionName: "outer", BaseConfig: map[string]any{"a": 0, "b": "x"}, Global: g})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}
