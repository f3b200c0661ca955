package experiment

import (
	"reflect"
	"testing"

	"github.com/plonerma/cordage/internal/errors"
)

func TestSpecFromValueNilIsSingular(t *testing.T) {
	spec, err := SpecFromValue(nil, nil)
	if err != nil {
		t.Fatalf("SpecFromValue(nil) error = %v", err)
	}
	if !spec.IsSingular() {
		t.Error("nil spec should be singular")
	}
	if spec.Len() != 1 {
		t.Errorf("Len() = %d, want 1", spec.Len())
	}
	if got := spec.Overlays(); len(got) != 1 || len(got[0]) != 0 {
		t.Errorf("Overlays() = %v, want one empty overlay", got)
	}
}

func TestSpecFromValueProductOrder(t *testing.T) {
	value := map[string]any{
		"a": []any{1, 2, 3},
		"b": []any{"x", "y"},
	}

	spec, err := SpecFromValue(value, []string{"a", "b"})
	if err != nil {
		t.Fatalf("SpecFromValue() error = %v", err)
	}
	if spec.Len() != 6 {
		t.Fatalf("Len() = %d, want 6", spec.Len())
	}

	want := []map[string]any{
		{"a": 1, "b": "x"},
		{"a": 1, "b": "y"},
		{"a": 2, "b": "x"},
		{"a": 2, "b": "y"},
		{"a": 3, "b": "x"},
		{"a": 3, "b": "y"},
	}
	got := spec.Overlays()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Overlays() = %v, want %v", got, want)
	}
}

func TestSpecFromValueNestedAxes(t *testing.T) {
	value := map[string]any{
		"model": map[string]any{"lr": []any{0.1, 0.01}},
		"seed":  []any{1, 2},
	}

	spec, err := SpecFromValue(value, []string{"model.lr", "seed"})
	if err != nil {
		t.Fatalf("SpecFromValue() error = %v", err)
	}

	overlays := spec.Overlays()
	if len(overlays) != 4 {
		t.Fatalf("len(Overlays()) = %d, want 4", len(overlays))
	}
	first := overlays[0]
	model, ok := first["model"].(map[string]any)
	if !ok || model["lr"] != 0.1 || first["seed"] != 1 {
		t.Errorf("first overlay = %v, want nested {model: {lr: 0.1}, seed: 1}", first)
	}

	wantFields := []string{"model.lr", "seed"}
	if got := spec.ChangingFields(); !reflect.DeepEqual(got, wantFields) {
		t.Errorf("ChangingFields() = %v, want %v", got, wantFields)
	}
}

func TestSpecFromValueList(t *testing.T) {
	value := []any{
		map[string]any{"a": 1},
		map[string]any{"a": 2, "b": 3},
	}

	spec, err := SpecFromValue(value, nil)
	if err != nil {
		t.Fatalf("SpecFromValue() error = %v", err)
	}
	if spec.Len() != 2 {
		t.Errorf("Len() = %d, want 2", spec.Len())
	}

	want := []map[string]any{{"a": 1}, {"a": 2, "b": 3}}
	if got := spec.Overlays(); !reflect.DeepEqual(got, want) {
		t.Errorf("Overlays() = %v, want %v", got, want)
	}
}

func TestListSpecNormalizesDottedOverlays(t *testing.T) {
	dotted, err := ListSpec([]map[string]any{{"alpha.a": 99}})
	if err != nil {
		t.Fatal(err)
	}
	nested, err := ListSpec([]map[string]any{{"alpha": map[string]any{"a": 99}}})
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(dotted.Overlays(), nested.Overlays()) {
		t.Errorf("dotted overlays = %v, nested overlays = %v, want identical",
			dotted.Overlays(), nested.Overlays())
	}
}

func TestSpecFromValueInvalid(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"scalar", 42},
		{"list of scalars", []any{1, 2}},
		{"mapping leaf not a list", map[string]any{"a": 1}},
		{"nested leaf not a list", map[string]any{"m": map[string]any{"a": "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SpecFromValue(tt.value, nil)
			if errors.GetCode(err) != errors.EInvalidSeriesSpec {
				t.Errorf("SpecFromValue(%v) error = %v, want %s", tt.value, err, errors.EInvalidSeriesSpec)
			}
		})
	}
}

func TestProductSpecEmptyAxis(t *testing.T) {
	_, err := ProductSpec([]Axis{{Path: "a", Values: nil}})
	if errors.GetCode(err) != errors.EInvalidSeriesSpec {
		t.Errorf("ProductSpec() error = %v, want %s", err, errors.EInvalidSeriesSpec)
	}
}

func TestChangingFieldsListForm(t *testing.T) {
	spec, err := ListSpec([]map[string]any{
		{"a": 1, "b": 2},
		{"a": 3},
	})
	if err != nil {
		t.Fatal(err)
	}

	fields := spec.ChangingFields()
	seen := make(map[string]bool)
	for _, f := range fields {
		seen[f] = true
	}
	if !seen["a"] || !seen["b"] || len(fields) != 2 {
		t.Errorf("ChangingFields() = %v, want a and b", fields)
	}
}
