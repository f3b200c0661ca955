package experiment

import (
	"fmt"

	"github.com/plonerma/cordage/internal/errors"
	"github.com/plonerma/cordage/internal/maps"
)

// Axis is one varied field of a product-form series specification: a
// dotted field path and its non-empty list of candidate values.
type Axis struct {
	Path   string
	Values []any
}

// SeriesSpec describes how a base configuration expands into trials.
// It is one of three shapes: singular (no spec, exactly one trial), an
// explicit ordered list of override mappings, or a cross product of axes.
type SeriesSpec struct {
	list []map[string]any
	axes []Axis
}

// SingularSpec returns the specification of a single-trial experiment.
func SingularSpec() *SeriesSpec {
	return &SeriesSpec{}
}

// ListSpec builds a specification from an explicit ordered list of
// override mappings. Overlays may use dotted keys or nested-mapping form;
// both denote the same field path, so overlays are normalized to nested
// form up front and merge identically either way.
func ListSpec(overlays []map[string]any) (*SeriesSpec, error) {
	if overlays == nil {
		return nil, errors.New(errors.EInvalidSeriesSpec, "list series specification is nil")
	}
	normalized := make([]map[string]any, len(overlays))
	for i, overlay := range overlays {
		normalized[i] = maps.Nest(maps.Flatten(overlay))
	}
	return &SeriesSpec{list: normalized}, nil
}

// ProductSpec builds a specification whose trials are the cartesian
// product of the given axes, in axis order with the right-most axis
// varying fastest. Every axis must hold at least one value.
func ProductSpec(axes []Axis) (*SeriesSpec, error) {
	if len(axes) == 0 {
		return nil, errors.New(errors.EInvalidSeriesSpec, "product series specification has no axes")
	}
	for _, ax := range axes {
		if len(ax.Values) == 0 {
			return nil, errors.NewWithDetails(errors.EInvalidSeriesSpec,
				fmt.Sprintf("series field %q has an empty value list", ax.Path),
				map[string]string{"field": ax.Path})
		}
	}
	return &SeriesSpec{axes: axes}, nil
}

// SpecFromValue validates and converts a raw series specification as read
// from a config file. keyOrder supplies the document order of dotted leaf
// paths for the mapping form (Go maps do not preserve it). A nil value
// yields the singular spec. Validation is fully eager and side-effect
// free: it fails with E_INVALID_SERIES_SPEC before any identifier or
// directory is allocated.
func SpecFromValue(value any, keyOrder []string) (*SeriesSpec, error) {
	switch v := value.(type) {
	case nil:
		return SingularSpec(), nil

	case []any:
		overlays := make([]map[string]any, len(v))
		for i, e := range v {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, errors.Newf(errors.EInvalidSeriesSpec,
					"series list element %d is %T, expected a mapping", i, e)
			}
			overlays[i] = m
		}
		return ListSpec(overlays)

	case map[string]any:
		flat := maps.Flatten(v)
		order := keyOrder
		if order == nil {
			order = maps.SortedPaths(flat)
		}

		axes := make([]Axis, 0, len(flat))
		for _, path := range order {
			leaf, ok := flat[path]
			if !ok {
				continue
			}
			values, ok := leaf.([]any)
			if !ok {
				return nil, errors.NewWithDetails(errors.EInvalidSeriesSpec,
					fmt.Sprintf("series field %q holds %T, every leaf must be a list of values", path, leaf),
					map[string]string{"field": path})
			}
			axes = append(axes, Axis{Path: path, Values: values})
		}
		if len(axes) != len(flat) {
			return nil, errors.New(errors.EInvalidSeriesSpec,
				"series key order does not cover every field")
		}
		return ProductSpec(axes)

	default:
		return nil, errors.Newf(errors.EInvalidSeriesSpec,
			"series specification is %T, expected a list or mapping", value)
	}
}

// IsSingular reports whether the spec degenerates to exactly one trial
// using the base configuration unmodified.
func (s *SeriesSpec) IsSingular() bool {
	return s.list == nil && s.axes == nil
}

// Len is the number of trials the spec expands to.
func (s *SeriesSpec) Len() int {
	switch {
	case s.list != nil:
		return len(s.list)
	case s.axes != nil:
		n := 1
		for _, ax := range s.axes {
			n *= len(ax.Values)
		}
		return n
	default:
		return 1
	}
}

// Overlays expands the spec into the ordered list of per-trial override
// mappings (not yet merged onto the base configuration).
func (s *SeriesSpec) Overlays() []map[string]any {
	switch {
	case s.list != nil:
		return s.list

	case s.axes != nil:
		overlays := make([]map[string]any, 0, s.Len())
		indices := make([]int, len(s.axes))
		for {
			overlay := make(map[string]any, len(s.axes))
			for i, ax := range s.axes {
				maps.SetPath(overlay, ax.Path, ax.Values[indices[i]])
			}
			overlays = append(overlays, overlay)

			// advance like a nested loop, right-most fastest
			pos := len(indices) - 1
			for pos >= 0 {
				indices[pos]++
				if indices[pos] < len(s.axes[pos].Values) {
					break
				}
				indices[pos] = 0
				pos--
			}
			if pos < 0 {
				return overlays
			}
		}

	default:
		return []map[string]any{{}}
	}
}

// ChangingFields returns the dotted paths that vary across the series.
func (s *SeriesSpec) ChangingFields() []string {
	seen := make(map[string]bool)
	var fields []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			fields = append(fields, path)
		}
	}

	switch {
	case s.axes != nil:
		for _, ax := range s.axes {
			add(ax.Path)
		}
	case s.list != nil:
		for _, overlay := range s.list {
			for path := range maps.Flatten(overlay) {
				add(path)
			}
		}
	}
	return fields
}

// serialize converts the spec into its config-file representation: a list
// of overlays, or a nested mapping of value lists.
func (s *SeriesSpec) serialize() any {
	switch {
	case s.list != nil:
		out := make([]any, len(s.list))
		for i, m := range s.list {
			out[i] = m
		}
		return out
	case s.axes != nil:
		flat := make(map[string]any, len(s.axes))
		for _, ax := range s.axes {
			flat[ax.Path] = ax.Values
		}
		return maps.Nest(flat)
	default:
		return nil
	}
}

// axisOrder returns the dotted paths of a product spec in axis order
// (empty for other shapes); persisted so a reloaded series expands in the
// same order.
func (s *SeriesSpec) axisOrder() []string {
	if s.axes == nil {
		return nil
	}
	order := make([]string, len(s.axes))
	for i, ax := range s.axes {
		order[i] = ax.Path
	}
	return order
}
