// Package maps implements the nested-mapping algebra used by configuration
// handling: flattening nested maps to dotted paths, re-nesting dotted paths,
// and deep merging of override trees.
package maps

import (
	"sort"
	"strings"
)

// Flatten converts a nested map into a flat dotted-path map.
// {"alpha": {"a": 1}} becomes {"alpha.a": 1}. Values that are not maps are
// kept as-is, so list leaves survive flattening.
func Flatten(m map[string]any) map[string]any {
	flat := make(map[string]any)
	flattenInto(flat, "", m)
	return flat
}

func flattenInto(flat map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			flattenInto(flat, key, sub)
			continue
		}
		flat[key] = v
	}
}

// SortedPaths returns the keys of a flat map in lexicographic order.
// Go maps have no insertion order, so this is the deterministic fallback
// ordering for programmatically constructed maps.
func SortedPaths(flat map[string]any) []string {
	paths := make([]string, 0, len(flat))
	for k := range flat {
		paths = append(paths, k)
	}
	sort.Strings(paths)
	return paths
}

// Nest converts a flat dotted-path map back into a nested map.
// {"alpha.a": 1, "beta": 5} becomes {"alpha": {"a": 1}, "beta": 5}.
func Nest(flat map[string]any) map[string]any {
	nested := make(map[string]any)
	for k, v := range flat {
		SetPath(nested, k, v)
	}
	return nested
}

// SetPath sets a dotted-path key in a nested map, creating intermediate
// maps as needed. An existing non-map value on the path is replaced.
func SetPath(m map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	cur := m
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// GetPath looks up a dotted-path key in a nested map.
func GetPath(m map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	cur := any(m)
	for _, part := range parts {
		sub, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = sub[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Merge deep-merges overlay onto base and returns a new map; neither input
// is modified. Where both sides hold a map at the same key, the merge
// recurses; otherwise the overlay value replaces the base value wholesale.
func Merge(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = Copy(v)
	}
	for k, v := range overlay {
		bv, ok := out[k].(map[string]any)
		ov, ook := v.(map[string]any)
		if ok && ook {
			out[k] = Merge(bv, ov)
			continue
		}
		out[k] = Copy(v)
	}
	return out
}

// Copy returns a deep copy of a nested value (maps and slices are copied,
// scalars are returned as-is).
func Copy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		cp := make(map[string]any, len(t))
		for k, e := range t {
			cp[k] = Copy(e)
		}
		return cp
	case []any:
		cp := make([]any, len(t))
		for i, e := range t {
			cp[i] = Copy(e)
		}
		return cp
	default:
		return v
	}
}
