// Package bind constructs typed configuration values from nested or flat
// mappings and back. It wraps mapstructure for the map-to-struct direction;
// field names follow the struct's json tags.
package bind

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/plonerma/cordage/internal/errors"
	"github.com/plonerma/cordage/internal/maps"
)

// Bind fills target (a pointer to a struct) from a mapping. Dotted keys and
// nested-mapping form are both accepted and denote the same field path.
// Under strict mode, keys that match no target field fail with E_BINDING.
func Bind(target any, data map[string]any, strict bool) error {
	nested := nestDotted(data)

	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      target,
		TagName:     "json",
		Metadata:    &md,
		ErrorUnused: strict,
		DecodeHook:  mapstructure.StringToTimeHookFunc("2006-01-02T15:04:05.999999999Z07:00"),
	})
	if err != nil {
		return errors.Wrap(errors.EInternal, "could not construct config decoder", err)
	}

	if err := dec.Decode(nested); err != nil {
		return errors.WrapWithDetails(errors.EBinding,
			fmt.Sprintf("configuration could not be bound: %s", firstLine(err)),
			err, map[string]string{"field": offendingField(err, md)})
	}
	return nil
}

// Unbind converts a configuration value into a nested mapping. The result
// is JSON-shaped: field names follow json tags, integral numbers stay
// integral.
func Unbind(instance any) (map[string]any, error) {
	raw, err := json.Marshal(instance)
	if err != nil {
		return nil, errors.Wrap(errors.EBinding, "configuration could not be serialized", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, errors.Wrap(errors.EBinding, "configuration could not be re-read", err)
	}
	return normalizeNumbers(out).(map[string]any), nil
}

// nestDotted re-nests any dotted keys in data, leaving the rest untouched.
// Nested-mapping entries are placed first and dotted keys second, so a
// dotted key addressing the same field always wins, independent of map
// iteration order.
func nestDotted(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if strings.Contains(k, ".") {
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			out[k] = nestDotted(sub)
		} else {
			out[k] = v
		}
	}
	for k, v := range data {
		if strings.Contains(k, ".") {
			maps.SetPath(out, k, v)
		}
	}
	return out
}

// normalizeNumbers converts json.Number leaves to int64 where integral,
// float64 otherwise.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	default:
		return v
	}
}

func firstLine(err error) string {
	msg := err.Error()
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		return strings.TrimSpace(strings.TrimPrefix(msg[:idx], "1 error(s) decoding:"))
	}
	return msg
}

// offendingField extracts a field path from a mapstructure error message,
// falling back to the first unused key recorded in the metadata.
func offendingField(err error, md mapstructure.Metadata) string {
	msg := err.Error()
	// mapstructure reports lines like: * 'alpha.a' expected type 'int' ...
	if start := strings.Index(msg, "'"); start >= 0 {
		rest := msg[start+1:]
		if end := strings.IndexByte(rest, '\''); end >= 0 {
			return rest[:end]
		}
	}
	if len(md.Unused) > 0 {
		return md.Unused[0]
	}
	return ""
}
