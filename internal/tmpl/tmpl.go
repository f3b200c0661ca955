// Package tmpl implements the format templates used for experiment
// identifiers and output directory names. A template is a string with
// replacement fields of the form {name} or {name:%directives}, where
// %-directives are strftime conversions applied to time-valued fields.
// Literal braces are written as {{ and }}.
package tmpl

import (
	"fmt"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/plonerma/cordage/internal/errors"
)

// Format renders a template against a context of field values.
// Fails with E_TEMPLATE, naming the field, if the template references an
// unknown field or applies a time format to a non-time value.
func Format(template string, ctx map[string]any) (string, error) {
	var sb strings.Builder

	i := 0
	for i < len(template) {
		c := template[i]

		switch {
		case c == '{' && i+1 < len(template) && template[i+1] == '{':
			sb.WriteByte('{')
			i += 2
		case c == '}' && i+1 < len(template) && template[i+1] == '}':
			sb.WriteByte('}')
			i += 2
		case c == '{':
			end := strings.IndexByte(template[i:], '}')
			if end < 0 {
				return "", errors.NewWithDetails(errors.ETemplate,
					fmt.Sprintf("unterminated replacement field in template %q", template),
					map[string]string{"format": template})
			}
			field := template[i+1 : i+end]
			rendered, err := renderField(template, field, ctx)
			if err != nil {
				return "", err
			}
			sb.WriteString(rendered)
			i += end + 1
		case c == '}':
			return "", errors.NewWithDetails(errors.ETemplate,
				fmt.Sprintf("single '}' in template %q", template),
				map[string]string{"format": template})
		default:
			sb.WriteByte(c)
			i++
		}
	}

	return sb.String(), nil
}

func renderField(template, field string, ctx map[string]any) (string, error) {
	name := field
	spec := ""
	if idx := strings.IndexByte(field, ':'); idx >= 0 {
		name, spec = field[:idx], field[idx+1:]
	}

	value, ok := ctx[name]
	if !ok {
		return "", errors.NewWithDetails(errors.ETemplate,
			fmt.Sprintf("template %q references unknown field %q", template, name),
			map[string]string{"format": template, "field": name})
	}

	if spec == "" {
		return fmt.Sprint(value), nil
	}

	t, ok := value.(time.Time)
	if !ok {
		return "", errors.NewWithDetails(errors.ETemplate,
			fmt.Sprintf("format spec %q requires a time value, field %q is %T", spec, name, value),
			map[string]string{"format": template, "field": name})
	}
	return strftime.Format(spec, t), nil
}

// Validate renders a template against a dummy context so that malformed
// templates fail at configuration-construction time rather than mid-run.
func Validate(template string, fields ...string) error {
	ctx := make(map[string]any, len(fields))
	for _, f := range fields {
		// start_time is the only time-valued field templates may
		// apply strftime directives to.
		if f == "start_time" {
			ctx[f] = time.Now()
		} else {
			ctx[f] = f
		}
	}
	_, err := Format(template, ctx)
	return err
}
