// Package errors provides error formatting for cordage CLI output.
package errors

import (
	"io"
	"sort"
	"strings"
)

// PrintOptions controls error output formatting.
type PrintOptions struct {
	// Verbose enables the cause chain and all context keys.
	Verbose bool
}

// Context key whitelist for default (non-verbose) output, in print order.
var defaultContextKeys = []string{
	"op",
	"experiment_id",
	"field",
	"path",
	"output_dir",
	"format",
	"status",
}

// maxValueLen caps single-line context values.
const maxValueLen = 256

// Format formats an error for display. Pure function, no I/O.
func Format(err error, opts PrintOptions) string {
	if err == nil {
		return ""
	}

	var sb strings.Builder

	ce, ok := AsCordageError(err)
	if !ok {
		sb.WriteString(err.Error())
		sb.WriteString("\n")
		return sb.String()
	}

	sb.WriteString("error_code: ")
	sb.WriteString(string(ce.Code))
	sb.WriteString("\n")
	sb.WriteString(ce.Msg)
	sb.WriteString("\n")

	printed := make(map[string]bool)
	wroteBlank := false
	for _, key := range defaultContextKeys {
		if ce.Details == nil {
			break
		}
		val, ok := ce.Details[key]
		if !ok || val == "" {
			continue
		}
		if !wroteBlank {
			sb.WriteString("\n")
			wroteBlank = true
		}
		printed[key] = true
		sb.WriteString(key)
		sb.WriteString(": ")
		sb.WriteString(sanitizeValue(val))
		sb.WriteString("\n")
	}

	if opts.Verbose && ce.Details != nil {
		var extra []string
		for key := range ce.Details {
			if !printed[key] {
				extra = append(extra, key)
			}
		}
		if len(extra) > 0 {
			sort.Strings(extra)
			sb.WriteString("\nextra:\n")
			for _, key := range extra {
				if ce.Details[key] == "" {
					continue
				}
				sb.WriteString("  ")
				sb.WriteString(key)
				sb.WriteString(": ")
				sb.WriteString(sanitizeValue(ce.Details[key]))
				sb.WriteString("\n")
			}
		}
	}

	if opts.Verbose && ce.Cause != nil {
		sb.WriteString("\ncause: ")
		sb.WriteString(sanitizeValue(ce.Cause.Error()))
		sb.WriteString("\n")
	}

	return sb.String()
}

// Print writes a formatted error to w.
func Print(w io.Writer, err error, opts PrintOptions) {
	if err == nil {
		return
	}
	_, _ = io.WriteString(w, Format(err, opts))
}

// sanitizeValue flattens a value to a single bounded line.
func sanitizeValue(val string) string {
	val = strings.TrimRight(val, " \t\r\n")
	val = strings.ReplaceAll(val, "\r\n", "\n")
	val = strings.ReplaceAll(val, "\n", "\\n")
	if len(val) > maxValueLen {
		return val[:maxValueLen] + "…"
	}
	return val
}
