// Package render formats experiment listings and detail views for
// human-readable CLI output.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/plonerma/cordage/experiment"
)

// ExperimentRow holds the fields for a single human-output row.
type ExperimentRow struct {
	ID       string
	Function string
	Status   string
	Started  string
	Duration string
	Tags     string
}

// WriteLSHuman writes the ls output in human-readable format. Fields are
// separated by whitespace columns for easy scanning.
func WriteLSHuman(w io.Writer, rows []ExperimentRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "no experiments found")
		return err
	}

	widths := columnWidths(rows)

	header := formatRow(
		"ID", widths.id,
		"FUNCTION", widths.function,
		"STATUS", widths.status,
		"STARTED", widths.started,
		"DURATION", widths.duration,
		"TAGS",
	)
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}

	for _, row := range rows {
		line := formatRow(
			row.ID, widths.id,
			row.Function, widths.function,
			row.Status, widths.status,
			row.Started, widths.started,
			row.Duration, widths.duration,
			row.Tags,
		)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	return nil
}

// colWidths holds the calculated column widths.
type colWidths struct {
	id       int
	function int
	status   int
	started  int
	duration int
}

func columnWidths(rows []ExperimentRow) colWidths {
	widths := colWidths{
		id:       len("ID"),
		function: len("FUNCTION"),
		status:   len("STATUS"),
		started:  len("STARTED"),
		duration: len("DURATION"),
	}

	for _, row := range rows {
		if len(row.ID) > widths.id {
			widths.id = len(row.ID)
		}
		if len(row.Function) > widths.function {
			widths.function = len(row.Function)
		}
		if len(row.Status) > widths.status {
			widths.status = len(row.Status)
		}
		if len(row.Started) > widths.started {
			widths.started = len(row.Started)
		}
		if len(row.Duration) > widths.duration {
			widths.duration = len(row.Duration)
		}
	}

	return widths
}

func formatRow(id string, idW int, function string, functionW int, status string, statusW int, started string, startedW int, duration string, durationW int, tags string) string {
	return strings.TrimRight(fmt.Sprintf("%-*s  %-*s  %-*s  %-*s  %-*s  %s",
		idW, id,
		functionW, function,
		statusW, status,
		startedW, started,
		durationW, duration,
		tags,
	), " ")
}

// FormatExperimentRow converts an experiment to a display row.
func FormatExperimentRow(exp experiment.Experiment, now time.Time) ExperimentRow {
	meta := exp.Metadata()

	row := ExperimentRow{
		ID:       exp.ID(),
		Function: meta.Function,
		Status:   string(exp.Status()),
		Tags:     strings.Join(exp.Annotations().AllTags(), ","),
	}
	if row.ID == "" {
		row.ID = "<pending>"
	}

	if meta.StartTime != nil {
		row.Started = humanize.RelTime(*meta.StartTime, now, "ago", "from now")
	}
	if d := meta.Duration(); d > 0 {
		row.Duration = d.Round(time.Second).String()
	}

	return row
}

// FormatExperimentRows converts a slice of experiments to display rows.
func FormatExperimentRows(exps []experiment.Experiment, now time.Time) []ExperimentRow {
	rows := make([]ExperimentRow, len(exps))
	for i, exp := range exps {
		rows[i] = FormatExperimentRow(exp, now)
	}
	return rows
}
