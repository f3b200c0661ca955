// Package commands implements the cordage CLI commands over persisted
// experiment metadata. Commands here only read what the experiment engine
// wrote; they never parse user configuration schemas.
package commands

import (
	"encoding/json"
	"io"
	"time"

	"github.com/plonerma/cordage/config"
	"github.com/plonerma/cordage/experiment"
	"github.com/plonerma/cordage/internal/errors"
	"github.com/plonerma/cordage/internal/render"
)

// LSOpts holds options for the ls command.
type LSOpts struct {
	// Root is the directory to scan; the configured base output
	// directory when empty.
	Root string

	// Statuses filters to experiments in any of the given statuses.
	Statuses []string

	// Tags filters to experiments carrying any of the given tags
	// (explicit or comment-derived).
	Tags []string

	// JSON outputs machine-readable JSON.
	JSON bool
}

// lsEntry is one element of the stable JSON output.
type lsEntry struct {
	ExperimentID string     `json:"experiment_id"`
	Function     string     `json:"function"`
	Status       string     `json:"status"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	OutputDir    string     `json:"output_dir"`
	Tags         []string   `json:"tags"`
	Comment      string     `json:"comment,omitempty"`
	IsSeries     bool       `json:"is_series"`
}

// LS lists persisted experiments under a directory tree, sorted by output
// directory. Read-only.
func LS(global *config.GlobalConfig, opts LSOpts, stdout io.Writer) error {
	root := opts.Root
	if root == "" {
		root = global.BaseOutputDir
	}

	found, err := experiment.AllFromPath(root, global)
	if err != nil {
		return err
	}

	filtered := make([]experiment.Experiment, 0, len(found))
	for _, exp := range found {
		if !exp.HasStatus(toStatuses(opts.Statuses)...) {
			continue
		}
		if !exp.HasTag(opts.Tags...) {
			continue
		}
		filtered = append(filtered, exp)
	}

	if opts.JSON {
		entries := make([]lsEntry, len(filtered))
		for i, exp := range filtered {
			entries[i] = toEntry(exp)
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return errors.Wrap(errors.EInternal, "could not encode listing", err)
		}
		return nil
	}

	return render.WriteLSHuman(stdout, render.FormatExperimentRows(filtered, time.Now()))
}

func toStatuses(names []string) []experiment.Status {
	statuses := make([]experiment.Status, len(names))
	for i, name := range names {
		statuses[i] = experiment.Status(name)
	}
	return statuses
}

func toEntry(exp experiment.Experiment) lsEntry {
	meta := exp.Metadata()
	tags := exp.Annotations().AllTags()
	if tags == nil {
		tags = []string{}
	}
	return lsEntry{
		ExperimentID: exp.ID(),
		Function:     meta.Function,
		Status:       string(exp.Status()),
		StartTime:    meta.StartTime,
		EndTime:      meta.EndTime,
		OutputDir:    exp.OutputDir(),
		Tags:         tags,
		Comment:      exp.Annotations().Comment,
		IsSeries:     meta.IsSeries(),
	}
}
