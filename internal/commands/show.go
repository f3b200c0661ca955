package commands

import (
	"encoding/json"
	"io"

	"github.com/plonerma/cordage/config"
	"github.com/plonerma/cordage/experiment"
	"github.com/plonerma/cordage/internal/errors"
	"github.com/plonerma/cordage/internal/render"
)

// ShowOpts holds options for the show command.
type ShowOpts struct {
	// Path is an experiment output directory or its metadata file.
	Path string

	// JSON outputs machine-readable JSON.
	JSON bool
}

// showDocument is the stable JSON output of show.
type showDocument struct {
	lsEntry

	Configuration map[string]any `json:"configuration"`
	Result        any            `json:"result,omitempty"`
	Trials        int            `json:"trials,omitempty"`
}

// Show inspects a single persisted experiment. Read-only.
func Show(global *config.GlobalConfig, opts ShowOpts, stdout io.Writer) error {
	if opts.Path == "" {
		return errors.New(errors.EUsage, "an experiment path is required")
	}

	exp, err := experiment.FromPath(opts.Path, global)
	if err != nil {
		return err
	}

	if opts.JSON {
		doc := showDocument{
			lsEntry:       toEntry(exp),
			Configuration: exp.Metadata().Configuration,
			Result:        exp.Metadata().Result,
		}
		if s, ok := exp.(*experiment.Series); ok {
			doc.Trials = s.Len()
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return errors.Wrap(errors.EInternal, "could not encode experiment", err)
		}
		return nil
	}

	return render.WriteShowHuman(stdout, exp)
}
